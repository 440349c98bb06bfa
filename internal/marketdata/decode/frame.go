package decode

import (
	"context"
	"fmt"
	"io"
)

// Kind is the shape a frame arrived in.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindDeferred
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Frame is one inbound message. Deferred frames carry a Source instead of
// Data; their bytes only become available through Materialize.
type Frame struct {
	Kind   Kind
	Data   []byte
	Source func(ctx context.Context) ([]byte, error)
}

// Text wraps a text payload.
func Text(s string) Frame { return Frame{Kind: KindText, Data: []byte(s)} }

// Binary wraps a binary payload.
func Binary(b []byte) Frame { return Frame{Kind: KindBinary, Data: b} }

// Deferred wraps a chunk whose contents must be materialized asynchronously.
func Deferred(src func(ctx context.Context) ([]byte, error)) Frame {
	return Frame{Kind: KindDeferred, Source: src}
}

// DeferredReader wraps r as a deferred frame read in full on materialization.
func DeferredReader(r io.Reader) Frame {
	return Deferred(func(ctx context.Context) ([]byte, error) {
		type res struct {
			b   []byte
			err error
		}
		done := make(chan res, 1)
		go func() {
			b, err := io.ReadAll(r)
			done <- res{b, err}
		}()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-done:
			return r.b, r.err
		}
	})
}

// Materialize resolves a deferred frame into its text payload. Other kinds
// return their data unchanged.
func (f Frame) Materialize(ctx context.Context) ([]byte, error) {
	if f.Kind != KindDeferred {
		return f.Data, nil
	}
	if f.Source == nil {
		return nil, fmt.Errorf("decode: deferred frame without source")
	}
	return f.Source(ctx)
}
