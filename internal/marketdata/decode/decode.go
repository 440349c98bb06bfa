// Package decode turns raw stream frames into ticker snapshots.
//
// Decoding is an ordered cascade of pure attempt functions. Each attempt
// either claims the frame (OK or Err) or passes (Skip); the first claim wins.
// Logging and metrics wrap the cascade from the outside.
package decode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tickerwatch/internal/marketdata/yaticker"
	"tickerwatch/internal/model"
)

var (
	ErrBase64    = errors.New("decode: invalid base64 payload")
	ErrEmptyID   = errors.New("decode: ticker record has empty id")
	ErrNoAttempt = errors.New("decode: no attempt claimed the frame")
	ErrNonFinite = errors.New("decode: ticker record has non-finite price")

	errNotJSON = errors.New("not json")
)

// Outcome is the verdict of a single attempt.
type Outcome int

const (
	Skip Outcome = iota
	OK
	Err
)

// Result is what the decoder made of one frame. Snapshot is set only for
// successful pricing, legacy and binary frames.
type Result struct {
	Snapshot *model.TickerSnapshot
	Tag      model.Classification
	Err      error
}

// input is shared by the attempts for one frame; the JSON is parsed once.
// isJSON is set for any valid JSON value; envelope only for objects.
type input struct {
	raw        []byte
	isJSON     bool
	envelope   *envelope
	parseErr   error
	receivedAt time.Time
}

type envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type attempt func(in *input) (Outcome, Result)

var textCascade = []attempt{
	tryHeartbeat,
	tryPricing,
	tryJSONOther,
	tryLegacyBase64,
}

// Decoder runs the cascade. The zero value uses the wall clock.
type Decoder struct {
	Now func() time.Time
}

// New creates a Decoder using time.Now.
func New() *Decoder {
	return &Decoder{Now: time.Now}
}

func (d *Decoder) now() time.Time {
	if d == nil || d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Decode classifies a materialized frame. Deferred frames must be
// materialized first and passed as KindText. It never panics.
func (d *Decoder) Decode(data []byte, kind Kind) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Tag: model.ClassDecodeError, Err: fmt.Errorf("decode: panic: %v", r)}
		}
	}()

	now := d.now()
	switch kind {
	case KindBinary:
		snap, err := tickerSnapshot(data, now)
		if err != nil {
			return Result{Tag: model.ClassDecodeError, Err: err}
		}
		return Result{Snapshot: snap, Tag: model.ClassBinary}
	case KindText, KindDeferred:
		in := &input{raw: data, receivedAt: now}
		if in.isJSON = json.Valid(data); in.isJSON {
			var env envelope
			if json.Unmarshal(data, &env) == nil {
				in.envelope = &env
			}
		} else {
			in.parseErr = errNotJSON
		}
		for _, try := range textCascade {
			if out, r := try(in); out != Skip {
				return r
			}
		}
		return Result{Tag: model.ClassDecodeError, Err: ErrNoAttempt}
	default:
		return Result{Tag: model.ClassDecodeError, Err: fmt.Errorf("decode: unsupported frame kind %s", kind)}
	}
}

func tryHeartbeat(in *input) (Outcome, Result) {
	if in.envelope == nil || in.envelope.Type != "heartbeat" {
		return Skip, Result{}
	}
	return OK, Result{Tag: model.ClassHeartbeat}
}

func tryPricing(in *input) (Outcome, Result) {
	if in.envelope == nil || in.envelope.Type != "pricing" {
		return Skip, Result{}
	}
	var msg string
	if err := json.Unmarshal(in.envelope.Message, &msg); err != nil || msg == "" {
		return Skip, Result{}
	}
	raw, err := decodeBase64([]byte(msg))
	if err != nil {
		return Err, Result{Tag: model.ClassDecodeError, Err: fmt.Errorf("pricing message: %w", err)}
	}
	snap, err := tickerSnapshot(raw, in.receivedAt)
	if err != nil {
		return Err, Result{Tag: model.ClassDecodeError, Err: fmt.Errorf("pricing message: %w", err)}
	}
	return OK, Result{Snapshot: snap, Tag: model.ClassPricing}
}

func tryJSONOther(in *input) (Outcome, Result) {
	if !in.isJSON {
		return Skip, Result{}
	}
	return OK, Result{Tag: model.ClassJSONOther}
}

func tryLegacyBase64(in *input) (Outcome, Result) {
	if in.isJSON {
		return Skip, Result{}
	}
	raw, err := decodeBase64(in.raw)
	if err != nil {
		return Err, Result{Tag: model.ClassDecodeError, Err: fmt.Errorf("legacy frame (json: %v): %w", in.parseErr, err)}
	}
	snap, err := tickerSnapshot(raw, in.receivedAt)
	if err != nil {
		return Err, Result{Tag: model.ClassDecodeError, Err: fmt.Errorf("legacy frame: %w", err)}
	}
	return OK, Result{Snapshot: snap, Tag: model.ClassLegacyBase64}
}

func decodeBase64(s []byte) ([]byte, error) {
	s = bytes.TrimSpace(s)
	if len(s) == 0 {
		return nil, ErrBase64
	}
	if b, err := base64.StdEncoding.DecodeString(string(s)); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(string(s)); err == nil {
		return b, nil
	}
	return nil, ErrBase64
}

func tickerSnapshot(raw []byte, receivedAt time.Time) (*model.TickerSnapshot, error) {
	t, err := yaticker.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	return Normalize(t, receivedAt)
}
