package decode

import (
	"log/slog"

	"tickerwatch/internal/model"
)

// LoggedDecoder wraps a Decoder and logs each verdict.
type LoggedDecoder struct {
	inner *Decoder
	log   *slog.Logger
}

// Logged wraps d so every decoded frame is logged: decode errors at warn,
// snapshots and heartbeats at debug.
func Logged(d *Decoder, log *slog.Logger) *LoggedDecoder {
	if log == nil {
		log = slog.Default()
	}
	return &LoggedDecoder{inner: d, log: log.With("component", "decode")}
}

func (l *LoggedDecoder) Decode(data []byte, kind Kind) Result {
	res := l.inner.Decode(data, kind)
	switch {
	case res.Tag.IsError():
		l.log.Warn("frame dropped",
			"tag", string(res.Tag),
			"kind", kind.String(),
			"size", len(data),
			"error", res.Err,
		)
	case res.Snapshot != nil:
		l.log.Debug("snapshot decoded",
			"tag", string(res.Tag),
			"symbol", res.Snapshot.ID,
			"price", res.Snapshot.Price,
		)
	case res.Tag == model.ClassHeartbeat:
		l.log.Debug("heartbeat")
	default:
		l.log.Debug("frame ignored", "tag", string(res.Tag), "size", len(data))
	}
	return res
}
