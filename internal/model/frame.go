package model

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// Classification tags what the pipeline made of one inbound frame or
// connection event. Tags are diagnostic and never drive business logic.
type Classification string

const (
	ClassHeartbeat    Classification = "HEARTBEAT"
	ClassPricing      Classification = "PRICING"
	ClassLegacyBase64 Classification = "LEGACY_BASE64"
	ClassBinary       Classification = "BINARY"
	ClassJSONOther    Classification = "JSON_OTHER"
	ClassDecodeError  Classification = "DECODE_ERROR"
	ClassReadError    Classification = "READ_ERROR"

	// Connection lifecycle events recorded alongside frames.
	ClassConnAttempt      Classification = "CONNECTION_ATTEMPT"
	ClassConnOpen         Classification = "CONNECTION_OPEN"
	ClassConnClose        Classification = "CONNECTION_CLOSE"
	ClassConnError        Classification = "CONNECTION_ERROR"
	ClassSubscribe        Classification = "SUBSCRIBE_REQUEST"
	ClassManualDisconnect Classification = "MANUAL_DISCONNECT"
)

// IsError reports whether the tag marks a dropped frame.
func (c Classification) IsError() bool {
	return c == ClassDecodeError || c == ClassReadError
}

// FrameRecord is one entry of the connector's diagnostic ring.
type FrameRecord struct {
	Time    time.Time      `json:"time"`
	Tag     Classification `json:"tag"`
	Size    int            `json:"size"`
	Symbol  string         `json:"symbol,omitempty"`
	Preview string         `json:"preview,omitempty"`
	Error   string         `json:"error,omitempty"`
}

const (
	previewLimit     = 5000
	previewTruncated = 500
)

// Preview shortens a text payload for diagnostics: payloads under 5000
// characters are kept whole, longer ones are cut to their first 500,
// backing off to a rune boundary.
func Preview(text string) string {
	if len(text) < previewLimit {
		return text
	}
	cut := previewTruncated
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "... [truncated, total length: " + strconv.Itoa(len(text)) + "]"
}
