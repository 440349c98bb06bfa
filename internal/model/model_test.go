package model

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSessionFromWire(t *testing.T) {
	cases := []struct {
		in   int32
		want SessionPhase
	}{
		{0, SessionPre}, {1, SessionRegular}, {2, SessionPost}, {3, SessionExtended},
		{4, SessionRegular}, {-1, SessionRegular}, {99, SessionRegular},
	}
	for _, tc := range cases {
		if got := SessionFromWire(tc.in); got != tc.want {
			t.Errorf("SessionFromWire(%d) = %s, want %s", tc.in, got, tc.want)
		}
	}
	for _, p := range []SessionPhase{SessionPre, SessionRegular, SessionPost, SessionExtended} {
		if got := SessionFromWire(p.Wire()); got != p {
			t.Errorf("round trip %s: got %s", p, got)
		}
	}
}

func TestPreview(t *testing.T) {
	short := strings.Repeat("a", 4999)
	if Preview(short) != short {
		t.Error("short payload should be kept whole")
	}
	long := strings.Repeat("b", 6000)
	got := Preview(long)
	if !strings.HasPrefix(got, strings.Repeat("b", 500)+"...") {
		t.Errorf("long payload not truncated: %q", got[:520])
	}
	if !strings.HasSuffix(got, "total length: 6000]") {
		t.Errorf("missing length suffix: %q", got[len(got)-30:])
	}
}

func TestPreview_RuneBoundary(t *testing.T) {
	tests := []struct {
		name     string
		pad      int
		r        string
		wantKept int
	}{
		{"three-byte rune straddles the cut", 499, "€", 499},
		{"four-byte rune straddles the cut", 497, "😀", 497},
		{"rune ends at the cut", 497, "€", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("a", tt.pad) + strings.Repeat(tt.r, 2000)
			got := Preview(text)
			if !utf8.ValidString(got) {
				t.Fatalf("preview is not valid UTF-8: %q", got[:tt.wantKept+3])
			}
			head, _, ok := strings.Cut(got, "... [truncated")
			if !ok || len(head) != tt.wantKept {
				t.Fatalf("kept %d bytes, want %d", len(head), tt.wantKept)
			}
		})
	}
}

func TestLast(t *testing.T) {
	if Last(nil) != nil {
		t.Error("Last(nil) should be nil")
	}
	if v := Last([]float64{1, 2, 3}); v == nil || *v != 3 {
		t.Errorf("Last = %v, want 3", v)
	}
}
