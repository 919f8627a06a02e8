package duration

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr error
	}{
		{name: "empty string", input: "", wantErr: ErrInvalidFormat},
		{name: "invalid characters", input: "1d!", wantErr: ErrInvalidFormat},
		{name: "negative number", input: "-1d", wantErr: ErrInvalidFormat},
		{name: "no number", input: "d", wantErr: ErrInvalidNumber},
		{name: "missing unit", input: "30", wantErr: ErrInvalidFormat},
		{name: "invalid unit", input: "1x", wantErr: ErrInvalidUnit},
		{name: "unit typo in second term", input: "1d 2wk", wantErr: ErrInvalidUnit},
		{name: "zero", input: "0d", want: 0},
		{name: "hours", input: "12h", want: 12 * time.Hour},
		{name: "full word", input: "1hour", want: time.Hour},
		{name: "days with space", input: "30 days", want: 30 * Day},
		{name: "upper case", input: "2W", want: 2 * Week},
		{name: "month is thirty days", input: "1m", want: 30 * Day},
		{name: "year", input: "1 year", want: 365 * Day},
		{name: "compound", input: "1w3d", want: 10 * Day},
		{name: "compound with spaces", input: "1 week 2 days 6 hours", want: Week + 2*Day + 6*time.Hour},
		{name: "repeated unit adds up", input: "1d1d", want: 2 * Day},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Parse(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0h"},
		{30 * time.Minute, "0h"},
		{36 * time.Hour, "1d12h"},
		{30 * Day, "1m"},
		{Year + Week + 2*Day, "1y1w2d"},
		{90*time.Minute + Day, "1d1h"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"30d", "1w3d", "1y2m", "5h"} {
		d, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		back, err := Parse(Format(d))
		if err != nil || back != d {
			t.Errorf("%q -> %q -> %v, want %v", in, Format(d), back, d)
		}
	}
}
