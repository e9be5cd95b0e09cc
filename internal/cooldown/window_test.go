package cooldown

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "300", want: 300 * time.Second},
		{in: "0", want: 0},
		{in: "5m", want: 5 * time.Minute},
		{in: "1.5h", want: 90 * time.Minute},
		{in: "2d", want: 48 * time.Hour},
		{in: " 10 s ", want: 10 * time.Second},
		{in: "5M", want: 5 * time.Minute},
		{in: "", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "5x", wantErr: true},
		{in: "m", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseWindow(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseWindow(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindow(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseWindow(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatWindow(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "No Cooldown"},
		{time.Second, "1 Second"},
		{45 * time.Second, "45 Seconds"},
		{5 * time.Minute, "5 Minutes"},
		{90 * time.Minute, "1 Hour, 30 Minutes"},
		{2 * 24 * time.Hour, "2 Days"},
		{25 * time.Hour, "1 Day, 1 Hour"},
	}
	for _, tc := range cases {
		if got := FormatWindow(tc.in); got != tc.want {
			t.Errorf("FormatWindow(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseUpdateKeepsValidFields(t *testing.T) {
	t.Parallel()
	u, errs := ParseUpdate("free:5m premium:bogus owner:0")
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	if u.Free == nil || *u.Free != 5*time.Minute {
		t.Fatalf("free = %v, want 5m", u.Free)
	}
	if u.Premium != nil {
		t.Fatalf("premium = %v, want nil", *u.Premium)
	}
	if u.Owner == nil || *u.Owner != 0 {
		t.Fatalf("owner = %v, want 0", u.Owner)
	}
}

func TestParseUpdateEmpty(t *testing.T) {
	t.Parallel()
	u, errs := ParseUpdate("nothing to see here")
	if !u.Empty() || len(errs) != 0 {
		t.Fatalf("update = %+v errs = %v, want empty and no errors", u, errs)
	}
}
