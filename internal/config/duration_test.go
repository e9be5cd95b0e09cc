package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "30s", want: 30 * time.Second},
		{raw: " 5m ", want: 5 * time.Minute},
		{raw: "", want: 0},
		{raw: "soon", wantErr: true},
		{raw: "-1s", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("test.field", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDurationField(%q) = %v, want error", tc.raw, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseDurationField(%q) = (%v, %v), want %v", tc.raw, got, err, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("test.field", "", time.Second); err != nil || d != time.Second {
		t.Fatalf("unset field = (%v, %v), want default", d, err)
	}
	if d, err := ParseDurationOrDefault("test.field", "2s", time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("set field = (%v, %v), want 2s", d, err)
	}
	if _, err := ParseDurationOrDefault("test.field", "nope", time.Second); err == nil {
		t.Fatal("bad value accepted")
	}
}
