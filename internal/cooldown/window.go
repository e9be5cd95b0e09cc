package cooldown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var windowRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([smhd])?$`)

// ParseWindow parses the operator window grammar: a bare number is seconds,
// and s/m/h/d suffixes scale accordingly ("300", "5m", "1.5h", "2d").
func ParseWindow(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	m := windowRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	switch m[2] {
	case "m":
		value *= 60
	case "h":
		value *= 3600
	case "d":
		value *= 86400
	}
	return time.Duration(value) * time.Second, nil
}

// FormatWindow renders a window for operator-facing messages.
func FormatWindow(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs == 0 {
		return "No Cooldown"
	}
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	rem := secs % 60

	var parts []string
	plural := func(n int64, unit string) string {
		if n > 1 {
			return fmt.Sprintf("%d %ss", n, unit)
		}
		return fmt.Sprintf("%d %s", n, unit)
	}
	if days > 0 {
		parts = append(parts, plural(days, "Day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "Hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "Minute"))
	}
	if rem > 0 && days == 0 && hours == 0 {
		parts = append(parts, plural(rem, "Second"))
	}
	return strings.Join(parts, ", ")
}
