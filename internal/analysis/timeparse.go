package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts that carry an hour of day.
var clockLayouts = []string{
	time.RFC3339, "2006-01-02 15:04", "2006-01-02 15:04:05", "2006/01/02 15:04", "2006/01/02 15:04:05",
	"2006.01.02 15:04", "1/2/2006 15:04", "1/2/2006 15:04:05", "15:04", "15:04:05", "3:04PM", "3:04 PM",
}

var koreanHour = regexp.MustCompile(`^(\d{1,2})\s*시`)

// parseHour extracts the hour of day from clock or timestamp text.
func parseHour(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, l := range clockLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Hour(), true
		}
	}
	if m := koreanHour.FindStringSubmatch(s); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil {
			return wrapHour(float64(h)), true
		}
	}
	return 0, false
}

// wrapHour maps any finite numeric time label onto the 24-hour cycle. The
// modulo is taken in float64 so magnitudes beyond int range stay in 0..23.
func wrapHour(v float64) int {
	h := int(math.Mod(math.Floor(v), 24))
	if h < 0 {
		h += 24
	}
	return h
}
