package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxTimestamp bounds every parsed timestamp. Values beyond it are rejected
// by the parsers and saturated by FromSeconds, keeping arithmetic on
// time.Duration far from overflow.
const MaxTimestamp = 100 * time.Hour

// ParseTimestamp accepts SS, MM:SS and HH:MM:SS, each with optional
// fractional seconds. Minutes may exceed 59 in the MM:SS form.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timestamp %q has too many fields", value)
	}
	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("timestamp %q: invalid seconds", value)
	}
	if len(parts) > 1 && seconds >= 60 {
		return 0, fmt.Errorf("timestamp %q: seconds must be below 60", value)
	}
	total := seconds
	multiplier := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timestamp %q: invalid field %q", value, parts[i])
		}
		if i == 1 && len(parts) == 3 && n >= 60 {
			return 0, fmt.Errorf("timestamp %q: minutes must be below 60", value)
		}
		total += float64(n) * multiplier
		multiplier *= 60
	}
	if total > MaxTimestamp.Seconds() {
		return 0, fmt.Errorf("timestamp %q exceeds %s", value, MaxTimestamp)
	}
	return Millis(time.Duration(total * float64(time.Second))), nil
}

// Millis rounds d to millisecond precision, the resolution of every timestamp
// the pipeline emits.
func Millis(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// FormatTimecode renders d as MM:SS.mmm, or HH:MM:SS.mmm from one hour on.
func FormatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := Millis(d).Milliseconds()
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	millis := ms % 1000
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
	}
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}

// Seconds converts d to fractional seconds rounded to milliseconds.
func Seconds(d time.Duration) float64 {
	return float64(Millis(d).Milliseconds()) / 1000
}

// FromSeconds is the inverse of Seconds. Negative and NaN inputs map to zero;
// inputs beyond MaxTimestamp saturate.
func FromSeconds(s float64) time.Duration {
	switch {
	case math.IsNaN(s) || s <= 0:
		return 0
	case s >= MaxTimestamp.Seconds():
		return MaxTimestamp
	}
	return Millis(time.Duration(math.Round(s * 1000)) * time.Millisecond)
}
