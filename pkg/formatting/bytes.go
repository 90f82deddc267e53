// Package formatting parses byte sizes for upload limits, recovers JSON
// verdicts from model output and bounds the text sent to the classifier.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	kib = 1 << 10
	mib = 1 << 20
	gib = 1 << 30
)

// sizeUnits accepts the SI spelling, the IEC spelling and the bare letter.
// Every unit is base-1024.
var sizeUnits = map[string]int64{
	"": 1, "B": 1,
	"K": kib, "KB": kib, "KIB": kib,
	"M": mib, "MB": mib, "MIB": mib,
	"G": gib, "GB": gib, "GIB": gib,
}

// FormatBytes renders n in the largest unit up to GB that keeps the value at
// least one, with precision decimals. Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	switch abs := math.Abs(float64(n)); {
	case abs >= gib:
		return strconv.FormatFloat(float64(n)/gib, 'f', precision, 64) + " GB"
	case abs >= mib:
		return strconv.FormatFloat(float64(n)/mib, 'f', precision, 64) + " MB"
	case abs >= kib:
		return strconv.FormatFloat(float64(n)/kib, 'f', precision, 64) + " KB"
	default:
		return strconv.FormatInt(n, 10) + " B"
	}
}

// ParseBytes reads a size such as "32MB", "512 KiB" or "1048576". Units are
// case-insensitive and a bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number %q: %w", number, err)
	}

	mult, ok := sizeUnits[strings.ToUpper(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	size := value * float64(mult)
	if size >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}
	return int64(size), nil
}
