package timesheet

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minHours = 1
	maxHours = 500
)

var hourPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Total[:\s]+(\d+)\s*h`),
	regexp.MustCompile(`(?im)Total\s+Hours[:\s]+(\d+)`),
	regexp.MustCompile(`(?im)Logged[:\s]+(\d+)\s*h`),
	regexp.MustCompile(`(?im)Sum[:\s]+(\d+)\s*h`),
	regexp.MustCompile(`(?im)(\d+)\s*h\s+total`),
	regexp.MustCompile(`(?im)\b(\d{2,3})\s*h?\s*$`),
}

var hourValues = regexp.MustCompile(`(?i)\b(\d{2,3})\s*h\b`)

var (
	shortRange = regexp.MustCompile(`(\d{1,2}/[A-Za-z]{3}/\d{2})\s*[-–—]\s*(\d{1,2}/[A-Za-z]{3}/\d{2})`)
	longRange  = regexp.MustCompile(`(\d{1,2}\s+[A-Za-z]{3}\s+\d{4})\s*[-–—]\s*(\d{1,2}\s+[A-Za-z]{3}\s+\d{4})`)
	monthSpan  = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2})\s*[-–—]\s*(\d{1,2}),?\s*(\d{4})`)
	isoRange   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*[-–—]\s*(\d{4}-\d{2}-\d{2})`)

	monthWord = regexp.MustCompile(`[A-Za-z]{3,}`)
	yearShort = regexp.MustCompile(`/(\d{2})(?:\s|$|-)`)
	yearLong  = regexp.MustCompile(`\d{4}`)
	isoMonth  = regexp.MustCompile(`^(\d{4})-(\d{2})-\d{2}`)
)

var monthPrefixes = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// Parse extracts the total hours and billing period from timesheet text.
func Parse(text string) (Info, error) {
	if strings.TrimSpace(text) == "" {
		return Info{}, ErrNoText
	}

	hours, err := totalHours(text)
	if err != nil {
		return Info{}, err
	}

	dateRange, err := findDateRange(text)
	if err != nil {
		return Info{}, err
	}

	month, year, err := monthYear(dateRange)
	if err != nil {
		return Info{}, err
	}

	return Info{
		TotalHours: hours,
		DateRange:  dateRange,
		Month:      month,
		Year:       year,
	}, nil
}

func totalHours(text string) (int, error) {
	for _, p := range hourPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if h, err := strconv.Atoi(m[1]); err == nil && h >= minHours && h <= maxHours {
			return h, nil
		}
	}

	best := 0
	for _, m := range hourValues.FindAllStringSubmatch(text, -1) {
		h, err := strconv.Atoi(m[1])
		if err != nil || h < minHours || h > maxHours {
			continue
		}
		best = max(best, h)
	}
	if best > 0 {
		return best, nil
	}

	return 0, ErrNoHours
}

func findDateRange(text string) (string, error) {
	if m := shortRange.FindStringSubmatch(text); m != nil {
		return m[1] + " - " + m[2], nil
	}
	if m := longRange.FindStringSubmatch(text); m != nil {
		return m[1] + " - " + m[2], nil
	}
	if m := monthSpan.FindString(text); m != "" {
		return m, nil
	}
	if m := isoRange.FindStringSubmatch(text); m != nil {
		return m[1] + " - " + m[2], nil
	}
	return "", ErrNoDateRange
}

func monthYear(dateRange string) (int, int, error) {
	if m := isoMonth.FindStringSubmatch(dateRange); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return 0, 0, ErrBadPeriod
		}
		return month, year, nil
	}

	word := monthWord.FindString(dateRange)
	if word == "" {
		return 0, 0, ErrBadPeriod
	}
	month, ok := monthPrefixes[strings.ToLower(word[:3])]
	if !ok {
		return 0, 0, ErrBadPeriod
	}

	var year int
	if m := yearShort.FindStringSubmatch(dateRange); m != nil {
		year, _ = strconv.Atoi(m[1])
	} else if m := yearLong.FindString(dateRange); m != "" {
		year, _ = strconv.Atoi(m)
	} else {
		return 0, 0, ErrBadPeriod
	}
	if year < 100 {
		year += 2000
	}

	return month, year, nil
}
