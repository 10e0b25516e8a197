package posts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	publishedPattern    = regexp.MustCompile(`(?i)originally\s+published\s+(?:on\s+)?([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	publishedISOPattern = regexp.MustCompile(`(?i)originally\s+published\s+(?:on\s+)?(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	emphasisReplacer    = strings.NewReplacer("*", "", "_", "")
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParsePublishedDate looks for an "Originally published <Month> <Day>[st|nd|rd|th][,] <Year>"
// annotation (or "Originally published YYYY-MM-DD") in text. It reports
// whether an annotation was present; a present annotation naming a day that
// does not exist returns ErrInvalidDate.
func ParsePublishedDate(text string) (time.Time, bool, error) {
	text = emphasisReplacer.Replace(text)

	if m := publishedPattern.FindStringSubmatch(text); m != nil {
		month, ok := monthNames[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, true, fmt.Errorf("%w: unknown month %q", ErrInvalidDate, m[1])
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		date, err := calendarDate(year, month, day)
		return date, true, err
	}

	if m := publishedISOPattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 {
			return time.Time{}, true, fmt.Errorf("%w: month %d out of range", ErrInvalidDate, month)
		}
		date, err := calendarDate(year, time.Month(month), day)
		return date, true, err
	}

	return time.Time{}, false, nil
}

func calendarDate(year int, month time.Month, day int) (time.Time, error) {
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != month || date.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %s %d, %d", ErrInvalidDate, month, day, year)
	}
	return date, nil
}
