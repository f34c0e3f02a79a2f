package seed

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// FormatDate renders a date the way seed documents carry them.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses a seed document date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
