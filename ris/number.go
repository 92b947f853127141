package ris

import (
	"fmt"
	"time"
)

// DayPrefix returns "R<yyyy>-<mm><dd>-" for t in its own location.
func DayPrefix(t time.Time) string {
	return fmt.Sprintf("R%04d-%02d%02d-", t.Year(), int(t.Month()), t.Day())
}

// Format 三位补零，超过 999 时自然变宽
func Format(t time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", DayPrefix(t), seq)
}

func dayKey(t time.Time) string { return t.Format("20060102") }

// formatDate is the MM/DD/YYYY used on printed slips.
func formatDate(t time.Time) string { return t.Format("01/02/2006") }

// LoadLocation resolves RIS_TIMEZONE; empty means the server's local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
