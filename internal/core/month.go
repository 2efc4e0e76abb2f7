package core

import (
	"strings"
	"time"
)

// MonthLabel returns the partition label for the calendar month of t.
func MonthLabel(t time.Time) string {
	return t.Month().String()
}

// MonthLabels lists the labels offered by the month selector, January first.
func MonthLabels() []string {
	labels := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		labels = append(labels, m.String())
	}
	return labels
}

// ResolveMonth picks the active month from a raw query value, falling back
// to the label of now's month when the value is blank.
func ResolveMonth(raw string, now time.Time) string {
	if m := strings.TrimSpace(raw); m != "" {
		return m
	}
	return MonthLabel(now)
}
