package pipeline

import "time"

// QuarterOf returns the fiscal quarter folder name for the given time.
// Months 1-3 map to Q1, 4-6 to Q2, 7-9 to Q3 and 10-12 to Q4.
func QuarterOf(t time.Time) string {
	switch month := t.Month(); {
	case month <= time.March:
		return "Q1"
	case month <= time.June:
		return "Q2"
	case month <= time.September:
		return "Q3"
	default:
		return "Q4"
	}
}
