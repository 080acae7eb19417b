package utils

import (
	"math"
	"regexp"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func IsValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// IsValidSortField reports whether questions may be ordered by field.
func IsValidSortField(field string) bool {
	switch field {
	case "createdAt", "content_th", "content_en", "viewCount", "skipCount", "skipRate", "popularityScore":
		return true
	default:
		return false
	}
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percent returns part/whole*100, or 0 when whole is 0.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
