package repository

import "regexp"

var cityCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// IsCityCode reports whether city is exactly three uppercase ASCII letters (e.g. "BOG", "SMR").
func IsCityCode(city string) bool {
	return cityCodePattern.MatchString(city)
}
