package eml

import (
	"regexp"
	"strings"
)

var postcodePattern = regexp.MustCompile(`(.*?)\(postcode: (.*?)\)`)

// DecomposeStationName splits a polling-station label of the form
// "<name> (postcode: <code>)" into its trimmed name and code.
//
// A label without the postcode token is returned unchanged with a nil code;
// a nil label yields (nil, nil).
func DecomposeStationName(label *string) (name, postcode *string) {
	if label == nil {
		return nil, nil
	}
	m := postcodePattern.FindStringSubmatch(*label)
	if m == nil {
		return label, nil
	}
	n := strings.TrimSpace(m[1])
	c := strings.TrimSpace(m[2])
	return &n, &c
}
