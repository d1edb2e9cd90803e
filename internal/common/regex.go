package common

import "regexp"

// MatchRegex compiles and matches a regex pattern against a string.
// Returns true if the pattern matches, false otherwise.
// Returns an error if the pattern is invalid.
func MatchRegex(pattern, text string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

// MatchAny reports which of the given patterns match the text. Invalid
// patterns fail the whole call; rule patterns are validated on entry, so
// an error here points at corrupted data.
func MatchAny(patterns []string, text string) ([]string, error) {
	var matched []string
	for _, p := range patterns {
		ok, err := MatchRegex(p, text)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}
