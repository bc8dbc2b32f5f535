// Package extract reads single string fields out of the flat JSON objects the
// proxy answers with. It is a bounded substring search, not a parser: values
// are expected on one line and unnested.
package extract

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("field not found")
	// ErrTooLong comes with the value cut to the requested length. Callers
	// that cannot use a partial value may treat it as ErrNotFound.
	ErrTooLong = errors.New("field value too long")
)

// Field returns the raw value of the string field key in blob. A value longer
// than maxLen is returned truncated to maxLen together with ErrTooLong.
func Field(blob, key string, maxLen int) (string, error) {
	pattern := `"` + key + `":"`

	start := strings.Index(blob, pattern)
	if start < 0 {
		return "", ErrNotFound
	}
	start += len(pattern)

	end := closingQuote(blob, start)
	if end < 0 {
		return "", ErrNotFound
	}

	value := blob[start:end]
	if maxLen >= 0 && len(value) > maxLen {
		return value[:maxLen], ErrTooLong
	}
	return value, nil
}

// Has reports whether blob carries a non-empty value for key.
func Has(blob, key string) bool {
	v, err := Field(blob, key, len(blob))
	return err == nil && v != ""
}

func closingQuote(blob string, from int) int {
	for i := from; i < len(blob); i++ {
		switch blob[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
