package variant

import (
	"errors"
	"strconv"
)

// ErrInvalidSize is returned for malformed or out-of-allow-list dimension
// values.
var ErrInvalidSize = errors.New("variant: invalid size")

// ParseSize parses a raw w/h query value. An empty string is the valid
// "unspecified" sentinel and parses to 0. Non-integer or non-positive
// input fails, as does any value outside a non-empty allow-list.
func ParseSize(raw string, valid []int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrInvalidSize
	}
	if len(valid) > 0 {
		for _, v := range valid {
			if v == n {
				return n, nil
			}
		}
		return 0, ErrInvalidSize
	}
	return n, nil
}
