package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidEnum is returned when an enum field holds neither a number nor a string.
var ErrInvalidEnum = errors.New("enum must be an integer or a string")

// UnknownEnum is the ordinal DecodeEnum yields for a name it does not know.
const UnknownEnum = -1

// enumToken extracts the raw token of a JSON enum value.
// isString reports whether the value was a quoted string.
func enumToken(data []byte) (raw string, isString bool, err error) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return "", false, ErrInvalidEnum
	}
	if s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrInvalidEnum, err)
		}
		return unquoted, true, nil
	}
	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		return s, false, nil
	}
	return "", false, fmt.Errorf("%w: got %s", ErrInvalidEnum, s)
}

// DecodeEnum decodes an enum encoded either as its integer ordinal or as a
// case-insensitive name from names. Numeric strings are accepted as ordinals.
// Integer ordinals outside names are returned as-is and unknown names decode
// to UnknownEnum, so a newer producer cannot fail the decode of a packet.
func DecodeEnum(data []byte, names []string) (int, error) {
	raw, isString, err := enumToken(data)
	if err != nil {
		return 0, err
	}
	if !isString {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%w: non-integer ordinal %s", ErrInvalidEnum, raw)
		}
		return int(f), nil
	}
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	for i, name := range names {
		if name != "" && strings.EqualFold(name, raw) {
			return i, nil
		}
	}
	return UnknownEnum, nil
}

// EnumName returns names[v], or the decimal ordinal if v is out of range.
func EnumName(v int, names []string) string {
	if v < 0 || v >= len(names) {
		return strconv.Itoa(v)
	}
	return names[v]
}
