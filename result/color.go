package result

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Color is an ARGB color. The zero value is the empty color.
type Color struct {
	A, R, G, B uint8
}

// IsEmpty reports whether c is the empty color.
func (c Color) IsEmpty() bool { return c == Color{} }

// ParseColor parses "#RRGGBB" or "#AARRGGBB"; the empty string is the empty color.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	c := Color{
		A: 0xff,
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
	if len(hex) == 8 {
		c.A = uint8(v >> 24)
	}
	return c, nil
}

// String returns "#RRGGBB" for opaque colors, "#AARRGGBB" otherwise,
// and "" for the empty color.
func (c Color) String() string {
	switch {
	case c.IsEmpty():
		return ""
	case c.A == 0xff:
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	default:
		return fmt.Sprintf("#%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
	}
}

func (c *Color) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Color{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("color must be a string: %w", err)
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }
