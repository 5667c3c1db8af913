package result

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Bar holds the open, high and low of a candle point; the close is Point.Y.
type Bar struct {
	Open decimal.Decimal
	High decimal.Decimal
	Low  decimal.Decimal
}

// Point is one sample of a series. X is in unix seconds.
// Candle points carry a non-nil Bar.
type Point struct {
	X   int64
	Y   decimal.Decimal
	Bar *Bar
}

// pointKey identifies a point by value. Decimal strings are normalized
// so that 1.5 and 1.50 collide.
type pointKey struct {
	x       int64
	y       string
	o, h, l string
	candle  bool
}

func (p Point) key() pointKey {
	k := pointKey{x: p.X, y: p.Y.String()}
	if p.Bar != nil {
		k.candle = true
		k.o = p.Bar.Open.String()
		k.h = p.Bar.High.String()
		k.l = p.Bar.Low.String()
	}
	return k
}

// Equal reports value equality.
func (p Point) Equal(o Point) bool { return p.key() == o.key() }

func (p Point) clone() Point {
	if p.Bar != nil {
		b := *p.Bar
		p.Bar = &b
	}
	return p
}

type pointObject struct {
	X     *jsonNumber      `json:"x"`
	Time  *jsonNumber      `json:"time"`
	Y     *decimal.Decimal `json:"y"`
	Open  *decimal.Decimal `json:"open"`
	High  *decimal.Decimal `json:"high"`
	Low   *decimal.Decimal `json:"low"`
	Close *decimal.Decimal `json:"close"`
}

// UnmarshalJSON accepts {"x":..,"y":..}, [x,y], candle objects with
// time/open/high/low/close, and [t,o,h,l,c] arrays. A null y decodes as zero.
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty point")
	}
	if data[0] == '[' {
		return p.unmarshalArray(data)
	}
	var obj pointObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	switch {
	case obj.X != nil:
		p.X = int64(*obj.X)
	case obj.Time != nil:
		p.X = int64(*obj.Time)
	default:
		return fmt.Errorf("point has no x or time")
	}
	p.Bar = nil
	p.Y = decimal.Zero
	if obj.Open != nil || obj.High != nil || obj.Low != nil || obj.Close != nil {
		p.Bar = &Bar{Open: deref(obj.Open), High: deref(obj.High), Low: deref(obj.Low)}
		p.Y = deref(obj.Close)
		return nil
	}
	p.Y = deref(obj.Y)
	return nil
}

func (p *Point) unmarshalArray(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if len(raw) != 2 && len(raw) != 5 {
		return fmt.Errorf("point array must have 2 or 5 elements, got %d", len(raw))
	}
	var x jsonNumber
	if err := json.Unmarshal(raw[0], &x); err != nil {
		return fmt.Errorf("decode point x: %w", err)
	}
	values := make([]decimal.Decimal, len(raw)-1)
	for i, r := range raw[1:] {
		if err := values[i].UnmarshalJSON(r); err != nil {
			return fmt.Errorf("decode point value %d: %w", i+1, err)
		}
	}
	p.X = int64(x)
	if len(values) == 1 {
		p.Y, p.Bar = values[0], nil
		return nil
	}
	p.Bar = &Bar{Open: values[0], High: values[1], Low: values[2]}
	p.Y = values[3]
	return nil
}

// MarshalJSON encodes {"x","y"} or, for candles, {"time","open","high","low","close"}.
func (p Point) MarshalJSON() ([]byte, error) {
	if p.Bar != nil {
		return json.Marshal(struct {
			Time  int64           `json:"time"`
			Open  decimal.Decimal `json:"open"`
			High  decimal.Decimal `json:"high"`
			Low   decimal.Decimal `json:"low"`
			Close decimal.Decimal `json:"close"`
		}{p.X, p.Bar.Open, p.Bar.High, p.Bar.Low, p.Y})
	}
	return json.Marshal(struct {
		X int64           `json:"x"`
		Y decimal.Decimal `json:"y"`
	}{p.X, p.Y})
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// jsonNumber decodes an integer-valued time from a JSON number or numeric
// string. Fractional seconds are truncated.
type jsonNumber int64

func (n *jsonNumber) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*n = jsonNumber(d.IntPart())
	return nil
}
