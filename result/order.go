package result

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Symbol identifies a traded instrument. It decodes from a plain ticker
// string or from an object carrying Value, ID and Permtick.
type Symbol struct {
	Value    string `json:"Value"`
	ID       string `json:"ID,omitempty"`
	Permtick string `json:"Permtick,omitempty"`
}

func (s Symbol) String() string { return s.Value }

func (s *Symbol) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Symbol{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Symbol{Value: v}
		return nil
	}
	type plain Symbol
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode symbol: %w", err)
	}
	*s = Symbol(p)
	if s.Value == "" {
		s.Value = s.Permtick
	}
	return nil
}

// Order is the latest known state of one order.
type Order struct {
	ID             int             `json:"Id"`
	ContractID     int             `json:"ContractId,omitempty"`
	BrokerID       []string        `json:"BrokerId,omitempty"`
	Symbol         Symbol          `json:"Symbol"`
	Price          decimal.Decimal `json:"Price"`
	PriceCurrency  string          `json:"PriceCurrency,omitempty"`
	Time           Timestamp       `json:"Time"`
	CreatedTime    Timestamp       `json:"CreatedTime"`
	LastFillTime   Timestamp       `json:"LastFillTime"`
	LastUpdateTime Timestamp       `json:"LastUpdateTime"`
	CanceledTime   Timestamp       `json:"CanceledTime"`
	Quantity       decimal.Decimal `json:"Quantity"`
	Type           OrderType       `json:"Type"`
	Status         OrderStatus     `json:"Status"`
	Tag            string          `json:"Tag,omitempty"`
	SecurityType   SecurityType    `json:"SecurityType"`
	Direction      OrderDirection  `json:"Direction"`
	Value          decimal.Decimal `json:"Value"`
}

// UnmarshalJSON decodes an order. Time and CreatedTime fill in for each
// other when only one is present. A missing Direction is derived from the
// sign of Quantity.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var p plain
	var peek struct {
		Direction json.RawMessage `json:"Direction"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	*o = Order(p)
	switch {
	case o.Time.IsZero() && !o.CreatedTime.IsZero():
		o.Time = o.CreatedTime
	case o.CreatedTime.IsZero() && !o.Time.IsZero():
		o.CreatedTime = o.Time
	}
	if len(peek.Direction) == 0 {
		switch o.Quantity.Sign() {
		case 1:
			o.Direction = DirectionBuy
		case -1:
			o.Direction = DirectionSell
		default:
			o.Direction = DirectionHold
		}
	}
	return nil
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	if o.BrokerID != nil {
		out.BrokerID = append([]string(nil), o.BrokerID...)
	}
	return &out
}
