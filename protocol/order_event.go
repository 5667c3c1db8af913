package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pithecene-io/sextant/result"
)

// OrderEvent is one state change of an order.
type OrderEvent struct {
	OrderID           int                   `json:"OrderId"`
	OrderEventID      int                   `json:"OrderEventId,omitempty"`
	Symbol            result.Symbol         `json:"Symbol"`
	UtcTime           result.Timestamp      `json:"UtcTime"`
	Status            result.OrderStatus    `json:"Status"`
	FillPrice         decimal.Decimal       `json:"FillPrice"`
	FillPriceCurrency string                `json:"FillPriceCurrency,omitempty"`
	FillQuantity      decimal.Decimal       `json:"FillQuantity"`
	Quantity          decimal.Decimal       `json:"Quantity"`
	Direction         result.OrderDirection `json:"Direction"`
	OrderFeeAmount    decimal.Decimal       `json:"OrderFeeAmount"`
	OrderFeeCurrency  string                `json:"OrderFeeCurrency,omitempty"`
	LimitPrice        *decimal.Decimal      `json:"LimitPrice,omitempty"`
	StopPrice         *decimal.Decimal      `json:"StopPrice,omitempty"`
	IsAssignment      bool                  `json:"IsAssignment,omitempty"`
	Message           string                `json:"Message,omitempty"`
}

// UnmarshalJSON decodes an order event. A missing UtcTime falls back to Time.
func (e *OrderEvent) UnmarshalJSON(data []byte) error {
	type plain OrderEvent
	var aux struct {
		plain
		Time result.Timestamp `json:"Time"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}
	*e = OrderEvent(aux.plain)
	if e.UtcTime.IsZero() {
		e.UtcTime = aux.Time
	}
	return nil
}
