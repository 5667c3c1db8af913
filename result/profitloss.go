package result

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ProfitLoss maps a realization time to profit. Keys are normalized to UTC
// so that the same instant spelled differently is one entry.
type ProfitLoss map[time.Time]decimal.Decimal

// UnmarshalJSON decodes an object whose keys are any ParseTimestamp spelling.
func (pl *ProfitLoss) UnmarshalJSON(data []byte) error {
	var raw map[string]decimal.Decimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode profit/loss: %w", err)
	}
	out := make(ProfitLoss, len(raw))
	for k, v := range raw {
		t, err := ParseTimestamp(k)
		if err != nil {
			return fmt.Errorf("decode profit/loss key: %w", err)
		}
		out[t] = v
	}
	*pl = out
	return nil
}

// MarshalJSON encodes keys as RFC 3339 in UTC.
func (pl ProfitLoss) MarshalJSON() ([]byte, error) {
	raw := make(map[string]decimal.Decimal, len(pl))
	for k, v := range pl {
		raw[k.UTC().Format(time.RFC3339Nano)] = v
	}
	return json.Marshal(raw)
}

// Times returns the keys in ascending order.
func (pl ProfitLoss) Times() []time.Time {
	out := make([]time.Time, 0, len(pl))
	for t := range pl {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Total sums all entries.
func (pl ProfitLoss) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range pl {
		total = total.Add(v)
	}
	return total
}
