// Package result holds the result aggregate reported by an algorithm engine
// and the rules for folding incremental result packets into it.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// ErrNilResult is returned when merging a nil result.
var ErrNilResult = errors.New("cannot merge a nil result")

// Result is the accumulated state of one algorithm run.
type Result struct {
	ResultType        ResultType              `json:"ResultType"`
	Charts            map[string]*Chart       `json:"Charts"`
	Orders            map[int]*Order          `json:"Orders"`
	ProfitLoss        ProfitLoss              `json:"ProfitLoss"`
	Statistics        map[string]string       `json:"Statistics"`
	RuntimeStatistics map[string]string       `json:"RuntimeStatistics"`
	ServerStatistics  map[string]string       `json:"ServerStatistics"`
	RollingWindow     map[string]*Performance `json:"RollingWindow"`
}

// Performance is one rolling-window performance entry. Its sub-objects are
// carried opaquely.
type Performance struct {
	TradeStatistics     map[string]any   `json:"TradeStatistics,omitempty"`
	PortfolioStatistics map[string]any   `json:"PortfolioStatistics,omitempty"`
	ClosedTrades        []map[string]any `json:"ClosedTrades,omitempty"`
}

// New returns an empty backtest result with all collections allocated.
func New() *Result {
	r := &Result{}
	r.ensure()
	return r
}

func (r *Result) ensure() {
	if r.Charts == nil {
		r.Charts = make(map[string]*Chart)
	}
	if r.Orders == nil {
		r.Orders = make(map[int]*Order)
	}
	if r.ProfitLoss == nil {
		r.ProfitLoss = make(ProfitLoss)
	}
	if r.Statistics == nil {
		r.Statistics = make(map[string]string)
	}
	if r.RuntimeStatistics == nil {
		r.RuntimeStatistics = make(map[string]string)
	}
	if r.ServerStatistics == nil {
		r.ServerStatistics = make(map[string]string)
	}
	if r.RollingWindow == nil {
		r.RollingWindow = make(map[string]*Performance)
	}
}

// Decode parses a JSON result payload. Absent collections are allocated empty.
func Decode(data []byte) (*Result, error) {
	r := &Result{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	r.ensure()
	return r, nil
}

// Clone returns a deep copy of r. Performance entries are copied one level deep.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		ResultType:        r.ResultType,
		Charts:            make(map[string]*Chart, len(r.Charts)),
		Orders:            make(map[int]*Order, len(r.Orders)),
		ProfitLoss:        maps.Clone(r.ProfitLoss),
		Statistics:        maps.Clone(r.Statistics),
		RuntimeStatistics: maps.Clone(r.RuntimeStatistics),
		ServerStatistics:  maps.Clone(r.ServerStatistics),
		RollingWindow:     make(map[string]*Performance, len(r.RollingWindow)),
	}
	for name, c := range r.Charts {
		if c != nil {
			out.Charts[name] = c.Clone()
		}
	}
	for id, o := range r.Orders {
		if o != nil {
			out.Orders[id] = o.Clone()
		}
	}
	for key, p := range r.RollingWindow {
		out.RollingWindow[key] = p.clone()
	}
	out.ensure()
	return out
}

func (p *Performance) clone() *Performance {
	if p == nil {
		return nil
	}
	return &Performance{
		TradeStatistics:     maps.Clone(p.TradeStatistics),
		PortfolioStatistics: maps.Clone(p.PortfolioStatistics),
		ClosedTrades:        append([]map[string]any(nil), p.ClosedTrades...),
	}
}
