package result

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary is a flat digest of a result, used for rendering and archival.
type Summary struct {
	ResultType  string            `json:"result_type" yaml:"result_type"`
	Charts      int               `json:"charts" yaml:"charts"`
	Series      int               `json:"series" yaml:"series"`
	Points      int               `json:"points" yaml:"points"`
	Orders      int               `json:"orders" yaml:"orders"`
	OpenOrders  int               `json:"open_orders" yaml:"open_orders"`
	ProfitLoss  decimal.Decimal   `json:"profit_loss" yaml:"profit_loss"`
	Statistics  map[string]string `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	ChartNames  []string          `json:"chart_names,omitempty" yaml:"chart_names,omitempty"`
	LastPointAt int64             `json:"last_point_at,omitempty" yaml:"last_point_at,omitempty"`
}

// Summarize computes a Summary of r. A nil r yields the zero summary.
func (r *Result) Summarize() Summary {
	if r == nil {
		return Summary{}
	}
	s := Summary{
		ResultType: r.ResultType.String(),
		Charts:     len(r.Charts),
		Orders:     len(r.Orders),
		ProfitLoss: r.ProfitLoss.Total(),
	}
	for name, c := range r.Charts {
		if c == nil {
			continue
		}
		s.ChartNames = append(s.ChartNames, name)
		s.Series += len(c.Series)
		for _, series := range c.Series {
			if series == nil {
				continue
			}
			s.Points += len(series.Values)
			if n := len(series.Values); n > 0 && series.Values[n-1].X > s.LastPointAt {
				s.LastPointAt = series.Values[n-1].X
			}
		}
	}
	sort.Strings(s.ChartNames)
	for _, o := range r.Orders {
		if o != nil && !o.Status.IsClosed() {
			s.OpenOrders++
		}
	}
	if len(r.Statistics) > 0 {
		s.Statistics = make(map[string]string, len(r.Statistics))
		for k, v := range r.Statistics {
			s.Statistics[k] = v
		}
	}
	return s
}
