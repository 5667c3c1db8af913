package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleResult = `{
	"Charts": {
		"Strategy Equity": {
			"Name": "Strategy Equity",
			"ChartType": 0,
			"Series": {
				"Equity": {
					"Name": "Equity",
					"Unit": "$",
					"Index": 0,
					"SeriesType": "Candle",
					"Color": "#FF0000",
					"ScatterMarkerSymbol": "triangle-down",
					"Values": [[1704153600, 100, 102, 99, 101], {"time": 1704153660, "open": 101, "high": 103, "low": 100, "close": 102}]
				},
				"Return": {
					"Name": "Return",
					"SeriesType": 0,
					"Values": [{"x": 1704153600, "y": 0.5}, [1704153660, "0.25"], {"x": 1704153720, "y": null}]
				}
			}
		}
	},
	"Orders": {
		"1": {"Id": 1, "Symbol": {"Value": "SPY", "ID": "SPY R735QTJ8XC9X", "Permtick": "SPY"}, "Quantity": 10, "Type": "Limit", "Status": 3, "CreatedTime": "2024-01-02T14:30:00Z"},
		"2": {"Id": 2, "Symbol": "AAPL", "Quantity": -5, "Type": 0, "Status": "canceled", "Time": "2024-01-02T14:31:00", "Direction": "Hold"}
	},
	"ProfitLoss": {"2024-01-02T14:35:00Z": 12.5, "01/03/2024 10:00:00": -2},
	"Statistics": {"Net Profit": "1.2%"},
	"RuntimeStatistics": {"Equity": "$100,012.50"},
	"RollingWindow": {"M1_20240102": {"TradeStatistics": {"TotalNumberOfTrades": 2}}}
}`

func TestDecode_FullResult(t *testing.T) {
	r, err := Decode([]byte(sampleResult))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	equity := r.Charts["Strategy Equity"].Series["Equity"]
	if equity.SeriesType != SeriesCandle {
		t.Errorf("SeriesType = %v, want Candle", equity.SeriesType)
	}
	if equity.Color != (Color{A: 0xff, R: 0xff}) {
		t.Errorf("Color = %v, want #FF0000", equity.Color)
	}
	if equity.MarkerSymbol != MarkerTriangleDown {
		t.Errorf("MarkerSymbol = %v", equity.MarkerSymbol)
	}
	if len(equity.Values) != 2 {
		t.Fatalf("candle values = %d, want 2", len(equity.Values))
	}
	c := equity.Values[1]
	if c.Bar == nil || !c.Bar.High.Equal(decimal.NewFromInt(103)) || !c.Y.Equal(decimal.NewFromInt(102)) {
		t.Errorf("candle decoded as %+v", c)
	}

	ret := r.Charts["Strategy Equity"].Series["Return"]
	if len(ret.Values) != 3 {
		t.Fatalf("line values = %d, want 3", len(ret.Values))
	}
	if !ret.Values[1].Y.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("array point y = %v", ret.Values[1].Y)
	}
	if !ret.Values[2].Y.IsZero() {
		t.Errorf("null y = %v, want 0", ret.Values[2].Y)
	}

	o1 := r.Orders[1]
	if o1.Symbol.Value != "SPY" || o1.Type != OrderLimit || o1.Status != OrderStatusFilled {
		t.Errorf("order 1 = %+v", o1)
	}
	if o1.Time.IsZero() || !o1.Time.Equal(o1.CreatedTime.Time) {
		t.Errorf("order 1 Time should fall back to CreatedTime, got %v", o1.Time)
	}
	if o1.Direction != DirectionBuy {
		t.Errorf("order 1 direction = %v, want Buy", o1.Direction)
	}

	o2 := r.Orders[2]
	if o2.Symbol.Value != "AAPL" || o2.Status != OrderStatusCanceled {
		t.Errorf("order 2 = %+v", o2)
	}
	if !o2.CreatedTime.Equal(time.Date(2024, 1, 2, 14, 31, 0, 0, time.UTC)) {
		t.Errorf("order 2 CreatedTime should fall back to Time, got %v", o2.CreatedTime)
	}
	if o2.Direction != DirectionHold {
		t.Errorf("explicit direction overridden: %v", o2.Direction)
	}

	pl := r.ProfitLoss[time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)]
	if !pl.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("profit/loss for US-formatted key = %v", pl)
	}
	if r.Statistics["Net Profit"] != "1.2%" {
		t.Errorf("statistics = %v", r.Statistics)
	}
	if r.ServerStatistics == nil {
		t.Error("absent ServerStatistics should decode as empty map")
	}
	if r.ResultType != ResultBacktest {
		t.Errorf("ResultType = %v, want Backtest", r.ResultType)
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"bad json":     `{"Charts": [}`,
		"bad color":    `{"Charts": {"C": {"Series": {"S": {"Color": "red"}}}}}`,
		"bad enum":     `{"Charts": {"C": {"Series": {"S": {"SeriesType": "Spline"}}}}}`,
		"short point":  `{"Charts": {"C": {"Series": {"S": {"Values": [[1, 2, 3]]}}}}}`,
		"bad pl key":   `{"ProfitLoss": {"yesterday": 1}}`,
		"point no x":   `{"Charts": {"C": {"Series": {"S": {"Values": [{"y": 1}]}}}}}`,
		"bad order id": `{"Orders": {"one": {}}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(payload)); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestColor_RoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"#00ff7f", "#00FF7F"},
		{"#80112233", "#80112233"},
		{"#FF112233", "#112233"},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", tt.in, err)
		}
		if c.String() != tt.want {
			t.Errorf("ParseColor(%q).String() = %q, want %q", tt.in, c.String(), tt.want)
		}
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{
		"2024-01-02T03:04:05Z",
		"2024-01-02T05:04:05+02:00",
		"2024-01-02T03:04:05",
		"2024-01-02 03:04:05",
		"01/02/2024 03:04:05",
		"1704164645",
	} {
		got, err := ParseTimestamp(s)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", s, err)
			continue
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v UTC", s, got, want)
		}
	}
}

func TestResult_EncodeDecode(t *testing.T) {
	r, err := Decode([]byte(sampleResult))
	if err != nil {
		t.Fatal(err)
	}
	r.ResultType = ResultLive
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode re-encoded: %v", err)
	}
	if back.ResultType != ResultLive {
		t.Errorf("ResultType = %v", back.ResultType)
	}
	if got := back.Summarize(); got.Points != 5 || got.Orders != 2 || got.Charts != 1 {
		t.Errorf("summary after re-decode = %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	r, err := Decode([]byte(sampleResult))
	if err != nil {
		t.Fatal(err)
	}
	s := r.Summarize()
	if s.Series != 2 || s.Points != 5 {
		t.Errorf("series/points = %d/%d", s.Series, s.Points)
	}
	if s.OpenOrders != 0 {
		t.Errorf("open orders = %d, want 0", s.OpenOrders)
	}
	if !s.ProfitLoss.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("profit/loss total = %v", s.ProfitLoss)
	}
	if s.LastPointAt != 1704153720 {
		t.Errorf("LastPointAt = %d", s.LastPointAt)
	}
}
