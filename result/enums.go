package result

import "github.com/pithecene-io/sextant/types"

// ResultType distinguishes backtest from live aggregates.
// Once an aggregate is Live it never reverts to Backtest.
type ResultType int

const (
	ResultBacktest ResultType = iota
	ResultLive
)

var resultTypeNames = []string{"Backtest", "Live"}

func (t ResultType) String() string { return types.EnumName(int(t), resultTypeNames) }

// UnmarshalJSON accepts the ordinal or the name.
func (t *ResultType) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, resultTypeNames)
	if err != nil {
		return err
	}
	*t = ResultType(v)
	return nil
}

// MarshalJSON encodes the name.
func (t ResultType) MarshalJSON() ([]byte, error) { return quoteName(t.String()), nil }

// ChartType selects how series of a chart are laid out.
type ChartType int

const (
	ChartOverlay ChartType = iota
	ChartStacked
)

var chartTypeNames = []string{"Overlay", "Stacked"}

func (t ChartType) String() string { return types.EnumName(int(t), chartTypeNames) }

func (t *ChartType) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, chartTypeNames)
	if err != nil {
		return err
	}
	*t = ChartType(v)
	return nil
}

func (t ChartType) MarshalJSON() ([]byte, error) { return quoteName(t.String()), nil }

// SeriesType is the rendering kind of a series.
type SeriesType int

const (
	SeriesLine SeriesType = iota
	SeriesScatter
	SeriesCandle
	SeriesBar
	SeriesFlag
	SeriesStackedArea
	SeriesPie
	SeriesTreemap
)

var seriesTypeNames = []string{"Line", "Scatter", "Candle", "Bar", "Flag", "StackedArea", "Pie", "Treemap"}

func (t SeriesType) String() string { return types.EnumName(int(t), seriesTypeNames) }

func (t *SeriesType) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, seriesTypeNames)
	if err != nil {
		return err
	}
	*t = SeriesType(v)
	return nil
}

func (t SeriesType) MarshalJSON() ([]byte, error) { return quoteName(t.String()), nil }

// MarkerSymbol is the marker used by scatter series.
type MarkerSymbol int

const (
	MarkerNone MarkerSymbol = iota
	MarkerCircle
	MarkerSquare
	MarkerDiamond
	MarkerTriangle
	MarkerTriangleDown
)

var markerSymbolNames = []string{"none", "circle", "square", "diamond", "triangle", "triangle-down"}

func (m MarkerSymbol) String() string { return types.EnumName(int(m), markerSymbolNames) }

func (m *MarkerSymbol) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, markerSymbolNames)
	if err != nil {
		return err
	}
	*m = MarkerSymbol(v)
	return nil
}

func (m MarkerSymbol) MarshalJSON() ([]byte, error) { return quoteName(m.String()), nil }

// OrderType is the order type.
type OrderType int

const (
	OrderMarket OrderType = iota
	OrderLimit
	OrderStopMarket
	OrderStopLimit
	OrderMarketOnOpen
	OrderMarketOnClose
	OrderOptionExercise
	OrderLimitIfTouched
)

var orderTypeNames = []string{"Market", "Limit", "StopMarket", "StopLimit", "MarketOnOpen", "MarketOnClose", "OptionExercise", "LimitIfTouched"}

func (t OrderType) String() string { return types.EnumName(int(t), orderTypeNames) }

func (t *OrderType) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, orderTypeNames)
	if err != nil {
		return err
	}
	*t = OrderType(v)
	return nil
}

func (t OrderType) MarshalJSON() ([]byte, error) { return quoteName(t.String()), nil }

// OrderStatus is the order life-cycle status. Ordinal 4 is unassigned on the wire.
type OrderStatus int

const (
	OrderStatusNew             OrderStatus = 0
	OrderStatusSubmitted       OrderStatus = 1
	OrderStatusPartiallyFilled OrderStatus = 2
	OrderStatusFilled          OrderStatus = 3
	OrderStatusCanceled        OrderStatus = 5
	OrderStatusNone            OrderStatus = 6
	OrderStatusInvalid         OrderStatus = 7
	OrderStatusCancelPending   OrderStatus = 8
	OrderStatusUpdateSubmitted OrderStatus = 9
)

var orderStatusNames = []string{"New", "Submitted", "PartiallyFilled", "Filled", "", "Canceled", "None", "Invalid", "CancelPending", "UpdateSubmitted"}

func (s OrderStatus) String() string { return types.EnumName(int(s), orderStatusNames) }

// IsClosed reports whether no further fills can occur.
func (s OrderStatus) IsClosed() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled || s == OrderStatusInvalid
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, orderStatusNames)
	if err != nil {
		return err
	}
	*s = OrderStatus(v)
	return nil
}

func (s OrderStatus) MarshalJSON() ([]byte, error) { return quoteName(s.String()), nil }

// OrderDirection is buy, sell or hold.
type OrderDirection int

const (
	DirectionBuy OrderDirection = iota
	DirectionSell
	DirectionHold
)

var orderDirectionNames = []string{"Buy", "Sell", "Hold"}

func (d OrderDirection) String() string { return types.EnumName(int(d), orderDirectionNames) }

func (d *OrderDirection) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, orderDirectionNames)
	if err != nil {
		return err
	}
	*d = OrderDirection(v)
	return nil
}

func (d OrderDirection) MarshalJSON() ([]byte, error) { return quoteName(d.String()), nil }

// SecurityType is the asset class of an order's symbol.
type SecurityType int

const (
	SecurityBase SecurityType = iota
	SecurityEquity
	SecurityOption
	SecurityCommodity
	SecurityForex
	SecurityFuture
	SecurityCfd
	SecurityCrypto
)

var securityTypeNames = []string{"Base", "Equity", "Option", "Commodity", "Forex", "Future", "Cfd", "Crypto"}

func (t SecurityType) String() string { return types.EnumName(int(t), securityTypeNames) }

func (t *SecurityType) UnmarshalJSON(data []byte) error {
	v, err := types.DecodeEnum(data, securityTypeNames)
	if err != nil {
		return err
	}
	*t = SecurityType(v)
	return nil
}

func (t SecurityType) MarshalJSON() ([]byte, error) { return quoteName(t.String()), nil }

func quoteName(s string) []byte {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	return append(b, '"')
}
