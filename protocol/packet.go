// Package protocol defines the wire packets exchanged with an algorithm
// engine and decodes raw payloads into them.
//
// Every packet is a JSON object carrying an "eType" discriminant (ordinal or
// case-insensitive name) and an "sChannel" routing string.
package protocol

import (
	"github.com/shopspring/decimal"

	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// Packet is one decoded wire message.
type Packet interface {
	// Kind returns the packet discriminant.
	Kind() types.PacketType
	// ChannelName returns the routing channel, possibly empty.
	ChannelName() string
}

// Header holds the fields common to all packets.
type Header struct {
	Type    types.PacketType `json:"eType"`
	Channel string           `json:"sChannel,omitempty"`
}

func (h Header) Kind() types.PacketType { return h.Type }

func (h Header) ChannelName() string { return h.Channel }

// AlgorithmStatusPacket reports a change of the algorithm's run status.
type AlgorithmStatusPacket struct {
	Header
	AlgorithmID    string          `json:"sAlgorithmID,omitempty"`
	ProjectID      int             `json:"iProjectID,omitempty"`
	OptimizationID string          `json:"sOptimizationID,omitempty"`
	Status         AlgorithmStatus `json:"eStatus"`
	Message        string          `json:"sMessage,omitempty"`
}

// NodePacket is a LiveNode or AlgorithmNode job description. Only
// identifiers are decoded; the dispatcher does not act on node packets.
type NodePacket struct {
	Header
	UserID      string `json:"sUserID,omitempty"`
	ProjectID   int    `json:"iProjectID,omitempty"`
	AlgorithmID string `json:"sAlgorithmID,omitempty"`
	CompileID   string `json:"sCompileID,omitempty"`
	DeployID    string `json:"sDeployID,omitempty"`
	SessionID   string `json:"sSessionID,omitempty"`
	Brokerage   string `json:"Brokerage,omitempty"`
}

// LiveResultPacket carries an incremental live result.
type LiveResultPacket struct {
	Header
	UserID         int            `json:"iUserID,omitempty"`
	ProjectID      int            `json:"iProjectID,omitempty"`
	SessionID      string         `json:"sSessionID,omitempty"`
	DeployID       string         `json:"sDeployID,omitempty"`
	CompileID      string         `json:"sCompileID,omitempty"`
	ProcessingTime float64        `json:"dProcessingTime,omitempty"`
	Results        *result.Result `json:"oResults"`
}

// Result returns the carried result marked Live. Never nil.
func (p *LiveResultPacket) Result() *result.Result {
	if p.Results == nil {
		p.Results = result.New()
	}
	p.Results.ResultType = result.ResultLive
	return p.Results
}

// BacktestResultPacket carries an incremental backtest result and the
// fraction of the backtest completed so far.
type BacktestResultPacket struct {
	Header
	BacktestID     string           `json:"sBacktestID,omitempty"`
	OptimizationID string           `json:"sOptimizationID,omitempty"`
	Name           string           `json:"sName,omitempty"`
	UserID         int              `json:"iUserID,omitempty"`
	ProjectID      int              `json:"iProjectID,omitempty"`
	CompileID      string           `json:"sCompileID,omitempty"`
	PeriodStart    result.Timestamp `json:"dtPeriodStart"`
	PeriodFinish   result.Timestamp `json:"dtPeriodFinish"`
	TradeableDates int              `json:"iTradeableDates,omitempty"`
	ProcessingTime float64          `json:"dProcessingTime,omitempty"`
	Progress       decimal.Decimal  `json:"dProgress"`
	Results        *result.Result   `json:"oResults"`
}

// Result returns the carried result. Never nil.
func (p *BacktestResultPacket) Result() *result.Result {
	if p.Results == nil {
		p.Results = result.New()
	}
	return p.Results
}

// ProgressValue returns Progress as a float.
func (p *BacktestResultPacket) ProgressValue() float64 {
	f, _ := p.Progress.Float64()
	return f
}

// OrderEventPacket carries a single order event. Order events are forwarded
// to the handler and never merged into the result.
type OrderEventPacket struct {
	Header
	AlgorithmID string     `json:"sAlgorithmID,omitempty"`
	Event       OrderEvent `json:"oOrderEvent"`
}

// LogPacket, DebugPacket and HandledErrorPacket share one shape.
type LogPacket struct {
	Header
	AlgorithmID string `json:"sAlgorithmID,omitempty"`
	Message     string `json:"sMessage"`
	StackTrace  string `json:"sStackTrace,omitempty"`
	Toast       bool   `json:"bToast,omitempty"`
}

// LogKind classifies the packet for the handler.
func (p *LogPacket) LogKind() types.LogKind {
	kind, _ := types.LogKindFor(p.Type)
	return kind
}

// NewLogPacket builds a Log, Debug or HandledError packet.
func NewLogPacket(kind types.PacketType, message string) *LogPacket {
	return &LogPacket{Header: Header{Type: kind}, Message: message}
}
