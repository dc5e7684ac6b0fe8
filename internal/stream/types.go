package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// RealType identifies a real-time data type on the stream. Values are
// the broker's two-character type codes.
type RealType string

const (
	TypeOrderFill    RealType = "00" // Own-order execution reports
	TypeBalance      RealType = "04" // Account balance updates
	TypeQuoteMove    RealType = "0A" // Indicative quote movement
	TypeTick         RealType = "0B" // Stock execution (tick)
	TypeBestQuote    RealType = "0C" // Best bid/ask
	TypeOrderBook    RealType = "0D" // Order book depth
	TypeAfterHours   RealType = "0E" // After-hours quotes
	TypeBrokerVolume RealType = "0F" // Member firm volume
	TypeETFNav       RealType = "0G" // ETF NAV
	TypeExpectedExec RealType = "0H" // Expected execution
	TypeSectorIndex  RealType = "0J" // Sector index
	TypeSectorMove   RealType = "0U" // Sector advance/decline
	TypeStockInfo    RealType = "0g" // Stock info changes
	TypeELWTheory    RealType = "0m" // ELW theoretical price
	TypeMarketOpen   RealType = "0s" // Market session transitions
	TypeELWIndicator RealType = "0u" // ELW indicators
	TypeProgramTrade RealType = "0w" // Program trading by stock
	TypeVITrigger    RealType = "1h" // Volatility interruption events
)

// Real-time field codes used inside REAL frame values. The broker keys
// fields numerically; names are assigned here, in one place.
const (
	FieldPrice     = "10" // Current price (signed)
	FieldChange    = "11" // Change vs. previous close
	FieldRate      = "12" // Change rate (%)
	FieldCumVolume = "13" // Accumulated volume
	FieldVolume    = "15" // Trade volume (signed by taker side)
	FieldTime      = "20" // Execution time (HHMMSS)
	FieldBestAsk   = "27" // Best ask price
	FieldBestBid   = "28" // Best bid price
	FieldOrderID   = "9203"
	FieldCode      = "9001"
	FieldOrderSide = "907" // "2" = buy, "1" = sell
	FieldFillQty   = "911"
	FieldFillPrice = "910"
	FieldHoldQty   = "930"
	FieldAvgPrice  = "931"
)

// TimestampedMessage wraps raw frame data with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a REAL data frame handed from the Manager to the Router.
type RawMessage struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local receive timestamp
}

// header is the envelope header carried on every client-sent frame.
type header struct {
	ApprovalKey string `json:"approval_key"`
	TrType      string `json:"tr_type"` // "1" = register, "2" = remove
}

// frame is a client-to-server command frame.
type frame struct {
	Header header `json:"header"`
	Body   any    `json:"body"`
}

// regBody is the body of a REG/REMOVE command.
type regBody struct {
	Trnm    string    `json:"trnm"` // "REG" or "REMOVE"
	GrpNo   string    `json:"grp_no"`
	Refresh string    `json:"refresh"` // "1" = keep existing registrations
	Data    []regData `json:"data"`
}

// regData lists the items (stock codes) and types to (de)register.
type regData struct {
	Item []string `json:"item"`
	Type []string `json:"type"`
}

// serverFrame is the common shape of server-to-client frames; trnm
// discriminates acks ("REG"/"REMOVE"), data ("REAL"), and "PING".
type serverFrame struct {
	Trnm       string          `json:"trnm"`
	ReturnCode int             `json:"return_code"`
	ReturnMsg  string          `json:"return_msg"`
	Data       json.RawMessage `json:"data"`
}

// RealData is one entry of a REAL frame's data array.
type RealData struct {
	Type   RealType          `json:"type"`
	Name   string            `json:"name"`
	Item   string            `json:"item"`   // Stock code
	Values map[string]string `json:"values"` // Keyed by numeric field code
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL
	PingTimeout  time.Duration // Max time without server traffic before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// ManagerConfig configures the stream Manager.
type ManagerConfig struct {
	WSURL              string        // WebSocket URL
	SubscribeTimeout   time.Duration // Timeout waiting for REG/REMOVE acks
	ReconnectBaseDelay time.Duration // Base wait for reconnection backoff
	ReconnectMaxDelay  time.Duration // Max wait for reconnection backoff
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	BufferSize         int // Output channel and client buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SubscribeTimeout:   10 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		PingTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Second,
		BufferSize:         10000,
	}
}

// Subscription tracks one (type, stock) registration.
type Subscription struct {
	Type RealType
	Item string
}
