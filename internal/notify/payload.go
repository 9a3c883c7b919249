package notify

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
)

// Payload is the JSON document published by the webhook and Kafka sinks.
// Decimal values are encoded as strings.
type Payload struct {
	ExecutionID       string                 `json:"execution_id"`
	PortfolioID       string                 `json:"portfolio_id"`
	OrderID           string                 `json:"order_id,omitempty"`
	Symbol            string                 `json:"symbol"`
	Side              models.OrderSide       `json:"side"`
	OrderType         models.OrderType       `json:"order_type"`
	Status            models.ExecutionStatus `json:"status"`
	Quantity          decimal.Decimal        `json:"quantity"`
	ExecutionPrice    *decimal.Decimal       `json:"execution_price,omitempty"`
	FilledQuantity    decimal.Decimal        `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal        `json:"remaining_quantity"`
	Commission        decimal.Decimal        `json:"commission"`
	Fees              decimal.Decimal        `json:"fees"`
	SlippageBps       decimal.Decimal        `json:"slippage_bps"`
	FillQuality       *models.FillQuality    `json:"fill_quality,omitempty"`
	ExecutionTime     *time.Time             `json:"execution_time,omitempty"`
	LatencyMs         int64                  `json:"latency_ms"`
	CashBalance       *decimal.Decimal       `json:"cash_balance,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
}

// NewPayload builds the wire payload for an event.
func NewPayload(e Event) Payload {
	r := e.Result
	return Payload{
		ExecutionID:       r.ID,
		PortfolioID:       e.PortfolioID,
		OrderID:           r.OrderID,
		Symbol:            r.Symbol,
		Side:              r.Side,
		OrderType:         r.Type,
		Status:            r.Status,
		Quantity:          e.Order.Quantity,
		ExecutionPrice:    r.ExecutionPrice,
		FilledQuantity:    r.FilledQuantity,
		RemainingQuantity: r.RemainingQuantity,
		Commission:        r.Commission,
		Fees:              r.Fees,
		SlippageBps:       r.SlippageBps,
		FillQuality:       r.FillQuality,
		ExecutionTime:     r.ExecutionTime,
		LatencyMs:         r.Latency.Milliseconds(),
		CashBalance:       e.CashBalance,
		Notes:             r.Notes,
		Timestamp:         e.Timestamp.UTC(),
	}
}

// Marshal encodes the payload.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
