package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/config"
	"paper-trader/internal/models"
)

func testEvent(status models.ExecutionStatus) Event {
	order := models.NewMarketOrder("AAPL", models.OrderSideBuy, decimal.NewFromInt(100))
	result := models.ExecutionResult{
		ID:                "exec-1",
		Symbol:            "AAPL",
		Side:              models.OrderSideBuy,
		Type:              models.OrderTypeMarket,
		Status:            status,
		FilledQuantity:    decimal.Zero,
		RemainingQuantity: order.Quantity,
		Commission:        decimal.Zero,
		Fees:              decimal.Zero,
		SlippageBps:       decimal.Zero,
		Latency:           50 * time.Millisecond,
	}
	if status.IsFill() {
		price := decimal.RequireFromString("150.042")
		quality := models.FillQualityGood
		result.ExecutionPrice = &price
		result.FillQuality = &quality
		result.FilledQuantity = order.Quantity
		result.RemainingQuantity = decimal.Zero
		result.Commission = decimal.NewFromInt(1)
		result.SlippageBps = decimal.RequireFromString("2.8")
	}
	return Event{
		PortfolioID: "alpha",
		Order:       order,
		Result:      result,
		Timestamp:   time.Date(2024, 3, 13, 16, 30, 0, 0, time.UTC),
	}
}

type recordingSink struct {
	mu     sync.Mutex
	name   string
	err    error
	events []Event
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func TestMultiSink_LevelFilter(t *testing.T) {
	tests := []struct {
		level NotificationLevel
		want  []models.ExecutionStatus
	}{
		{LevelAll, []models.ExecutionStatus{models.StatusFilled, models.StatusPending, models.StatusRejected, models.StatusError}},
		{LevelFillsOnly, []models.ExecutionStatus{models.StatusFilled}},
		{LevelErrorsOnly, []models.ExecutionStatus{models.StatusRejected, models.StatusError}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			rec := &recordingSink{name: "rec"}
			ms := NewMultiSinkWith(tt.level, rec)

			for _, s := range []models.ExecutionStatus{models.StatusFilled, models.StatusPending, models.StatusRejected, models.StatusError} {
				require.NoError(t, ms.Notify(context.Background(), testEvent(s)))
			}

			var got []models.ExecutionStatus
			for _, e := range rec.events {
				got = append(got, e.Result.Status)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("boom")}
	ms := NewMultiSinkWith(LevelAll, bad, ok)

	err := ms.Notify(context.Background(), testEvent(models.StatusFilled))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.events, 1, "a failing sink must not stop the others")
}

func TestNewMultiSink_FromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Notifications

	ms := NewMultiSink(cfg, zerolog.Nop())
	assert.Equal(t, []string{"log"}, ms.Sinks())

	cfg.Enabled = true
	cfg.Webhook.Enabled = true
	cfg.Webhook.URL = "http://localhost:9/hook"
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	ms = NewMultiSink(cfg, zerolog.Nop())
	assert.Equal(t, []string{"log", "webhook", "kafka"}, ms.Sinks())
	require.NoError(t, ms.Close())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	require.NoError(t, sink.Notify(context.Background(), testEvent(models.StatusFilled)))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alpha", entry["portfolio_id"])
	assert.Equal(t, "exec-1", entry["execution_id"])
	assert.Equal(t, "FILLED", entry["status"])
	assert.Equal(t, "150.042", entry["price"])
}

func TestPayload_EncodesDecimalsAsStrings(t *testing.T) {
	e := testEvent(models.StatusFilled)
	cash := decimal.RequireFromString("84998.9761")
	e.CashBalance = &cash

	body, err := NewPayload(e).Marshal()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "150.042", got["execution_price"])
	assert.Equal(t, "84998.9761", got["cash_balance"])
	assert.Equal(t, "GOOD", got["fill_quality"])
	assert.Equal(t, float64(50), got["latency_ms"])

	body, err = NewPayload(testEvent(models.StatusPending)).Marshal()
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(body, &got))
	assert.NotContains(t, got, "execution_price")
	assert.NotContains(t, got, "fill_quality")
}

func TestWebhookSink(t *testing.T) {
	var received Payload
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Execution-ID")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(config.WebhookConfig{Enabled: true, URL: server.URL})
	require.NoError(t, sink.Notify(context.Background(), testEvent(models.StatusFilled)))

	assert.Equal(t, "exec-1", header)
	assert.Equal(t, "alpha", received.PortfolioID)
	assert.Equal(t, models.StatusFilled, received.Status)
	require.NotNil(t, received.ExecutionPrice)
	assert.True(t, received.ExecutionPrice.Equal(decimal.RequireFromString("150.042")))
}

func TestWebhookSink_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(config.WebhookConfig{Enabled: true, URL: server.URL})
	err := sink.Notify(context.Background(), testEvent(models.StatusFilled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(w, "paper-executions")

	require.NoError(t, sink.Notify(context.Background(), testEvent(models.StatusFilled)))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "alpha", string(msg.Key))
	var p Payload
	require.NoError(t, json.Unmarshal(msg.Value, &p))
	assert.Equal(t, "exec-1", p.ExecutionID)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "FILLED", string(msg.Headers[1].Value))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	sink := NewKafkaSinkWithWriter(&fakeWriter{err: errors.New("leader not available")}, "paper-executions")

	err := sink.Notify(context.Background(), testEvent(models.StatusFilled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paper-executions")
}

func TestTerminalSink(t *testing.T) {
	var out bytes.Buffer
	sink := NewTerminalSink(&out, 10)
	sink.SetColorEnabled(false)

	var lines []string
	sink.AddHandler(func(_ Event, line string) { lines = append(lines, line) })

	require.NoError(t, sink.Notify(context.Background(), testEvent(models.StatusFilled)))
	require.NoError(t, sink.Notify(context.Background(), testEvent(models.StatusPending)))
	sink.Drain()

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "FILLED")
	assert.Contains(t, lines[0], "@ $150.04")
	assert.Contains(t, lines[0], "[GOOD]")
	assert.Contains(t, lines[1], "PENDING")
	assert.Contains(t, out.String(), "BUY 100 AAPL")
}

func TestTerminalSink_DropsOldestWhenFull(t *testing.T) {
	sink := NewTerminalSink(io.Discard, 1)

	first := testEvent(models.StatusFilled)
	second := testEvent(models.StatusRejected)
	require.NoError(t, sink.Notify(context.Background(), first))
	require.NoError(t, sink.Notify(context.Background(), second))

	var got []models.ExecutionStatus
	sink.AddHandler(func(e Event, _ string) { got = append(got, e.Result.Status) })
	sink.Drain()

	assert.Equal(t, []models.ExecutionStatus{models.StatusRejected}, got)
}

func TestTerminalSink_Start(t *testing.T) {
	sink := NewTerminalSink(io.Discard, 10)
	done := make(chan string, 1)
	sink.AddHandler(func(_ Event, line string) { done <- line })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink.Start(ctx)

	require.NoError(t, sink.Notify(ctx, testEvent(models.StatusError)))
	select {
	case line := <-done:
		assert.Contains(t, line, "ERROR")
	case <-time.After(2 * time.Second):
		t.Fatal("event was not rendered")
	}
}
