package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"paper-trader/internal/models"
	"paper-trader/pkg/utils"
)

// TerminalHandler is a function that handles terminal events.
type TerminalHandler func(e Event, line string)

// TerminalSink renders events as one-line summaries on a terminal. Events
// are buffered and rendered by the goroutine started with Start; when the
// buffer is full the oldest event is dropped.
type TerminalSink struct {
	events       chan Event
	out          io.Writer
	handlers     []TerminalHandler
	mu           sync.RWMutex
	bellEnabled  bool
	colorEnabled bool
}

// NewTerminalSink creates a TerminalSink writing to out.
func NewTerminalSink(out io.Writer, bufferSize int) *TerminalSink {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &TerminalSink{
		events:       make(chan Event, bufferSize),
		out:          out,
		colorEnabled: true,
	}
}

// SetBellEnabled rings the terminal bell on errors.
func (ts *TerminalSink) SetBellEnabled(enabled bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.bellEnabled = enabled
}

// SetColorEnabled enables or disables colored output.
func (ts *TerminalSink) SetColorEnabled(enabled bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.colorEnabled = enabled
}

// AddHandler adds a handler called after each event is rendered.
func (ts *TerminalSink) AddHandler(h TerminalHandler) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.handlers = append(ts.handlers, h)
}

// Name returns the name of the sink.
func (ts *TerminalSink) Name() string {
	return "terminal"
}

// Notify queues the event for rendering.
func (ts *TerminalSink) Notify(_ context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	select {
	case ts.events <- e:
	default:
		// Buffer full, drop oldest event
		select {
		case <-ts.events:
		default:
		}
		ts.events <- e
	}
	return nil
}

// Start renders queued events until ctx is done.
func (ts *TerminalSink) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-ts.events:
				ts.process(e)
			}
		}
	}()
}

// Drain renders every queued event synchronously.
func (ts *TerminalSink) Drain() {
	for {
		select {
		case e := <-ts.events:
			ts.process(e)
		default:
			return
		}
	}
}

func (ts *TerminalSink) process(e Event) {
	ts.mu.RLock()
	handlers := ts.handlers
	bell := ts.bellEnabled
	colored := ts.colorEnabled
	ts.mu.RUnlock()

	line := FormatEvent(e, colored)
	if bell && e.Result.Status == models.StatusError {
		fmt.Fprint(ts.out, "\a")
	}
	fmt.Fprintln(ts.out, line)

	for _, h := range handlers {
		h(e, line)
	}
}

// FormatEvent renders a one-line summary of an event.
func FormatEvent(e Event, colored bool) string {
	r := e.Result
	status := string(r.Status)
	if colored {
		status = statusColor(r.Status).Sprint(status)
	}

	line := fmt.Sprintf("%s %-16s %s %s %s", e.Timestamp.Format("15:04:05"), status, r.Side, utils.FormatQuantity(e.Order.Quantity), r.Symbol)
	if r.ExecutionPrice != nil {
		line += fmt.Sprintf(" filled %s @ %s slip %s", utils.FormatQuantity(r.FilledQuantity), utils.FormatCurrency(*r.ExecutionPrice), utils.FormatBps(r.SlippageBps))
	}
	if r.FillQuality != nil {
		line += fmt.Sprintf(" [%s]", *r.FillQuality)
	}
	if r.Notes != "" && !r.Status.IsFill() {
		line += " - " + r.Notes
	}
	return line
}

func statusColor(s models.ExecutionStatus) *color.Color {
	switch s {
	case models.StatusFilled:
		return color.New(color.FgGreen, color.Bold)
	case models.StatusPartiallyFilled:
		return color.New(color.FgGreen)
	case models.StatusPending, models.StatusQueued:
		return color.New(color.FgYellow)
	case models.StatusRejected:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
