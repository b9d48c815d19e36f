package monitor

import (
	"context"

	"github.com/rs/zerolog"

	"trading-assistant/internal/events"
)

// Rejection is implemented by order results so the monitor can bucket them
// without depending on the order package.
type Rejection interface {
	RejectionKind() string
}

// Monitor turns bus events into metrics and warning logs.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	Log     zerolog.Logger
}

// Start consumes events until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Metrics == nil {
		m.Log.Warn().Msg("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(100,
		events.EventSignalGenerated,
		events.EventOrderAccepted,
		events.EventOrderRejected,
	)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.handle(msg)
			}
		}
	}()
}

func (m *Monitor) handle(msg events.Message) {
	switch msg.Event {
	case events.EventSignalGenerated:
		m.Metrics.IncrementSignals()
	case events.EventOrderAccepted:
		m.Metrics.IncrementAccepted()
	case events.EventOrderRejected:
		kind := ""
		if r, ok := msg.Payload.(Rejection); ok {
			kind = r.RejectionKind()
		}
		m.Metrics.IncrementRejected(kind)
		m.Log.Warn().Str("kind", kind).Interface("order", msg.Payload).Msg("order rejected")
	}
}
