package monitor

import (
	"context"
	"fmt"
	"log"

	"futures-trader/internal/events"
)

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink writes alerts to the process log.
type LogSink struct{}

func (LogSink) Send(message string) error {
	log.Printf("ALERT: %s", message)
	return nil
}

// WatchRiskAlerts forwards daily loss breach events to the sink until
// the context is canceled.
func WatchRiskAlerts(ctx context.Context, bus *events.Bus, sink AlertSink) {
	if bus == nil || sink == nil {
		return
	}
	stream, unsub := bus.Subscribe(events.EventRiskAlert, 50)
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
				if err := sink.Send(formatAlert(msg)); err != nil {
					log.Printf("alert delivery failed: %v", err)
				}
			}
		}
	}()
}

func formatAlert(msg any) string {
	switch v := msg.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("risk alert: %v", v)
	}
}
