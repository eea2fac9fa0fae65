package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"futures-trader/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams order, close and risk events to the client.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventOrderPlaced,
		events.EventOrderFilled,
		events.EventOrderCanceled,
		events.EventPositionClosed,
		events.EventRiskAlert,
	}

	type envelope struct {
		Event   string `json:"event"`
		Payload any    `json:"payload"`
	}

	merged := make(chan envelope, 100)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for {
				select {
				case <-done:
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					select {
					case merged <- envelope{Event: string(topic), Payload: msg}:
					case <-done:
						return
					}
				}
			}
		}(topic, stream)
	}

	for msg := range merged {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
