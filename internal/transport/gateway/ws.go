package gateway

import (
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/edusuite/chat-bridge/internal/domain"
)

// handleEventStream pushes domain events to a UI client as JSON frames
// until the client goes away.
func (s *Server) handleEventStream(c *websocket.Conn) {
	bus := s.chatSvc.GetEventBus()
	events := bus.Subscribe(nil) // all event types
	defer bus.Unsubscribe(events)

	closed := make(chan struct{})

	// Drain client frames to detect the close handshake; the stream is
	// one-way otherwise.
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			frame := EventFrame{Event: string(evt.Type()), Data: eventData(evt)}
			c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.WriteJSON(frame); err != nil {
				s.log.Debug().Err(err).Msg("event stream client went away")
				return
			}
		}
	}
}

func eventData(evt domain.Event) interface{} {
	switch e := evt.(type) {
	case domain.MessageReceivedEvent:
		return messageToInfo(e.Message)
	case domain.MessageSentEvent:
		return messageToInfo(e.Message)
	case domain.MessageConfirmedEvent:
		return messageToInfo(e.Message)
	case domain.MessageFailedEvent:
		return messageToInfo(e.Message)
	case domain.ChatUpdatedEvent:
		return chatToInfo(e.Chat)
	case domain.ChatOpenedEvent:
		return map[string]string{"chat_id": e.ChatID}
	case domain.ConnectionStatusEvent:
		return map[string]interface{}{"connected": e.Connected, "reason": e.Reason}
	default:
		return nil
	}
}
