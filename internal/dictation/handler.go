package dictation

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kmch/dictation-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the CORS layer in front of the router
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler is the main entry point for dictation WebSocket connections.
// One actor goroutine and one write pump are spawned per connection;
// the HTTP handler goroutine itself becomes the read pump.
func Handler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		connectionID := observability.NewSessionID()
		logger := observability.WithSessionID(connectionID)
		logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Dictation client connected")

		actor := NewActor(connectionID, deps, logger)
		go actor.Run()

		// Write pump: gorilla connections do not allow concurrent writes,
		// so all outbound traffic is serialized through the actor's channel.
		// It drains until the actor closes the channel on exit, so the
		// actor's sends never block forever.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for ev := range actor.outbound {
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug().Err(err).Msg("WebSocket write failed")
				}
			}
		}()

		// Read pump
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					logger.Warn().Err(err).Msg("WebSocket read error")
				}
				break
			}

			var ev clientEvent
			if err := json.Unmarshal(message, &ev); err != nil {
				logger.Warn().Err(err).Msg("Failed to parse client event")
				continue
			}

			actor.inbound <- ev
		}

		// Closing inbound triggers the actor's cleanup path, which salvages
		// and persists any in-flight session before exiting
		close(actor.inbound)
		<-actor.Done()
		<-writeDone

		logger.Info().Msg("Dictation client disconnected")
	}
}
