package transport

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// wireEvent is the JSON shape streamed over the WebSocket connection,
// matching spec §6's event stream: sequence, timestamp, kind, payload.
type wireEvent struct {
	Sequence  int64          `json:"sequence"`
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
}

// handleEventStream upgrades the connection and replays/tails scanID's
// event stream until the stream terminates or the client disconnects.
// Grounded on the teacher's pkg/api.wsHandler (Accept then delegate to a
// per-connection read/write loop) and pkg/events.ConnectionManager,
// simplified to one scan's stream per connection rather than a
// multi-channel subscription model — redlance's event topology is
// per-scan, not per-arbitrary-channel. Writes carry no timeout of their
// own; they end when the request context does.
func (s *Server) handleEventStream(c *gin.Context) {
	scanID := c.Param("id")
	fromSequence := int64(0)
	if raw := c.Query("from_sequence"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fromSequence = parsed
		}
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ch, cancel := s.bus.Subscribe(scanID, fromSequence, 256)
	defer cancel()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			wire := wireEvent{
				Sequence:  event.Sequence,
				Timestamp: event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
				Kind:      string(event.Kind),
				Payload:   event.Payload,
			}
			data, err := json.Marshal(wire)
			if err != nil {
				slog.Error("transport: failed to marshal event for websocket", "scan_id", scanID, "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
			if event.Kind.IsTerminal() {
				_ = conn.Close(websocket.StatusNormalClosure, "scan terminal")
				return
			}
		}
	}
}
