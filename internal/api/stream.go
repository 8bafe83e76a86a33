package api

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/session"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// handleStream upgrades to a websocket that receives the current session first and then
// every notification of the session, until the game finishes or the client leaves.
func (a *API) handleStream(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	ss, err := a.ss.GetState(ctx, session.GetStateRequest{SessionID: id})
	if err != nil {
		writeError(c, err)
		return
	}

	// subscribe before the first write so no notification falls in between
	ch := a.broker.Subscribe(id)
	defer a.broker.Unsubscribe(id, ch)

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "stream: upgrade failed", "session", id, "error", err)
		return
	}
	defer conn.Close()

	initial, err := json.Marshal(Notification{Event: "game.state", Data: ss})
	if err != nil {
		slog.ErrorContext(ctx, "stream: marshal state failed", "session", id, "error", err)
		return
	}
	if err := write(conn, websocket.TextMessage, initial); err != nil {
		return
	}
	if ss.Status == domain.StatusFinished {
		closeNormally(conn)
		return
	}

	// the client only ever closes; reading is how that is noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case data := <-ch:
			if err := write(conn, websocket.TextMessage, data); err != nil {
				slog.DebugContext(ctx, "stream: write failed", "session", id, "error", err)
				return
			}
			if finished(data) {
				closeNormally(conn)
				select {
				case <-gone:
				case <-time.After(writeTimeout):
				}
				return
			}
		case <-ping.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

func finished(data []byte) bool {
	var n struct {
		Event string `json:"event"`
	}
	return json.Unmarshal(data, &n) == nil && n.Event == domain.EventNameGameFinished
}
