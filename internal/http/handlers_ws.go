package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"coinc/internal/auth"
	"coinc/internal/feed"
	applog "coinc/internal/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 512
)

// scopeRequest is what the browser sends to switch month.
type scopeRequest struct {
	Month string `json:"month"`
}

// handleWebsocket streams snapshots of the user's active month. Every
// message from the client rescopes the stream.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	ctx := r.Context()
	logger := s.logger.WithComponent(applog.ComponentFeed)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(ctx, "Websocket upgrade failed", applog.FieldError, err)
		return
	}
	defer conn.Close()

	watcher := s.hub.Watch()
	defer watcher.Close()

	month := ParseMonth(r.URL.Query(), s.now())
	if err := watcher.SetScope(feed.Scope{Owner: user.ID, Month: month}); err != nil {
		logger.WarnContext(ctx, "Cannot open feed", applog.FieldError, err, applog.FieldUserID, user.ID)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed unavailable"),
			time.Now().Add(wsWriteWait))
		return
	}
	logger.DebugContext(ctx, "Websocket opened", applog.FieldUserID, user.ID, applog.FieldMonth, month)

	done := make(chan struct{})
	go s.readScopes(conn, watcher, user.ID, done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-watcher.Snapshots():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(newSnapshotJSON(snap, s.money, watcher.Loading())); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

// readScopes applies month changes sent by the client until the
// connection drops, then closes done.
func (s *Server) readScopes(conn *websocket.Conn, watcher *feed.Watcher, owner string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req scopeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		month := ParseMonth(map[string][]string{"month": {req.Month}}, s.now())
		if err := watcher.SetScope(feed.Scope{Owner: owner, Month: month}); err != nil {
			return
		}
	}
}
