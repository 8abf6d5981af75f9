package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// LiveHandler streams notification events over a WebSocket. Browsers cannot
// set headers on the upgrade request, so the access token travels in the
// query string and is verified like any bearer token.
type LiveHandler struct {
	verifier middleware.TokenVerifier
	notes    *services.NotificationService
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

func NewLiveHandler(verifier middleware.TokenVerifier, notes *services.NotificationService, hub *notify.Hub, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		verifier: verifier,
		notes:    notes,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse("AUTHENTICATION_REQUIRED", "A valid access token is required"))
		return
	}
	userID := claims.UserID()
	log := logging.Ctx(r.Context()).With().Str(logging.FieldUserID, userID).Logger()

	// Subscribe before reading the backlog so nothing published in between
	// is lost. The client may see such a notification twice.
	sub := h.hub.Register(userID)
	defer h.hub.Unregister(sub)

	initial, err := h.initialEvents(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log.Debug().Msg("live connection opened")

	done := make(chan struct{})
	go readPump(conn, done)
	if err := writePump(conn, initial, sub, done); err != nil {
		log.Debug().Err(err).Msg("live connection closed")
	}
}

// initialEvents is connected, then the unread backlog oldest first, then the
// unread count.
func (h *LiveHandler) initialEvents(r *http.Request, userID string) ([]*notify.Event, error) {
	ctx := r.Context()
	backlog, err := h.notes.Backlog(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := h.notes.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	events := make([]*notify.Event, 0, len(backlog)+2)
	ev, err := notify.NewEvent(notify.EventConnected, userID, map[string]string{"user_id": userID})
	if err != nil {
		return nil, err
	}
	events = append(events, ev)
	for i := range backlog {
		ev, err := notify.NewEvent(notify.EventNotification, userID, &backlog[i])
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	ev, err = notify.NewEvent(notify.EventUnreadCount, userID, models.UnreadCount{Count: count})
	if err != nil {
		return nil, err
	}
	return append(events, ev), nil
}

// readPump only services control frames; clients have nothing to say.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Component("live").Debug().Err(err).Msg("unexpected close")
			}
			return
		}
	}
}

// writePump is the only writer on conn.
func writePump(conn *websocket.Conn, initial []*notify.Event, sub *notify.Subscriber, done <-chan struct{}) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for _, ev := range initial {
		if err := writeEvent(conn, ev); err != nil {
			return err
		}
	}
	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return nil
			}
			if err := writeEvent(conn, ev); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev *notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
