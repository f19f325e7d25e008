package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/streaming"
)

const (
	wsPingPeriod = 20 * time.Second
	wsPongWait   = 60 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // secured at the proxy
}

// handleWS streams an existing investigation over a websocket.
func (h *InvestigationHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.known(id) {
		h.writeError(w, http.StatusNotFound, "investigation not found")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.pump(conn, id, parseStreamOptions(r))
}

// handleQueryWS starts an investigation for ?query= and streams it: each
// audit event, then a final result message.
func (h *InvestigationHandler) handleQueryWS(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query required")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	h.Start(id, query)
	h.pump(conn, id, parseStreamOptions(r))
}

// pump writes events for id to conn until the result, a write failure or
// the client going away. Client messages are read and discarded.
func (h *InvestigationHandler) pump(conn *websocket.Conn, id string, opts streamOptions) {
	defer conn.Close()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	send := func(ev streaming.Event) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev)
	}
	ping := func() error {
		return conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait))
	}
	h.follow(id, opts, gone, ticker.C, send, ping)

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "investigation finished"),
		time.Now().Add(wsWriteWait))
	h.logger.Debug("Websocket stream closed", zap.String("investigation_id", id))
}
