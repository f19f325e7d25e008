package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/streaming"
)

const (
	sseHeartbeat     = 15 * time.Second
	subscriberBuffer = 256
)

// streamOptions are the replay and filter knobs shared by SSE and websocket.
type streamOptions struct {
	lastID uint64
	types  map[string]struct{}
}

func parseStreamOptions(r *http.Request) streamOptions {
	opts := streamOptions{types: map[string]struct{}{}}
	if s := r.URL.Query().Get("types"); s != "" {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.types[t] = struct{}{}
			}
		}
	}
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			opts.lastID = n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" && opts.lastID == 0 {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			opts.lastID = n
		}
	}
	return opts
}

// wants applies the type filter; terminal events always pass so clients
// know when to stop.
func (o streamOptions) wants(ev streaming.Event) bool {
	if len(o.types) == 0 || terminal(ev) {
		return true
	}
	_, ok := o.types[ev.Type]
	return ok
}

func terminal(ev streaming.Event) bool {
	return ev.Type == streaming.TypeResult || ev.Type == streaming.TypeError
}

// follow subscribes to id, replays history after opts.lastID and then
// forwards live events to send until a terminal event, a send error or
// stop. Each tick re-reads history so events dropped for a slow subscriber
// still arrive. Replayed and live events are de-duplicated by sequence number.
func (h *InvestigationHandler) follow(id string, opts streamOptions, stop <-chan struct{}, tick <-chan time.Time, send func(streaming.Event) error, ping func() error) {
	ch := h.streams.Subscribe(id, subscriberBuffer)
	defer h.streams.Unsubscribe(id, ch)

	last := opts.lastID
	deliver := func(ev streaming.Event) (bool, error) {
		if ev.Seq <= last {
			return false, nil
		}
		last = ev.Seq
		if opts.wants(ev) {
			if err := send(ev); err != nil {
				return false, err
			}
		}
		return terminal(ev), nil
	}

	catchUp := func() bool {
		for _, ev := range h.streams.ReplaySince(id, last) {
			if end, err := deliver(ev); end || err != nil {
				return true
			}
		}
		return false
	}

	if catchUp() {
		return
	}
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if end, err := deliver(ev); end || err != nil {
				return
			}
		case <-tick:
			// Publish drops events for a full subscriber buffer; recover
			// them, the terminal one included, from the retained history.
			if catchUp() {
				return
			}
			if err := ping(); err != nil {
				return
			}
		}
	}
}

// handleSSE streams progress for one investigation as Server-Sent Events
// and ends after the result event.
func (h *InvestigationHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.known(id) {
		h.writeError(w, http.StatusNotFound, "investigation not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected to investigation %s\n\n", id)
	flusher.Flush()

	hb := time.NewTicker(sseHeartbeat)
	defer hb.Stop()

	send := func(ev streaming.Event) error {
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, ev.Marshal()); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	ping := func() error {
		_, err := fmt.Fprint(w, ": ping\n\n")
		flusher.Flush()
		return err
	}
	h.follow(id, parseStreamOptions(r), r.Context().Done(), hb.C, send, ping)
	h.logger.Debug("SSE stream closed", zap.String("investigation_id", id))
}
