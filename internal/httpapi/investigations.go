// Package httpapi exposes investigations over HTTP: synchronous runs,
// background runs with live progress over SSE or websocket, and the entity
// registry listing.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/audit"
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/pipeline"
	"github.com/taljindergill78/FSE570/internal/streaming"
)

// maxRequestBytes bounds a create-investigation body.
const maxRequestBytes = 1 << 20

// maxRetainedResults bounds finished background results kept for lookup.
const maxRetainedResults = 256

// Runner runs one investigation, reporting audit events as they happen.
type Runner interface {
	RunWithObserver(ctx context.Context, query string, observe audit.Observer) *pipeline.Result
}

// EntityLister is satisfied by resolver.Registry.
type EntityLister interface {
	Entities() []entities.Entity
}

// InvestigationHandler serves the /api/v1 routes.
type InvestigationHandler struct {
	runner   Runner
	registry EntityLister
	streams  *streaming.Manager
	logger   *zap.Logger

	// base outlives requests so background runs survive the client
	// disconnecting; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]string
	results map[string]*pipeline.Result
	order   []string
}

func NewInvestigationHandler(runner Runner, registry EntityLister, streams *streaming.Manager, logger *zap.Logger) *InvestigationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if streams == nil {
		streams = streaming.NewManager(streaming.DefaultCapacity)
	}
	base, cancel := context.WithCancel(context.Background())
	return &InvestigationHandler{
		runner:   runner,
		registry: registry,
		streams:  streams,
		logger:   logger,
		base:     base,
		cancel:   cancel,
		running:  make(map[string]string),
		results:  make(map[string]*pipeline.Result),
	}
}

// RegisterRoutes registers the API on mux with request metrics.
func (h *InvestigationHandler) RegisterRoutes(mux *http.ServeMux) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, fn))
	}
	route("POST /api/v1/investigations", h.handleCreate)
	route("GET /api/v1/investigations/{id}", h.handleGet)
	route("GET /api/v1/investigations/{id}/events", h.handleSSE)
	route("GET /api/v1/investigations/{id}/ws", h.handleWS)
	route("GET /api/v1/investigations/ws", h.handleQueryWS)
	route("GET /api/v1/entities", h.handleEntities)
}

type createRequest struct {
	Query string `json:"query"`
	Async bool   `json:"async"`
}

type statusResponse struct {
	InvestigationID string           `json:"investigation_id"`
	Status          string           `json:"status"`
	Query           string           `json:"query,omitempty"`
	Result          *pipeline.Result `json:"result,omitempty"`
}

const (
	statusRunning   = "running"
	statusCompleted = "completed"
)

// handleCreate runs an investigation. {"async": true} returns 202 at once
// and the run continues in the background.
func (h *InvestigationHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query required")
		return
	}

	id := uuid.NewString()
	if req.Async {
		h.Start(id, req.Query)
		w.Header().Set("Location", "/api/v1/investigations/"+id)
		h.writeJSON(w, http.StatusAccepted, statusResponse{InvestigationID: id, Status: statusRunning, Query: req.Query})
		return
	}

	res := h.runner.RunWithObserver(r.Context(), req.Query, func(ev audit.Event) {
		h.publish(id, ev.Step, ev)
	})
	h.store(id, res)
	h.publish(id, streaming.TypeResult, res)
	w.Header().Set("X-Investigation-ID", id)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *InvestigationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mu.Lock()
	res, done := h.results[id]
	query, running := h.running[id]
	h.mu.Unlock()

	switch {
	case done:
		h.writeJSON(w, http.StatusOK, statusResponse{InvestigationID: id, Status: statusCompleted, Query: res.Query, Result: res})
	case running:
		h.writeJSON(w, http.StatusOK, statusResponse{InvestigationID: id, Status: statusRunning, Query: query})
	default:
		h.writeError(w, http.StatusNotFound, "investigation not found")
	}
}

func (h *InvestigationHandler) handleEntities(w http.ResponseWriter, _ *http.Request) {
	list := h.registry.Entities()
	h.writeJSON(w, http.StatusOK, map[string]any{"entities": list, "count": len(list)})
}

// Start runs query in the background under id, publishing each audit event
// and then the result to the stream for id.
func (h *InvestigationHandler) Start(id, query string) {
	h.mu.Lock()
	h.running[id] = query
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		res := h.runner.RunWithObserver(h.base, query, func(ev audit.Event) {
			h.publish(id, ev.Step, ev)
		})
		h.store(id, res)
		h.publish(id, streaming.TypeResult, res)
		h.logger.Info("Background investigation finished",
			zap.String("investigation_id", id),
			zap.String("entity_id", res.EntityID),
			zap.Int("findings", res.FindingsCount),
			zap.String("error", res.Error),
		)
	}()
}

func (h *InvestigationHandler) publish(id, typ string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode stream event", zap.String("investigation_id", id), zap.Error(err))
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
		typ = streaming.TypeError
	}
	h.streams.Publish(id, streaming.Event{Type: typ, Data: data})
}

func (h *InvestigationHandler) store(id string, res *pipeline.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.running, id)
	h.results[id] = res
	h.order = append(h.order, id)
	for len(h.order) > maxRetainedResults {
		evict := h.order[0]
		h.order = h.order[1:]
		delete(h.results, evict)
		h.streams.Forget(evict)
	}
}

// known reports whether id is running, finished or has stream history.
func (h *InvestigationHandler) known(id string) bool {
	h.mu.Lock()
	_, running := h.running[id]
	_, done := h.results[id]
	h.mu.Unlock()
	return running || done || h.streams.Known(id)
}

// Shutdown cancels background runs and waits for them, or for ctx.
func (h *InvestigationHandler) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("background investigations still running"), ctx.Err())
	}
}

func (h *InvestigationHandler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *InvestigationHandler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, map[string]string{"error": message})
}
