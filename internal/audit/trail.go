// Package audit keeps an append-only chain-of-custody log of the steps an
// investigation took: the query, what was resolved, sources consulted and
// failures.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step names recorded by the pipeline.
const (
	StepQueryReceived     = "query_received"
	StepEntityResolved    = "entity_resolved"
	StepTasksPlanned      = "tasks_planned"
	StepSourceFailure     = "source_failure"
	StepReflexion         = "reflexion_completed"
	StepPipelineCompleted = "pipeline_completed"
	StepPipelineError     = "pipeline_error"
)

// Event is one audit record.
type Event struct {
	ID        string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	Step      string         `json:"step"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (e Event) clone() Event {
	out := e
	if e.Fields != nil {
		out.Fields = make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Observer is called synchronously with every recorded event.
type Observer func(Event)

// Trail is safe for concurrent use.
type Trail struct {
	mu       sync.Mutex
	events   []Event
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

func NewTrail(logger *zap.Logger) *Trail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trail{logger: logger, now: time.Now}
}

// SetObserver installs fn; nil removes it.
func (t *Trail) SetObserver(fn Observer) {
	t.mu.Lock()
	t.observer = fn
	t.mu.Unlock()
}

// Record appends an event and returns it. The fields map is copied.
func (t *Trail) Record(step string, fields map[string]any) Event {
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: t.now().UTC(),
		Step:      step,
	}
	if len(fields) > 0 {
		ev.Fields = make(map[string]any, len(fields))
		for k, v := range fields {
			ev.Fields[k] = v
		}
	}

	t.mu.Lock()
	t.events = append(t.events, ev)
	observer := t.observer
	t.mu.Unlock()

	t.logger.Debug("Audit event", zap.String("step", step), zap.String("event_id", ev.ID), zap.Any("fields", ev.Fields))
	if observer != nil {
		observer(ev.clone())
	}
	return ev.clone()
}

// Events returns a copy of every event in record order.
func (t *Trail) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	for i, ev := range t.events {
		out[i] = ev.clone()
	}
	return out
}

func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// JSONLines renders one JSON object per event, newline separated, without a
// trailing newline.
func (t *Trail) JSONLines() (string, error) {
	events := t.Events()
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return "", fmt.Errorf("marshal audit event %s: %w", ev.Step, err)
		}
		lines = append(lines, string(b))
	}
	return strings.Join(lines, "\n"), nil
}

// Clear drops every event.
func (t *Trail) Clear() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}
