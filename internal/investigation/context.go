// Package investigation holds the mutable state of a single investigation run.
package investigation

import (
	"sync"

	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/planner"
)

// SourceFailure records an evidence source that failed to produce data for
// an entity, so "no data" can be told apart from "fetch failed".
type SourceFailure struct {
	SourceID string `json:"source_id"`
	EntityID string `json:"entity_id"`
	AgentID  string `json:"agent_id,omitempty"`
	Error    string `json:"error"`
}

// Context accumulates one run's entity, query, tasks and per-agent findings.
// Buckets keep first-insert order. Every getter returns a copy.
type Context struct {
	mu       sync.RWMutex
	entity   *entities.Entity
	query    string
	tasks    []planner.SubTask
	results  map[string][]entities.Evidence
	order    []string
	failures []SourceFailure
}

// New returns an empty context.
func New() *Context {
	return &Context{results: make(map[string][]entities.Evidence)}
}

func (c *Context) Entity() (entities.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entity == nil {
		return entities.Entity{}, false
	}
	return c.entity.Clone(), true
}

func (c *Context) SetEntity(e entities.Entity) {
	cp := e.Clone()
	c.mu.Lock()
	c.entity = &cp
	c.mu.Unlock()
}

func (c *Context) Query() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

func (c *Context) SetQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
}

// Tasks returns a copy of the task list.
func (c *Context) Tasks() []planner.SubTask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]planner.SubTask(nil), c.tasks...)
}

// SetTasks replaces the task list.
func (c *Context) SetTasks(tasks []planner.SubTask) {
	cp := append([]planner.SubTask(nil), tasks...)
	c.mu.Lock()
	c.tasks = cp
	c.mu.Unlock()
}

// AddAgentResults appends findings to the agent's bucket, creating it on first use.
func (c *Context) AddAgentResults(agentID string, findings []entities.Evidence) {
	cp := entities.CloneAll(findings)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[agentID]; !ok {
		c.order = append(c.order, agentID)
		c.results[agentID] = make([]entities.Evidence, 0, len(cp))
	}
	c.results[agentID] = append(c.results[agentID], cp...)
}

// AgentResults returns a copy of the agent's findings; empty if it never ran.
func (c *Context) AgentResults(agentID string) []entities.Evidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bucket := c.results[agentID]
	out := make([]entities.Evidence, len(bucket))
	for i := range bucket {
		out[i] = bucket[i].Clone()
	}
	return out
}

// HasAgent reports whether the agent has a bucket, even an empty one.
func (c *Context) HasAgent(agentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.results[agentID]
	return ok
}

// AgentIDs returns agent ids in bucket creation order.
func (c *Context) AgentIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// AllFindings flattens every bucket in creation order, then append order.
func (c *Context) AllFindings() []entities.Evidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []entities.Evidence
	for _, id := range c.order {
		for _, ev := range c.results[id] {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// FindingsByAgent returns a count of findings per agent.
func (c *Context) FindingsByAgent() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.results))
	for id, bucket := range c.results {
		out[id] = len(bucket)
	}
	return out
}

// RecordSourceFailure notes a degraded evidence source.
func (c *Context) RecordSourceFailure(f SourceFailure) {
	c.mu.Lock()
	c.failures = append(c.failures, f)
	c.mu.Unlock()
}

// SourceFailures returns a copy of the recorded failures.
func (c *Context) SourceFailures() []SourceFailure {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]SourceFailure(nil), c.failures...)
}
