package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/metrics"
	"github.com/taljindergill78/FSE570/internal/planner"
	"github.com/taljindergill78/FSE570/internal/tracing"
)

// Resolver finds the entity a query is about.
type Resolver interface {
	ResolveOne(query string) (entities.Entity, bool)
}

// Options tunes dispatch.
type Options struct {
	// Parallel runs sub-tasks concurrently. Findings are still appended in
	// task order once every task has finished, so AllFindings ordering is
	// the same as sequential dispatch.
	Parallel bool
	// MaxConcurrency bounds parallel dispatch; <=0 means one goroutine per task.
	MaxConcurrency int
}

// Lead is the lead orchestrator.
type Lead struct {
	resolver Resolver
	table    DispatchTable
	opts     Options
	logger   *zap.Logger
}

func New(resolver Resolver, table DispatchTable, opts Options, logger *zap.Logger) *Lead {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = DispatchTable{}
	}
	return &Lead{resolver: resolver, table: table, opts: opts, logger: logger}
}

// AgentError identifies the sub-task whose agent failed.
type AgentError struct {
	Task planner.SubTask
	Err  error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed on %s: %v", e.Task.TargetAgent, e.Task.TaskType, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// Run executes one investigation. A query that resolves to no entity
// returns an empty context and no error. Tasks whose target agent is not
// registered are skipped. An agent error stops dispatch; the context built
// so far is returned along with an *AgentError.
func (l *Lead) Run(ctx context.Context, query string) (*investigation.Context, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.run")
	defer span.End()

	ic := investigation.New()
	ic.SetQuery(query)

	entity, ok := l.resolver.ResolveOne(query)
	if !ok {
		l.logger.Info("No entity resolved; ending investigation early", zap.String("query", query))
		return ic, nil
	}
	ic.SetEntity(entity)
	span.SetAttributes(attribute.String("entity.id", entity.ID))

	tasks := planner.Decompose(query, &entity)
	ic.SetTasks(tasks)
	l.logger.Debug("Investigation planned",
		zap.String("entity_id", entity.ID),
		zap.Int("tasks", len(tasks)),
		zap.Bool("parallel", l.opts.Parallel),
	)

	var err error
	if l.opts.Parallel {
		err = l.dispatchParallel(ctx, entity, tasks, ic)
	} else {
		err = l.dispatchSequential(ctx, entity, tasks, ic)
	}
	if err != nil {
		span.RecordError(err)
	}
	return ic, err
}

func (l *Lead) dispatchSequential(ctx context.Context, entity entities.Entity, tasks []planner.SubTask, ic *investigation.Context) error {
	for _, task := range tasks {
		agent, ok := l.route(task)
		if !ok {
			continue
		}
		findings, err := l.invoke(ctx, agent, entity, task, ic)
		if err != nil {
			return err
		}
		ic.AddAgentResults(task.TargetAgent, findings)
	}
	return nil
}

func (l *Lead) dispatchParallel(ctx context.Context, entity entities.Entity, tasks []planner.SubTask, ic *investigation.Context) error {
	results := make([][]entities.Evidence, len(tasks))
	routed := make([]bool, len(tasks))

	eg, egCtx := errgroup.WithContext(ctx)
	if l.opts.MaxConcurrency > 0 {
		eg.SetLimit(l.opts.MaxConcurrency)
	}
	for i, task := range tasks {
		agent, ok := l.route(task)
		if !ok {
			continue
		}
		routed[i] = true
		eg.Go(func() error {
			findings, err := l.invoke(egCtx, agent, entity, task, ic)
			if err != nil {
				return err
			}
			results[i] = findings
			return nil
		})
	}
	err := eg.Wait()

	// Append in task order; on error keep only the prefix that completed
	// before the first task without results.
	for i, task := range tasks {
		if !routed[i] {
			continue
		}
		if err != nil && results[i] == nil {
			break
		}
		ic.AddAgentResults(task.TargetAgent, results[i])
	}
	return err
}

func (l *Lead) route(task planner.SubTask) (Agent, bool) {
	agent, ok := l.table[task.TargetAgent]
	if !ok {
		metrics.UnroutedTasks.WithLabelValues(task.TargetAgent).Inc()
		l.logger.Debug("No agent registered for task; skipping",
			zap.String("task_type", task.TaskType),
			zap.String("target_agent", task.TargetAgent),
		)
	}
	return agent, ok
}

func (l *Lead) invoke(ctx context.Context, agent Agent, entity entities.Entity, task planner.SubTask, ic *investigation.Context) ([]entities.Evidence, error) {
	ctx, span := tracing.StartSpan(ctx, "agent."+task.TargetAgent)
	span.SetAttributes(attribute.String("task.type", task.TaskType))
	defer span.End()

	start := time.Now()
	findings, err := agent.Run(ctx, entity, task, ic)
	metrics.RecordAgentExecution(task.TargetAgent, task.TaskType, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		l.logger.Error("Agent failed",
			zap.String("agent", task.TargetAgent),
			zap.String("task_type", task.TaskType),
			zap.Error(err),
		)
		return nil, &AgentError{Task: task, Err: err}
	}
	if findings == nil {
		findings = []entities.Evidence{}
	}
	l.logger.Debug("Agent completed",
		zap.String("agent", task.TargetAgent),
		zap.String("task_type", task.TaskType),
		zap.Int("findings", len(findings)),
	)
	return findings, nil
}
