// Package engine executes a frozen pipeline plan: dependency-ordered stage
// dispatch, concurrent fan-outs, fail-fast steps with always-run archival,
// and the unconditional terminal aggregation.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strandlabs/strand/aggregate"
	"github.com/strandlabs/strand/artifact"
	"github.com/strandlabs/strand/pipeline"
	"github.com/strandlabs/strand/secrets"
	"github.com/strandlabs/strand/upload"
)

// Uploader publishes an artifact to external storage. upload.Publisher
// satisfies it; tests substitute a fake.
type Uploader interface {
	Publish(ctx context.Context, art *artifact.Artifact, key string) (*upload.Result, error)
}

// UploaderFactory builds an Uploader from resolved credentials. The secret
// is nil when the upload step declares no credentials reference.
type UploaderFactory func(ctx context.Context, cred *secrets.Secret) (Uploader, error)

// Engine executes plans.
type Engine struct {
	store   *artifact.Store
	secrets *secrets.Manager
	runner  StepRunner
	uploads UploaderFactory
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRunner replaces the shell step runner. Tests use this to script step
// outcomes without spawning processes.
func WithRunner(runner StepRunner) Option {
	return func(e *Engine) {
		e.runner = runner
	}
}

// WithUploaderFactory replaces how upload steps obtain their publisher.
func WithUploaderFactory(factory UploaderFactory) Option {
	return func(e *Engine) {
		e.uploads = factory
	}
}

// WithNightlyBucket points upload steps at an S3 bucket. This installs the
// default factory, which authenticates with the step's injected credentials
// secret.
func WithNightlyBucket(bucket, prefix, region string) Option {
	return func(e *Engine) {
		e.uploads = func(ctx context.Context, cred *secrets.Secret) (Uploader, error) {
			return upload.NewFromSecret(ctx, bucket, prefix, region, cred)
		}
	}
}

// New creates an Engine over an artifact store and a secrets manager.
func New(store *artifact.Store, mgr *secrets.Manager, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		secrets: mgr,
		runner:  NewShellRunner(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is the outcome of executing a plan: every stage's terminal
// status plus the aggregate reduction over the stages the result block
// observes.
type RunResult struct {
	// Statuses maps every defined stage to its terminal status.
	Statuses map[string]pipeline.Status

	// Aggregate is the terminal reduction. Its exit code is the run's only
	// external pass/fail signal.
	Aggregate aggregate.Result
}

// Execute runs the plan to completion and performs the terminal aggregation.
//
// Stages with no dependency edge between them run concurrently once their
// shared dependencies complete. A stage whose dependency did not succeed
// resolves to skipped without executing. Cancellation of ctx marks every
// non-terminal stage cancelled; the aggregation still runs, and treats
// cancellation as failure.
//
// The returned error covers orchestration faults only. Stage failures are
// not errors here: they are statuses, reduced by the aggregator.
func (e *Engine) Execute(ctx context.Context, plan *pipeline.Plan) (*RunResult, error) {
	var mu sync.Mutex
	statuses := make(map[string]pipeline.Status, len(plan.Stages))
	done := make(map[string]chan struct{}, len(plan.Stages))

	for i := range plan.Stages {
		ps := &plan.Stages[i]
		done[ps.Def.Name] = make(chan struct{})
		if ps.Planned {
			statuses[ps.Def.Name] = pipeline.StatusPending
		} else {
			// Predicate evaluated false at planning time. Terminal at once.
			statuses[ps.Def.Name] = pipeline.StatusSkipped
			close(done[ps.Def.Name])
			e.logger.Info("stage skipped by condition",
				zap.String("stage", ps.Def.Name),
				zap.String("condition", string(ps.Def.If)))
		}
	}

	setStatus := func(name string, s pipeline.Status) {
		mu.Lock()
		statuses[name] = s
		mu.Unlock()
	}
	getStatus := func(name string) pipeline.Status {
		mu.Lock()
		defer mu.Unlock()
		return statuses[name]
	}

	// A plain group, deliberately not errgroup.WithContext: one stage
	// failing must not cancel its siblings. Only external cancellation
	// aborts the run.
	var g errgroup.Group

	for i := range plan.Stages {
		ps := &plan.Stages[i]
		if !ps.Planned {
			continue
		}

		g.Go(func() error {
			defer close(done[ps.Def.Name])

			// Block until every dependency is terminal.
			for _, need := range ps.Def.Needs {
				select {
				case <-done[need]:
				case <-ctx.Done():
					setStatus(ps.Def.Name, pipeline.StatusCancelled)
					e.logger.Warn("stage cancelled while waiting on dependency",
						zap.String("stage", ps.Def.Name),
						zap.String("dependency", need))
					return nil
				}
			}

			if ctx.Err() != nil {
				setStatus(ps.Def.Name, pipeline.StatusCancelled)
				return nil
			}

			for _, need := range ps.Def.Needs {
				if getStatus(need) != pipeline.StatusSuccess {
					// Upstream did not succeed: this stage never dispatches.
					setStatus(ps.Def.Name, pipeline.StatusSkipped)
					e.logger.Info("stage skipped, dependency did not succeed",
						zap.String("stage", ps.Def.Name),
						zap.String("dependency", need),
						zap.String("dependency_status", getStatus(need).String()))
					return nil
				}
			}

			setStatus(ps.Def.Name, pipeline.StatusRunning)
			status := e.executeStage(ctx, plan, ps.Def)
			setStatus(ps.Def.Name, status)
			e.logger.Info("stage finished",
				zap.String("stage", ps.Def.Name),
				zap.String("status", status.String()))
			return nil
		})
	}

	// Goroutines only report through the status map.
	_ = g.Wait()

	// Terminal aggregation runs unconditionally, over the full status set.
	result, err := aggregate.Reduce(plan.Result.Observes, statuses)
	if err != nil {
		return nil, err
	}

	e.logger.Info("run aggregated",
		zap.String("result_stage", plan.Result.Name),
		zap.String("overall", result.Overall.String()),
		zap.Strings("failing", result.Failing))

	return &RunResult{
		Statuses:  statuses,
		Aggregate: result,
	}, nil
}
