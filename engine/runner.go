package engine

import (
	"context"
	"time"

	"github.com/strandlabs/strand/executor"
	"github.com/strandlabs/strand/pipeline"
)

// StepRunner executes a run step's command. The engine's default spawns a
// shell; tests script outcomes instead.
type StepRunner interface {
	Run(
		ctx context.Context,
		stage pipeline.StageDef,
		step pipeline.StepDef,
		env map[string]string,
	) (*executor.Result, error)
}

// ShellRunner runs step commands through `sh -c`, streaming output to the
// console while capturing it for diagnostics.
type ShellRunner struct{}

// NewShellRunner creates the default runner.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run executes the step's command with its environment, working directory
// and timeout applied.
func (r *ShellRunner) Run(
	ctx context.Context,
	stage pipeline.StageDef,
	step pipeline.StepDef,
	env map[string]string,
) (*executor.Result, error) {
	opts := []executor.Option{
		executor.WithConsoleRedirect(true),
	}
	if len(env) > 0 {
		opts = append(opts, executor.WithEnv(env))
	}
	if step.WorkingDir != "" {
		opts = append(opts, executor.WithWorkingDir(step.WorkingDir))
	}
	if step.TimeoutMinutes > 0 {
		opts = append(opts, executor.WithTimeout(time.Duration(step.TimeoutMinutes)*time.Minute))
	}

	return executor.Shell(step.Run).Execute(ctx, opts...)
}
