package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strandlabs/strand/errors"
	"github.com/strandlabs/strand/pipeline"
	"github.com/strandlabs/strand/secrets"
	"github.com/strandlabs/strand/upload"
)

// executeStage runs a stage's steps strictly in order. A failing step fails
// the stage and suppresses every later step except those marked always,
// which still run to preserve diagnostic artifacts. Cancellation aborts the
// stage outright, always steps included.
func (e *Engine) executeStage(ctx context.Context, plan *pipeline.Plan, stage pipeline.StageDef) pipeline.Status {
	log := e.logger.With(zap.String("stage", stage.Name))
	failed := false

	for _, step := range stage.Steps {
		if ctx.Err() != nil {
			log.Warn("stage cancelled", zap.String("step", step.Name))
			return pipeline.StatusCancelled
		}

		eligible, err := pipeline.EvalCondition(step.If, plan.Run, plan.Selected)
		if err != nil {
			// The loader rejects unknown conditions, so this is internal.
			log.Error("step condition evaluation failed",
				zap.String("step", step.Name), zap.Error(err))
			failed = true
			continue
		}
		if !eligible {
			log.Debug("step skipped by condition",
				zap.String("step", step.Name),
				zap.String("condition", string(step.If)))
			continue
		}
		if failed && !step.Always {
			log.Debug("step suppressed after failure", zap.String("step", step.Name))
			continue
		}

		start := time.Now()
		if err := e.executeStep(ctx, plan, stage, step); err != nil {
			if ctx.Err() != nil {
				log.Warn("stage cancelled", zap.String("step", step.Name))
				return pipeline.StatusCancelled
			}
			log.Error("step failed",
				zap.String("step", step.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			failed = true
			continue
		}
		log.Info("step succeeded",
			zap.String("step", step.Name),
			zap.Duration("duration", time.Since(start)))
	}

	if ctx.Err() != nil {
		return pipeline.StatusCancelled
	}
	if failed {
		return pipeline.StatusFailure
	}
	return pipeline.StatusSuccess
}

// executeStep dispatches a single step by kind.
func (e *Engine) executeStep(
	ctx context.Context,
	plan *pipeline.Plan,
	stage pipeline.StageDef,
	step pipeline.StepDef,
) error {
	env, cleanup, err := e.resolveEnv(ctx, step)
	if err != nil {
		return err
	}
	defer cleanup()

	switch step.Kind() {
	case pipeline.StepRun:
		return e.runCommand(ctx, stage, step, env)

	case pipeline.StepArchive:
		return e.archive(ctx, plan, step)

	case pipeline.StepLockfileCheck:
		return e.checkLockfile(ctx, stage, step, env)

	case pipeline.StepUpload:
		return e.publish(ctx, plan, step)

	default:
		return errors.Newf(errors.CodeInternal, "unhandled step kind %q", step.Kind())
	}
}

// resolveEnv materializes a step's environment, resolving secret://
// references through the secrets manager. The returned cleanup zeroes
// resolved secret memory once the step completes.
func (e *Engine) resolveEnv(ctx context.Context, step pipeline.StepDef) (map[string]string, func(), error) {
	if len(step.Env) == 0 {
		return nil, func() {}, nil
	}

	env := make(map[string]string, len(step.Env))
	var resolved []*secrets.Secret

	cleanup := func() {
		for _, s := range resolved {
			s.Clear()
		}
	}

	for key, value := range step.Env {
		if !secrets.IsRef(value) {
			env[key] = value
			continue
		}
		secret, err := e.secrets.ResolveValue(ctx, value)
		if err != nil {
			cleanup()
			return nil, func() {}, errors.WrapWithContext(
				err,
				errors.CodeSecretResolution,
				"failed to resolve step secret",
				map[string]any{"step": step.Name, "env": key},
			)
		}
		resolved = append(resolved, secret)
		env[key] = secret.String()
	}

	return env, cleanup, nil
}

// runCommand executes a run step's shell command.
func (e *Engine) runCommand(
	ctx context.Context,
	stage pipeline.StageDef,
	step pipeline.StepDef,
	env map[string]string,
) error {
	result, err := e.runner.Run(ctx, stage, step, env)
	if err != nil {
		exitCode := -1
		if result != nil {
			exitCode = result.ExitCode
		}
		return errors.WrapWithContext(
			err,
			errors.CodeStepFailed,
			"step command exited nonzero",
			map[string]any{"step": step.Name, "exit_code": exitCode},
		)
	}
	return nil
}

// archive collects a step's declared artifact into the store.
func (e *Engine) archive(ctx context.Context, plan *pipeline.Plan, step pipeline.StepDef) error {
	def := step.Artifact
	retention := time.Duration(def.RetentionDays) * 24 * time.Hour

	art, err := e.store.Archive(ctx, plan.Run.ID, def.Name, def.Paths, retention)
	if err != nil {
		return err
	}

	e.logger.Info("artifact archived",
		zap.String("artifact", art.Name),
		zap.String("content_type", art.ContentType),
		zap.Int64("size", art.Size))
	return nil
}

// checkLockfile fails the stage when the dependency lockfile changed during
// the build, even if compilation succeeded.
func (e *Engine) checkLockfile(
	ctx context.Context,
	stage pipeline.StageDef,
	step pipeline.StepDef,
	env map[string]string,
) error {
	check := step
	check.Run = fmt.Sprintf("git diff --exit-code -- %s", step.Lockfile)

	if _, err := e.runner.Run(ctx, stage, check, env); err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeLockfileDrift,
			"dependency lockfile changed during the build",
			map[string]any{"lockfile": step.Lockfile},
		)
	}
	return nil
}

// publish uploads a previously archived artifact to nightly storage with
// the step's injected credentials.
func (e *Engine) publish(ctx context.Context, plan *pipeline.Plan, step pipeline.StepDef) error {
	if e.uploads == nil {
		return errors.New(errors.CodeUploadFailed, "no upload destination configured")
	}

	art, err := e.store.Get(plan.Run.ID, step.Upload.Artifact)
	if err != nil {
		return err
	}

	var cred *secrets.Secret
	if ref := step.Upload.CredentialsSecret; ref != "" {
		cred, err = e.secrets.ResolveValue(ctx, ref)
		if err != nil {
			return errors.WrapWithContext(
				err,
				errors.CodeSecretResolution,
				"failed to resolve upload credentials",
				map[string]any{"step": step.Name},
			)
		}
		defer cred.Clear()
	}

	uploader, err := e.uploads(ctx, cred)
	if err != nil {
		return err
	}

	key := upload.ExpandKey(step.Upload.Key, plan.Run.CreatedAt)
	result, err := uploader.Publish(ctx, art, key)
	if err != nil {
		return err
	}

	e.logger.Info("artifact published",
		zap.String("artifact", art.Name),
		zap.String("destination", result.String()))
	return nil
}
