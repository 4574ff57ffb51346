// Package errors provides the error handling foundation for the strand
// pipeline orchestrator. It extends Go's standard error handling with
// structured error codes and context preservation so that stage and step
// failures stay classifiable all the way up to the result aggregator.
package errors

// ErrorCode represents a specific error condition in the pipeline.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Definition errors.

	// CodeInvalidDefinition indicates a pipeline definition failed validation.
	CodeInvalidDefinition ErrorCode = "INVALID_DEFINITION"

	// CodeUnknownPredicate indicates a stage or step references a condition
	// the planner does not recognize.
	CodeUnknownPredicate ErrorCode = "UNKNOWN_PREDICATE"

	// CodeDependencyCycle indicates the stage dependency graph is not acyclic.
	CodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"

	// Execution errors.

	// CodeStepFailed indicates a step command exited nonzero.
	CodeStepFailed ErrorCode = "STEP_FAILED"

	// CodeStageFailed indicates a stage resolved to failure.
	CodeStageFailed ErrorCode = "STAGE_FAILED"

	// CodeLockfileDrift indicates the dependency lockfile changed during the
	// build even though compilation succeeded.
	CodeLockfileDrift ErrorCode = "LOCKFILE_DRIFT"

	// CodeCancelled indicates execution was aborted by an external signal.
	CodeCancelled ErrorCode = "CANCELLED"

	// Artifact errors.

	// CodeArtifactConflict indicates an artifact name was archived twice
	// within the same run.
	CodeArtifactConflict ErrorCode = "ARTIFACT_CONFLICT"

	// CodeArtifactNotFound indicates a requested artifact does not exist.
	CodeArtifactNotFound ErrorCode = "ARTIFACT_NOT_FOUND"

	// CodeUploadFailed indicates publishing an artifact to external storage failed.
	CodeUploadFailed ErrorCode = "UPLOAD_FAILED"

	// Secret errors.

	// CodeSecretResolution indicates a secret reference could not be resolved.
	CodeSecretResolution ErrorCode = "SECRET_RESOLUTION_FAILED"

	// System errors.

	// CodeInternal indicates an internal orchestrator error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
