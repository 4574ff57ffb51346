package pipeline

// Definition is the declarative description of the pipeline: a list of
// stages with dependency edges, plus the terminal result block. It is the
// YAML document the loader parses and validates.
type Definition struct {
	// Name labels the pipeline in logs.
	Name string `yaml:"name"`

	// Stages in declaration order. Order only matters for presentation;
	// execution order is derived from Needs edges.
	Stages []StageDef `yaml:"stages"`

	// Result describes the terminal aggregation stage. It runs
	// unconditionally, after every observed stage is terminal.
	Result ResultDef `yaml:"result"`
}

// StageDef is a named, possibly-conditional unit of pipeline work.
type StageDef struct {
	// Name identifies the stage. Unique within a definition.
	Name string `yaml:"name"`

	// If is the stage's dispatch condition, evaluated once at planning time.
	// Empty means always dispatch. See Condition for the known values.
	If Condition `yaml:"if,omitempty"`

	// Needs lists stages whose completion gates this stage's start. A stage
	// whose dependency did not succeed resolves to skipped.
	Needs []string `yaml:"needs,omitempty"`

	// Steps execute strictly in order, fail-fast, within the stage.
	Steps []StepDef `yaml:"steps"`
}

// StepKind discriminates what a step does.
type StepKind string

const (
	// StepRun executes a shell command.
	StepRun StepKind = "run"

	// StepArchive collects files into a named artifact.
	StepArchive StepKind = "archive"

	// StepUpload publishes a previously archived artifact to external storage.
	StepUpload StepKind = "upload"

	// StepLockfileCheck fails the stage if the dependency lockfile changed.
	StepLockfileCheck StepKind = "lockfile-check"
)

// StepDef is an atomic action within a stage. Exactly one of Run, Artifact,
// Upload or Lockfile must be set; Kind() reports which.
type StepDef struct {
	// Name identifies the step in logs.
	Name string `yaml:"name"`

	// Run is the shell command for run steps.
	Run string `yaml:"run,omitempty"`

	// Artifact describes what an archive step collects.
	Artifact *ArtifactDef `yaml:"artifact,omitempty"`

	// Upload describes what an upload step publishes.
	Upload *UploadDef `yaml:"upload,omitempty"`

	// Lockfile is the path checked by a lockfile-check step.
	Lockfile string `yaml:"lockfile,omitempty"`

	// If gates the step on a run input. Empty means always eligible.
	If Condition `yaml:"if,omitempty"`

	// Always marks the step to run even after an earlier step failed the
	// stage. Used for archival steps that preserve diagnostic telemetry.
	Always bool `yaml:"always,omitempty"`

	// Env is extra process environment for the step. Values of the form
	// secret://provider/path are resolved through the secrets manager at
	// step start and never logged.
	Env map[string]string `yaml:"env,omitempty"`

	// WorkingDir overrides the step's working directory.
	WorkingDir string `yaml:"working-dir,omitempty"`

	// TimeoutMinutes bounds the step's execution. Zero means no bound.
	TimeoutMinutes int `yaml:"timeout-minutes,omitempty"`
}

// Kind reports the step's discriminated kind based on which field is set.
func (s StepDef) Kind() StepKind {
	switch {
	case s.Artifact != nil:
		return StepArchive
	case s.Upload != nil:
		return StepUpload
	case s.Lockfile != "":
		return StepLockfileCheck
	default:
		return StepRun
	}
}

// ArtifactDef declares a named artifact produced by an archive step.
type ArtifactDef struct {
	// Name identifies the artifact. Unique within a run.
	Name string `yaml:"name"`

	// Paths are glob patterns for the files to collect.
	Paths []string `yaml:"paths"`

	// RetentionDays bounds how long the artifact outlives the run.
	// Zero means the store default.
	RetentionDays int `yaml:"retention-days,omitempty"`
}

// UploadDef declares a publish of a named artifact to external storage.
type UploadDef struct {
	// Artifact names the previously archived artifact to publish.
	Artifact string `yaml:"artifact"`

	// Key is the object key to publish under. The placeholder {date}
	// expands to the run date (YYYY-MM-DD).
	Key string `yaml:"key"`

	// CredentialsSecret references the upload credentials, resolved through
	// the secrets manager and forwarded opaquely.
	CredentialsSecret string `yaml:"credentials-secret,omitempty"`
}

// ResultDef describes the terminal aggregation stage.
type ResultDef struct {
	// Name labels the aggregation stage.
	Name string `yaml:"name"`

	// Observes lists the stages whose terminal statuses feed the reduction.
	// The aggregator waits for all of them regardless of outcome.
	Observes []string `yaml:"observes"`
}

// Condition is a named dispatch predicate over the immutable run inputs and
// the triggering branch. Conditions are an enumerated set rather than an
// expression language so planning stays a pure, testable function.
type Condition string

const (
	// CondAlways always dispatches. The empty condition means the same.
	CondAlways Condition = "always"

	// CondUnitTests dispatches when the unit-tests input is set.
	CondUnitTests Condition = "unit-tests"

	// CondUpload dispatches when the upload input is set.
	CondUpload Condition = "upload"

	// CondSuite2020 dispatches when the fan-out selector chose the 2020
	// conformance suite.
	CondSuite2020 Condition = "suite:wpt-2020"

	// CondSuite2013 dispatches when the fan-out selector chose the legacy
	// 2013 conformance suite.
	CondSuite2013 Condition = "suite:wpt-2013"

	// CondRelease dispatches when the run carries a release identifier.
	CondRelease Condition = "release"
)

// knownConditions is the validator's allow-list.
var knownConditions = map[Condition]bool{
	"":            true,
	CondAlways:    true,
	CondUnitTests: true,
	CondUpload:    true,
	CondSuite2020: true,
	CondSuite2013: true,
	CondRelease:   true,
}
