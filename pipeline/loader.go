package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strandlabs/strand/errors"
)

// Load reads and validates a pipeline definition from a YAML file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeInvalidDefinition,
			"failed to read pipeline definition",
			map[string]any{"path": path},
		)
	}
	return Parse(data)
}

// Parse parses and validates a pipeline definition from YAML bytes.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidDefinition, "failed to parse pipeline definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the structural invariants of the definition: unique stage
// names, known conditions, resolvable and acyclic dependency edges, unique
// artifact names, and well-formed steps.
func (d *Definition) Validate() error {
	if len(d.Stages) == 0 {
		return errors.New(errors.CodeInvalidDefinition, "definition has no stages")
	}

	stages := make(map[string]bool, len(d.Stages))
	artifacts := make(map[string]string)

	for _, stage := range d.Stages {
		if stage.Name == "" {
			return errors.New(errors.CodeInvalidDefinition, "stage name cannot be empty")
		}
		if stages[stage.Name] {
			return errors.Newf(errors.CodeInvalidDefinition, "duplicate stage name %q", stage.Name)
		}
		stages[stage.Name] = true

		if !knownConditions[stage.If] {
			return errors.Newf(errors.CodeUnknownPredicate, "stage %q: unknown condition %q", stage.Name, stage.If)
		}
		if len(stage.Steps) == 0 {
			return errors.Newf(errors.CodeInvalidDefinition, "stage %q has no steps", stage.Name)
		}

		for _, step := range stage.Steps {
			if err := validateStep(stage.Name, step, artifacts); err != nil {
				return err
			}
		}
	}

	for _, stage := range d.Stages {
		for _, need := range stage.Needs {
			if !stages[need] {
				return errors.Newf(
					errors.CodeInvalidDefinition,
					"stage %q needs unknown stage %q", stage.Name, need,
				)
			}
			if need == stage.Name {
				return errors.Newf(errors.CodeDependencyCycle, "stage %q needs itself", stage.Name)
			}
		}
	}

	if err := d.checkAcyclic(); err != nil {
		return err
	}

	if d.Result.Name == "" {
		return errors.New(errors.CodeInvalidDefinition, "result block must name the aggregation stage")
	}
	if len(d.Result.Observes) == 0 {
		return errors.New(errors.CodeInvalidDefinition, "result block observes no stages")
	}
	for _, name := range d.Result.Observes {
		if !stages[name] {
			return errors.Newf(errors.CodeInvalidDefinition, "result observes unknown stage %q", name)
		}
	}

	return nil
}

// validateStep checks a single step and records artifact declarations so
// duplicate artifact names are rejected at load time rather than mid-run.
func validateStep(stageName string, step StepDef, artifacts map[string]string) error {
	if step.Name == "" {
		return errors.Newf(errors.CodeInvalidDefinition, "stage %q: step name cannot be empty", stageName)
	}

	set := 0
	if step.Run != "" {
		set++
	}
	if step.Artifact != nil {
		set++
	}
	if step.Upload != nil {
		set++
	}
	if step.Lockfile != "" {
		set++
	}
	if set != 1 {
		return errors.Newf(
			errors.CodeInvalidDefinition,
			"stage %q step %q: exactly one of run, artifact, upload, lockfile must be set",
			stageName, step.Name,
		)
	}

	if !knownConditions[step.If] {
		return errors.Newf(
			errors.CodeUnknownPredicate,
			"stage %q step %q: unknown condition %q", stageName, step.Name, step.If,
		)
	}

	if step.Artifact != nil {
		art := step.Artifact
		if art.Name == "" {
			return errors.Newf(
				errors.CodeInvalidDefinition,
				"stage %q step %q: artifact name cannot be empty", stageName, step.Name,
			)
		}
		if prev, exists := artifacts[art.Name]; exists {
			return errors.WrapWithContext(
				nil,
				errors.CodeArtifactConflict,
				fmt.Sprintf("artifact %q declared by both %q and %q", art.Name, prev, stageName),
				map[string]any{"artifact": art.Name},
			)
		}
		artifacts[art.Name] = stageName
		if len(art.Paths) == 0 {
			return errors.Newf(
				errors.CodeInvalidDefinition,
				"stage %q step %q: artifact %q collects no paths", stageName, step.Name, art.Name,
			)
		}
	}

	if step.Upload != nil {
		if step.Upload.Artifact == "" || step.Upload.Key == "" {
			return errors.Newf(
				errors.CodeInvalidDefinition,
				"stage %q step %q: upload needs both artifact and key", stageName, step.Name,
			)
		}
	}

	return nil
}

// checkAcyclic rejects dependency cycles via depth-first coloring.
func (d *Definition) checkAcyclic() error {
	needs := make(map[string][]string, len(d.Stages))
	for _, stage := range d.Stages {
		needs[stage.Name] = stage.Needs
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(needs))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case grey:
			return errors.Newf(errors.CodeDependencyCycle, "dependency cycle through stage %q", name)
		case black:
			return nil
		}
		color[name] = grey
		for _, need := range needs[name] {
			if err := visit(need); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, stage := range d.Stages {
		if err := visit(stage.Name); err != nil {
			return err
		}
	}
	return nil
}
