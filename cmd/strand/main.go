// Command strand drives the engine's build/test/package/upload pipeline:
// a build stage, conditionally dispatched WPT conformance fan-outs for the
// 2020 and legacy 2013 layout paths, and a terminal aggregation whose exit
// code is the run's only pass/fail signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strandlabs/strand/artifact"
	"github.com/strandlabs/strand/dispatch"
	"github.com/strandlabs/strand/engine"
	"github.com/strandlabs/strand/git"
	"github.com/strandlabs/strand/pipeline"
	"github.com/strandlabs/strand/secrets"
	envprovider "github.com/strandlabs/strand/secrets/providers/env"
)

const version = "0.3.0"

var (
	// Global flags
	verbose    bool
	definition string

	// Run parameters
	wptMode    string
	layout     string
	unitTests  bool
	doUpload   bool
	releaseID  string
	branchFlag string
	trigger    string

	// Infrastructure
	storeRoot string
	bucket    string
	prefix    string
	region    string

	// Logger
	logger *zap.Logger

	// exitCode carries the aggregator's result out of cobra.
	exitCode int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "strand",
	Short: "strand - build/test/package pipeline orchestrator",
	Long: `strand executes the engine's release pipeline as a local process tree:

  build        bootstrap, tidy, compile, smoke/script/unit tests, lockfile
               check, package, optional nightly upload
  wpt-2020     WPT conformance fan-out for the 2020 layout path
  wpt-2013     WPT conformance fan-out for the legacy 2013 layout path
  build-result terminal aggregation of all stage statuses

Fan-outs are dispatched from the run inputs and the triggering branch;
skipped fan-outs never fail the run. The process exit code is 0 when no
observed stage failed or was cancelled, 1 otherwise.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes the pipeline
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline and exit with the aggregate result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		plan, err := buildPlan(ctx)
		if err != nil {
			return err
		}

		store, err := artifact.Open(storeRoot)
		if err != nil {
			return err
		}

		mgr := secrets.NewManager("env")
		if err := mgr.RegisterProvider("env", envprovider.New()); err != nil {
			return err
		}
		defer mgr.Close()

		opts := []engine.Option{engine.WithLogger(logger)}
		if bucket != "" {
			opts = append(opts, engine.WithNightlyBucket(bucket, prefix, region))
		}

		eng := engine.New(store, mgr, opts...)
		result, err := eng.Execute(ctx, plan)
		if err != nil {
			return err
		}

		for _, stage := range plan.Stages {
			fmt.Printf("%-12s %s\n", stage.Def.Name, result.Statuses[stage.Def.Name])
		}
		fmt.Printf("%-12s %s\n", plan.Result.Name, result.Aggregate.Overall)

		exitCode = result.Aggregate.ExitCode()
		return nil
	},
}

// planCmd prints the frozen dispatch decision without executing anything
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the dispatch plan for the given inputs and branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := buildPlan(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("run %s (branch %q, trigger %s)\n", plan.Run.ID, plan.Run.Branch, plan.Run.Trigger)
		fmt.Printf("inputs: wpt=%s layout=%s unit-tests=%t upload=%t\n",
			plan.Run.Inputs.WPT, plan.Run.Inputs.Layout,
			plan.Run.Inputs.UnitTests, plan.Run.Inputs.Upload)
		for _, stage := range plan.Stages {
			decision := "dispatch"
			if !stage.Planned {
				decision = "skip"
			}
			fmt.Printf("  %-12s %-8s", stage.Def.Name, decision)
			if len(stage.Def.Needs) > 0 {
				fmt.Printf(" needs=%v", stage.Def.Needs)
			}
			fmt.Println()
		}
		fmt.Printf("  %-12s %-8s observes=%v\n", plan.Result.Name, "dispatch", plan.Result.Observes)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the strand version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("strand", version)
	},
}

// buildPlan assembles the run, evaluates the fan-out selection and freezes
// the plan. All predicates are evaluated here, once, before execution.
func buildPlan(ctx context.Context) (*pipeline.Plan, error) {
	branch, err := resolveBranch(ctx)
	if err != nil {
		return nil, err
	}

	inputs, trig, err := resolveInputs(branch)
	if err != nil {
		return nil, err
	}

	run, err := pipeline.NewRun(trig, branch, inputs)
	if err != nil {
		return nil, err
	}

	def := pipeline.DefaultDefinition()
	if definition != "" {
		def, err = pipeline.Load(definition)
		if err != nil {
			return nil, err
		}
	}

	selected := dispatch.Select(run.Inputs, run.Branch)
	logger.Info("fan-out selection",
		zap.String("branch", run.Branch),
		zap.String("layout", string(run.Inputs.Layout)),
		zap.Bool("wpt-2020", selected["wpt-2020"]),
		zap.Bool("wpt-2013", selected["wpt-2013"]))

	return pipeline.BuildPlan(run, def, selected)
}

// resolveBranch returns the --branch override or the checkout's current
// branch.
func resolveBranch(ctx context.Context) (string, error) {
	if branchFlag != "" {
		return branchFlag, nil
	}

	repo, err := git.Open(".")
	if err != nil {
		return "", fmt.Errorf("cannot resolve triggering branch (use --branch): %w", err)
	}
	return repo.CurrentBranch(ctx)
}

// resolveInputs derives run inputs from the trigger kind: push triggers
// carry the fixed combination their branch implies, everything else reads
// the flags.
func resolveInputs(branch string) (pipeline.Inputs, pipeline.Trigger, error) {
	switch trigger {
	case "push":
		inputs, ok := pipeline.InputsForBranch(branch)
		if !ok {
			return pipeline.Inputs{}, "", fmt.Errorf("branch %q does not trigger runs on push", branch)
		}
		return inputs, pipeline.TriggerPush, nil

	case "call":
		inputs := flagInputs()
		inputs.GithubReleaseID = releaseID
		return inputs, pipeline.TriggerCall, nil

	case "dispatch":
		return flagInputs(), pipeline.TriggerDispatch, nil

	default:
		return pipeline.Inputs{}, "", fmt.Errorf("unknown trigger %q (want dispatch, call or push)", trigger)
	}
}

func flagInputs() pipeline.Inputs {
	inputs := pipeline.DefaultInputs()
	inputs.WPT = pipeline.WPTMode(wptMode)
	inputs.Layout = pipeline.LayoutSelector(layout)
	inputs.UnitTests = unitTests
	inputs.Upload = doUpload
	return inputs
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&definition, "definition", "", "pipeline definition file (YAML); default is built in")

	for _, cmd := range []*cobra.Command{runCmd, planCmd} {
		cmd.Flags().StringVar(&wptMode, "wpt", "test", "WPT mode: test or sync")
		cmd.Flags().StringVar(&layout, "layout", "none", "conformance suites: none, 2013, 2020 or all")
		cmd.Flags().BoolVar(&unitTests, "unit-tests", false, "run unit tests in the build stage")
		cmd.Flags().BoolVar(&doUpload, "upload", false, "upload nightly artifacts")
		cmd.Flags().StringVar(&releaseID, "release-id", "", "release identifier (call trigger)")
		cmd.Flags().StringVar(&branchFlag, "branch", "", "triggering branch (default: current checkout branch)")
		cmd.Flags().StringVar(&trigger, "trigger", "dispatch", "trigger kind: dispatch, call or push")
	}

	runCmd.Flags().StringVar(&storeRoot, "store", "", "artifact store root (default: XDG cache)")
	runCmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket for nightly uploads")
	runCmd.Flags().StringVar(&prefix, "prefix", "", "key prefix for nightly uploads")
	runCmd.Flags().StringVar(&region, "region", "", "AWS region for nightly uploads")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
