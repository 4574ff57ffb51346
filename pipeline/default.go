package pipeline

// DefaultDefinition returns the built-in pipeline: a build stage that
// bootstraps, lints, compiles and packages the engine, two conditionally
// dispatched WPT conformance fan-outs for the 2020 and legacy 2013 layout
// paths, and the terminal result stage that reduces all of them to a single
// pass/fail signal.
//
// A definition file given on the command line replaces this wholesale.
func DefaultDefinition() *Definition {
	return &Definition{
		Name: "linux-release",
		Stages: []StageDef{
			{
				Name: "build",
				Steps: []StepDef{
					{
						Name: "bootstrap",
						Run:  "sudo apt update && python3 ./mach bootstrap",
					},
					{
						Name: "tidy",
						Run:  "python3 ./mach test-tidy --no-progress --all",
					},
					{
						Name: "release build",
						Run:  "python3 ./mach build --release",
					},
					{
						Name: "smoketest",
						Run:  "python3 ./mach smoketest",
					},
					{
						Name: "script tests",
						Run:  "python3 ./mach test-scripts",
					},
					{
						Name: "unit tests",
						Run:  "python3 ./mach test-unit --release",
						If:   CondUnitTests,
					},
					{
						Name:   "archive build timing",
						Always: true,
						Artifact: &ArtifactDef{
							Name:          "cargo-timings",
							Paths:         []string{"target/cargo-timings/cargo-timing-*.html"},
							RetentionDays: 30,
						},
					},
					{
						Name:     "lockfile",
						Lockfile: "Cargo.lock",
					},
					{
						Name: "package",
						Run:  "python3 ./mach package --release",
					},
					{
						Name: "archive package",
						Artifact: &ArtifactDef{
							Name:  "linux-release-tarball",
							Paths: []string{"target/release/servo-tech-demo.tar.gz"},
						},
					},
					{
						Name: "archive release binary",
						Artifact: &ArtifactDef{
							Name:  "release-binary",
							Paths: []string{"target/release/target.tar.gz"},
						},
					},
					{
						Name: "nightly upload",
						If:   CondUpload,
						Upload: &UploadDef{
							Artifact:          "linux-release-tarball",
							Key:               "nightly/linux/{date}/servo-latest.tar.gz",
							CredentialsSecret: "secret://env/S3_UPLOAD_CREDENTIALS",
						},
					},
				},
			},
			{
				Name:  "wpt-2020",
				If:    CondSuite2020,
				Needs: []string{"build"},
				Steps: []StepDef{
					{
						Name: "run wpt 2020",
						Run:  "python3 ./mach test-wpt --release --layout-2020 --processes $(nproc)",
					},
				},
			},
			{
				Name:  "wpt-2013",
				If:    CondSuite2013,
				Needs: []string{"build"},
				Steps: []StepDef{
					{
						Name: "run wpt 2013",
						Run:  "python3 ./mach test-wpt --release --layout-2013 --processes $(nproc)",
					},
				},
			},
		},
		Result: ResultDef{
			Name:     "build-result",
			Observes: []string{"build", "wpt-2020", "wpt-2013"},
		},
	}
}
