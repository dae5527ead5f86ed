// Package cmd implements the envy command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bincrafters/envy/internal/config"
	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/metrics"
	"github.com/bincrafters/envy/internal/progress"
	"github.com/bincrafters/envy/internal/prompt"
	"github.com/bincrafters/envy/internal/reconcile"
)

// version is set at build time with -ldflags "-X github.com/bincrafters/envy/cmd.version=...".
var version = "dev"

// errRunFailed signals that at least one pair failed; details were already
// printed.
var errRunFailed = errors.New("run failed")

type rootParams struct {
	*commonParams
	projects    []string
	remove      bool
	force       bool
	env         []string
	envFiles    []string
	parallel    int
	metricsFile string
	progress    bool
	quiet       bool
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(stderr, "error:", err)
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	params := rootParams{commonParams: newCommonParams(), parallel: 1}

	root := &cobra.Command{
		Use:   "envy",
		Short: "Synchronize projects and environment variables across CI providers",
		Long: `envy registers projects on Travis CI, AppVeyor, CircleCI and Azure Pipelines
and keeps their environment variables in sync with a local INI configuration.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, &params)
		},
	}

	fs := root.Flags()
	fs.StringArrayVarP(&params.projects, "project", "p", nil, "GitHub project name (aka project slug), a glob pattern with --remove; repeatable")
	fs.BoolVarP(&params.remove, "remove", "r", false, "remove specified project(s)")
	fs.BoolVarP(&params.force, "force", "f", false, "force removal for all projects (no confirmation)")
	fs.StringArrayVarP(&params.env, "env", "e", nil, "additional environment variable NAME=VALUE; repeatable")
	fs.StringArrayVar(&params.envFiles, "env-file", nil, "dotenv file with additional environment variables; repeatable")
	fs.IntVar(&params.parallel, "parallel", 1, "number of project/provider pairs processed at once")
	fs.StringVar(&params.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	fs.BoolVar(&params.progress, "progress", false, "show a progress bar on stderr")
	fs.BoolVarP(&params.quiet, "quiet", "q", false, "do not print the summary table")
	_ = root.MarkFlagRequired("project")

	addCommonFlags(root.PersistentFlags(), params.commonParams)

	root.AddCommand(newListCommand(params.commonParams))

	return root
}

func newLogger(p *commonParams, w io.Writer) *logging.Logger {
	level := p.logLevel
	if p.debugHTTP {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.Config{Level: level, Format: p.logFormat, Output: w}).
		With("run_id", uuid.NewString())
}

func loadConfig(p *commonParams) (*config.Root, *config.Credentials, error) {
	root, err := config.Load(p.configFile)
	if err != nil {
		return nil, nil, err
	}
	return root, root.Credentials().WithDir(p.tokenDir), nil
}

func runRoot(cmd *cobra.Command, params *rootParams) error {
	ctx := cmd.Context()
	log := newLogger(params.commonParams, cmd.ErrOrStderr())

	root, creds, err := loadConfig(params.commonParams)
	if err != nil {
		return err
	}
	log.Debugf("loaded configuration from %s", root.Path)

	desired, err := config.MergeEnv(root.Env, params.envFiles, params.env)
	if err != nil {
		return err
	}

	providers, err := newProviders(ctx, params.commonParams, root, creds, log)
	if err != nil {
		return err
	}

	var bar *progress.Bar
	if params.progress {
		bar = progress.New(cmd.ErrOrStderr(), "reconciling")
	}

	engine := reconcile.New(providers...).
		WithOutput(cmd.OutOrStdout()).
		WithLogger(log).
		WithConfirmer(prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())).
		WithParallel(params.parallel).
		WithProgress(bar)

	mode := reconcile.ModeAdd
	if params.remove {
		mode = reconcile.ModeRemove
	}

	result := engine.Run(ctx, reconcile.Request{
		Projects:  params.projects,
		Desired:   desired,
		Encrypted: root.Encrypted,
		Mode:      mode,
		Force:     params.force,
	})

	if !params.quiet {
		if err := reconcile.WriteSummary(cmd.OutOrStdout(), result); err != nil {
			log.Warnf("failed to render summary: %v", err)
		}
	}

	if params.metricsFile != "" {
		if err := metrics.WriteTextfile(params.metricsFile); err != nil {
			log.Warnf("failed to write metrics: %v", err)
		}
	}

	if result.Failed() {
		log.Debugf("run failed: %v", result.Err())
		return errRunFailed
	}
	return nil
}
