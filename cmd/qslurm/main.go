package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/internal/config"
	"github.com/tuanbt/qslurm/internal/follow"
	"github.com/tuanbt/qslurm/internal/jobs"
	"github.com/tuanbt/qslurm/internal/logger"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs once the config is loaded.
type app struct {
	configPath string

	cfg      *config.Config
	client   scheduler.Client
	registry *jobs.Registry

	// logger writes to stderr. Monitor sessions log to file instead, since
	// the UI owns the terminal.
	logger *slog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a.cfg = cfg
	a.client = scheduler.NewClient(cfg.SqueueCommand, cfg.SbatchCommand, cfg.ScancelCommand, "")
	a.registry = jobs.NewRegistry(cfg.StateFile)
	a.logger = logger.NewConsoleLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// requireScheduler fails early when squeue is missing. Every status query
// would otherwise read as "job gone".
func (a *app) requireScheduler() error {
	if !a.client.IsInstalled() {
		return fmt.Errorf("%s not found: run qslurm on a Slurm login node or set squeue_command", a.cfg.SqueueCommand)
	}
	return nil
}

// resolveJob returns the job named in args, or the last recorded job. The
// record is nil for jobs qslurm did not submit.
func (a *app) resolveJob(args []string) (string, *jobs.Job, error) {
	if len(args) > 0 {
		job, err := a.registry.Get(args[0])
		if err != nil && !errors.Is(err, jobs.ErrNotFound) {
			return "", nil, err
		}
		return args[0], job, nil
	}

	job, err := a.registry.Last()
	if errors.Is(err, jobs.ErrNoJobs) {
		return "", nil, fmt.Errorf("no job id given and no job recorded in %s", a.registry.Path())
	}
	if err != nil {
		return "", nil, err
	}
	return job.ID, job, nil
}

// newSource builds the configured log follower.
func (a *app) newSource(logPath, errPath string, logger *slog.Logger) follow.Source {
	if a.cfg.Follower == config.FollowerTail {
		return follow.NewProcessFollower(logPath, nil, a.cfg.WaitPoll(), logger)
	}
	return follow.NewFileFollower(logPath, errPath, a.cfg.WaitPoll(), logger)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "qslurm",
		Short:         "Submit, follow and manage Slurm batch jobs",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "qslurm.json", "Path to config file (.json, .yaml or .yml)")

	root.AddCommand(newMonitorCmd(a))
	root.AddCommand(newSubmitCmd(a))
	root.AddCommand(newCancelCmd(a))
	root.AddCommand(newTopCmd(a))
	root.AddCommand(newTemplateCmd(a))
	root.AddCommand(newViewCmd(a))
	root.AddCommand(newJobsCmd(a))
	root.AddCommand(newInitCmd(a))

	return root
}
