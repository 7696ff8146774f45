// Package cmd implements the reachscan command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reachscan/internal/formatter"
	"github.com/reachscan/internal/repository"
	"github.com/reachscan/internal/service"
	"github.com/reachscan/pkg/config"
	apperrors "github.com/reachscan/pkg/errors"
	"github.com/reachscan/pkg/pprof"
	"github.com/reachscan/pkg/telemetry"
	"github.com/reachscan/pkg/utils"
)

// errExpectationFailed marks a completed check whose verdict is FAIL.
var errExpectationFailed = errors.New("reachability expectation not met")

// app holds state shared by all subcommands of one invocation.
type app struct {
	// flags
	configPath string
	verbose    bool
	output     string
	noColor    bool

	pprofEnabled  bool
	pprofDir      string
	pprofProfiles string

	stderr   io.Writer
	cfg      *config.Config
	logger   utils.Logger
	logFile  *utils.DefaultLogger
	repos    *repository.Repositories
	shutdown telemetry.ShutdownFunc
	profiler *pprof.Collector
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reachscan",
		Short: "Check object reachability in Java heap dumps",
		Long: `reachscan answers whether an instance of a class is strongly reachable from
a set of root objects in an HPROF heap dump.

Objects held only through java.lang.ref.Reference referents are not followed,
so a leak check passes when the target is held weakly or softly.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	binName := BinName()
	root.Example = `  # Fail if a Session is strongly reachable from any Cache instance
  ` + binName + ` check --dump app.hprof --class com.example.Session --root-class com.example.Cache --expect unreachable

  # Scan from explicit object IDs and record the result
  ` + binName + ` check --dump cos://dumps/app.hprof --class com.example.Session --root 0x7f0012a0 --record

  # List recorded checks as JSON
  ` + binName + ` history -o json`

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./reachscan.yaml, ./configs, /etc/reachscan)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging and detailed output")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "Output format: text, json or yaml (default from config)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&a.pprofEnabled, "pprof", false, "Profile this run and write pprof files")
	root.PersistentFlags().StringVar(&a.pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	root.PersistentFlags().StringVar(&a.pprofProfiles, "pprof-profiles", "cpu,heap", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid arguments", err)
	})

	root.AddCommand(newCheckCmd(a), newHistoryCmd(a), newVersionCmd())
	return root
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes args with the given streams and returns the exit status.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close(ctx)
	if err != nil && !errors.Is(err, errExpectationFailed) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return apperrors.ExitCode(err)
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}

// setup loads configuration and initializes logging and tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.stderr == nil {
		a.stderr = cmd.ErrOrStderr()
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to load config", err)
	}
	if a.output != "" {
		cfg.Output.Format = a.output
	}
	if _, err := formatter.New(cfg.Output.Format, formatter.Options{}); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid output format", err)
	}
	a.cfg = cfg

	level, err := utils.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "invalid log.level", err)
	}
	if a.verbose {
		level = utils.LevelDebug
	}
	if cfg.Log.OutputPath != "" {
		fl, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeConfigError, "failed to open log file", err)
		}
		a.logger = fl
		a.logFile = fl
	} else {
		a.logger = utils.NewDefaultLogger(level, a.stderr)
	}

	if a.pprofEnabled {
		if err := a.startProfiler(); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to start pprof collection", err)
		}
	}

	shutdown, err := telemetry.Init(cmd.Context(), nil)
	if err != nil {
		a.logger.Warn("Tracing disabled: %v", err)
	} else {
		a.shutdown = shutdown
	}
	return nil
}

// service builds a CheckService. The history database is opened only when
// enabled in config.
func (a *app) service(ctx context.Context) (*service.CheckService, error) {
	opts := service.Options{Config: a.cfg, Logger: a.logger}
	if a.cfg.Database.Enabled {
		repos, err := repository.NewRepositories(ctx, &a.cfg.Database)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open check history", err)
		}
		a.repos = repos
		opts.Checks = repos.Checks
	}
	return service.New(opts)
}

func (a *app) formatter() formatter.Formatter {
	f, _ := formatter.New(a.cfg.Output.Format, formatter.Options{
		Color:   a.cfg.Output.Color && !a.noColor && !color.NoColor,
		Verbose: a.verbose,
	})
	return f
}

func (a *app) startProfiler() error {
	profiles, err := pprof.ParseProfileTypes(a.pprofProfiles)
	if err != nil {
		return err
	}
	collector, err := pprof.NewCollector(&pprof.Config{OutputDir: a.pprofDir, Profiles: profiles})
	if err != nil {
		return err
	}
	if err := collector.Start(); err != nil {
		return err
	}
	a.profiler = collector
	a.logger.Debug("pprof collection started (dir: %s)", a.pprofDir)
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.profiler != nil {
		if err := a.profiler.Stop(); err != nil {
			a.logger.Warn("Failed to write pprof data: %v", err)
		}
		a.logger.Info("pprof data saved to: %s", a.profiler.OutputDir())
	}
	if a.repos != nil {
		if err := a.repos.Close(); err != nil && a.logger != nil {
			a.logger.Warn("Failed to close database: %v", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(ctx)); err != nil && a.logger != nil {
			a.logger.Warn("Failed to flush traces: %v", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
