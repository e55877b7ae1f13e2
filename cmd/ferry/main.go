package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/stats"
	"github.com/bamsammich/ferry/internal/ui"
)

var version = "dev"

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

// usageError marks CLI shape problems so they exit with 2, not 1.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// filterFlag preserves the CLI ordering of --exclude and --include rules by
// appending to a shared chain as flags are parsed.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

//nolint:gocyclo,revive // main CLI entry point orchestrates all flag parsing and mode selection
func run() int {
	var (
		targetDir     string
		profileName   string
		parallel      int
		conflictStr   string
		outputStr     string
		planFlag      bool
		dryRun        bool
		noFsync       bool
		noPerms       bool
		noTimes       bool
		noReflink     bool
		journalFlag   bool
		blockEscaping bool
		maxDepth      int
		verbose       bool
		quiet         bool
		showVersion   bool
		filterFile    string
		minSizeStr    string
		maxSizeStr    string
		logFile       string
	)

	chain := filter.NewChain()

	rootCmd := &cobra.Command{
		Use:   "ferry [flags] <source>... <destination>",
		Short: "Parallel, crash-safe, resumable file-tree copy",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if targetDir != "" {
				return cobra.MinimumNArgs(1)(cmd, args)
			}
			return cobra.MinimumNArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "ferry %s\n", version)
				return nil
			}

			sources, dst, err := resolveArgs(args, targetDir)
			if err != nil {
				return err
			}

			// Config file defaults apply only to flags not set on the CLI.
			fileCfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			if !cmd.Flags().Changed("profile") && fileCfg.Defaults.Profile != nil {
				profileName = *fileCfg.Defaults.Profile
			}
			if !cmd.Flags().Changed("output") && fileCfg.Defaults.Output != nil {
				outputStr = *fileCfg.Defaults.Output
			}
			if !cmd.Flags().Changed("journal") && fileCfg.Defaults.Journal != nil {
				journalFlag = *fileCfg.Defaults.Journal
			}

			profile, err := config.ResolveProfile(profileName)
			if err != nil {
				return &usageError{msg: err.Error()}
			}

			engCfg := engine.DefaultConfig()
			engCfg.Parallel = profile.Parallel
			engCfg.Fsync = profile.Fsync
			engCfg.Reflink = profile.Reflink
			engCfg.BlockEscapingSymlinks = profile.BlockEscapingSymlinks

			if !cmd.Flags().Changed("parallel") && fileCfg.Defaults.Parallel != nil {
				engCfg.Parallel = *fileCfg.Defaults.Parallel
			}
			if !cmd.Flags().Changed("no-fsync") && fileCfg.Defaults.Fsync != nil {
				engCfg.Fsync = *fileCfg.Defaults.Fsync
			}

			if cmd.Flags().Changed("parallel") {
				engCfg.Parallel = parallel
			}
			mode, err := engine.ParseConflictMode(conflictStr)
			if err != nil {
				return &usageError{msg: err.Error()}
			}
			engCfg.OnConflict = mode
			if noFsync {
				engCfg.Fsync = false
			}
			if noPerms {
				engCfg.PreservePermissions = false
				engCfg.PreserveAttributes = false
			}
			if noTimes {
				engCfg.PreserveTimestamps = false
			}
			if noReflink {
				engCfg.Reflink = false
			}
			if blockEscaping {
				engCfg.BlockEscapingSymlinks = true
			}
			engCfg.MaxDepth = maxDepth
			engCfg.Journal = journalFlag

			// Filters.
			if filterFile != "" {
				if err := chain.LoadFile(filterFile); err != nil {
					return &usageError{msg: err.Error()}
				}
			}
			if minSizeStr != "" {
				n, err := filter.ParseSize(minSizeStr)
				if err != nil {
					return &usageError{msg: fmt.Sprintf("invalid --min-size: %v", err)}
				}
				chain.SetMinSize(n)
			}
			if maxSizeStr != "" {
				n, err := filter.ParseSize(maxSizeStr)
				if err != nil {
					return &usageError{msg: fmt.Sprintf("invalid --max-size: %v", err)}
				}
				chain.SetMaxSize(n)
			}
			if !chain.Empty() {
				engCfg.Filter = chain
			}

			// Logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", lfErr)
					return &exitError{code: exitFailure}
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			slog.SetDefault(slog.New(logHandler))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			engCfg.Stats = collector
			engCfg.Warn = func(msg string) { slog.Warn(msg) }

			events := make(chan event.Event, 256)
			engCfg.Events = events

			presenter, err := ui.NewPresenter(ui.Config{
				Writer:    os.Stdout,
				ErrWriter: os.Stderr,
				Stats:     collector,
				Output:    outputStr,
				Quiet:     quiet,
				Verbose:   verbose,
				IsTTY:     ui.IsTTY(os.Stderr),
			})
			if err != nil {
				return &usageError{msg: err.Error()}
			}

			var presenterWg sync.WaitGroup
			presenterWg.Add(1)
			go func() {
				defer presenterWg.Done()
				if err := presenter.Run(events); err != nil {
					fmt.Fprintf(os.Stderr, "presenter: %v\n", err)
				}
			}()

			runErr := copySources(ctx, sources, dst, engCfg, planFlag || dryRun)
			stop()
			close(events)
			presenterWg.Wait()

			if summary := presenter.Summary(); summary != "" && !(planFlag || dryRun) {
				fmt.Fprintln(os.Stderr, summary)
			}

			if runErr != nil {
				if copyerr.IsCancelled(runErr) {
					return &exitError{code: exitCancelled}
				}
				slog.Error("copy failed", "error", runErr)
				return &exitError{code: exitFailure}
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		StringVarP(&targetDir, "target-directory", "t", "", "copy all sources into DIRECTORY")
	rootCmd.Flags().
		StringVar(&profileName, "profile", "modern", "settings profile (modern, safe, fast)")
	rootCmd.Flags().
		IntVarP(&parallel, "parallel", "j", 0, "number of parallel copy workers")
	rootCmd.Flags().
		StringVarP(&conflictStr, "conflict", "c", "skip", "conflict policy (skip, overwrite, update, error)")
	rootCmd.Flags().
		StringVarP(&outputStr, "output", "o", "human", "output format (human, json, jsonl)")
	rootCmd.Flags().BoolVar(&planFlag, "plan", false, "print decisions without copying")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "alias for --plan")
	rootCmd.Flags().BoolVar(&noFsync, "no-fsync", false, "skip fsync before rename (faster, less durable)")
	rootCmd.Flags().BoolVar(&noPerms, "no-perms", false, "don't preserve permissions")
	rootCmd.Flags().BoolVar(&noTimes, "no-times", false, "don't preserve timestamps")
	rootCmd.Flags().BoolVar(&noReflink, "no-reflink", false, "disable the copy-on-write clone fast path")
	rootCmd.Flags().BoolVar(&journalFlag, "journal", false, "record completed files in a resume journal")
	rootCmd.Flags().
		BoolVar(&blockEscaping, "block-escaping-symlinks", false, "fail symlinks whose target escapes the source root")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "cap directory depth (0 = unlimited)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "one line per item")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().
		Var(&filterFlag{chain: chain, include: false}, "exclude", "exclude files matching PATTERN (repeatable)")
	rootCmd.Flags().
		Var(&filterFlag{chain: chain, include: true}, "include", "include files matching PATTERN (repeatable)")
	rootCmd.Flags().StringVar(&filterFile, "filter", "", "read filter rules from FILE")
	rootCmd.Flags().StringVar(&minSizeStr, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	rootCmd.Flags().StringVar(&maxSizeStr, "max-size", "", "skip files larger than SIZE (e.g. 1G)")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			return exitUsage
		}
		// Cobra argument-count errors are usage errors too.
		return exitUsage
	}

	return exitOK
}

// resolveArgs handles the three positional forms:
//
//	ferry SRC DST
//	ferry SRC... DIR
//	ferry -t DIR SRC...
func resolveArgs(args []string, targetDir string) ([]string, string, error) {
	if targetDir != "" {
		if len(args) == 0 {
			return nil, "", &usageError{msg: "no source files specified"}
		}
		if info, err := os.Stat(targetDir); err == nil && !info.IsDir() {
			return nil, "", &usageError{msg: fmt.Sprintf("target is not a directory: %s", targetDir)}
		}
		return args, targetDir, nil
	}

	if len(args) < 2 {
		return nil, "", &usageError{msg: fmt.Sprintf("missing destination operand after %q", args[0])}
	}

	sources := args[:len(args)-1]
	dst := args[len(args)-1]

	if len(sources) > 1 {
		if info, err := os.Stat(dst); err == nil && !info.IsDir() {
			return nil, "", &usageError{
				msg: fmt.Sprintf("target %q is not a directory (copying multiple sources)", dst),
			}
		}
	}

	return sources, dst, nil
}

// copySources runs each source through the engine (or planner), sharing
// the stats collector and event stream. The first terminal error wins but
// later sources still run, matching cp semantics for sibling failures;
// after a cancelled or no_space outcome no further source is started.
func copySources(ctx context.Context, sources []string, dst string, cfg engine.Config, plan bool) error {
	multi := len(sources) > 1

	dstIsDir := false
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dstIsDir = true
	}

	var firstErr error
	for _, src := range sources {
		// Directories land under dst by basename when copying into a
		// directory; non-directory sources resolve that inside the engine.
		target := dst
		if info, err := os.Lstat(src); err == nil && info.IsDir() && (multi || dstIsDir) {
			target = filepath.Join(dst, filepath.Base(src))
		}

		if plan {
			if _, err := engine.Plan(ctx, src, target, cfg); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		result := engine.Run(ctx, src, target, cfg)
		if result.Err != nil && firstErr == nil {
			firstErr = result.Err
		}
		if copyerr.IsCancelled(result.Err) || copyerr.IsNoSpace(result.Err) {
			return firstErr
		}
	}
	return firstErr
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
