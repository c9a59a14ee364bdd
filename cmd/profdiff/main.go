package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/profdiff/pkg/merge"
	"github.com/grafana/profdiff/pkg/util"
)

var cfg struct {
	verbose      bool
	configFile   string
	printMetrics bool
	merge        merge.Config
}

var consoleOutput = os.Stderr

func main() {
	ctx := withOutput(context.Background(), os.Stdout)

	app := kingpin.New(filepath.Base(os.Args[0]), "Merge and compare Firefox profiler profiles.").UsageWriter(os.Stdout)
	app.Version(version.Print("profdiff"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	app.Flag("config.file", "YAML file with merge settings. Flags override values read from the file.").PlaceHolder("<path>").StringVar(&cfg.configFile)
	app.Flag("print-metrics", "Print merge metrics to stderr before exiting.").Default("false").BoolVar(&cfg.printMetrics)
	strictPayloads := app.Flag("strict-payloads", "Fail on marker payloads without a type tag.").Bool()
	skipValidation := app.Flag("skip-validation", "Skip validation of input threads.").Bool()
	concurrency := app.Flag("concurrency", "Maximum number of threads validated and rewritten in parallel. 'auto' uses GOMAXPROCS.").String()

	diffCmd := app.Command("diff", "Build a profile comparing one thread of each input profile.")
	diffParams := addDiffParams(diffCmd)

	mergeCmd := app.Command("merge-threads", "Merge threads of a profile into a single thread.")
	mergeParams := addMergeThreadsParams(mergeCmd)

	inspectCmd := app.Command("inspect", "Print the threads and table sizes of profiles.")
	inspectFiles := inspectCmd.Arg("file", "profile file path").Required().ExistingFiles()

	validateCmd := app.Command("validate", "Check the references of profiles.")
	validateFiles := validateCmd.Arg("file", "profile file path").Required().ExistingFiles()

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := util.NewLogger(consoleOutput, cfg.verbose)
	ctx = util.WithLogger(ctx, logger)

	if cfg.configFile != "" {
		if err := util.LoadYAMLFile(cfg.configFile, &cfg.merge); err != nil {
			os.Exit(checkError(err))
		}
	}
	if *strictPayloads {
		cfg.merge.StrictPayloads = true
	}
	if *skipValidation {
		cfg.merge.SkipValidation = true
	}
	if *concurrency != "" {
		if err := cfg.merge.Concurrency.Set(*concurrency); err != nil {
			os.Exit(checkError(fmt.Errorf("invalid --concurrency: %w", err)))
		}
	}

	reg := prometheus.NewRegistry()
	ctx = util.WithRegistry(ctx, reg)

	var err error
	switch parsedCmd {
	case diffCmd.FullCommand():
		err = diff(ctx, diffParams)
	case mergeCmd.FullCommand():
		err = mergeThreads(ctx, mergeParams)
	case inspectCmd.FullCommand():
		err = inspect(ctx, *inspectFiles...)
	case validateCmd.FullCommand():
		err = validate(ctx, *validateFiles...)
	default:
		err = fmt.Errorf("unknown command %q", parsedCmd)
	}

	if cfg.printMetrics {
		if merr := printMetrics(consoleOutput, reg); merr != nil {
			level.Error(logger).Log("msg", "failed to print metrics", "err", merr)
		}
	}
	if err != nil {
		os.Exit(checkError(err))
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(consoleOutput, "%s%v\n", color.RedString("error: "), err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

func newMerger(ctx context.Context) *merge.Merger {
	return merge.New(cfg.merge, util.LoggerFromContext(ctx), util.RegistryFromContext(ctx))
}
