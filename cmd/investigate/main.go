// Command investigate runs OSINT investigations from the terminal and
// manages the local evidence cache.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/config"
	"github.com/taljindergill78/FSE570/internal/pipeline"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries the flags shared by every command.
type app struct {
	configPath string
	dataRoot   string
	verbose    bool
}

func (a *app) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	if a.dataRoot != "" {
		cfg.DataRoot = a.dataRoot
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	} else if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	cfg.Logging.Encoding = "console"
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (a *app) service() (*pipeline.Service, *zap.Logger, error) {
	cfg, logger, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	svc, err := pipeline.Build(cfg, pipeline.BuildOptions{}, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, logger, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "investigate",
		Short: "OSINT multi-agent due-diligence investigations",
		Long:  "investigate resolves a free-text query to a registered entity, dispatches\nspecialist agents over public sources and reports the findings.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      version,
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default $OSINT_CONFIG or ./osint.yaml)")
	f.StringVar(&a.dataRoot, "data-root", "", "override data_root")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(a),
		newEntitiesCmd(a),
		newPullCmd(a),
		newBuildEvidenceCmd(a),
		newReportCmd(a),
	)
	return root
}

func execute(args []string, out, errOut io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.Execute()
}

func main() {
	// A missing .env is normal; the environment is used as is.
	_ = godotenv.Load()

	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
