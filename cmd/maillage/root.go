package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/use-agent/maillage/config"
)

// flagKeys maps command-line flags onto configuration keys. A flag only
// overrides the configuration when it is set explicitly.
var flagKeys = map[string]string{
	"site":   "search.site",
	"delay":  "search.delay",
	"engine": "fetch.engine",
	"scope":  "linkcheck.scope",
	"output": "output.path",
	"format": "output.format",
	"locale": "output.locale",
	"host":   "server.host",
	"port":   "server.port",
}

// app is the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	verbose bool
	noColor bool

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

// newRootCmd builds the full command tree.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "maillage",
		Short: "Internal linking opportunity finder",
		Long: `maillage finds internal linking opportunities on a website.

For every keyword it runs a site-restricted search, treats the top result as
the page to promote and checks whether every other ranking page links to it
with the keyword as anchor text.

Example usage:
  maillage run --keywords motscles.txt --site webloom.fr
  maillage run --site webloom.fr --format markdown --table
  maillage check --keyword "chaussures rouges" --target URL --candidate URL
  maillage serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./maillage.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// initConfig loads the configuration with the explicitly set flags of cmd
// taking precedence, then sets up logging.
func (a *app) initConfig(cmd *cobra.Command) error {
	v := viper.New()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("binding flags: %w", bindErr)
	}

	cfg, err := config.LoadWith(v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.noColor {
		cfg.Output.Colors = false
	}
	a.cfg = cfg

	logger, closer, err := newLogger(cfg.Log, a.verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	a.logCloser = closer
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		"site", cfg.Search.Site,
		"engine", cfg.Fetch.Engine,
		"delay", cfg.Search.Delay,
		"format", cfg.Output.Format,
	)
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
