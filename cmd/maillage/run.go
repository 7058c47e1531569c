package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/models"
	"github.com/use-agent/maillage/report"
	"github.com/use-agent/maillage/runner"
)

type runFlags struct {
	keywords string
	table    bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Find linking opportunities for a keyword list",
		Long: `Run one site-restricted search per keyword, then check every ranking page
for a link to the top result with the keyword as anchor text.

Keywords are read one per line; blank lines are ignored. The opportunities
are written to the output file once every keyword has been processed.`,
		Example: `  maillage run --keywords motscles.txt --site webloom.fr
  maillage run --site webloom.fr --locale fr --delay 5s
  maillage run --site webloom.fr --format json --output out.json --table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.keywords, "keywords", "k", "motscles.txt", "keyword file, one keyword per line")
	cmd.Flags().BoolVar(&f.table, "table", false, "also print the opportunities as a table")
	cmd.Flags().String("site", "", "website the searches are restricted to")
	cmd.Flags().StringP("output", "o", "", "output file (default opportunites_maillage.<format>)")
	cmd.Flags().String("format", "", "output format: csv, json or markdown (default csv)")
	cmd.Flags().String("locale", "", "column labels: en or fr (default en)")
	cmd.Flags().Duration("delay", 0, "pause after every search (default 2s)")
	cmd.Flags().String("engine", "", "page fetch engine: http, browser or auto (default http)")
	cmd.Flags().String("scope", "", "anchors to scan: page or content (default page)")
	return cmd
}

func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	keywords, err := runner.LoadKeywords(f.keywords)
	if err != nil {
		return err
	}
	site := strings.TrimSpace(cfg.Search.Site)
	if site == "" {
		return models.NewError(models.ErrCodeInput, "no site configured: use --site or search.site", nil)
	}

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	onProgress := func(p runner.Progress) {
		fmt.Fprintf(out, "[%d/%d] %s (%d)\n", p.Index, p.Total, p.Keyword, p.Records)
	}
	r, err := svc.newRunner(site, a.logger, onProgress)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Processing %d keywords for %s\n", len(keywords), site)
	result, runErr := r.Run(ctx, keywords)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	colors := cfg.Output.Colors
	if f.table && len(result.Records) > 0 {
		labels, err := report.LabelsFor(cfg.Output.Locale)
		if err != nil {
			return err
		}
		if err := report.PrintTable(out, result.Records, labels, colors); err != nil {
			return err
		}
	}

	path := outputPath(cmd, cfg.Output)
	if len(result.Records) == 0 {
		fmt.Fprintln(out, "No linking opportunities found, nothing exported.")
	} else if err := report.WriteFile(path, result.Records, reportOptions(cfg.Output)); err != nil {
		a.logger.Error("export failed", "path", path, "code", models.CodeOf(err), "error", err)
		if !f.table {
			labels, _ := report.LabelsFor(cfg.Output.Locale)
			_ = report.PrintTable(out, result.Records, labels, colors)
		}
		return err
	} else {
		a.logger.Info("export written", "path", path, "records", len(result.Records))
	}

	printSummary(out, result, path, colors)
	if runErr != nil {
		fmt.Fprintln(out, "Run interrupted: results cover the keywords processed before the stop.")
	}
	return nil
}

// outputPath returns the export path. When --output was not given, the
// configured path takes the extension of the chosen format.
func outputPath(cmd *cobra.Command, out config.OutputConfig) string {
	path := out.Path
	if cmd.Flags().Changed("output") {
		return path
	}
	ext := report.Extension(out.Format)
	if filepath.Ext(path) == ext {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func reportOptions(out config.OutputConfig) report.Options {
	delim := ','
	if r := []rune(out.Delimiter); len(r) == 1 {
		delim = r[0]
	}
	return report.Options{
		Format:    out.Format,
		Locale:    out.Locale,
		Delimiter: delim,
		BOM:       out.BOM,
	}
}

func printSummary(w io.Writer, result *models.RunResult, path string, colors bool) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	if colors {
		green.EnableColor()
		yellow.EnableColor()
		red.EnableColor()
	} else {
		green.DisableColor()
		yellow.DisableColor()
		red.DisableColor()
	}

	st := result.Stats
	fmt.Fprintf(w, "\nKeywords processed: %d\n", st.Keywords)
	fmt.Fprintf(w, "Pages checked:      %d\n", st.CandidatesChecked)
	fmt.Fprintf(w, "Links to add:       %s\n", green.Sprint(st.AddLink))
	fmt.Fprintf(w, "Anchors to fix:     %s\n", yellow.Sprint(st.OptimizeAnchor))
	if st.SearchesFailed > 0 || st.ChecksFailed > 0 {
		fmt.Fprintf(w, "Failures:           %s\n",
			red.Sprintf("%d searches, %d pages", st.SearchesFailed, st.ChecksFailed))
	}
	if len(result.Records) > 0 {
		fmt.Fprintf(w, "Results saved to %s\n", path)
	}
}
