package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/use-agent/maillage/linkcheck"
	"github.com/use-agent/maillage/models"
)

type checkFlags struct {
	keyword   string
	target    string
	candidate string
	json      bool
}

func newCheckCmd(a *app) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check one page for a link to another",
		Long: `Fetch the candidate page and look for a link to the target page, then
report whether its anchor text is the keyword. No search is run.`,
		Example: `  maillage check --keyword "chaussures rouges" \
    --target https://webloom.fr/produits/chaussures-rouges \
    --candidate https://webloom.fr/blog/article-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.keyword, "keyword", "", "keyword expected as anchor text")
	cmd.Flags().StringVar(&f.target, "target", "", "page that should be linked to")
	cmd.Flags().StringVar(&f.candidate, "candidate", "", "page to inspect")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
	cmd.Flags().String("engine", "", "page fetch engine: http, browser or auto (default http)")
	cmd.Flags().String("scope", "", "anchors to scan: page or content (default page)")
	_ = cmd.MarkFlagRequired("keyword")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func (a *app) check(cmd *cobra.Command, f *checkFlags) error {
	svc, err := newServices(a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := svc.classifier.Classify(cmd.Context(), f.keyword, f.target, f.candidate)
	resp := models.CheckResponse{
		Success:         out.Err == nil,
		LinkExists:      out.LinkExists,
		AnchorOptimized: out.AnchorOptimized,
		AnchorState:     out.AnchorState(),
		AnchorText:      out.AnchorText,
		Href:            out.Href,
		Position:        out.Position,
	}
	if rec, ok := linkcheck.Record(f.keyword, f.target, f.candidate, out); ok {
		resp.Action = rec.Action
	}
	if out.Err != nil {
		resp.Error = &models.ErrorDetail{Code: models.CodeOf(out.Err), Message: out.Err.Error()}
	}

	w := cmd.OutOrStdout()
	if f.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		printCheck(w, resp, a.cfg.Output.Colors)
	}

	if out.Err != nil {
		return out.Err
	}
	return nil
}

func printCheck(w io.Writer, resp models.CheckResponse, colors bool) {
	status := color.New(color.FgGreen)
	if resp.Action != "" {
		status = color.New(color.FgYellow)
	}
	if !resp.Success {
		status = color.New(color.FgRed)
	}
	if colors {
		status.EnableColor()
	} else {
		status.DisableColor()
	}

	switch {
	case !resp.Success:
		fmt.Fprintln(w, status.Sprint("Page could not be checked, counted as no link."))
	case !resp.LinkExists:
		fmt.Fprintln(w, status.Sprint("No link to the target page."))
	case resp.AnchorOptimized:
		fmt.Fprintln(w, status.Sprint("Link found with the keyword as anchor text."))
	default:
		fmt.Fprintln(w, status.Sprint("Link found, anchor text differs from the keyword."))
	}
	if resp.LinkExists {
		fmt.Fprintf(w, "  anchor:   %q\n", resp.AnchorText)
		fmt.Fprintf(w, "  href:     %s\n", resp.Href)
		fmt.Fprintf(w, "  position: %s\n", resp.Position)
	}
	if resp.Action != "" {
		fmt.Fprintf(w, "  action:   %s\n", resp.Action)
	}
}
