package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/maillage/models"
	"github.com/use-agent/maillage/report"
)

// pollInterval is the pause between two run status requests.
var pollInterval = 2 * time.Second

func main() {
	apiURL := os.Getenv("MAILLAGE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("MAILLAGE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "MAILLAGE_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(newClient(apiURL, apiKey))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"maillage",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	findTool := mcp.NewTool("find_link_opportunities",
		mcp.WithDescription("For each keyword, search the site, take the top-ranked page as the page to promote, and list the other ranking pages that should link to it or fix the anchor text of their existing link. Keywords are processed one at a time with a pause between searches, so large lists take a while."),
		mcp.WithArray("keywords",
			mcp.Required(),
			mcp.Description("Keywords to analyse, in order"),
		),
		mcp.WithString("site",
			mcp.Description("Website the searches are restricted to (e.g. 'webloom.fr'); defaults to the server's configured site"),
		),
		mcp.WithString("locale",
			mcp.Description("Column labels of the returned table: 'en' (default) or 'fr'"),
			mcp.Enum("en", "fr"),
		),
	)
	s.AddTool(findTool, handleFindOpportunities(c))

	checkTool := mcp.NewTool("check_link",
		mcp.WithDescription("Check whether one page links to another and whether the link's anchor text is the keyword. No search is run."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword expected as anchor text"),
		),
		mcp.WithString("target_url",
			mcp.Required(),
			mcp.Description("Page that should be linked to"),
		),
		mcp.WithString("candidate_url",
			mcp.Required(),
			mcp.Description("Page to inspect"),
		),
	)
	s.AddTool(checkTool, handleCheckLink(c))

	return s
}

// client calls the maillage HTTP API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// do sends a request and decodes the JSON response into out, whatever the
// status code: API errors carry their detail in the body.
func (c *client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

// waitRun polls a run until it reaches a terminal status or ctx is done.
func (c *client) waitRun(ctx context.Context, id string) (*models.RunStatusResponse, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var st models.RunStatusResponse
			if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil, &st); err != nil {
				return nil, err
			}
			if st.Error != nil && st.Status == "" {
				return nil, fmt.Errorf("[%s] %s", st.Error.Code, st.Error.Message)
			}
			switch st.Status {
			case models.RunQueued, models.RunProcessing:
				continue
			}
			return &st, nil
		}
	}
}

func handleFindOpportunities(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keywords, err := request.RequireStringSlice("keywords")
		if err != nil || len(keywords) == 0 {
			return mcp.NewToolResultError("keywords is required and must be a non-empty array of strings"), nil
		}
		locale := request.GetString("locale", "")

		payload := models.RunRequest{
			Keywords: keywords,
			Site:     request.GetString("site", ""),
			Locale:   locale,
		}
		var created models.RunResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/runs", payload, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}
		if created.ID == "" {
			return mcp.NewToolResultError(errorText("run creation failed", created.Error)), nil
		}

		st, err := c.waitRun(ctx, created.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run %s failed: %v", created.ID, err)), nil
		}
		if st.Status == models.RunFailed {
			return mcp.NewToolResultError(errorText("run failed", st.Error)), nil
		}
		return mcp.NewToolResultText(formatRun(st, locale)), nil
	}
}

func handleCheckLink(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req models.CheckRequest
		var err error
		if req.Keyword, err = request.RequireString("keyword"); err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}
		if req.TargetURL, err = request.RequireString("target_url"); err != nil {
			return mcp.NewToolResultError("target_url is required"), nil
		}
		if req.CandidateURL, err = request.RequireString("candidate_url"); err != nil {
			return mcp.NewToolResultError("candidate_url is required"), nil
		}

		var resp models.CheckResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/check", req, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("check request failed: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("check failed", resp.Error)), nil
		}
		return mcp.NewToolResultText(formatCheck(resp)), nil
	}
}

func errorText(fallback string, detail *models.ErrorDetail) string {
	if detail == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", detail.Code, detail.Message)
}

// formatRun renders the run summary followed by its records as a Markdown
// table.
func formatRun(st *models.RunStatusResponse, locale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s) on %s: %d/%d keywords\n", st.ID, st.Status, st.Site, st.Completed, st.Total)
	if s := st.Stats; s != nil {
		fmt.Fprintf(&b, "Links to add: %d, anchors to fix: %d, failed searches: %d, unreachable pages: %d\n",
			s.AddLink, s.OptimizeAnchor, s.SearchesFailed, s.ChecksFailed)
	}
	if len(st.Records) == 0 {
		b.WriteString("\nNo linking opportunities found.")
		return b.String()
	}

	b.WriteString("\n")
	if err := report.Write(&b, st.Records, report.Options{Format: report.FormatMarkdown, Locale: locale}); err != nil {
		fmt.Fprintf(&b, "could not render records: %v", err)
	}
	return b.String()
}

func formatCheck(resp models.CheckResponse) string {
	var b strings.Builder
	switch {
	case !resp.LinkExists:
		b.WriteString("No link to the target page.\n")
	case resp.AnchorOptimized:
		b.WriteString("Link found with the keyword as anchor text.\n")
	default:
		b.WriteString("Link found, anchor text differs from the keyword.\n")
	}
	if resp.LinkExists {
		fmt.Fprintf(&b, "Anchor: %q\nHref: %s\nPosition: %s\n", resp.AnchorText, resp.Href, resp.Position)
	}
	if resp.Action != "" {
		fmt.Fprintf(&b, "Action: %s\n", resp.Action)
	}
	return b.String()
}
