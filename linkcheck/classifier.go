// Package linkcheck decides, for each ranking page of a keyword, whether it
// should link to the keyword's top-ranked page or fix the anchor text of
// the link it already has.
package linkcheck

import (
	"context"
	"time"

	"github.com/use-agent/maillage/cache"
	"github.com/use-agent/maillage/engine"
	"github.com/use-agent/maillage/models"
)

// Check is one inspected candidate and what was found on it.
type Check struct {
	Candidate string
	Outcome   models.LinkCheckOutcome
}

// Detection is the full result of classifying one keyword's results.
type Detection struct {
	Keyword string
	Target  string
	Records []models.OpportunityRecord
	Checks  []Check

	// Interrupted is set when ctx was done before every candidate was
	// checked. Records and Checks then hold only the candidates checked
	// before that.
	Interrupted bool
}

// Classifier inspects candidate pages. It holds no per-run state and never
// logs; callers observe its results through Detection.
type Classifier struct {
	engine  engine.Engine
	pages   *cache.Pages
	timeout time.Duration
	scope   Scope
	headers map[string]string
}

// New creates a Classifier fetching pages through eng. pages may be nil.
// timeout bounds every page fetch.
func New(eng engine.Engine, pages *cache.Pages, timeout time.Duration, scope Scope) *Classifier {
	if scope == "" {
		scope = ScopePage
	}
	return &Classifier{engine: eng, pages: pages, timeout: timeout, scope: scope}
}

// WithHeaders sets request headers sent with every page fetch, such as
// Accept-Language.
func (c *Classifier) WithHeaders(headers map[string]string) *Classifier {
	c.headers = headers
	return c
}

// Classify fetches candidateURL and looks for a link to targetURL. Fetch and
// parse failures yield an outcome with no link and Err set.
func (c *Classifier) Classify(ctx context.Context, keyword, targetURL, candidateURL string) models.LinkCheckOutcome {
	markup, err := c.fetch(ctx, candidateURL)
	if err != nil {
		return models.LinkCheckOutcome{Err: err}
	}

	out, err := MatchAnchor(narrow(markup, candidateURL, c.scope), candidateURL, targetURL, keyword)
	if err != nil {
		return models.LinkCheckOutcome{Err: models.NewError(models.ErrCodeParse, "could not inspect page", err)}
	}
	return out
}

// DetectOpportunities returns the records for one keyword's ordered results.
func (c *Classifier) DetectOpportunities(ctx context.Context, keyword string, results []string) []models.OpportunityRecord {
	return c.Detect(ctx, keyword, results).Records
}

// Detect treats results[0] as the target page and classifies every other
// result against it, in order. Fewer than two results produce nothing.
//
// A failed check counts as a missing link, except when ctx itself is done:
// the check is then dropped, the remaining candidates are skipped and the
// detection is marked Interrupted.
func (c *Classifier) Detect(ctx context.Context, keyword string, results []string) Detection {
	d := Detection{Keyword: keyword}
	if len(results) == 0 {
		return d
	}
	d.Target = results[0]

	for _, candidate := range results[1:] {
		if ctx.Err() != nil {
			d.Interrupted = true
			break
		}
		outcome := c.Classify(ctx, keyword, d.Target, candidate)
		if outcome.Err != nil && ctx.Err() != nil {
			d.Interrupted = true
			break
		}
		d.Checks = append(d.Checks, Check{Candidate: candidate, Outcome: outcome})
		if rec, ok := Record(keyword, d.Target, candidate, outcome); ok {
			d.Records = append(d.Records, rec)
		}
	}
	return d
}

// Record turns an outcome into an opportunity record. ok is false when the
// link exists with an optimized anchor: nothing to do.
func Record(keyword, targetURL, candidateURL string, outcome models.LinkCheckOutcome) (rec models.OpportunityRecord, ok bool) {
	rec = models.OpportunityRecord{
		Keyword:   keyword,
		SourceURL: candidateURL,
		TargetURL: targetURL,
	}
	switch {
	case !outcome.LinkExists:
		rec.Action = models.ActionAddLink
		rec.AnchorState = models.AnchorNotApplicable
		rec.CheckFailed = outcome.Err != nil
	case !outcome.AnchorOptimized:
		rec.Action = models.ActionOptimizeAnchor
		rec.AnchorState = models.AnchorNotOptimized
		rec.AnchorText = outcome.AnchorText
		rec.LinkPosition = outcome.Position
	default:
		return models.OpportunityRecord{}, false
	}
	return rec, true
}

// fetch returns the candidate page body, from cache when possible.
func (c *Classifier) fetch(ctx context.Context, pageURL string) (string, error) {
	if p, ok := c.pages.Get(pageURL); ok {
		return p.HTML, nil
	}

	res, err := c.engine.Fetch(ctx, &engine.FetchRequest{URL: pageURL, Headers: c.headers, Timeout: c.timeout})
	if err != nil {
		return "", models.NewError(models.ErrCodeFetch, "could not fetch page", err)
	}
	c.pages.Set(pageURL, cache.Page{HTML: res.HTML, FinalURL: res.FinalURL})
	return res.HTML, nil
}
