// Package runner drives a full pass over a keyword list: one search per
// keyword, the classifier over its results, then a polite pause before the
// next keyword.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/maillage/linkcheck"
	"github.com/use-agent/maillage/metrics"
	"github.com/use-agent/maillage/models"
)

// Searcher runs one site-restricted search.
type Searcher interface {
	Fetch(ctx context.Context, keyword string) models.SearchOutcome
	Site() string
}

// Detector classifies one keyword's ordered results.
type Detector interface {
	Detect(ctx context.Context, keyword string, results []string) linkcheck.Detection
}

// Progress is reported after every keyword.
type Progress struct {
	Index   int // 1-based
	Total   int
	Keyword string
	Records int // records emitted for this keyword
}

// Options tunes a Runner. The zero value is usable.
type Options struct {
	// Delay is the pause after every keyword, the last one included.
	Delay time.Duration

	// Logger receives the run events; slog.Default() when nil.
	Logger *slog.Logger

	// OnProgress, when set, is called after every keyword.
	OnProgress func(Progress)
}

// Runner processes keywords strictly one after another.
type Runner struct {
	searcher Searcher
	detector Detector
	opts     Options
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Runner.
func New(searcher Searcher, detector Detector, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		searcher: searcher,
		detector: detector,
		opts:     opts,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Run processes keywords in order and returns every record in keyword
// order. Search and page failures never stop the run. Cancelling ctx stops
// it: the keyword in progress is discarded, and the records of the
// keywords already finished are returned together with ctx.Err().
func (r *Runner) Run(ctx context.Context, keywords []string) (*models.RunResult, error) {
	start := time.Now()
	result := &models.RunResult{Site: r.searcher.Site(), Records: []models.OpportunityRecord{}}
	total := len(keywords)

	for i, keyword := range keywords {
		kwStart := time.Now()
		log := r.logger.With("keyword", keyword)
		log.Info("keyword started", "index", i+1, "total", total)

		records, ok := r.processKeyword(ctx, log, keyword, &result.Stats)
		if !ok {
			log.Warn("keyword interrupted, its results are discarded")
			return r.interrupted(result, start, ctx.Err())
		}
		result.Records = append(result.Records, records...)
		result.Stats.Keywords++
		metrics.ObserveKeyword(time.Since(kwStart))

		if r.opts.OnProgress != nil {
			r.opts.OnProgress(Progress{Index: i + 1, Total: total, Keyword: keyword, Records: len(records)})
		}

		if err := r.sleep(ctx, r.opts.Delay); err != nil {
			return r.interrupted(result, start, err)
		}
	}

	result.Stats.Duration = time.Since(start)
	r.logger.Info("run completed",
		"keywords", result.Stats.Keywords,
		"records", len(result.Records),
		"add_link", result.Stats.AddLink,
		"optimize_anchor", result.Stats.OptimizeAnchor,
		"searches_failed", result.Stats.SearchesFailed,
		"checks_failed", result.Stats.ChecksFailed,
		"duration", result.Stats.Duration,
	)
	metrics.RecordRun("completed")
	return result, nil
}

func (r *Runner) interrupted(result *models.RunResult, start time.Time, err error) (*models.RunResult, error) {
	result.Stats.Duration = time.Since(start)
	r.logger.Warn("run interrupted",
		"keywords_done", result.Stats.Keywords,
		"records", len(result.Records),
		"error", err,
	)
	metrics.RecordRun("cancelled")
	return result, err
}

// processKeyword searches one keyword and classifies its results. ok is
// false when ctx was done before the keyword was fully processed; nothing
// has been counted then.
func (r *Runner) processKeyword(ctx context.Context, log *slog.Logger, keyword string, stats *models.RunStats) (records []models.OpportunityRecord, ok bool) {
	outcome := r.searcher.Fetch(ctx, keyword)
	if ctx.Err() != nil {
		return nil, false
	}
	if !outcome.OK() {
		stats.SearchesFailed++
		metrics.RecordSearch(metrics.SearchFailed)
		log.Error("search failed", "query", outcome.Query, "code", models.CodeOf(outcome.Err), "error", outcome.Err)
		return nil, true
	}
	if len(outcome.URLs) == 0 {
		metrics.RecordSearch(metrics.SearchEmpty)
	} else {
		metrics.RecordSearch(metrics.SearchOK)
	}
	log.Info("search completed", "query", outcome.Query, "results", len(outcome.URLs))
	if len(outcome.URLs) > 0 {
		log.Debug("target page", "target", outcome.URLs[0])
	}

	d := r.detector.Detect(ctx, keyword, outcome.URLs)
	if d.Interrupted {
		return nil, false
	}
	for _, check := range d.Checks {
		stats.CandidatesChecked++
		o := check.Outcome
		switch {
		case o.Err != nil:
			stats.ChecksFailed++
			metrics.RecordCheck(metrics.CheckFailed)
			log.Warn("page check failed", "source", check.Candidate, "code", models.CodeOf(o.Err), "error", o.Err)
		case o.LinkExists && o.AnchorOptimized:
			stats.OptimizedLinks++
			metrics.RecordCheck(string(o.AnchorState()))
			log.Info("optimized link found", "source", check.Candidate, "target", d.Target, "anchor", o.AnchorText)
		default:
			metrics.RecordCheck(string(o.AnchorState()))
		}
	}

	for _, rec := range d.Records {
		metrics.RecordOpportunity(string(rec.Action))
		switch rec.Action {
		case models.ActionAddLink:
			stats.AddLink++
			log.Info("link opportunity", "source", rec.SourceURL, "target", rec.TargetURL, "check_failed", rec.CheckFailed)
		case models.ActionOptimizeAnchor:
			stats.OptimizeAnchor++
			log.Info("anchor optimization needed",
				"source", rec.SourceURL,
				"target", rec.TargetURL,
				"anchor", rec.AnchorText,
				"position", rec.LinkPosition,
			)
		}
	}
	return d.Records, true
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
