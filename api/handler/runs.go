package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/models"
	"github.com/use-agent/maillage/report"
	"github.com/use-agent/maillage/runner"
	"github.com/use-agent/maillage/webhook"
)

// RunnerFactory builds the runner for one API run restricted to site.
// onProgress must be passed through to the runner's options.
type RunnerFactory func(site string, onProgress func(runner.Progress)) (*runner.Runner, error)

// RunStore holds all queued, running and finished runs. Runs execute one at
// a time so that concurrent API clients never multiply the search rate.
type RunStore struct {
	mu   sync.Mutex
	jobs map[string]*models.RunJob
	ttl  time.Duration
	now  func() time.Time

	ctx  context.Context
	slot chan struct{}
}

// NewRunStore creates a store whose runs stop when ctx is done. Runs
// created more than ttl ago are evicted every five minutes.
func NewRunStore(ctx context.Context, ttl time.Duration) *RunStore {
	s := &RunStore{
		jobs: make(map[string]*models.RunJob),
		ttl:  ttl,
		now:  time.Now,
		ctx:  ctx,
		slot: make(chan struct{}, 1),
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Evict(); n > 0 {
					slog.Debug("evicted expired runs", "count", n)
				}
			}
		}
	}()
	return s
}

// Evict removes finished runs older than the TTL and returns how many.
func (s *RunStore) Evict() int {
	cutoff := s.now().Add(-s.ttl).Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.CreatedAt < cutoff && job.Finished() {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Active returns the number of queued or running runs.
func (s *RunStore) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if !job.Finished() {
			n++
		}
	}
	return n
}

func (s *RunStore) add(job *models.RunJob) {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
}

// snapshot returns a copy of the run safe to read without the lock.
func (s *RunStore) snapshot(id string) (models.RunJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.RunJob{}, false
	}
	cp := *job
	cp.Records = append([]models.OpportunityRecord(nil), job.Records...)
	return cp, true
}

func (s *RunStore) update(id string, fn func(*models.RunJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// PostRun returns a handler for POST /api/v1/runs.
func PostRun(store *RunStore, newRunner RunnerFactory, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRun(c, "invalid request: "+err.Error())
			return
		}

		keywords := make([]string, 0, len(req.Keywords))
		for _, kw := range req.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			badRun(c, "no keywords found")
			return
		}

		site := strings.TrimSpace(req.Site)
		if site == "" {
			site = cfg.Search.Site
		}
		if site == "" {
			badRun(c, "site is required: set it in the request or in search.site")
			return
		}
		locale := req.Locale
		if locale == "" {
			locale = cfg.Output.Locale
		}

		id := "run-" + uuid.NewString()
		r, err := newRunner(site, func(p runner.Progress) {
			store.update(id, func(job *models.RunJob) { job.Completed = p.Index })
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.RunResponse{
				Status: models.RunFailed,
				Error:  &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}

		store.add(&models.RunJob{
			ID:        id,
			Status:    models.RunQueued,
			Site:      site,
			Locale:    locale,
			Keywords:  keywords,
			Total:     len(keywords),
			Records:   []models.OpportunityRecord{},
			CreatedAt: store.now().Unix(),
		})

		go store.execute(id, r, keywords, cfg.Webhook)

		c.JSON(http.StatusOK, models.RunResponse{
			ID:     id,
			Status: models.RunQueued,
			Total:  len(keywords),
		})
	}
}

// execute waits for the run slot, then processes the run.
func (s *RunStore) execute(id string, r *runner.Runner, keywords []string, hook config.WebhookConfig) {
	select {
	case s.slot <- struct{}{}:
		defer func() { <-s.slot }()
	case <-s.ctx.Done():
		s.update(id, func(job *models.RunJob) {
			job.Status = models.RunCancelled
			job.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: "server shutting down"}
		})
		return
	}

	s.update(id, func(job *models.RunJob) { job.Status = models.RunProcessing })
	res, err := r.Run(s.ctx, keywords)

	var job models.RunJob
	s.update(id, func(j *models.RunJob) {
		j.Records = res.Records
		stats := res.Stats
		j.Stats = &stats
		switch {
		case err != nil:
			j.Status = models.RunCancelled
			j.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
		case stats.Keywords > 0 && stats.SearchesFailed == stats.Keywords:
			j.Status = models.RunFailed
			j.Error = &models.ErrorDetail{Code: models.ErrCodeSearch, Message: "every search failed"}
		default:
			j.Status = models.RunCompleted
		}
		job = *j
	})

	slog.Info("run finished",
		"id", id,
		"status", job.Status,
		"records", len(job.Records),
		"total", job.Total,
	)

	if hook.URL != "" {
		event := webhook.EventRunCompleted
		if job.Status != models.RunCompleted {
			event = webhook.EventRunFailed
		}
		webhook.DeliverAsync(hook.URL, hook.Secret, webhook.NewEvent(event, id, statusResponse(job)), nil)
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(store *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.snapshot(c.Param("id"))
		if !ok {
			runNotFound(c)
			return
		}
		c.JSON(http.StatusOK, statusResponse(job))
	}
}

// ExportRun returns a handler for GET /api/v1/runs/:id/export?format=.
// Only completed or cancelled runs can be exported.
func ExportRun(store *RunStore, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.snapshot(c.Param("id"))
		if !ok {
			runNotFound(c)
			return
		}
		if job.Status != models.RunCompleted && job.Status != models.RunCancelled {
			c.JSON(http.StatusConflict, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: fmt.Sprintf("run is %s", job.Status),
				},
			})
			return
		}

		format := c.DefaultQuery("format", cfg.Output.Format)
		opts := report.Options{
			Format:    format,
			Locale:    job.Locale,
			Delimiter: []rune(cfg.Output.Delimiter)[0],
			BOM:       cfg.Output.BOM,
		}
		var buf bytes.Buffer
		if err := report.Write(&buf, job.Records, opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		filename := "opportunites_maillage-" + job.ID + report.Extension(format)
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, report.ContentType(format), buf.Bytes())
	}
}

func statusResponse(job models.RunJob) models.RunStatusResponse {
	return models.RunStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Site:      job.Site,
		Completed: job.Completed,
		Total:     job.Total,
		Records:   job.Records,
		Stats:     job.Stats,
		Error:     job.Error,
	}
}

func badRun(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.RunResponse{
		Status: models.RunFailed,
		Error:  &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg},
	})
}

func runNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": models.ErrorDetail{
			Code:    models.ErrCodeNotFound,
			Message: "run not found",
		},
	})
}
