package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/services"
	"github.com/desertthunder/trainhub/internal/shared"
	"golang.org/x/time/rate"
)

// SyncOpts contains configuration for a content sync.
type SyncOpts struct {
	NumWorkers int     // Concurrent cache writers (default: 4, max: 10)
	RateLimit  float64 // CMS requests per second (default: 5)
}

// ContentEngine copies CMS content into the local cache.
type ContentEngine struct {
	cms    services.ContentService
	cache  ContentCache
	events events.Publisher
	logger *log.Logger
}

// NewContentEngine creates a [ContentEngine]. A nil publisher discards changes
// and a nil logger writes to stderr.
func NewContentEngine(cms services.ContentService, cache ContentCache, pub events.Publisher, logger *log.Logger) *ContentEngine {
	if pub == nil {
		pub = events.Discard{}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ContentEngine{cms: cms, cache: cache, events: pub, logger: logger}
}

// cacheDoc is one document queued for the cache writers.
type cacheDoc struct {
	kind models.Kind
	id   string
	slug string
	data any
}

type cacheResult struct {
	kind models.Kind
	err  error
}

type kindFetch struct {
	kind  models.Kind
	fetch func(ctx context.Context) ([]cacheDoc, error)
}

func (e *ContentEngine) fetchers() []kindFetch {
	return []kindFetch{
		{models.KindPost, func(ctx context.Context) ([]cacheDoc, error) {
			items, err := e.cms.Posts(ctx)
			docs := make([]cacheDoc, 0, len(items))
			for _, p := range items {
				docs = append(docs, cacheDoc{models.KindPost, p.ID, p.Slug, p})
			}
			return docs, err
		}},
		{models.KindResource, func(ctx context.Context) ([]cacheDoc, error) {
			items, err := e.cms.Resources(ctx)
			docs := make([]cacheDoc, 0, len(items))
			for _, r := range items {
				docs = append(docs, cacheDoc{models.KindResource, r.ID, r.Slug, r})
			}
			return docs, err
		}},
		{models.KindTraining, func(ctx context.Context) ([]cacheDoc, error) {
			items, err := e.cms.Trainings(ctx)
			docs := make([]cacheDoc, 0, len(items))
			for _, t := range items {
				docs = append(docs, cacheDoc{models.KindTraining, t.ID, t.Slug, t})
			}
			return docs, err
		}},
		{KindTag, func(ctx context.Context) ([]cacheDoc, error) {
			items, err := e.cms.Tags(ctx)
			docs := make([]cacheDoc, 0, len(items))
			for _, t := range items {
				docs = append(docs, cacheDoc{KindTag, t.ID, t.Slug, t})
			}
			return docs, err
		}},
	}
}

// Sync fetches every content kind from the CMS and replaces the cached copy.
//
// Fetches are throttled by a rate limiter; documents are written by a pool of
// workers. A kind that fails to fetch or write is recorded in the result and
// keeps its previous cached documents; the other kinds continue. Documents no
// longer in the CMS are pruned. When at least one kind synced, a "content"
// change is published.
func (e *ContentEngine) Sync(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOpts) (*SyncResult, error) {
	if e.cms == nil {
		return nil, fmt.Errorf("%w: CMS not configured", shared.ErrServiceUnavailable)
	}
	if e.cache == nil {
		return nil, fmt.Errorf("%w: content cache not configured", shared.ErrMissingConfig)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	start := time.Now()
	fetchers := e.fetchers()
	result := &SyncResult{
		Counts: make(map[models.Kind]int, len(fetchers)),
		Pruned: make(map[models.Kind]int64, len(fetchers)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan cacheDoc)
	results := make(chan cacheResult)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.cacheWorker(&wg, jobs, results)
	}

	fetched := make(map[models.Kind][]string, len(fetchers))
	var (
		fetchErrs []KindError
		mu        sync.Mutex
	)

	go func() {
		defer close(jobs)
		for i, f := range fetchers {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(progress, fetchKindUpdate(i+1, len(fetchers), f.kind))
			docs, err := f.fetch(ctx)
			if err != nil {
				sendProgress(progress, fetchFailedUpdate(i+1, len(fetchers), f.kind, err))
				mu.Lock()
				fetchErrs = append(fetchErrs, KindError{Kind: f.kind, Error: err})
				mu.Unlock()
				continue
			}

			ids := make([]string, 0, len(docs))
			for _, doc := range docs {
				ids = append(ids, doc.id)
			}
			mu.Lock()
			fetched[f.kind] = ids
			mu.Unlock()

			for _, doc := range docs {
				select {
				case jobs <- doc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	writeErrs := make(map[models.Kind]error)
	for res := range results {
		if res.err != nil {
			if _, ok := writeErrs[res.kind]; !ok {
				writeErrs[res.kind] = res.err
			}
			continue
		}
		result.Counts[res.kind]++
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("sync cancelled: %w", err)
	}

	result.Errors = append(result.Errors, fetchErrs...)
	synced := 0
	for i, f := range fetchers {
		ids, ok := fetched[f.kind]
		if !ok {
			continue
		}
		if err, failed := writeErrs[f.kind]; failed {
			result.Errors = append(result.Errors, KindError{Kind: f.kind, Error: err})
			continue
		}

		sendProgress(progress, cachedKindUpdate(i+1, len(fetchers), f.kind, len(ids)))
		removed, err := e.cache.Prune(f.kind, ids)
		if err != nil {
			result.Errors = append(result.Errors, KindError{Kind: f.kind, Error: err})
			continue
		}
		result.Pruned[f.kind] = removed
		if removed > 0 {
			sendProgress(progress, prunedUpdate(f.kind, removed))
		}
		synced++
	}

	for _, ke := range result.Errors {
		e.logger.Error("content sync failed", "kind", ke.Kind, "error", ke.Error)
	}

	result.Duration = time.Since(start)
	if synced > 0 {
		e.events.Publish(events.Change{Table: "content", Action: events.ActionUpdate})
	}

	if synced == 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, ke := range result.Errors {
			errs = append(errs, fmt.Errorf("%s: %w", ke.Kind, ke.Error))
		}
		return result, fmt.Errorf("sync failed: %w", errors.Join(errs...))
	}

	e.logger.Info("content synced", "counts", result.Counts, "duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// cacheWorker marshals and stores documents from the jobs channel.
func (e *ContentEngine) cacheWorker(wg *sync.WaitGroup, jobs <-chan cacheDoc, results chan<- cacheResult) {
	defer wg.Done()

	for doc := range jobs {
		data, err := shared.MarshalJSON(doc.data, false)
		if err == nil {
			err = e.cache.Put(doc.kind, doc.id, doc.slug, data)
		}
		results <- cacheResult{kind: doc.kind, err: err}
	}
}
