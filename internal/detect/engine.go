// Package detect implements the drift detection engine: it fans out one task
// per registered source, drives each through fetch, extraction, and baseline
// comparison, and collects exactly one terminal outcome per source under a
// bounded run deadline.
package detect

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/biodwh/driftwatch/internal/baseline"
	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
	"github.com/biodwh/driftwatch/internal/report"
	"github.com/biodwh/driftwatch/internal/sources"
)

// runDeadlineDetail is the errorDetail for sources abandoned at the global
// run deadline
const runDeadlineDetail = "run deadline exceeded"

// versionPlaceholder is substituted with the extracted signature in
// downloadable file URL templates
const versionPlaceholder = "{version}"

// Options holds the explicit engine settings. Runs are reproducible: nothing
// is read from ambient process state.
type Options struct {
	// Concurrency bounds parallel source checks
	Concurrency int

	// FetchTimeout bounds a single fetch attempt
	FetchTimeout time.Duration

	// MaxAttempts is the fetch attempt budget per source, first try included
	MaxAttempts int

	// BackoffInitial is the initial retry backoff interval
	BackoffInitial time.Duration

	// BackoffMax caps the retry backoff interval
	BackoffMax time.Duration

	// RunDeadline bounds the whole run; zero means no deadline
	RunDeadline time.Duration

	// Logger receives per-source progress; nil means slog.Default
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Concurrency <= 0 {
		out.Concurrency = config.DefaultConcurrency
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = config.DefaultFetchTimeout
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = config.DefaultMaxAttempts
	}
	if out.BackoffInitial <= 0 {
		out.BackoffInitial = config.DefaultBackoffInitial
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = config.DefaultBackoffMax
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// sourceBudget is the total time budget for one source: every attempt plus
// the worst-case backoff between attempts.
func (o *Options) sourceBudget() time.Duration {
	attempts := time.Duration(o.MaxAttempts)
	return attempts*o.FetchTimeout + (attempts-1)*o.BackoffMax
}

// Engine checks all registered sources against the baseline store
type Engine struct {
	opts  Options
	store baseline.Store

	// factories are swapped in tests
	newFetcher   func(transport fetch.Transport) (fetch.Fetcher, error)
	newExtractor func(kind string) (sources.Extractor, error)
}

// New creates an engine over the given baseline store
func New(opts Options, store baseline.Store) *Engine {
	return &Engine{
		opts:         opts.withDefaults(),
		store:        store,
		newFetcher:   fetch.New,
		newExtractor: sources.NewExtractor,
	}
}

// Run checks every registered source and returns the run report. Per-source
// failures never abort the run; an error return means the baseline store
// itself could not be loaded or persisted. The report always contains exactly
// one outcome per registered source, in registration order.
func (e *Engine) Run(ctx context.Context, defs []config.SourceConfig) (*report.RunReport, error) {
	base, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if e.opts.RunDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.RunDeadline)
		defer cancel()
	}

	builder := report.NewBuilder(len(defs))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, def := range defs {
		g.Go(func() error {
			outcome := e.checkWithDeadline(runCtx, &def, base)
			builder.Collect(i, outcome)

			// Baselines are only ever advanced on confirmed observations,
			// never on Unreachable or ExtractionFailed noise. Committing
			// here, after the abandonment race is settled, guarantees an
			// abandoned task cannot move the baseline.
			if outcome.Status == report.StatusUnchanged || outcome.Status == report.StatusChanged {
				e.store.Commit(def.ID, outcome.CurrentSignature)
			}

			e.opts.Logger.Info("source checked",
				"source", def.ID,
				"status", string(outcome.Status),
				"durationMs", outcome.DurationMs,
				"attempts", outcome.Attempts)
			return nil
		})
	}
	// Tasks never return errors; Wait is the synchronization barrier.
	_ = g.Wait()

	rep := builder.Build()

	if err := e.store.Persist(ctx); err != nil {
		return rep, err
	}
	return rep, nil
}

// checkWithDeadline runs one source check, force-classifying it Unreachable
// if the run deadline expires first. The abandoned task keeps running in the
// background until its own context fires, but its outcome is discarded and it
// can no longer block the run.
func (e *Engine) checkWithDeadline(
	ctx context.Context, def *config.SourceConfig, base baseline.Baseline,
) report.Outcome {
	started := time.Now()

	if ctx.Err() != nil {
		return report.Outcome{
			SourceID:    def.ID,
			Status:      report.StatusUnreachable,
			ErrorDetail: runDeadlineDetail,
		}
	}

	done := make(chan report.Outcome, 1)
	go func() {
		done <- e.checkSource(ctx, def, base)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
		return report.Outcome{
			SourceID:    def.ID,
			Status:      report.StatusUnreachable,
			ErrorDetail: runDeadlineDetail,
			DurationMs:  time.Since(started).Milliseconds(),
		}
	}
}

// checkSource drives one source through its states:
// fetching -> extracting -> comparing -> terminal.
func (e *Engine) checkSource(
	ctx context.Context, def *config.SourceConfig, base baseline.Baseline,
) report.Outcome {
	started := time.Now()
	outcome := report.Outcome{SourceID: def.ID}
	finish := func() report.Outcome {
		outcome.DurationMs = time.Since(started).Milliseconds()
		return outcome
	}

	fetcher, err := e.newFetcher(fetch.Transport(def.EffectiveTransport()))
	if err != nil {
		outcome.Status = report.StatusUnreachable
		outcome.ErrorDetail = err.Error()
		return finish()
	}

	art, attempts, err := e.fetchWithRetry(ctx, fetcher, def.Endpoint)
	outcome.Attempts = attempts
	if err != nil {
		outcome.Status = report.StatusUnreachable
		outcome.ErrorDetail = err.Error()
		return finish()
	}

	// A fetched but empty body carries no version signal; that is an
	// extraction failure, not a fetch failure. Header-derived sources are
	// exempt: their signal lives in the response metadata.
	if len(art.Body) == 0 && def.Kind != config.KindHeader {
		outcome.Status = report.StatusExtractionFailed
		outcome.ErrorDetail = "empty artifact body"
		return finish()
	}

	extractor, err := e.newExtractor(def.Kind)
	if err != nil {
		outcome.Status = report.StatusExtractionFailed
		outcome.ErrorDetail = err.Error()
		return finish()
	}

	signature, err := extractor.Extract(art, &def.Extraction)
	if err != nil {
		// Deterministic for this artifact; reported immediately, no retry.
		outcome.Status = report.StatusExtractionFailed
		outcome.ErrorDetail = err.Error()
		return finish()
	}

	outcome.CurrentSignature = signature
	outcome.Files = renderFiles(def.Files, signature)

	prev, known := base[def.ID]
	switch {
	case !known:
		// First observation establishes the baseline instead of flagging
		// false drift.
		outcome.Status = report.StatusUnchanged
	case prev.Signature == signature:
		outcome.Status = report.StatusUnchanged
		outcome.PreviousSignature = prev.Signature
	default:
		outcome.Status = report.StatusChanged
		outcome.PreviousSignature = prev.Signature
	}

	return finish()
}

// fetchWithRetry retries transient fetch failures with exponential backoff
// and jitter, bounded by the attempt budget and the per-source time budget.
// Non-2xx application errors fail immediately.
func (e *Engine) fetchWithRetry(
	ctx context.Context, fetcher fetch.Fetcher, endpoint string,
) (*fetch.Artifact, int, error) {
	attempts := 0
	operation := func() (*fetch.Artifact, error) {
		attempts++
		art, err := fetcher.Fetch(ctx, fetch.Request{
			Endpoint: endpoint,
			Timeout:  e.opts.FetchTimeout,
		})
		if err != nil {
			var unreachable *fetch.UnreachableError
			if errors.As(err, &unreachable) && !unreachable.Transient() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return art, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.opts.BackoffInitial
	expo.MaxInterval = e.opts.BackoffMax

	art, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(e.opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(e.opts.sourceBudget()),
	)
	return art, attempts, err
}

// renderFiles substitutes the extracted signature into the download URL
// templates of a source.
func renderFiles(templates map[string]string, signature string) map[string]string {
	if len(templates) == 0 {
		return nil
	}
	out := make(map[string]string, len(templates))
	for name, tmpl := range templates {
		out[name] = strings.ReplaceAll(tmpl, versionPlaceholder, signature)
	}
	return out
}
