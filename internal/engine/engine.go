package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"econharvest/internal/model"
	"econharvest/internal/providers"
	"econharvest/internal/registry"
	"econharvest/internal/transport"
	"econharvest/internal/validate"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
	defaultConcurrency    = 4

	maxDropSamples = 5
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// jobState tracks where a job is in its lifecycle. Transitions only move
// forward: pending, request_built, then sent, bouncing through
// retry_scheduled while attempts remain, and settling on succeeded or
// failed.
type jobState string

const (
	statePending        jobState = "pending"
	stateRequestBuilt   jobState = "request_built"
	stateSent           jobState = "sent"
	stateRetryScheduled jobState = "retry_scheduled"
	stateSucceeded      jobState = "succeeded"
	stateFailed         jobState = "failed"
)

type RateLimit struct {
	PerSec float64
	Burst  int
}

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Concurrency    int
	RateLimits     map[string]RateLimit
}

type Sender interface {
	Send(ctx context.Context, request *transport.Request) ([]byte, error)
}

var _ Sender = (*transport.Client)(nil)

type Engine struct {
	config   Config
	client   Sender
	keys     *registry.KeyResolver
	logger   *zap.Logger
	limiters map[string]*rate.Limiter
}

func New(config Config, client Sender, keys *registry.KeyResolver, logger *zap.Logger) *Engine {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaultInitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaultMaxBackoff
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if client == nil {
		client = transport.New(transport.Config{})
	}
	if keys == nil {
		keys = registry.NewKeyResolver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiters := make(map[string]*rate.Limiter, len(config.RateLimits))
	for name, limit := range config.RateLimits {
		if limit.PerSec <= 0 {
			continue
		}
		burst := limit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiters[strings.ToUpper(name)] = rate.NewLimiter(rate.Limit(limit.PerSec), burst)
	}

	return &Engine{config: config, client: client, keys: keys, logger: logger, limiters: limiters}
}

type Job struct {
	Provider registry.ProviderSpec
	Dataset  registry.DatasetSpec
}

type JobResult struct {
	Provider     string
	Dataset      string
	Status       Status
	Attempts     int
	Observations []model.Observation
	Raw          []model.RawObservation
	Dropped      int
	DropSamples  []validate.FieldError
	Err          error
}

type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []JobResult
}

func (s *RunSummary) Succeeded() int {
	count := 0
	for _, result := range s.Results {
		if result.Status == StatusSucceeded {
			count++
		}
	}
	return count
}

func (s *RunSummary) Failed() int {
	count := 0
	for _, result := range s.Results {
		if result.Status == StatusFailed {
			count++
		}
	}
	return count
}

func (s *RunSummary) ObservationCount() int {
	count := 0
	for _, result := range s.Results {
		count += len(result.Observations)
	}
	return count
}

func (s *RunSummary) DroppedCount() int {
	count := 0
	for _, result := range s.Results {
		count += result.Dropped
	}
	return count
}

func (s *RunSummary) AllObservations() []model.Observation {
	all := make([]model.Observation, 0, s.ObservationCount())
	for _, result := range s.Results {
		all = append(all, result.Observations...)
	}
	return all
}

// Jobs flattens the registry into (provider, dataset) pairs in a stable
// order, so runs and summaries line up between invocations.
func Jobs(reg *registry.Registry) []Job {
	var jobs []Job
	for _, providerName := range reg.ProviderNames() {
		provider := reg.Providers[providerName]
		for _, datasetName := range provider.DatasetNames() {
			jobs = append(jobs, Job{Provider: provider, Dataset: provider.Datasets[datasetName]})
		}
	}
	return jobs
}

// Run pulls every dataset in the registry. Jobs run in parallel under the
// concurrency cap, and a failing dataset never stops its siblings: each
// job folds its own outcome into the summary.
func (e *Engine) Run(ctx context.Context, reg *registry.Registry) (*RunSummary, error) {
	if reg == nil || len(reg.Providers) == 0 {
		return nil, &registry.ConfigError{Reason: "no providers defined"}
	}
	if err := providers.CheckRegistry(reg); err != nil {
		return nil, err
	}

	jobs := Jobs(reg)
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]JobResult, len(jobs)),
	}

	e.logger.Info("ingestion run starting",
		zap.String("run_id", summary.RunID),
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", e.config.Concurrency),
	)

	// Deliberately not errgroup.WithContext: a failed job reports its
	// result instead of cancelling its siblings.
	group := new(errgroup.Group)
	group.SetLimit(e.config.Concurrency)
	for i, job := range jobs {
		group.Go(func() error {
			summary.Results[i] = e.runJob(ctx, job)
			return nil
		})
	}
	_ = group.Wait()

	summary.FinishedAt = time.Now().UTC()
	e.logger.Info("ingestion run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("failed", summary.Failed()),
		zap.Int("observations", summary.ObservationCount()),
		zap.Int("dropped", summary.DroppedCount()),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (e *Engine) runJob(ctx context.Context, job Job) JobResult {
	result := JobResult{Provider: job.Provider.Name, Dataset: job.Dataset.Name}
	log := e.logger.With(zap.String("provider", job.Provider.Name), zap.String("dataset", job.Dataset.Name))

	state := statePending
	advance := func(next jobState) {
		log.Debug("job state", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}
	fail := func(err error) JobResult {
		advance(stateFailed)
		result.Status = StatusFailed
		result.Err = err
		log.Error("job failed", zap.Int("attempts", result.Attempts), zap.Error(err))
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	adapter, err := providers.ForProvider(job.Provider.Name)
	if err != nil {
		return fail(err)
	}

	apiKey, err := e.keys.Resolve(job.Provider.APIKeyEnvVar)
	if err != nil {
		return fail(err)
	}

	request, err := providers.BuildRequest(job.Provider, job.Dataset, apiKey)
	if err != nil {
		return fail(err)
	}
	advance(stateRequestBuilt)

	body, attempts, err := e.send(ctx, job.Provider.Name, request, log, advance)
	result.Attempts = attempts
	if err != nil {
		return fail(err)
	}

	rows, err := adapter.Extract(body, job.Dataset)
	if err != nil {
		var parseErr *providers.ParseError
		if errors.As(err, &parseErr) {
			log.Error("response shape unexpected",
				zap.String("path", parseErr.Path),
				zap.String("body", parseErr.Excerpt),
			)
		}
		return fail(err)
	}

	for _, raw := range rows {
		if err := validate.Record(raw, job.Dataset.RequiredFields); err != nil {
			result.Dropped++
			result.sampleDrop(err)
			continue
		}
		obs, err := adapter.Normalize(raw, job.Dataset)
		if err != nil {
			result.Dropped++
			result.sampleDrop(err)
			continue
		}
		result.Observations = append(result.Observations, obs)
		result.Raw = append(result.Raw, raw)
	}

	if result.Dropped > 0 {
		log.Warn("records dropped by validation",
			zap.Int("dropped", result.Dropped),
			zap.Int("kept", len(result.Observations)),
			zap.String("first", result.DropSamples[0].Error()),
		)
	}

	advance(stateSucceeded)
	result.Status = StatusSucceeded
	log.Info("job succeeded",
		zap.Int("attempts", result.Attempts),
		zap.Int("observations", len(result.Observations)),
		zap.Int("dropped", result.Dropped),
	)
	return result
}

func (r *JobResult) sampleDrop(err error) {
	if len(r.DropSamples) >= maxDropSamples {
		return
	}
	var fieldErr validate.FieldError
	if errors.As(err, &fieldErr) {
		r.DropSamples = append(r.DropSamples, fieldErr)
		return
	}
	r.DropSamples = append(r.DropSamples, validate.FieldError{Field: "record", Reason: err.Error()})
}

// send issues the request with bounded retries. Only errors the transport
// marks retryable get another attempt; a Retry-After hint from the server
// overrides the exponential schedule for that wait.
func (e *Engine) send(ctx context.Context, providerName string, request *transport.Request, log *zap.Logger, advance func(jobState)) ([]byte, int, error) {
	attempts := 0
	operation := func() ([]byte, error) {
		if limiter := e.limiters[strings.ToUpper(providerName)]; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		attempts++
		advance(stateSent)
		body, err := e.client.Send(ctx, request)
		if err == nil {
			return body, nil
		}

		var terr *transport.Error
		if errors.As(err, &terr) && terr.Retryable() {
			if terr.RetryAfter > 0 {
				return nil, errors.Join(err, backoff.RetryAfter(int(terr.RetryAfter/time.Second)))
			}
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.config.InitialBackoff
	expo.MaxInterval = e.config.MaxBackoff

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(e.config.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			advance(stateRetryScheduled)
			log.Warn("retrying request",
				zap.Int("attempt", attempts),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		}),
	)
	return body, attempts, err
}
