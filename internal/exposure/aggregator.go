// Package exposure merges the independent evidence sources into one verdict.
//
// The password corpus, the local dataset and the remote directory are asked
// concurrently and never cancel each other. A failing source is downgraded to
// "no evidence" and reported in the verdict's Sources map, with two
// exceptions: a rate-limited directory makes a verdict without other evidence
// inconclusive, and a source rejecting our credentials fails the evaluation
// with serrors.ErrMisconfigured.
package exposure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exposureshield/pkg/breach"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/metrics"
	"exposureshield/pkg/serrors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sources are the collaborators of an Aggregator. A nil source is reported as
// disabled.
type Sources struct {
	Password  breach.PasswordChecker
	Dataset   breach.EmailSource
	Directory breach.EmailSource
}

type aggregator struct {
	sources  Sources
	lookups  metric.Int64Counter
	duration metric.Float64Histogram
}

// New returns an Aggregator over sources.
func New(sources Sources) Aggregator {
	a := &aggregator{sources: sources}

	var err error
	a.lookups, err = metrics.Meter().Int64Counter("exposure.source.lookups",
		metric.WithDescription("Evidence source lookups by source and status"))
	if err != nil {
		logger.Warn(context.Background(), "could not create lookup counter", zap.Error(err))
	}
	a.duration, err = metrics.Meter().Float64Histogram("exposure.source.duration",
		metric.WithDescription("Evidence source lookup latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.DefaultBuckets...))
	if err != nil {
		logger.Warn(context.Background(), "could not create lookup histogram", zap.Error(err))
	}

	return a
}

type passwordResult struct {
	hits   uint
	status domain.SourceStatus
	err    error
}

type emailResult struct {
	records []domain.EmailExposureRecord
	status  domain.SourceStatus
	err     error
}

// Evaluate implements Aggregator.
func (a *aggregator) Evaluate(ctx context.Context, query domain.ExposureQuery) (domain.ExposureVerdict, error) {
	ctx, span := metrics.Tracer().Start(ctx, "exposure.Evaluate")
	defer span.End()

	var (
		g               errgroup.Group
		password        passwordResult
		dataset, remote emailResult
	)
	askPassword := query.Password != ""

	if askPassword {
		g.Go(func() error {
			password = a.checkPassword(ctx, query.Password)

			return nil
		})
	}
	g.Go(func() error {
		dataset = a.lookupEmail(ctx, domain.SourceLocalDataset, a.sources.Dataset, query.Email)

		return nil
	})
	g.Go(func() error {
		remote = a.lookupEmail(ctx, domain.SourceRemoteDirectory, a.sources.Directory, query.Email)

		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())

		return domain.ExposureVerdict{}, fmt.Errorf("exposure evaluation: %w", err)
	}

	for _, r := range []emailResult{dataset, remote} {
		if r.status == domain.SourceStatusMisconfigured {
			span.SetStatus(codes.Error, "misconfigured source")

			return domain.ExposureVerdict{}, serrors.Wrap(serrors.ErrMisconfigured, r.err,
				"breach lookup is misconfigured")
		}
	}

	verdict := domain.ExposureVerdict{
		PasswordHits: password.hits,
		EmailRecords: make([]domain.EmailExposureRecord, 0, len(dataset.records)+len(remote.records)),
		Sources: map[domain.Source]domain.SourceStatus{
			domain.SourceLocalDataset:    dataset.status,
			domain.SourceRemoteDirectory: remote.status,
		},
	}
	if askPassword {
		verdict.Sources[domain.SourcePasswordCorpus] = password.status
	}
	verdict.EmailRecords = append(verdict.EmailRecords, dataset.records...)
	verdict.EmailRecords = append(verdict.EmailRecords, remote.records...)

	exposed := verdict.PasswordHits > 0 || len(verdict.EmailRecords) > 0
	if exposed || remote.status != domain.SourceStatusRateLimited {
		verdict.Exposed = &exposed
	} else {
		var rl *breach.RateLimitError
		if errors.As(remote.err, &rl) {
			verdict.RetryAfter = rl.RetryAfter
		}
	}

	verdict.Advice = advise(verdict, dataset.records, remote.records)

	span.SetAttributes(attribute.String("verdict", string(verdict.Status())))

	return verdict, nil
}

func (a *aggregator) checkPassword(ctx context.Context, password string) passwordResult {
	if a.sources.Password == nil {
		return passwordResult{status: domain.SourceStatusDisabled}
	}

	ctx, span := metrics.Tracer().Start(ctx, "exposure.password")
	defer span.End()

	start := time.Now()
	res, err := a.sources.Password.CheckPassword(ctx, password)
	status := statusOf(err, res.OccurrenceCount > 0)
	a.record(ctx, domain.SourcePasswordCorpus, status, start)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "password corpus lookup failed", zap.String("status", string(status)), zap.Error(err))

		return passwordResult{status: status, err: err}
	}

	return passwordResult{hits: res.OccurrenceCount, status: status}
}

func (a *aggregator) lookupEmail(ctx context.Context,
	source domain.Source,
	src breach.EmailSource,
	email string) emailResult {
	if src == nil {
		return emailResult{status: domain.SourceStatusDisabled}
	}

	ctx, span := metrics.Tracer().Start(ctx, "exposure."+string(source))
	defer span.End()

	start := time.Now()
	records, err := src.Lookup(ctx, email)
	status := statusOf(err, len(records) > 0)
	a.record(ctx, source, status, start)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "email lookup failed",
			zap.String("source", string(source)),
			zap.String("status", string(status)),
			zap.Error(err))

		return emailResult{status: status, err: err}
	}

	return emailResult{records: records, status: status}
}

func (a *aggregator) record(ctx context.Context, source domain.Source, status domain.SourceStatus, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("source", string(source)),
		attribute.String("status", string(status)),
	)
	if a.lookups != nil {
		a.lookups.Add(ctx, 1, attrs)
	}
	if a.duration != nil {
		a.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func statusOf(err error, found bool) domain.SourceStatus {
	switch {
	case err == nil && found:
		return domain.SourceStatusFound
	case err == nil:
		return domain.SourceStatusClear
	case errors.Is(err, serrors.ErrRateLimited):
		return domain.SourceStatusRateLimited
	case errors.Is(err, serrors.ErrMisconfigured):
		return domain.SourceStatusMisconfigured
	default:
		return domain.SourceStatusUnavailable
	}
}
