package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	insuredmetrics "insured/internal/insured/metrics"
	"insured/internal/insured/models"
	dErrors "insured/pkg/domain-errors"
	"insured/pkg/platform/sentinel"
	"insured/pkg/requestcontext"
)

// Store persists insured persons. Implementations return sentinel errors for
// missing records, duplicate identities and version conflicts.
type Store interface {
	Exists(ctx context.Context, id int64) (bool, error)
	FindByID(ctx context.Context, id int64) (*models.InsuredPerson, error)
	Insert(ctx context.Context, p *models.InsuredPerson) error
	Replace(ctx context.Context, id int64, p *models.InsuredPerson, expectedVersion int64) error
	Delete(ctx context.Context, id int64, expectedVersion int64) error
	Count(ctx context.Context) (int, error)
	ListPage(ctx context.Context, offset, limit int) ([]*models.InsuredPerson, error)
}

// StoreTx runs fn as one unit of work against the store.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const tracerName = "insured/internal/insured/service"

// Service owns the registry's business rules: validation, identity
// uniqueness, paging and optimistic concurrency.
type Service struct {
	store   Store
	tx      StoreTx
	logger  *slog.Logger
	metrics *insuredmetrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *insuredmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the transaction runner. Without it every unit of work runs
// directly against the store.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = passthroughTx{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.tracer = otel.Tracer(tracerName)
	return s
}

// Create registers a new insured person. The existence check and the insert
// run in one unit of work; a create that loses a race on the same identity
// still reports a duplicate.
func (s *Service) Create(ctx context.Context, p *models.InsuredPerson) (_ *models.InsuredPerson, err error) {
	ctx, end := s.begin(ctx, "create")
	defer func() { end(err) }()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	id := p.IdentificationNumber

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.store.Exists(txCtx, id)
		if err != nil {
			return translate(err, "failed to check insured person")
		}
		if exists {
			return duplicateIdentity()
		}
		if err := s.store.Insert(txCtx, p); err != nil {
			return translate(err, "failed to register insured person")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, "insured_created", id)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return p, nil
}

// List returns one page of the registry in identification number order.
func (s *Service) List(ctx context.Context, page, pageSize int) (_ *models.Page, err error) {
	ctx, end := s.begin(ctx, "list")
	defer func() { end(err) }()

	if page < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "page must be a positive integer")
	}
	if pageSize < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "pageSize must be a positive integer")
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	result := &models.Page{Items: []*models.InsuredPerson{}, Page: page, PageSize: pageSize}
	offset, ok := models.Offset(page, pageSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.store.Count(gctx)
		if err != nil {
			return translate(err, "failed to count insured persons")
		}
		result.Total = total
		return nil
	})
	if ok {
		g.Go(func() error {
			items, err := s.store.ListPage(gctx, offset, pageSize)
			if err != nil {
				return translate(err, "failed to list insured persons")
			}
			if items != nil {
				result.Items = items
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id int64) (_ *models.InsuredPerson, err error) {
	ctx, end := s.begin(ctx, "get", attribute.Int64("identification_number", id))
	defer func() { end(err) }()

	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load insured person")
	}
	return p, nil
}

// Update replaces the record stored under id with p. When p.Version is set it
// is the version the caller last saw; otherwise the current version is read
// first. Either way a concurrent write in between yields a concurrency
// conflict rather than a lost update.
func (s *Service) Update(ctx context.Context, id int64, p *models.InsuredPerson) (err error) {
	ctx, end := s.begin(ctx, "update", attribute.Int64("identification_number", id))
	defer func() { end(err) }()

	if p != nil && p.IdentificationNumber != id {
		return dErrors.New(dErrors.CodeIdentityMismatch,
			"identification number in the body does not match the one in the path")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		expected := p.Version
		if expected == 0 {
			current, err := s.store.FindByID(txCtx, id)
			if err != nil {
				return translate(err, "failed to load insured person")
			}
			expected = current.Version
		}

		err := s.store.Replace(txCtx, id, p, expected)
		if errors.Is(err, sentinel.ErrConflict) {
			return s.conflictOrGone(txCtx, id)
		}
		if err != nil {
			return translate(err, "failed to update insured person")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, "insured_updated", id)
	if s.metrics != nil {
		s.metrics.IncrementUpdated()
	}
	return nil
}

// Delete removes the record stored under id. expectedVersion 0 deletes
// unconditionally.
func (s *Service) Delete(ctx context.Context, id int64, expectedVersion int64) (err error) {
	ctx, end := s.begin(ctx, "delete", attribute.Int64("identification_number", id))
	defer func() { end(err) }()

	err = s.store.Delete(ctx, id, expectedVersion)
	if errors.Is(err, sentinel.ErrConflict) {
		return s.conflictOrGone(ctx, id)
	}
	if err != nil {
		return translate(err, "failed to delete insured person")
	}

	s.logEvent(ctx, "insured_deleted", id)
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

// conflictOrGone classifies a rejected compare-and-swap: the record may have
// been deleted in the meantime rather than modified.
func (s *Service) conflictOrGone(ctx context.Context, id int64) error {
	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return translate(err, "failed to check insured person")
	}
	if !exists {
		return notFound()
	}
	if s.metrics != nil {
		s.metrics.IncrementConflicts()
	}
	s.logger.WarnContext(ctx, "insured_concurrency_conflict",
		"identification_number", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeConcurrencyConflict,
		"insured person was modified by another request; reload and retry")
}

// begin opens a span and returns the function that closes it, recording the
// outcome and the operation latency.
func (s *Service) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "insured."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, start)
		}
	}
}

func (s *Service) logEvent(ctx context.Context, event string, id int64) {
	s.logger.InfoContext(ctx, event,
		"identification_number", id,
		"request_id", requestcontext.RequestID(ctx),
	)
}
