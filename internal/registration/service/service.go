package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prelaunch/internal/events"
	"prelaunch/internal/registration/metrics"
	"prelaunch/internal/registration/models"
	dErrors "prelaunch/pkg/domain-errors"
	"prelaunch/pkg/platform/privacy"
	"prelaunch/pkg/platform/sentinel"
	"prelaunch/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store EventPublisher

// Store is the external record store. Insert must report a taken email as
// sentinel.ErrAlreadyUsed and nothing else.
type Store interface {
	Insert(ctx context.Context, reg *models.Registration) error
	FindByEmail(ctx context.Context, email string) (*models.Registration, error)
	List(ctx context.Context, opts models.ListOptions) ([]*models.Registration, error)
	Count(ctx context.Context) (int, error)
}

// EventPublisher fans stored registrations out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.RegistrationCreated) error
}

// Messages returned to visitors for remote failures.
const (
	MsgDuplicate = "email already registered"
	MsgFailed    = "failed to save registration"
)

var tracer = otel.Tracer("prelaunch/registration")

// Service validates drafts and performs the single insert per submission.
type Service struct {
	store     Store
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	newID     func() uuid.UUID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIDGenerator overrides uuid.New for deterministic tests.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: events.Nop{},
		logger:    slog.Default(),
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the draft and inserts it exactly once. It never retries.
//
// Errors:
//   - CodeValidation wrapping models.FieldErrors: nothing was sent to the store
//   - CodeConflict: the email is already registered
//   - CodeInternal: any other store failure
func (s *Service) Register(ctx context.Context, draft models.Draft) (*models.Registration, error) {
	ctx, span := tracer.Start(ctx, "registration.Register")
	defer span.End()

	reg, err := models.NewRegistration(s.newID(), draft, requestcontext.Now(ctx))
	if err != nil {
		s.incrementOutcome(metrics.OutcomeInvalid)
		span.SetAttributes(attribute.String("registration.outcome", metrics.OutcomeInvalid))
		return nil, err
	}

	if err := s.insert(ctx, reg); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementOutcome(metrics.OutcomeDuplicate)
			span.SetAttributes(attribute.String("registration.outcome", metrics.OutcomeDuplicate))
			s.logger.InfoContext(ctx, "duplicate registration",
				"request_id", requestcontext.RequestID(ctx),
				"email_hash", privacy.HashEmail(reg.Email),
			)
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, MsgDuplicate)
		}
		s.incrementOutcome(metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.logger.ErrorContext(ctx, "failed to save registration",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, MsgFailed)
	}

	device := requestcontext.Device(ctx)
	s.incrementOutcome(metrics.OutcomeCreated)
	if s.metrics != nil {
		s.metrics.IncrementDevice(device)
	}
	span.SetAttributes(
		attribute.String("registration.outcome", metrics.OutcomeCreated),
		attribute.String("registration.id", reg.ID.String()),
	)
	s.logger.InfoContext(ctx, "registration created",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", reg.ID.String(),
		"wants_notifications", reg.WantsNotifications,
	)
	s.publish(ctx, reg, device)

	return reg, nil
}

// List returns stored registrations, newest first.
func (s *Service) List(ctx context.Context, opts models.ListOptions) ([]*models.Registration, int, error) {
	opts.Normalize()
	regs, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
	}
	return regs, total, nil
}

// FindByEmail looks up one registration, ignoring case.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Registration, error) {
	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	reg, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find registration")
	}
	return reg, nil
}

func (s *Service) insert(ctx context.Context, reg *models.Registration) error {
	ctx, span := tracer.Start(ctx, "registration.store.Insert", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	err := s.store.Insert(ctx, reg)
	if s.metrics != nil {
		s.metrics.ObserveInsert(start)
	}
	return err
}

func (s *Service) publish(ctx context.Context, reg *models.Registration, device string) {
	event := events.RegistrationCreated{
		RegistrationID:     reg.ID.String(),
		EmailHash:          privacy.HashEmail(reg.Email),
		WantsNotifications: reg.WantsNotifications,
		Device:             device,
		RequestID:          requestcontext.RequestID(ctx),
		OccurredAt:         reg.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish registration event",
			"registration_id", event.RegistrationID,
			"error", err,
		)
	}
}

func (s *Service) incrementOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementOutcome(outcome)
	}
}
