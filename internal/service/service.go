// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer.
//
// Every operation that acts for a user takes an explicit auth.Session.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/broker"
)

var tracer = otel.Tracer("github.com/Shivanand-hulikatti/eventhub/internal/service")

// Recorder receives booking and cancellation outcomes. *metrics.Metrics
// implements it.
type Recorder interface {
	BookingOutcome(err error, seats int)
	CancellationOutcome(err error, seats int)
}

type nopRecorder struct{}

func (nopRecorder) BookingOutcome(error, int)      {}
func (nopRecorder) CancellationOutcome(error, int) {}

// deps are the collaborators shared by all services.
type deps struct {
	publisher broker.Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a service.
type Option func(*deps)

// WithPublisher sets where lifecycle messages go.
func WithPublisher(p broker.Publisher) Option {
	return func(d *deps) { d.publisher = p }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(d *deps) { d.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *deps) { d.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func newDeps(opts []Option) deps {
	d := deps{
		publisher: broker.Nop{},
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// publish sends a lifecycle message after commit. The write already
// happened, so a broker failure is logged and never returned.
func (d *deps) publish(ctx context.Context, topic string, msg any) {
	if err := d.publisher.Publish(ctx, topic, msg); err != nil {
		d.logger.WarnContext(ctx, "publish lifecycle message failed",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
}

func requireSession(s auth.Session) error {
	if s.UserID == "" {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	span.End()
}
