// Package newsletter registers newsletter subscribers and sends a best-effort
// welcome email after each successful signup.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDuplicate is returned by a Store when an active subscriber already
	// holds the email.
	ErrDuplicate = errors.New("newsletter: email already subscribed")
	// ErrNotFound is returned for unknown subscriber IDs.
	ErrNotFound = errors.New("newsletter: subscriber not found")
)

// Subscriber is one newsletter signup.
type Subscriber struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name"`
	Subscribed   bool      `json:"subscribed"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// Outcome is the tagged result of a subscription attempt.
type Outcome int

const (
	Created Outcome = iota
	Conflict
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result carries the outcome and, for Created, the stored subscriber.
type Result struct {
	Outcome    Outcome
	Subscriber Subscriber
}

// Store persists subscribers. Insert must be an atomic check-then-append:
// it returns ErrDuplicate when an active subscriber has the same email and
// reactivates an inactive one.
type Store interface {
	Insert(ctx context.Context, s Subscriber) (Subscriber, error)
	Count(ctx context.Context) (int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Recorder observes registrar activity. A nil Recorder is allowed.
type Recorder interface {
	Subscription(outcome string)
	WelcomeEmail(result string)
}

// NormalizeEmail lowercases and trims an address before validation and
// comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail is the minimal syntactic check: the address contains an "@".
func ValidEmail(email string) bool {
	return strings.Contains(email, "@")
}

const defaultSendTimeout = 10 * time.Second

// Registrar validates and records subscriptions.
type Registrar struct {
	store       Store
	mailer      Mailer
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time
	sendTimeout time.Duration
	wg          sync.WaitGroup
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithMailer sets the welcome mailer. Without one no email is sent.
func WithMailer(m Mailer) Option {
	return func(r *Registrar) { r.mailer = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registrar) { r.logger = l }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Registrar) { r.recorder = rec }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registrar) { r.now = now }
}

// WithSendTimeout bounds each welcome email send.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registrar) { r.sendTimeout = d }
}

// NewRegistrar returns a Registrar backed by store.
func NewRegistrar(store Store, opts ...Option) *Registrar {
	r := &Registrar{
		store:       store,
		logger:      slog.Default(),
		now:         time.Now,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers email. The returned error is reserved for store
// failures; invalid and duplicate addresses are reported through Result.
func (r *Registrar) Subscribe(ctx context.Context, email string, name *string) (Result, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		r.record(Invalid.String())
		return Result{Outcome: Invalid}, nil
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}

	sub, err := r.store.Insert(ctx, Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Subscribed:   true,
		SubscribedAt: r.now().UTC(),
	})
	if errors.Is(err, ErrDuplicate) {
		r.record(Conflict.String())
		return Result{Outcome: Conflict}, nil
	}
	if err != nil {
		r.record("error")
		return Result{}, fmt.Errorf("newsletter: subscribe: %w", err)
	}
	r.record(Created.String())
	r.logger.Info("Newsletter signup", "subscriber", sub.ID)
	r.welcome(ctx, sub)
	return Result{Outcome: Created, Subscriber: sub}, nil
}

// welcome sends the welcome email outside the request. The subscription is
// already committed; a failed send is logged and counted only.
func (r *Registrar) welcome(ctx context.Context, sub Subscriber) {
	if r.mailer == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sendTimeout)
		defer cancel()
		if err := r.mailer.SendWelcome(sendCtx, sub); err != nil {
			r.logger.Warn("Welcome email failed", "subscriber", sub.ID, "error", err)
			r.recordEmail("failed")
			return
		}
		r.recordEmail("sent")
	}()
}

// Wait blocks until in-flight welcome emails finish.
func (r *Registrar) Wait() {
	r.wg.Wait()
}

// Count returns the number of active subscribers.
func (r *Registrar) Count(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("newsletter: count: %w", err)
	}
	return n, nil
}

// Unsubscribe deactivates the subscriber with id.
func (r *Registrar) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("newsletter: unsubscribe: %w", err)
	}
	r.logger.Info("Newsletter unsubscribe", "subscriber", id)
	return nil
}

func (r *Registrar) record(outcome string) {
	if r.recorder != nil {
		r.recorder.Subscription(outcome)
	}
}

func (r *Registrar) recordEmail(result string) {
	if r.recorder != nil {
		r.recorder.WelcomeEmail(result)
	}
}
