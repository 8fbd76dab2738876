package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"prelaunch/internal/registration/models"
	dErrors "prelaunch/pkg/domain-errors"
	"prelaunch/pkg/requestcontext"
)

// State of a form session.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSuccess
	StateIdleWithError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateIdleWithError:
		return "idle_with_error"
	}
	return "unknown"
}

// Editable reports whether the form accepts edits and submits in this state.
func (s State) Editable() bool {
	return s == StateIdle || s == StateIdleWithError
}

var (
	// ErrSubmitInFlight rejects a submit while another one awaits the store.
	ErrSubmitInFlight = errors.New("submission already in progress")
	// ErrAlreadySubmitted rejects edits and submits once the form succeeded.
	ErrAlreadySubmitted = errors.New("form already submitted")
)

// Registrar performs the single insert behind a submit.
type Registrar interface {
	Register(ctx context.Context, draft models.Draft) (*models.Registration, error)
}

// Outcome describes the form after a submit attempt.
type Outcome struct {
	State        State
	FieldErrors  models.FieldErrors
	Toast        *Toast
	Registration *models.Registration
}

// Form is one visitor's lead-capture form.
//
//	Idle/IdleWithError --submit(valid)--> Submitting
//	Submitting --stored-->    Success (terminal)
//	Submitting --duplicate--> IdleWithError
//	Submitting --failure-->   IdleWithError
//
// The submitting state doubles as the disabled submit control: a second
// submit while one is in flight returns ErrSubmitInFlight without touching
// the registrar.
type Form struct {
	mu          sync.Mutex
	state       State
	draft       models.Draft
	fieldErrors models.FieldErrors
	toasts      []Toast
	result      *models.Registration

	registrar Registrar
	notifiers []Notifier
	logger    *slog.Logger
}

type Option func(*Form)

// WithNotifier adds a sink that sees every toast besides the pending queue.
func WithNotifier(n Notifier) Option {
	return func(f *Form) {
		f.notifiers = append(f.notifiers, n)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		f.logger = logger
	}
}

// NewForm returns an empty form in StateIdle.
func NewForm(registrar Registrar, opts ...Option) *Form {
	f := &Form{registrar: registrar, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SubmitDisabled reports whether the submit control must be disabled.
func (f *Form) SubmitDisabled() bool {
	return f.State() == StateSubmitting
}

func (f *Form) Draft() models.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *Form) FieldErrors() models.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyErrors(f.fieldErrors)
}

// Registration returns the stored record once the form reached StateSuccess.
func (f *Form) Registration() *models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// PendingToasts drains the toasts queued since the last call.
func (f *Form) PendingToasts() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.toasts
	f.toasts = nil
	return out
}

// Update replaces the draft, re-masking the phone as on every keystroke.
// Inline errors from the last submit stay until the next submit.
func (f *Form) Update(d models.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSuccess {
		return ErrAlreadySubmitted
	}
	d.Phone = models.FormatPhone(d.Phone)
	f.draft = d
	return nil
}

// Submit validates the current draft and, when valid, sends it once.
func (f *Form) Submit(ctx context.Context) (Outcome, error) {
	return f.submit(ctx, nil)
}

// SubmitDraft applies d as a final Update and submits in one step, so a
// concurrent edit cannot slip between the two.
func (f *Form) SubmitDraft(ctx context.Context, d models.Draft) (Outcome, error) {
	return f.submit(ctx, &d)
}

func (f *Form) submit(ctx context.Context, next *models.Draft) (Outcome, error) {
	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return Outcome{State: StateSubmitting}, ErrSubmitInFlight
	case StateSuccess:
		out := Outcome{State: StateSuccess, Registration: f.result}
		f.mu.Unlock()
		return out, ErrAlreadySubmitted
	}
	if next != nil {
		next.Phone = models.FormatPhone(next.Phone)
		f.draft = *next
	}
	draft := f.draft
	draft.Normalize()

	if errs := models.Validate(draft); errs != nil {
		f.fieldErrors = errs
		out := Outcome{State: f.state, FieldErrors: copyErrors(errs)}
		f.mu.Unlock()
		return out, nil
	}
	previous := f.state
	f.fieldErrors = nil
	f.state = StateSubmitting
	f.mu.Unlock()

	reg, err := f.registrar.Register(ctx, draft)

	f.mu.Lock()
	var toast Toast
	switch {
	case err == nil:
		f.state = StateSuccess
		f.result = reg
		toast = ToastSuccess
	case dErrors.HasCode(err, dErrors.CodeConflict):
		f.state = StateIdleWithError
		toast = ToastDuplicate
	case dErrors.HasCode(err, dErrors.CodeValidation):
		// The registrar disagreed with local validation; show it inline.
		var fe models.FieldErrors
		if errors.As(err, &fe) {
			f.fieldErrors = fe
		}
		f.state = previous
		out := Outcome{State: f.state, FieldErrors: copyErrors(f.fieldErrors)}
		f.mu.Unlock()
		return out, nil
	default:
		f.logger.ErrorContext(ctx, "failed to save registration",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		f.state = StateIdleWithError
		toast = ToastFailure
	}
	f.toasts = append(f.toasts, toast)
	out := Outcome{State: f.state, Toast: &toast, Registration: f.result}
	notifiers := f.notifiers
	f.mu.Unlock()

	for _, n := range notifiers {
		n.Notify(toast)
	}
	return out, nil
}

func copyErrors(errs models.FieldErrors) models.FieldErrors {
	if errs == nil {
		return nil
	}
	out := make(models.FieldErrors, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
