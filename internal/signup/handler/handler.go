package handler

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"prelaunch/internal/registration/models"
	"prelaunch/internal/signup/flow"
	dErrors "prelaunch/pkg/domain-errors"
	"prelaunch/pkg/platform/httputil"
	"prelaunch/pkg/requestcontext"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionCookie names the cookie holding the visitor's form session id.
const SessionCookie = "prelaunch_session"

// Handler serves the landing page, the form submit endpoints and the phone
// formatting helper.
type Handler struct {
	logger        *slog.Logger
	sessions      *flow.Sessions
	secureCookies bool
	cookieTTL     time.Duration
	submitLimiter func(http.Handler) http.Handler
	landing       *template.Template
	privacy       *template.Template
}

type Option func(*Handler)

// WithSecureCookies marks the session cookie Secure (HTTPS deployments).
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secureCookies = secure
	}
}

// WithCookieTTL sets the session cookie Max-Age.
func WithCookieTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		h.cookieTTL = ttl
	}
}

// WithSubmitLimiter wraps both submit endpoints, e.g. with the per-IP rate limiter.
func WithSubmitLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitLimiter = mw
	}
}

// New creates a new signup Handler.
func New(sessions *flow.Sessions, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		sessions:  sessions,
		cookieTTL: 2 * time.Hour,
		landing:   template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/landing.html")),
		privacy:   template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/privacy.html")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the signup routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleLanding)
	r.Get("/politica-privacidade", h.handlePrivacy)
	r.Get("/api/phone/format", h.handleFormatPhone)

	r.Group(func(r chi.Router) {
		if h.submitLimiter != nil {
			r.Use(h.submitLimiter)
		}
		r.Post("/", h.handleFormSubmit)
		r.Post("/api/registrations", h.handleAPISubmit)
	})
}

type pageData struct {
	Title      string
	Draft      models.Draft
	Errors     models.FieldErrors
	Toasts     []flow.Toast
	Submitted  bool
	Submitting bool
	Year       int
}

func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title: "Pré-lançamento | Acesso Antecipado",
		Year:  requestcontext.Now(r.Context()).Year(),
	}
	// Sessions start on the first submit; visitors who only look get a blank form.
	if form, ok := h.existingSession(r); ok {
		state := form.State()
		data.Draft = form.Draft()
		data.Errors = form.FieldErrors()
		data.Toasts = form.PendingToasts()
		data.Submitted = state == flow.StateSuccess
		data.Submitting = state == flow.StateSubmitting
	}
	h.render(w, r, h.landing, data)
}

func (h *Handler) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, h.privacy, pageData{
		Title:  "Política de Privacidade",
		Toasts: []flow.Toast{flow.ToastPrivacyPolicy},
		Year:   requestcontext.Now(r.Context()).Year(),
	})
}

// handleFormSubmit takes a browser form post and redirects back to the
// landing page, which renders the outcome from the session.
func (h *Handler) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	form := h.session(w, r)

	draft := models.Draft{
		Name:                 r.PostForm.Get("name"),
		Email:                r.PostForm.Get("email"),
		Phone:                r.PostForm.Get("phone"),
		WantsNotifications:   checked(r.PostForm.Get("wants_notifications")),
		AcceptsPrivacyPolicy: checked(r.PostForm.Get("accepts_privacy_policy")),
	}
	if _, err := form.SubmitDraft(ctx, draft); err != nil {
		h.logger.InfoContext(ctx, "form submit ignored",
			"request_id", requestcontext.RequestID(ctx),
			"reason", err.Error(),
		)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SubmitResponse is the JSON body of POST /api/registrations.
type SubmitResponse struct {
	State        string               `json:"state"`
	Registration *models.Registration `json:"registration,omitempty"`
	Toast        *flow.Toast          `json:"toast,omitempty"`
	Error        string               `json:"error,omitempty"`
	Fields       map[string]string    `json:"fields,omitempty"`
}

func (h *Handler) handleAPISubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var draft models.Draft
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(&draft); err != nil {
		h.logger.WarnContext(ctx, "invalid registration request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	form := h.session(w, r)

	out, err := form.SubmitDraft(ctx, draft)
	resp := SubmitResponse{State: out.State.String(), Toast: out.Toast}
	switch {
	case errors.Is(err, flow.ErrSubmitInFlight):
		resp.Error = "submit_in_flight"
		httputil.WriteJSON(w, http.StatusConflict, resp)
	case errors.Is(err, flow.ErrAlreadySubmitted):
		resp.Error = "already_submitted"
		resp.Registration = out.Registration
		httputil.WriteJSON(w, http.StatusConflict, resp)
	case len(out.FieldErrors) > 0:
		resp.Error = string(dErrors.CodeValidation)
		resp.Fields = out.FieldErrors
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, resp)
	case out.State == flow.StateSuccess:
		resp.Registration = out.Registration
		httputil.WriteJSON(w, http.StatusCreated, resp)
	case out.Toast != nil && *out.Toast == flow.ToastDuplicate:
		resp.Error = string(dErrors.CodeConflict)
		httputil.WriteJSON(w, http.StatusConflict, resp)
	default:
		resp.Error = string(dErrors.CodeInternal)
		httputil.WriteJSON(w, http.StatusInternalServerError, resp)
	}
	// The JSON client shows the toast itself.
	form.PendingToasts()
}

// FormatPhoneResponse is the JSON body of GET /api/phone/format.
type FormatPhoneResponse struct {
	Formatted string `json:"formatted"`
	Valid     bool   `json:"valid"`
}

func (h *Handler) handleFormatPhone(w http.ResponseWriter, r *http.Request) {
	formatted := models.FormatPhone(r.URL.Query().Get("value"))
	httputil.WriteJSON(w, http.StatusOK, FormatPhoneResponse{
		Formatted: formatted,
		Valid:     models.ValidatePhone(formatted) == "",
	})
}

func (h *Handler) existingSession(r *http.Request) (*flow.Form, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return h.sessions.Get(c.Value)
}

// session returns the visitor's form, starting a session when needed.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *flow.Form {
	var current string
	if c, err := r.Cookie(SessionCookie); err == nil {
		current = c.Value
	}
	id, form, created := h.sessions.GetOrCreate(current)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(h.cookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return form
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data pageData) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "render failed"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func checked(v string) bool {
	switch v {
	case "on", "true", "1":
		return true
	}
	return false
}
