package handler

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"prelaunch/internal/platform/middleware"
	"prelaunch/internal/registration/models"
	dErrors "prelaunch/pkg/domain-errors"
	"prelaunch/pkg/platform/httputil"
	"prelaunch/pkg/requestcontext"
)

// Service reads stored registrations.
type Service interface {
	List(ctx context.Context, opts models.ListOptions) ([]*models.Registration, int, error)
	FindByEmail(ctx context.Context, email string) (*models.Registration, error)
}

// Handler serves the admin export of pre-launch registrations.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator middleware.TokenValidator
}

// New creates a new admin registration Handler.
func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator,
	}
}

// Register mounts the bearer-protected admin routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.validator, h.logger))
		r.Get("/registrations", h.handleList)
		r.Get("/registrations.csv", h.handleExportCSV)
		r.Get("/registrations/lookup", h.handleLookup)
	})
}

// ListResponse is one page of registrations.
type ListResponse struct {
	Registrations []*models.Registration `json:"registrations"`
	Total         int                    `json:"total"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts, err := parseListOptions(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	regs, total, err := h.service.List(ctx, opts)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list registrations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if regs == nil {
		regs = []*models.Registration{}
	}
	opts.Normalize()
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Registrations: regs,
		Total:         total,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	})
}

// handleLookup answers support questions like "am I on the list?".
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reg, err := h.service.FindByEmail(ctx, r.URL.Query().Get("email"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to look up registration",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// csvHeader uses the record store column names.
var csvHeader = []string{"id", "nome", "email", "celular", "aceitar_notificacoes", "aceitar_lgpd", "created_at"}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Collect everything before writing so a mid-export failure still gets a clean 500.
	var all []*models.Registration
	opts := models.ListOptions{Limit: models.MaxListLimit}
	for {
		page, total, err := h.service.List(ctx, opts)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to export registrations",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		all = append(all, page...)
		if len(page) < opts.Limit || len(all) >= total {
			break
		}
		opts.Offset += len(page)
	}

	h.logger.InfoContext(ctx, "registrations exported",
		"request_id", requestcontext.RequestID(ctx),
		"admin", requestcontext.AdminSubject(ctx),
		"rows", len(all),
	)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pre_lancamento_cadastros.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, reg := range all {
		_ = cw.Write([]string{
			reg.ID.String(),
			reg.Name,
			reg.Email,
			reg.Phone,
			strconv.FormatBool(reg.WantsNotifications),
			strconv.FormatBool(reg.AcceptsPrivacyPolicy),
			reg.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(ctx, "failed to write csv export",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func parseListOptions(r *http.Request) (models.ListOptions, error) {
	var opts models.ListOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
