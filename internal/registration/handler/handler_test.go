package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"prelaunch/internal/platform/middleware"
	"prelaunch/internal/registration/models"
	"prelaunch/internal/registration/service"
	"prelaunch/internal/registration/store"
	dErrors "prelaunch/pkg/domain-errors"
	"prelaunch/pkg/requestcontext"
	"prelaunch/pkg/testutil"
)

const adminToken = "admin-token"

type tokenValidator struct{}

func (tokenValidator) ValidateToken(token string) (*middleware.AdminClaims, error) {
	if token != adminToken {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.AdminClaims{Subject: "ops@example.com"}, nil
}

type failingService struct{}

func (failingService) List(context.Context, models.ListOptions) ([]*models.Registration, int, error) {
	return nil, 0, dErrors.Wrap(errors.New("db gone"), dErrors.CodeInternal, "failed to list registrations")
}

func (failingService) FindByEmail(context.Context, string) (*models.Registration, error) {
	return nil, dErrors.Wrap(errors.New("db gone"), dErrors.CodeInternal, "failed to find registration")
}

type AdminHandlerSuite struct {
	suite.Suite
	router http.Handler
	base   time.Time
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemory(), service.WithLogger(logger))

	s.base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		ctx := requestcontext.WithTime(context.Background(), s.base.Add(time.Duration(i)*time.Minute))
		_, err := svc.Register(ctx, models.Draft{
			Name:                 "Pessoa Teste",
			Email:                fmt.Sprintf("pessoa%d@example.com", i),
			Phone:                "(11) 98765-4321",
			WantsNotifications:   i%2 == 0,
			AcceptsPrivacyPolicy: true,
		})
		s.Require().NoError(err)
	}

	r := chi.NewRouter()
	New(svc, logger, tokenValidator{}).Register(r)
	s.router = r
}

func (s *AdminHandlerSuite) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *AdminHandlerSuite) TestRequiresToken() {
	s.Equal(http.StatusUnauthorized, s.get("/admin/registrations", "").Code)
	s.Equal(http.StatusUnauthorized, s.get("/admin/registrations.csv", "wrong").Code)
}

func (s *AdminHandlerSuite) TestListNewestFirst() {
	rr := s.get("/admin/registrations?limit=2", adminToken)
	s.Require().Equal(http.StatusOK, rr.Code)

	resp := testutil.DecodeJSON[ListResponse](s.T(), rr)
	s.Equal(3, resp.Total)
	s.Equal(2, resp.Limit)
	s.Require().Len(resp.Registrations, 2)
	s.Equal("pessoa2@example.com", resp.Registrations[0].Email)
	s.Equal("pessoa1@example.com", resp.Registrations[1].Email)

	rr = s.get("/admin/registrations?limit=2&offset=2", adminToken)
	resp = testutil.DecodeJSON[ListResponse](s.T(), rr)
	s.Require().Len(resp.Registrations, 1)
	s.Equal("pessoa0@example.com", resp.Registrations[0].Email)
}

func (s *AdminHandlerSuite) TestListRejectsBadPaging() {
	rr := s.get("/admin/registrations?limit=abc", adminToken)
	s.Equal(http.StatusBadRequest, rr.Code)
	rr = s.get("/admin/registrations?offset=-1", adminToken)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *AdminHandlerSuite) TestExportCSV() {
	rr := s.get("/admin/registrations.csv", adminToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	s.Contains(rr.Header().Get("Content-Disposition"), "pre_lancamento_cadastros.csv")

	rows, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 4)
	s.Equal(csvHeader, rows[0])
	s.Equal("pessoa2@example.com", rows[1][2])
	s.Equal("(11) 98765-4321", rows[1][3])
	s.Equal("true", rows[1][4])
	s.Equal("true", rows[1][5])
	s.Equal(s.base.Add(2*time.Minute).Format(time.RFC3339), rows[1][6])
	s.Equal("false", rows[2][4])
}

func (s *AdminHandlerSuite) TestLookupByEmail() {
	s.Equal(http.StatusUnauthorized, s.get("/admin/registrations/lookup?email=pessoa1@example.com", "").Code)

	rr := s.get("/admin/registrations/lookup?email="+url.QueryEscape("PESSOA1@example.com"), adminToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	reg := testutil.DecodeJSON[models.Registration](s.T(), rr)
	s.Equal("pessoa1@example.com", reg.Email)
	s.False(reg.WantsNotifications)

	s.Equal(http.StatusNotFound, s.get("/admin/registrations/lookup?email=ninguem@example.com", adminToken).Code)
	s.Equal(http.StatusBadRequest, s.get("/admin/registrations/lookup", adminToken).Code)
}

func (s *AdminHandlerSuite) TestServiceFailure() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(failingService{}, logger, tokenValidator{}).Register(r)

	for _, path := range []string{"/admin/registrations", "/admin/registrations.csv", "/admin/registrations/lookup?email=a@example.com"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		rr := testutil.DoRequest(r, req)
		s.Equal(http.StatusInternalServerError, rr.Code, path)
		s.NotContains(rr.Body.String(), "db gone")
	}
}
