package handler

import (
	"context"
	"errors"
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

	"prelaunch/internal/registration/models"
	"prelaunch/internal/registration/service"
	"prelaunch/internal/registration/store"
	"prelaunch/internal/signup/flow"
	"prelaunch/pkg/testutil"
)

type brokenStore struct{}

func (brokenStore) Insert(context.Context, *models.Registration) error {
	return errors.New("connection reset by peer")
}

func (brokenStore) List(context.Context, models.ListOptions) ([]*models.Registration, error) {
	return nil, nil
}

func (brokenStore) Count(context.Context) (int, error) { return 0, nil }

func (brokenStore) FindByEmail(context.Context, string) (*models.Registration, error) {
	return nil, errors.New("connection reset by peer")
}

type SignupHandlerSuite struct {
	suite.Suite
	store    *store.InMemory
	sessions *flow.Sessions
	router   http.Handler
}

func TestSignupHandlerSuite(t *testing.T) {
	suite.Run(t, new(SignupHandlerSuite))
}

func newRouter(st service.Store, opts ...Option) http.Handler {
	router, _ := newRouterWithSessions(st, opts...)
	return router
}

func newRouterWithSessions(st service.Store, opts ...Option) (http.Handler, *flow.Sessions) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(st, service.WithLogger(logger))
	sessions := flow.NewSessions(func() *flow.Form {
		return flow.NewForm(svc, flow.WithLogger(logger))
	}, time.Hour)

	r := chi.NewRouter()
	New(sessions, logger, opts...).Register(r)
	return r, sessions
}

func (s *SignupHandlerSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.router, s.sessions = newRouterWithSessions(s.store)
}

func validForm() url.Values {
	return url.Values{
		"name":                   {"Ana Souza"},
		"email":                  {"ana@example.com"},
		"phone":                  {"21998765432"},
		"wants_notifications":    {"on"},
		"accepts_privacy_policy": {"on"},
	}
}

func validJSON() map[string]any {
	return map[string]any{
		"name":                   "Ana Souza",
		"email":                  "ana@example.com",
		"phone":                  "(21) 99876-5432",
		"wants_notifications":    false,
		"accepts_privacy_policy": true,
	}
}

func (s *SignupHandlerSuite) get(path string, prev *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if prev != nil {
		req = testutil.WithCookies(req, prev)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *SignupHandlerSuite) TestLandingPageRendersForm() {
	rr := s.get("/", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	s.Contains(body, "experiência de compra!")
	s.Contains(body, "Garantir Acesso Antecipado")
	s.Contains(body, `maxlength="16"`)
	s.Contains(body, `placeholder="(11) 98765-4321"`)
	s.NotContains(body, "Cadastro Realizado!")
	s.Empty(rr.Result().Cookies())
}

func (s *SignupHandlerSuite) TestLandingPageDoesNotStartSessions() {
	for i := range 500 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if i%2 == 0 {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "expired-session"})
		}
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
	}
	s.Zero(s.sessions.Len())

	post := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/", validForm()))
	s.Require().Equal(http.StatusSeeOther, post.Code)
	s.Equal(1, s.sessions.Len())

	cookies := post.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(SessionCookie, cookies[0].Name)
	s.True(cookies[0].HttpOnly)
}

func (s *SignupHandlerSuite) TestFormSubmitSuccessShowsConfirmation() {
	first := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/", validForm()))
	s.Require().Equal(http.StatusSeeOther, first.Code)
	s.Equal("/", first.Header().Get("Location"))

	page := s.get("/", first)
	body := page.Body.String()
	s.Contains(body, "Cadastro Realizado!")
	s.Contains(body, flow.ToastSuccess.Title)
	s.NotContains(body, `id="prelaunch-form"`)

	// Toasts are shown once.
	again := s.get("/", first).Body.String()
	s.Contains(again, "Cadastro Realizado!")
	s.NotContains(again, flow.ToastSuccess.Title)

	reg, err := s.store.FindByEmail(context.Background(), "ana@example.com")
	s.Require().NoError(err)
	s.Equal("(21) 99876-5432", reg.Phone)
	s.True(reg.WantsNotifications)
}

func (s *SignupHandlerSuite) TestFormSubmitInvalidShowsInlineErrors() {
	form := url.Values{"name": {"A"}, "email": {"ana@"}, "phone": {"2199"}}
	first := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/", form))
	s.Require().Equal(http.StatusSeeOther, first.Code)

	body := s.get("/", first).Body.String()
	s.Contains(body, models.MsgNameTooShort)
	s.Contains(body, models.MsgEmailInvalid)
	s.Contains(body, models.MsgPhoneFormat)
	s.Contains(body, models.MsgPrivacyRequire)
	s.Contains(body, `value="(21) 99"`)
	s.Contains(body, `id="prelaunch-form"`)

	count, err := s.store.Count(context.Background())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *SignupHandlerSuite) TestFormSubmitDuplicateShowsToast() {
	testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/", validForm()))
	visitorB := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/", validForm()))

	body := s.get("/", visitorB).Body.String()
	s.Contains(body, flow.ToastDuplicate.Title)
	s.Contains(body, flow.ToastDuplicate.Description)
	s.Contains(body, `id="prelaunch-form"`)
}

func (s *SignupHandlerSuite) TestAPISubmitCreated() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", validJSON()))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	resp := testutil.DecodeJSON[SubmitResponse](s.T(), rr)
	s.Equal("success", resp.State)
	s.Require().NotNil(resp.Registration)
	s.Equal("ana@example.com", resp.Registration.Email)
	s.Require().NotNil(resp.Toast)
	s.Equal(flow.ToastSuccess, *resp.Toast)

	// Same session again: the form is terminal.
	req := testutil.WithCookies(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", validJSON()), rr)
	again := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusConflict, again.Code)
	s.Equal("already_submitted", testutil.DecodeJSON[SubmitResponse](s.T(), again).Error)
}

func (s *SignupHandlerSuite) TestAPISubmitValidation() {
	body := validJSON()
	body["accepts_privacy_policy"] = false
	body["name"] = "Ana 2"
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", body))
	s.Require().Equal(http.StatusUnprocessableEntity, rr.Code)

	resp := testutil.DecodeJSON[SubmitResponse](s.T(), rr)
	s.Equal("validation_error", resp.Error)
	s.Equal(map[string]string{
		models.FieldName:    models.MsgNameLetters,
		models.FieldPrivacy: models.MsgPrivacyRequire,
	}, resp.Fields)
	s.Nil(resp.Toast)
}

func (s *SignupHandlerSuite) TestAPISubmitDuplicate() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", validJSON()))
	s.Require().Equal(http.StatusCreated, rr.Code)

	body := validJSON()
	body["email"] = "ANA@example.com"
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", body))
	s.Require().Equal(http.StatusConflict, rr.Code)

	resp := testutil.DecodeJSON[SubmitResponse](s.T(), rr)
	s.Equal("conflict", resp.Error)
	s.Equal("idle_with_error", resp.State)
	s.Require().NotNil(resp.Toast)
	s.Equal(flow.ToastDuplicate, *resp.Toast)
}

func (s *SignupHandlerSuite) TestAPISubmitStoreFailure() {
	router := newRouter(brokenStore{})
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", validJSON()))
	s.Require().Equal(http.StatusInternalServerError, rr.Code)

	resp := testutil.DecodeJSON[SubmitResponse](s.T(), rr)
	s.Equal("internal_error", resp.Error)
	s.Require().NotNil(resp.Toast)
	s.Equal(flow.ToastFailure, *resp.Toast)
	s.NotContains(rr.Body.String(), "connection reset")
}

func (s *SignupHandlerSuite) TestAPISubmitBadJSON() {
	req := httptest.NewRequest(http.MethodPost, "/api/registrations", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *SignupHandlerSuite) TestFormatPhone() {
	rr := s.get("/api/phone/format?value="+url.QueryEscape("11987654321"), nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.DecodeJSON[FormatPhoneResponse](s.T(), rr)
	s.Equal("(11) 98765-4321", resp.Formatted)
	s.True(resp.Valid)

	rr = s.get("/api/phone/format?value=119", nil)
	resp = testutil.DecodeJSON[FormatPhoneResponse](s.T(), rr)
	s.Equal("(11) 9", resp.Formatted)
	s.False(resp.Valid)
}

func (s *SignupHandlerSuite) TestPrivacyPage() {
	rr := s.get("/politica-privacidade", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), flow.ToastPrivacyPolicy.Title)
	s.Contains(rr.Body.String(), "Voltar ao cadastro")
}

func (s *SignupHandlerSuite) TestSubmitLimiterWrapsOnlySubmits() {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := newRouter(store.NewInMemory(), WithSubmitLimiter(deny), WithSecureCookies(true))

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/registrations", validJSON()))
	s.Equal(http.StatusTooManyRequests, rr.Code)
	rr = testutil.DoRequest(router, testutil.NewFormRequest(s.T(), "/", validForm()))
	s.Equal(http.StatusTooManyRequests, rr.Code)

	rr = testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal(http.StatusOK, rr.Code)
}

func (s *SignupHandlerSuite) TestSecureSessionCookie() {
	router := newRouter(store.NewInMemory(), WithSecureCookies(true))
	rr := testutil.DoRequest(router, testutil.NewFormRequest(s.T(), "/", validForm()))
	s.Require().Equal(http.StatusSeeOther, rr.Code)
	s.Require().Len(rr.Result().Cookies(), 1)
	s.True(rr.Result().Cookies()[0].Secure)
}
