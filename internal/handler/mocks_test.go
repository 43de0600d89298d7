package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sumire/recipebox/internal/domain"
	"github.com/sumire/recipebox/internal/security"
	"github.com/sumire/recipebox/internal/service"
)

const testCSRFToken = "csrf-test-token"

// mockAuth implements AuthService and Authenticator.
type mockAuth struct {
	mock.Mock
	google bool
}

func (m *mockAuth) Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error) {
	args := m.Called(ctx, in)
	return authResult(args.Get(0)), args.Error(1)
}

func (m *mockAuth) Login(ctx context.Context, username, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, username, password)
	return authResult(args.Get(0)), args.Error(1)
}

func (m *mockAuth) Refresh(ctx context.Context, username, refreshToken string) (*service.AuthResult, error) {
	args := m.Called(ctx, username, refreshToken)
	return authResult(args.Get(0)), args.Error(1)
}

func (m *mockAuth) Logout(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *mockAuth) GoogleEnabled() bool {
	return m.google
}

func (m *mockAuth) GoogleAuthURL(state string) (string, error) {
	args := m.Called(state)
	return args.String(0), args.Error(1)
}

func (m *mockAuth) GoogleCallback(ctx context.Context, code string) (*service.AuthResult, error) {
	args := m.Called(ctx, code)
	return authResult(args.Get(0)), args.Error(1)
}

func (m *mockAuth) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	args := m.Called(ctx, accessToken)
	var user *domain.User
	if args.Get(0) != nil {
		user = args.Get(0).(*domain.User)
	}
	return user, args.Error(1)
}

func (m *mockAuth) VerifyRefreshToken(refreshToken string) (*security.Claims, error) {
	args := m.Called(refreshToken)
	var claims *security.Claims
	if args.Get(0) != nil {
		claims = args.Get(0).(*security.Claims)
	}
	return claims, args.Error(1)
}

func authResult(v any) *service.AuthResult {
	if v == nil {
		return nil
	}
	return v.(*service.AuthResult)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Get(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	var user *domain.User
	if args.Get(0) != nil {
		user = args.Get(0).(*domain.User)
	}
	return user, args.Error(1)
}

func (m *mockUsers) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	var users []domain.User
	if args.Get(0) != nil {
		users = args.Get(0).([]domain.User)
	}
	return users, args.Error(1)
}

func (m *mockUsers) UpdateProfile(ctx context.Context, actor *domain.User, username string, update domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, actor, username, update)
	var user *domain.User
	if args.Get(0) != nil {
		user = args.Get(0).(*domain.User)
	}
	return user, args.Error(1)
}

func (m *mockUsers) Delete(ctx context.Context, actor *domain.User, username string) error {
	return m.Called(ctx, actor, username).Error(0)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func testUser(username string) *domain.User {
	hash := "$2a$10$secret"
	refresh := "$2a$10$refresh"
	name := strings.ToUpper(username[:1]) + username[1:]
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.User{
		ID:                 1,
		Username:           username,
		Email:              username + "@example.com",
		PasswordHash:       &hash,
		HashedRefreshToken: &refresh,
		Name:               &name,
		Provider:           domain.AuthProviderLocal,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func testPair() security.TokenPair {
	return security.TokenPair{AccessToken: "access-jwt", RefreshToken: "refresh-jwt"}
}

var testCookies = CookieBinder{Secure: true, SameSite: http.SameSiteNoneMode}

// newTestServer wires the handlers the way main does.
func newTestServer(t *testing.T, auth *mockAuth, users *mockUsers) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Validator = NewAppValidator()
	e.Use(CSRF(CSRFConfig{ExemptPaths: []string{"/auth/csrf"}}))

	Mount(e, NewGate(auth),
		NewHealthHandler(fakePinger{}).Routes(),
		NewAuthHandler(auth, testCookies, "http://frontend.test").Routes(),
		NewUserHandler(users, testCookies).Routes(),
	)
	return e
}

// newRequest builds a request that passes the CSRF check.
func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testCSRFToken})
	req.Header.Set(CSRFHeaderName, testCSRFToken)
	return req
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
