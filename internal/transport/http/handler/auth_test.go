package handler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeAuthUsecase implements the unexported authUsecaser interface via method matching.
// Nil funcs succeed.
type fakeAuthUsecase struct {
	login            func(ctx context.Context, username, password string) (string, error)
	requestLoginLink func(ctx context.Context, email string) error
	redeemLoginLink  func(ctx context.Context, secret string) (string, error)
	requestVerify    func(ctx context.Context, userID string) error
	verifyEmail      func(ctx context.Context, secret string) error
	requestReset     func(ctx context.Context, email string) error
	resetPassword    func(ctx context.Context, secret, password string) error
}

func (f *fakeAuthUsecase) Login(ctx context.Context, username, password string) (string, error) {
	if f.login == nil {
		return "", nil
	}
	return f.login(ctx, username, password)
}

func (f *fakeAuthUsecase) RequestLoginLink(ctx context.Context, email string) error {
	if f.requestLoginLink == nil {
		return nil
	}
	return f.requestLoginLink(ctx, email)
}

func (f *fakeAuthUsecase) RedeemLoginLink(ctx context.Context, secret string) (string, error) {
	if f.redeemLoginLink == nil {
		return "", nil
	}
	return f.redeemLoginLink(ctx, secret)
}

func (f *fakeAuthUsecase) RequestEmailVerification(ctx context.Context, userID string) error {
	if f.requestVerify == nil {
		return nil
	}
	return f.requestVerify(ctx, userID)
}

func (f *fakeAuthUsecase) VerifyEmail(ctx context.Context, secret string) error {
	if f.verifyEmail == nil {
		return nil
	}
	return f.verifyEmail(ctx, secret)
}

func (f *fakeAuthUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	if f.requestReset == nil {
		return nil
	}
	return f.requestReset(ctx, email)
}

func (f *fakeAuthUsecase) ResetPassword(ctx context.Context, secret, password string) error {
	if f.resetPassword == nil {
		return nil
	}
	return f.resetPassword(ctx, secret, password)
}

func newAuthEngine(uc *fakeAuthUsecase) *gin.Engine {
	h := handler.NewAuthHandler(uc, discard)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/magic-link", h.RequestLoginLink)
	r.GET("/auth/verify", h.RedeemLoginLink)
	r.GET("/auth/verify-email", h.VerifyEmail)
	r.POST("/auth/password-reset", h.RequestPasswordReset)
	r.POST("/auth/password-reset/confirm", h.ResetPassword)
	r.POST("/auth/email-verification", func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Next()
	}, h.RequestEmailVerification)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// ---- Login ----

func TestLogin_MissingPassword_Returns400(t *testing.T) {
	w := postJSON(newAuthEngine(&fakeAuthUsecase{}), "/auth/login", `{"username":"ann"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLogin_BadCredentials_Returns401(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(_ context.Context, _, _ string) (string, error) {
			return "", domain.ErrInvalidCredentials
		},
	}
	w := postJSON(newAuthEngine(uc), "/auth/login", `{"username":"ann","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_Success_ReturnsJWT(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(_ context.Context, username, password string) (string, error) {
			if username != "ann" || password != "hunter22" {
				t.Errorf("got %q/%q", username, password)
			}
			return "header.payload.signature", nil
		},
	}
	w := postJSON(newAuthEngine(uc), "/auth/login", `{"username":"ann","password":"hunter22"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "header.payload.signature") {
		t.Errorf("body %q does not contain JWT", w.Body.String())
	}
}

// ---- RequestLoginLink ----

func TestRequestLoginLink_InvalidJSON_Returns400(t *testing.T) {
	w := postJSON(newAuthEngine(&fakeAuthUsecase{}), "/auth/magic-link", `{bad json}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRequestLoginLink_InvalidEmail_Returns400(t *testing.T) {
	w := postJSON(newAuthEngine(&fakeAuthUsecase{}), "/auth/magic-link", `{"email":"not-an-email"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRequestLoginLink_UsecaseError_StillReturns200(t *testing.T) {
	uc := &fakeAuthUsecase{
		requestLoginLink: func(_ context.Context, _ string) error {
			return domain.ErrTooManyRequests
		},
	}
	w := postJSON(newAuthEngine(uc), "/auth/magic-link", `{"email":"test@example.com"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (must not reveal errors)", w.Code)
	}
}

// ---- RedeemLoginLink ----

func TestRedeemLoginLink_MissingToken_Returns401(t *testing.T) {
	w := get(newAuthEngine(&fakeAuthUsecase{}), "/auth/verify")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRedeemLoginLink_TokenFailuresLookAlike(t *testing.T) {
	var bodies []string
	for _, tokenErr := range []error{domain.ErrTokenNotFound, domain.ErrTokenExpired, domain.ErrTokenAlreadyUsed} {
		uc := &fakeAuthUsecase{
			redeemLoginLink: func(_ context.Context, _ string) (string, error) {
				return "", tokenErr
			},
		}
		w := get(newAuthEngine(uc), "/auth/verify?token=abc")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", tokenErr, w.Code)
		}
		bodies = append(bodies, w.Body.String())
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("token failures must share one response, got %q and %q", bodies[0], b)
		}
	}
}

func TestRedeemLoginLink_StoreDown_Returns503(t *testing.T) {
	uc := &fakeAuthUsecase{
		redeemLoginLink: func(_ context.Context, _ string) (string, error) {
			return "", errors.Join(errors.New("consume token"), domain.ErrStoreUnavailable)
		},
	}
	w := get(newAuthEngine(uc), "/auth/verify?token=abc")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRedeemLoginLink_ValidToken_Returns200WithJWT(t *testing.T) {
	const fakeJWT = "header.payload.signature"
	uc := &fakeAuthUsecase{
		redeemLoginLink: func(_ context.Context, secret string) (string, error) {
			if secret != "validtoken" {
				t.Errorf("secret = %q", secret)
			}
			return fakeJWT, nil
		},
	}
	w := get(newAuthEngine(uc), "/auth/verify?token=validtoken")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), fakeJWT) {
		t.Errorf("body %q does not contain JWT %q", w.Body.String(), fakeJWT)
	}
}

// ---- Email verification ----

func TestRequestEmailVerification_UsesAuthenticatedUser(t *testing.T) {
	var got string
	uc := &fakeAuthUsecase{
		requestVerify: func(_ context.Context, userID string) error {
			got = userID
			return nil
		},
	}
	w := postJSON(newAuthEngine(uc), "/auth/email-verification", ``)
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if got != "user-1" {
		t.Errorf("userID = %q, want user-1", got)
	}
}

func TestRequestEmailVerification_CoolingDown_Returns429(t *testing.T) {
	uc := &fakeAuthUsecase{
		requestVerify: func(_ context.Context, _ string) error { return domain.ErrTooManyRequests },
	}
	w := postJSON(newAuthEngine(uc), "/auth/email-verification", ``)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestVerifyEmail_Success_Returns204(t *testing.T) {
	w := get(newAuthEngine(&fakeAuthUsecase{}), "/auth/verify-email?token=abc")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestVerifyEmail_Expired_Returns401(t *testing.T) {
	uc := &fakeAuthUsecase{
		verifyEmail: func(_ context.Context, _ string) error { return domain.ErrTokenExpired },
	}
	w := get(newAuthEngine(uc), "/auth/verify-email?token=abc")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---- Password reset ----

func TestRequestPasswordReset_AlwaysReturns200(t *testing.T) {
	uc := &fakeAuthUsecase{
		requestReset: func(_ context.Context, _ string) error { return errors.New("smtp down") },
	}
	w := postJSON(newAuthEngine(uc), "/auth/password-reset", `{"email":"ann@example.com"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestResetPassword_ShortPassword_Returns400(t *testing.T) {
	w := postJSON(newAuthEngine(&fakeAuthUsecase{}), "/auth/password-reset/confirm", `{"token":"abc","password":"short"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestResetPassword_UsedToken_Returns401(t *testing.T) {
	uc := &fakeAuthUsecase{
		resetPassword: func(_ context.Context, _, _ string) error { return domain.ErrTokenAlreadyUsed },
	}
	w := postJSON(newAuthEngine(uc), "/auth/password-reset/confirm", `{"token":"abc","password":"long-enough"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestResetPassword_Success_Returns204(t *testing.T) {
	var gotSecret, gotPassword string
	uc := &fakeAuthUsecase{
		resetPassword: func(_ context.Context, secret, password string) error {
			gotSecret, gotPassword = secret, password
			return nil
		},
	}
	w := postJSON(newAuthEngine(uc), "/auth/password-reset/confirm", `{"token":"abc","password":"long-enough"}`)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if gotSecret != "abc" || gotPassword != "long-enough" {
		t.Errorf("got %q/%q", gotSecret, gotPassword)
	}
}
