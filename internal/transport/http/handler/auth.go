package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Login(ctx context.Context, username, password string) (string, error)
	RequestLoginLink(ctx context.Context, email string) error
	RedeemLoginLink(ctx context.Context, secret string) (string, error)
	RequestEmailVerification(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, secret string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, secret, password string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jwtToken, err := h.authUsecase.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: jwtToken})
}

// POST /auth/magic-link
// Always returns 200 to avoid revealing whether the email exists.
func (h *AuthHandler) RequestLoginLink(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.RequestLoginLink(c.Request.Context(), req.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "request login link", "error", err)
	}
	c.Status(http.StatusOK)
}

// GET /auth/verify?token=<raw>
// Returns {"token": "<jwt>"} on success, 401 on invalid/expired token.
func (h *AuthHandler) RedeemLoginLink(c *gin.Context) {
	secret := c.Query("token")
	if secret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
		return
	}

	jwtToken, err := h.authUsecase.RedeemLoginLink(c.Request.Context(), secret)
	if err != nil {
		h.fail(c, "redeem login link", err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: jwtToken})
}

// POST /auth/email-verification (authenticated)
func (h *AuthHandler) RequestEmailVerification(c *gin.Context) {
	if err := h.authUsecase.RequestEmailVerification(c.Request.Context(), c.GetString("userID")); err != nil {
		h.fail(c, "request email verification", err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GET /auth/verify-email?token=<raw>
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	secret := c.Query("token")
	if secret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
		return
	}

	if err := h.authUsecase.VerifyEmail(c.Request.Context(), secret); err != nil {
		h.fail(c, "verify email", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /auth/password-reset
// Always returns 200, same as the login link request.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "request password reset", "error", err)
	}
	c.Status(http.StatusOK)
}

// POST /auth/password-reset/confirm
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, "reset password", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) fail(c *gin.Context, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), op, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
