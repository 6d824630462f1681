package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/XxvipoxX/ChaosAWS/internal/auth"
	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	"github.com/XxvipoxX/ChaosAWS/pkg/httputil"
	"github.com/XxvipoxX/ChaosAWS/pkg/validator"
)

// forgotPasswordMessage is returned whether or not the email is registered.
const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent."

// AuthHandler handles registration, login and password reset.
type AuthHandler struct {
	accounts *service.AccountService
	resets   *service.PasswordResetService
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(accounts *service.AccountService, resets *service.PasswordResetService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, resets: resets, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Username             string `json:"username" validate:"required,max=150,username"`
	Email                string `json:"email" validate:"required,email,max=254"`
	FirstName            string `json:"first_name" validate:"max=150"`
	LastName             string `json:"last_name" validate:"max=150"`
	Tier                 string `json:"tier" validate:"omitempty,oneof=free standard ultimate"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

// LoginRequest is the JSON request body for login. Identifier is a username
// or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required"`
	Remember   bool   `json:"remember"`
}

// ForgotPasswordRequest is the JSON request body for forgot password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for setting a new password.
type ResetPasswordRequest struct {
	NewPassword          string `json:"new_password" validate:"required"`
	PasswordConfirmation string `json:"new_password_confirmation" validate:"required"`
}

// --- Response types ---

// AuthResponse wraps the account with its session.
type AuthResponse struct {
	Account *domain.Account `json:"account"`
	Session *auth.Session   `json:"session"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ResetTokenResponse reports a usable reset token.
type ResetTokenResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	account, session, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:             req.Username,
		Email:                req.Email,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		TierChoice:           domain.Tier(req.Tier),
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, AuthResponse{Account: account, Session: session})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	account, session, err := h.accounts.Login(r.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Remember:   req.Remember,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, AuthResponse{Account: account, Session: session})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
}

// ValidateResetToken handles GET /api/v1/auth/reset-password/{token}
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	account, err := h.resets.ValidateToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, ResetTokenResponse{Valid: true, Username: account.Username})
}

// ResetPassword handles POST /api/v1/auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	err := h.resets.Consume(r.Context(), chi.URLParam(r, "token"), req.NewPassword, req.PasswordConfirmation)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "Your password has been reset. You can now log in."})
}
