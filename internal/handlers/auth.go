package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mouldconnect/apiserver/internal/services"
	"github.com/mouldconnect/apiserver/internal/token"
	"github.com/mouldconnect/apiserver/types"
)

const (
	msgRegistered  = "User successfully registered. Please verify your email with the OTP sent to your inbox."
	msgOTPResent   = "New OTP sent successfully!"
	msgVerified    = "Email verified successfully! You are now logged in."
	msgLoggedIn    = "Login successful"
	msgUserUpdated = "User data updated successfully."
)

// AuthFlows is the registration and login surface used by AuthHandler.
type AuthFlows interface {
	Register(ctx context.Context, in services.RegisterInput) (services.RegisterResult, error)
	ResendOTP(ctx context.Context, userID int) error
	VerifyOTP(ctx context.Context, userID int, code string) (services.VerifyResult, error)
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
}

// UserAccounts reads and edits the authenticated user's details.
type UserAccounts interface {
	GetDetails(ctx context.Context, targetID, actorID int) (types.User, error)
	Update(ctx context.Context, targetID, actorID int, in services.UpdateUserInput) (types.User, error)
}

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(tokenString string) (token.Claims, error)
}

// AuthHandler provides the registration, verification, login and user
// detail endpoints.
type AuthHandler struct {
	auth   AuthFlows
	users  UserAccounts
	logger *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth AuthFlows, users UserAccounts, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, users: users, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/resend-otp", handler.ResendOTP)
	r.Post("/verify-otp", handler.VerifyOTP)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/user/{userID}", handler.GetUser)
	r.With(authMiddleware).Put("/user/{userID}", handler.UpdateUser)
}

// RequireAuth enforces bearer authentication and injects the caller's
// identity into the request context.
func RequireAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := token.BearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			ctx := withIdentity(r.Context(), identity{UserID: claims.UserID, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates an unverified account and mails its OTP.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.auth.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Mobile:   string(req.Mobile),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: msgRegistered,
		UserID:  res.User.ID,
		Token:   res.Token,
	})
}

// ResendOTP issues a replacement verification code.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := h.auth.ResendOTP(r.Context(), int(req.UserID)); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgOTPResent})
}

// VerifyOTP confirms the email address and returns a token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.auth.VerifyOTP(r.Context(), int(req.UserID), req.OTP)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Message: msgVerified, Token: res.Token, User: res.User.Summary()})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Message: msgLoggedIn, Token: res.Token, User: res.User.Summary()})
}

// GetUser returns the caller's own details.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	user, err := h.users.GetDetails(r.Context(), pathUserID(r), caller.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user.Details()})
}

// UpdateUser changes the caller's display name and mobile number.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	in := services.UpdateUserInput{FullName: req.FullName}
	if req.Mobile != nil {
		mobile := string(*req.Mobile)
		in.Mobile = &mobile
	}

	user, err := h.users.Update(r.Context(), pathUserID(r), caller.UserID, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: msgUserUpdated, User: user.Details()})
}

type RegisterRequest struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Password string     `json:"password"`
	Mobile   flexString `json:"mobile"`
}

type ResendOTPRequest struct {
	UserID flexInt `json:"userId"`
}

type VerifyOTPRequest struct {
	UserID flexInt `json:"userId"`
	OTP    string  `json:"otp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest fields are optional; absent fields stay unchanged.
type UpdateUserRequest struct {
	FullName *string     `json:"fullName"`
	Mobile   *flexString `json:"mobile"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int    `json:"userId"`
	Token   string `json:"token,omitempty"`
}

type AuthResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    types.UserSummary `json:"user"`
}

type UserResponse struct {
	Message string            `json:"message,omitempty"`
	User    types.UserDetails `json:"user"`
}
