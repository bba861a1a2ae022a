package httpx

import (
	"net/http"

	"github.com/splax/classscribe/api/internal/service/auth"
)

type registerRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Username     string `json:"username" validate:"required,min=3,max=30,username"`
	ProfileImage string `json:"profileImage" validate:"omitempty,url"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,digits"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload registerRequest
	if !r.decode(w, req, &payload) {
		return
	}
	user, err := r.auth.Register(req.Context(), auth.RegisterInput{
		Email:        payload.Email,
		Password:     payload.Password,
		Username:     payload.Username,
		ProfileImage: payload.ProfileImage,
	})
	if err != nil {
		r.recordAuthOutcome("register", "failure")
		r.writeServiceError(w, req, err)
		return
	}
	r.recordAuthOutcome("register", "success")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User registered successfully. Please check your email for the verification code.",
		"user":    user.Public(),
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload loginRequest
	if !r.decode(w, req, &payload) {
		return
	}
	user, session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.recordAuthOutcome("login", "failure")
		r.writeServiceError(w, req, err)
		return
	}
	r.recordAuthOutcome("login", "success")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Login successful",
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      user.Public(),
	})
}

func (r *Router) handleVerifyEmail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload verifyEmailRequest
	if !r.decode(w, req, &payload) {
		return
	}
	if _, err := r.auth.VerifyEmail(req.Context(), payload.Email, payload.Code); err != nil {
		r.recordAuthOutcome("verify_email", "failure")
		r.writeServiceError(w, req, err)
		return
	}
	r.recordAuthOutcome("verify_email", "success")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified successfully",
	})
}

func (r *Router) handleResendCode(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload emailRequest
	if !r.decode(w, req, &payload) {
		return
	}
	if err := r.auth.ResendCode(req.Context(), payload.Email); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Verification code sent successfully",
	})
}

func (r *Router) handleForgotPassword(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload emailRequest
	if !r.decode(w, req, &payload) {
		return
	}
	r.auth.ForgotPassword(req.Context(), payload.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "If an account with that email exists, a password reset link has been sent.",
	})
}

func (r *Router) handleResetPassword(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload resetPasswordRequest
	if !r.decode(w, req, &payload) {
		return
	}
	if err := r.auth.ResetPassword(req.Context(), payload.Token, payload.NewPassword); err != nil {
		r.recordAuthOutcome("reset_password", "failure")
		r.writeServiceError(w, req, err)
		return
	}
	r.recordAuthOutcome("reset_password", "success")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset successfully"})
}

// handleLogout always succeeds. A valid bearer token, when present, is revoked.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if token, err := bearerToken(req.Header.Get("Authorization")); err == nil {
		if err := r.auth.Logout(req.Context(), token); err != nil {
			r.logger.Error("token revocation failed", "path", req.URL.Path, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}
