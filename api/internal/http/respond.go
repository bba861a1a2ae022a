package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/splax/classscribe/api/internal/service/auth"
	"github.com/splax/classscribe/api/internal/service/profile"
	"github.com/splax/classscribe/api/internal/validation"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationError(w http.ResponseWriter, verr *validation.Error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Validation failed",
		"details": verr.Details,
	})
}

// decode reads a JSON body into dst and validates it. On failure the response
// has already been written and false is returned.
func (r *Router) decode(w http.ResponseWriter, req *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := r.validator.Struct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return false
		}
		r.logger.Error("request validation failed", "path", req.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
	return true
}

// writeServiceError maps service errors onto the public error contract.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, auth.ErrUserExists):
		status, msg = http.StatusBadRequest, "User already exists"
	case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, profile.ErrUsernameTaken):
		status, msg = http.StatusBadRequest, "Username already taken"
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, profile.ErrUserNotFound):
		status, msg = http.StatusNotFound, "User not found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, auth.ErrNoVerificationCode):
		status, msg = http.StatusBadRequest, "No verification code found"
	case errors.Is(err, auth.ErrInvalidVerificationCode):
		status, msg = http.StatusBadRequest, "Invalid verification code"
	case errors.Is(err, auth.ErrVerificationCodeExpired):
		status, msg = http.StatusBadRequest, "Verification code has expired"
	case errors.Is(err, auth.ErrAlreadyVerified):
		status, msg = http.StatusBadRequest, "Email is already verified"
	case errors.Is(err, auth.ErrInvalidResetToken):
		status, msg = http.StatusBadRequest, "Invalid or expired reset token"
	case errors.Is(err, auth.ErrIncorrectPassword):
		status, msg = http.StatusBadRequest, "Current password is incorrect"
	case errors.Is(err, auth.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, profile.ErrUnsupportedType):
		status, msg = http.StatusBadRequest, "Unsupported image type"
	case errors.Is(err, profile.ErrAvatarsDisabled):
		status, msg = http.StatusServiceUnavailable, "Avatar uploads are not configured"
	default:
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}
