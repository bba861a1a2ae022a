package httpx

import (
	"net/http"

	"github.com/splax/classscribe/api/internal/service/profile"
)

type updateProfileRequest struct {
	Username     *string `json:"username" validate:"omitempty,min=3,max=30,username"`
	FirstName    *string `json:"firstName" validate:"omitempty,max=50"`
	LastName     *string `json:"lastName" validate:"omitempty,max=50"`
	Bio          *string `json:"bio" validate:"omitempty,max=500"`
	Phone        *string `json:"phone" validate:"omitempty,max=20"`
	Location     *string `json:"location" validate:"omitempty,max=100"`
	Website      *string `json:"website" validate:"omitempty,optionalurl"`
	ProfileImage *string `json:"profileImage" validate:"omitempty,optionalurl"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

type avatarRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

// handleProfile serves GET and PUT with separate read and write budgets.
func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodGet:
		if !r.allow(w, req, "user_profile_read", rateLimitUserRead, rateWindowDefault, r.rateLimitKeyUser(req)) {
			return
		}
		user, err := r.profile.Get(req.Context(), info.UserID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user.Public()})
	case http.MethodPut:
		if !r.allow(w, req, "user_profile_write", rateLimitUserWrite, rateWindowDefault, r.rateLimitKeyUser(req)) {
			return
		}
		var payload updateProfileRequest
		if !r.decode(w, req, &payload) {
			return
		}
		user, err := r.profile.Update(req.Context(), info.UserID, profile.UpdateInput{
			Username:     payload.Username,
			FirstName:    payload.FirstName,
			LastName:     payload.LastName,
			Bio:          payload.Bio,
			Phone:        payload.Phone,
			Location:     payload.Location,
			Website:      payload.Website,
			ProfileImage: payload.ProfileImage,
		})
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Profile updated successfully",
			"user":    user.Public(),
		})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for password change", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload changePasswordRequest
	if !r.decode(w, req, &payload) {
		return
	}
	if err := r.auth.ChangePassword(req.Context(), info.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully",
	})
}

func (r *Router) handleAvatar(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for avatar upload", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload avatarRequest
	if !r.decode(w, req, &payload) {
		return
	}
	upload, err := r.profile.PresignAvatar(req.Context(), info.UserID, payload.ContentType)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "upload": upload})
}
