package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:5000"

// Client provides typed access to the ClassScribe account API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Details []FieldError
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	if len(e.Details) > 0 {
		parts := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			parts = append(parts, d.Message)
		}
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
	}
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Do sends a JSON request and decodes the JSON response into v. An empty token
// sends no Authorization header.
func (c *Client) Do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := extractError(resp.Body)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) APIError {
	var payload struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return APIError{}
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return APIError{Message: strings.TrimSpace(string(data))}
	}
	return APIError{Message: strings.TrimSpace(payload.Error), Details: payload.Details}
}

// User reflects the public user payload.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	ProfileImage    string    `json:"profileImage"`
	Bio             string    `json:"bio"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Phone           string    `json:"phone"`
	Location        string    `json:"location"`
	Website         string    `json:"website"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

// MessageResponse is the common acknowledgement payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ProfileUpdate lists editable fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username     *string `json:"username,omitempty"`
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Location     *string `json:"location,omitempty"`
	Website      *string `json:"website,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

// AvatarUpload is a presigned direct upload target.
type AvatarUpload struct {
	Method    string    `json:"method"`
	UploadURL string    `json:"uploadUrl"`
	ImageURL  string    `json:"imageUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, in RegisterInput) (MessageResponse, error) {
	var resp MessageResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/register", in, "", &resp)
	return resp, err
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// VerifyEmail submits the emailed verification code.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) (MessageResponse, error) {
	var resp MessageResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/verify-email", map[string]string{"email": email, "code": code}, "", &resp)
	return resp, err
}

// ResendCode requests a fresh verification code.
func (c *Client) ResendCode(ctx context.Context, email string) (MessageResponse, error) {
	var resp MessageResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/resend-code", map[string]string{"email": email}, "", &resp)
	return resp, err
}

// ForgotPassword requests a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (MessageResponse, error) {
	var resp MessageResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email}, "", &resp)
	return resp, err
}

// ResetPassword completes a reset with the mailed token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (MessageResponse, error) {
	var resp MessageResponse
	body := map[string]string{"token": token, "newPassword": newPassword}
	err := c.Do(ctx, http.MethodPost, "/api/auth/reset-password", body, "", &resp)
	return resp, err
}

// Logout revokes the bearer token when one is given.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, token, nil)
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context, token string) (User, error) {
	var resp MessageResponse
	if err := c.Do(ctx, http.MethodGet, "/api/user/profile", nil, token, &resp); err != nil {
		return User{}, err
	}
	if resp.User == nil {
		return User{}, fmt.Errorf("decode response: user missing")
	}
	return *resp.User, nil
}

// UpdateProfile edits the authenticated user's profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, in ProfileUpdate) (User, error) {
	var resp MessageResponse
	if err := c.Do(ctx, http.MethodPut, "/api/user/profile", in, token, &resp); err != nil {
		return User{}, err
	}
	if resp.User == nil {
		return User{}, fmt.Errorf("decode response: user missing")
	}
	return *resp.User, nil
}

// ChangePassword replaces the password after checking the current one.
func (c *Client) ChangePassword(ctx context.Context, token, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.Do(ctx, http.MethodPost, "/api/user/change-password", body, token, nil)
}

// AvatarUploadURL requests a presigned upload for a new profile image.
func (c *Client) AvatarUploadURL(ctx context.Context, token, contentType string) (AvatarUpload, error) {
	var resp struct {
		Upload AvatarUpload `json:"upload"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/user/profile/avatar", map[string]string{"contentType": contentType}, token, &resp); err != nil {
		return AvatarUpload{}, err
	}
	return resp.Upload, nil
}
