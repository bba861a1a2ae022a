// Package session keeps a signed-in user's token and profile for client tools
// and exposes the account operations as calls that never return an error value.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/splax/classscribe/pkg/api/client"
)

const (
	authPrefix = "/api/auth/"
	logoutPath = "/api/auth/logout"
)

// Result reports the outcome of an operation. Error holds a message fit for
// display when Success is false.
type Result struct {
	Success bool
	Error   string
	Message string
	User    *client.User
}

// Context holds the current token and user and persists them through a Store.
type Context struct {
	api   *client.Client
	store Store

	mu    sync.RWMutex
	token string
	user  *client.User
}

// New restores any persisted session from store. An unreadable cached user
// discards the whole session.
func New(api *client.Client, store Store) (*Context, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Context{api: api, store: store}
	token, hasToken, err := store.Get(KeyToken)
	if err != nil {
		return nil, err
	}
	rawUser, hasUser, err := store.Get(KeyUser)
	if err != nil {
		return nil, err
	}
	if !hasToken || !hasUser {
		return c, nil
	}
	var user client.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return c, c.clear()
	}
	c.token = token
	c.user = &user
	return c, nil
}

// Token returns the current bearer token, or "".
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns a copy of the cached user.
func (c *Context) User() (client.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return client.User{}, false
	}
	return *c.user, true
}

// IsAuthenticated reports whether a token is held.
func (c *Context) IsAuthenticated() bool {
	return c.Token() != ""
}

// Login signs in and stores the token and user.
func (c *Context) Login(ctx context.Context, email, password string) Result {
	var resp client.LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.apiCall(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return failure(err)
	}
	if err := c.setSession(resp.Token, resp.User); err != nil {
		return failure(err)
	}
	user := resp.User
	return Result{Success: true, Message: resp.Message, User: &user}
}

// Register creates an account. The caller verifies the email next.
func (c *Context) Register(ctx context.Context, in client.RegisterInput) Result {
	var resp client.MessageResponse
	if err := c.apiCall(ctx, http.MethodPost, "/api/auth/register", in, &resp); err != nil {
		return failure(err)
	}
	return Result{Success: true, Message: resp.Message, User: resp.User}
}

// VerifyEmail submits a code and marks the cached user verified on success.
func (c *Context) VerifyEmail(ctx context.Context, email, code string) Result {
	var resp client.MessageResponse
	body := map[string]string{"email": email, "code": code}
	if err := c.apiCall(ctx, http.MethodPost, "/api/auth/verify-email", body, &resp); err != nil {
		return failure(err)
	}
	c.mu.Lock()
	var updated *client.User
	if c.user != nil && strings.EqualFold(c.user.Email, email) {
		u := *c.user
		u.IsEmailVerified = true
		updated = &u
	}
	c.mu.Unlock()
	if updated != nil {
		if err := c.setUser(*updated); err != nil {
			return failure(err)
		}
	}
	return Result{Success: true, Message: resp.Message}
}

// ResendCode asks for a new verification code.
func (c *Context) ResendCode(ctx context.Context, email string) Result {
	return c.acknowledge(ctx, "/api/auth/resend-code", map[string]string{"email": email})
}

// ForgotPassword requests a reset link.
func (c *Context) ForgotPassword(ctx context.Context, email string) Result {
	return c.acknowledge(ctx, "/api/auth/forgot-password", map[string]string{"email": email})
}

// ResetPassword completes a reset with the mailed token.
func (c *Context) ResetPassword(ctx context.Context, token, newPassword string) Result {
	return c.acknowledge(ctx, "/api/auth/reset-password", map[string]string{"token": token, "newPassword": newPassword})
}

// ChangePassword replaces the signed-in user's password.
func (c *Context) ChangePassword(ctx context.Context, current, next string) Result {
	return c.acknowledge(ctx, "/api/user/change-password", map[string]string{"currentPassword": current, "newPassword": next})
}

// Logout revokes the token server side and always clears local state.
func (c *Context) Logout(ctx context.Context) Result {
	var callErr error
	if c.IsAuthenticated() {
		callErr = c.apiCall(ctx, http.MethodPost, logoutPath, nil, nil)
	}
	if err := c.clear(); err != nil {
		return failure(err)
	}
	res := Result{Success: true, Message: "Logged out successfully"}
	if callErr != nil {
		res.Error = callErr.Error()
	}
	return res
}

// Profile fetches the current user and refreshes the cache.
func (c *Context) Profile(ctx context.Context) Result {
	var resp client.MessageResponse
	if err := c.apiCall(ctx, http.MethodGet, "/api/user/profile", nil, &resp); err != nil {
		return failure(err)
	}
	if resp.User == nil {
		return Result{Error: "profile missing from response"}
	}
	if err := c.setUser(*resp.User); err != nil {
		return failure(err)
	}
	return Result{Success: true, User: resp.User}
}

// UpdateProfile edits the profile and replaces the cached user.
func (c *Context) UpdateProfile(ctx context.Context, in client.ProfileUpdate) Result {
	var resp client.MessageResponse
	if err := c.apiCall(ctx, http.MethodPut, "/api/user/profile", in, &resp); err != nil {
		return failure(err)
	}
	if resp.User != nil {
		if err := c.setUser(*resp.User); err != nil {
			return failure(err)
		}
	}
	return Result{Success: true, Message: resp.Message, User: resp.User}
}

// PresignAvatar requests a direct upload target for a new profile image.
func (c *Context) PresignAvatar(ctx context.Context, contentType string) (client.AvatarUpload, Result) {
	var resp struct {
		Upload client.AvatarUpload `json:"upload"`
	}
	if err := c.apiCall(ctx, http.MethodPost, "/api/user/profile/avatar", map[string]string{"contentType": contentType}, &resp); err != nil {
		return client.AvatarUpload{}, failure(err)
	}
	return resp.Upload, Result{Success: true}
}

func (c *Context) acknowledge(ctx context.Context, path string, body any) Result {
	var resp client.MessageResponse
	if err := c.apiCall(ctx, http.MethodPost, path, body, &resp); err != nil {
		return failure(err)
	}
	return Result{Success: true, Message: resp.Message}
}

// apiCall sends every request. Public auth routes go out without a bearer
// token; logout carries it so the server can revoke it.
func (c *Context) apiCall(ctx context.Context, method, path string, body, v any) error {
	if c.api == nil {
		return errors.New("api client not configured")
	}
	token := ""
	if needsBearer(path) {
		token = c.Token()
	}
	return c.api.Do(ctx, method, path, body, token, v)
}

func needsBearer(path string) bool {
	return !strings.HasPrefix(path, authPrefix) || path == logoutPath
}

func (c *Context) setSession(token string, user client.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := c.store.Set(KeyToken, token); err != nil {
		return err
	}
	if err := c.store.Set(KeyUser, string(raw)); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = token
	c.user = &user
	c.mu.Unlock()
	return nil
}

func (c *Context) setUser(user client.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := c.store.Set(KeyUser, string(raw)); err != nil {
		return err
	}
	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	return nil
}

func (c *Context) clear() error {
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.mu.Unlock()
	if err := c.store.Delete(KeyToken); err != nil {
		return err
	}
	return c.store.Delete(KeyUser)
}

func failure(err error) Result {
	return Result{Error: err.Error()}
}
