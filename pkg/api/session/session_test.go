package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/classscribe/pkg/api/client"
)

type fakeAPI struct {
	mu       sync.Mutex
	auth     map[string]string
	verified bool
	failAll  bool
}

func (f *fakeAPI) record(path, header string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth[path] = header
}

func (f *fakeAPI) authHeader(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth[path]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.record(r.URL.Path, r.Header.Get("Authorization"))
	f.mu.Lock()
	failAll, verified := f.failAll, f.verified
	if r.URL.Path == "/api/auth/verify-email" {
		f.verified = true
	}
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if failAll {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}
	user := map[string]any{"id": "u1", "email": "a@b.com", "username": "abc", "isEmailVerified": verified}
	switch r.URL.Path {
	case "/api/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "longenough1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid email or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Login successful", "token": "tok-1", "user": user})
	case "/api/auth/verify-email":
		_, _ = w.Write([]byte(`{"success":true,"message":"Email verified successfully"}`))
	case "/api/auth/logout":
		_, _ = w.Write([]byte(`{"success":true,"message":"Logged out successfully"}`))
	case "/api/user/profile":
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		if r.Method == http.MethodPut {
			user["bio"] = "updated"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "user": user})
	default:
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	}
}

func newContext(t *testing.T, store Store) (*Context, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{auth: make(map[string]string)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	cli, err := client.New(srv.URL)
	require.NoError(t, err)
	sess, err := New(cli, store)
	require.NoError(t, err)
	return sess, api
}

func TestLoginPersistsSession(t *testing.T) {
	store := NewMemoryStore()
	sess, api := newContext(t, store)

	res := sess.Login(context.Background(), "a@b.com", "longenough1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "tok-1", sess.Token())
	assert.Empty(t, api.authHeader("/api/auth/login"))

	token, ok, _ := store.Get(KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)
	raw, ok, _ := store.Get(KeyUser)
	require.True(t, ok)
	assert.Contains(t, raw, `"username":"abc"`)
}

func TestLoginFailureReturnsMessage(t *testing.T) {
	sess, _ := newContext(t, NewMemoryStore())
	res := sess.Login(context.Background(), "a@b.com", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid email or password", res.Error)
	assert.False(t, sess.IsAuthenticated())
}

func TestBearerOnlyOnProtectedRoutes(t *testing.T) {
	sess, api := newContext(t, NewMemoryStore())
	require.True(t, sess.Login(context.Background(), "a@b.com", "longenough1").Success)

	sess.ForgotPassword(context.Background(), "a@b.com")
	assert.Empty(t, api.authHeader("/api/auth/forgot-password"))

	res := sess.Profile(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Bearer tok-1", api.authHeader("/api/user/profile"))

	sess.ChangePassword(context.Background(), "longenough1", "brandnew123")
	assert.Equal(t, "Bearer tok-1", api.authHeader("/api/user/change-password"))
}

func TestVerifyEmailMarksCachedUser(t *testing.T) {
	sess, _ := newContext(t, NewMemoryStore())
	require.True(t, sess.Login(context.Background(), "a@b.com", "longenough1").Success)
	user, _ := sess.User()
	require.False(t, user.IsEmailVerified)

	res := sess.VerifyEmail(context.Background(), "a@b.com", "123456")
	require.True(t, res.Success)
	user, _ = sess.User()
	assert.True(t, user.IsEmailVerified)
}

func TestUpdateProfileReplacesCachedUser(t *testing.T) {
	sess, _ := newContext(t, NewMemoryStore())
	require.True(t, sess.Login(context.Background(), "a@b.com", "longenough1").Success)
	bio := "updated"
	res := sess.UpdateProfile(context.Background(), client.ProfileUpdate{Bio: &bio})
	require.True(t, res.Success, res.Error)
	user, _ := sess.User()
	assert.Equal(t, "updated", user.Bio)
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	store := NewMemoryStore()
	sess, api := newContext(t, store)
	require.True(t, sess.Login(context.Background(), "a@b.com", "longenough1").Success)

	api.mu.Lock()
	api.failAll = true
	api.mu.Unlock()
	res := sess.Logout(context.Background())
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, "Bearer tok-1", api.authHeader("/api/auth/logout"))
	assert.False(t, sess.IsAuthenticated())
	_, ok, _ := store.Get(KeyToken)
	assert.False(t, ok)
}

func TestFileStoreRestoresSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	sess, _ := newContext(t, NewFileStore(path))
	require.True(t, sess.Login(context.Background(), "a@b.com", "longenough1").Success)

	restored, err := New(nil, NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, "tok-1", restored.Token())
	user, ok := restored.User()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)

	res := restored.Profile(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "api client not configured", res.Error)
}

func TestCorruptCachedUserDiscardsSession(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyToken, "tok"))
	require.NoError(t, store.Set(KeyUser, "{broken"))

	sess, err := New(nil, store)
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())
	_, ok, _ := store.Get(KeyToken)
	assert.False(t, ok)
}
