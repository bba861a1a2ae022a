package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPublicOmitsSecrets(t *testing.T) {
	token := "reset-token"
	code := "123456"
	u := &User{
		ID:                 "u1",
		Email:              "a@b.com",
		Username:           "abc",
		PasswordHash:       []byte("$2a$12$hash"),
		ResetPasswordToken: &token,
		VerificationCode:   &code,
		Role:               RoleStudent,
	}
	raw, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, secret := range []string{"hash", "reset-token", "123456", "password", "verificationCode"} {
		if strings.Contains(body, secret) {
			t.Fatalf("public view leaks %q: %s", secret, body)
		}
	}
	if !strings.Contains(body, `"isEmailVerified":false`) {
		t.Fatalf("expected verification flag in %s", body)
	}
}

func TestPatchApplyClearsSecrets(t *testing.T) {
	code := "654321"
	exp := time.Now().Add(time.Minute)
	u := &User{VerificationCode: &code, VerificationCodeExpires: &exp, Bio: "old"}
	verified := true
	bio := "new"
	UserPatch{ClearVerification: true, IsEmailVerified: &verified, Bio: &bio}.Apply(u)
	if u.VerificationCode != nil || u.VerificationCodeExpires != nil {
		t.Fatal("expected verification state cleared")
	}
	if !u.IsEmailVerified || u.Bio != "new" {
		t.Fatalf("unexpected user after patch: %+v", u)
	}
}

func TestCloneIsDeep(t *testing.T) {
	code := "111111"
	u := &User{PasswordHash: []byte("abc"), VerificationCode: &code}
	c := u.Clone()
	c.PasswordHash[0] = 'x'
	*c.VerificationCode = "222222"
	if string(u.PasswordHash) != "abc" || *u.VerificationCode != "111111" {
		t.Fatal("clone shares memory with original")
	}
}

func TestExpiryChecks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Minute)
	u := &User{VerificationCodeExpires: &exp, ResetPasswordExpires: &exp}
	if u.VerificationExpired(now) || u.ResetExpired(now) {
		t.Fatal("expected secrets to be live")
	}
	if !u.VerificationExpired(exp) || !u.ResetExpired(exp.Add(time.Second)) {
		t.Fatal("expected secrets to be expired")
	}
	if !(&User{}).VerificationExpired(now) {
		t.Fatal("missing expiry counts as expired")
	}
}
