package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Website  string `json:"website" validate:"omitempty,url"`
}

type code struct {
	Code string `json:"code" validate:"required,len=6,digits"`
}

func TestStructAcceptsValidInput(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(signup{Email: "a@b.com", Password: "longenough1", Username: "abc"}))
	assert.NoError(t, v.Struct(code{Code: "012345"}))
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	v := New()
	err := v.Struct(signup{Email: "nope", Password: "short", Username: "a b", Website: "not a url"})
	var verr *Error
	require.True(t, errors.As(err, &verr))

	fields := map[string]string{}
	for _, d := range verr.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Please provide a valid email address", fields["email"])
	assert.Equal(t, "password must be at least 8 characters long", fields["password"])
	assert.Contains(t, fields, "username")
	assert.Equal(t, "website must be a valid URL", fields["website"])
	assert.Contains(t, verr.Error(), "validation failed")
}

func TestStructRequiredAndDigits(t *testing.T) {
	v := New()
	err := v.Struct(code{})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []FieldError{{Field: "code", Message: "code is required"}}, verr.Details)

	err = v.Struct(code{Code: "12a456"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "code must contain only digits", verr.Details[0].Message)
}

type profilePatch struct {
	Website *string `json:"website" validate:"omitempty,optionalurl"`
}

func TestOptionalURL(t *testing.T) {
	v := New()
	empty, good, bad := "", "https://example.com/me", "ftp://example.com"
	assert.NoError(t, v.Struct(profilePatch{}))
	assert.NoError(t, v.Struct(profilePatch{Website: &empty}))
	assert.NoError(t, v.Struct(profilePatch{Website: &good}))

	var verr *Error
	require.True(t, errors.As(v.Struct(profilePatch{Website: &bad}), &verr))
	assert.Equal(t, "website must be a valid URL", verr.Details[0].Message)
}
