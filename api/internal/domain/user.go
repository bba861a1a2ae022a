package domain

import "time"

// Roles a user may hold.
const (
	RoleStudent = "student"
	RoleUser    = "user"
)

// User represents a ClassScribe account with its credential and profile state.
type User struct {
	ID                      string
	Email                   string
	Username                string
	PasswordHash            []byte
	ResetPasswordToken      *string
	ResetPasswordExpires    *time.Time
	VerificationCode        *string
	VerificationCodeExpires *time.Time
	ProfileImage            string
	Bio                     string
	FirstName               string
	LastName                string
	Phone                   string
	Location                string
	Website                 string
	Role                    string
	IsEmailVerified         bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Clone returns a deep copy so callers never share pointers with a store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.PasswordHash != nil {
		c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	c.ResetPasswordToken = cloneString(u.ResetPasswordToken)
	c.ResetPasswordExpires = cloneTime(u.ResetPasswordExpires)
	c.VerificationCode = cloneString(u.VerificationCode)
	c.VerificationCodeExpires = cloneTime(u.VerificationCodeExpires)
	return &c
}

// Public projects the user onto the fields safe to return to clients.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		ProfileImage:    u.ProfileImage,
		Bio:             u.Bio,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		Location:        u.Location,
		Website:         u.Website,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

// PublicUser is the client facing view of a User. It carries no secrets.
type PublicUser struct {
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

// UserPatch describes a shallow update. Nil fields are left untouched and the
// Clear flags null out single-use secrets. When IfResetToken or
// IfVerificationCode is set the update only applies while the stored secret
// still equals it, which makes consuming a secret a compare-and-swap.
type UserPatch struct {
	IfResetToken            *string
	IfVerificationCode      *string
	Username                *string
	PasswordHash            []byte
	ResetPasswordToken      *string
	ResetPasswordExpires    *time.Time
	ClearResetPassword      bool
	VerificationCode        *string
	VerificationCodeExpires *time.Time
	ClearVerification       bool
	ProfileImage            *string
	Bio                     *string
	FirstName               *string
	LastName                *string
	Phone                   *string
	Location                *string
	Website                 *string
	IsEmailVerified         *bool
}

// Precondition reports whether u still holds the secrets the patch expects.
func (p UserPatch) Precondition(u *User) bool {
	if p.IfResetToken != nil && (u.ResetPasswordToken == nil || *u.ResetPasswordToken != *p.IfResetToken) {
		return false
	}
	if p.IfVerificationCode != nil && (u.VerificationCode == nil || *u.VerificationCode != *p.IfVerificationCode) {
		return false
	}
	return true
}

// HasPrecondition reports whether the patch is conditional.
func (p UserPatch) HasPrecondition() bool {
	return p.IfResetToken != nil || p.IfVerificationCode != nil
}

// Apply merges the patch into u in place.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.PasswordHash != nil {
		u.PasswordHash = append([]byte(nil), p.PasswordHash...)
	}
	if p.ClearResetPassword {
		u.ResetPasswordToken = nil
		u.ResetPasswordExpires = nil
	} else {
		if p.ResetPasswordToken != nil {
			u.ResetPasswordToken = cloneString(p.ResetPasswordToken)
		}
		if p.ResetPasswordExpires != nil {
			u.ResetPasswordExpires = cloneTime(p.ResetPasswordExpires)
		}
	}
	if p.ClearVerification {
		u.VerificationCode = nil
		u.VerificationCodeExpires = nil
	} else {
		if p.VerificationCode != nil {
			u.VerificationCode = cloneString(p.VerificationCode)
		}
		if p.VerificationCodeExpires != nil {
			u.VerificationCodeExpires = cloneTime(p.VerificationCodeExpires)
		}
	}
	setString(&u.ProfileImage, p.ProfileImage)
	setString(&u.Bio, p.Bio)
	setString(&u.FirstName, p.FirstName)
	setString(&u.LastName, p.LastName)
	setString(&u.Phone, p.Phone)
	setString(&u.Location, p.Location)
	setString(&u.Website, p.Website)
	if p.IsEmailVerified != nil {
		u.IsEmailVerified = *p.IsEmailVerified
	}
}

// VerificationExpired reports whether the pending verification code is past its expiry.
func (u *User) VerificationExpired(now time.Time) bool {
	if u.VerificationCodeExpires == nil {
		return true
	}
	return !now.Before(*u.VerificationCodeExpires)
}

// ResetExpired reports whether the pending reset token is past its expiry.
func (u *User) ResetExpired(now time.Time) bool {
	if u.ResetPasswordExpires == nil {
		return true
	}
	return !now.Before(*u.ResetPasswordExpires)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
