package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultPhoto = "default.jpg"

type User struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name"`
	Email                string             `json:"email" bson:"email"`
	Photo                string             `json:"photo" bson:"photo"`
	Role                 Role               `json:"role" bson:"role"`
	Password             string             `json:"-" bson:"password"`
	PasswordChangedAt    *time.Time         `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string             `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time         `json:"-" bson:"passwordResetExpires,omitempty"`
	Active               bool               `json:"-" bson:"active"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Both sides are compared at second precision, the precision
// of the token's iat claim.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

// PublicProfile is what other users may see of an account.
type PublicProfile struct {
	ID    primitive.ObjectID `json:"id" bson:"_id"`
	Name  string             `json:"name" bson:"name"`
	Email string             `json:"email,omitempty" bson:"email,omitempty"`
	Photo string             `json:"photo,omitempty" bson:"photo,omitempty"`
	Role  Role               `json:"role,omitempty" bson:"role,omitempty"`
}

type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// NewUser validates the signup payload. The caller hashes the password.
func NewUser(in SignupInput) (*User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Validate(in); err != nil {
		return nil, err
	}
	return &User{
		Name:     in.Name,
		Email:    in.Email,
		Photo:    DefaultPhoto,
		Role:     RoleUser,
		Password: in.Password,
		Active:   true,
	}, nil
}

type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// ProfilePatch is what users may change about themselves.
type ProfilePatch struct {
	Name            *string `json:"name" validate:"omitempty,min=1"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Photo           *string `json:"photo" validate:"omitempty,min=1"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (p ProfilePatch) Update() (bson.M, error) {
	if p.Password != nil || p.PasswordConfirm != nil {
		return nil, &FieldError{
			Field:   "password",
			Message: "This route is not for password updates. Please use /updateMyPassword.",
		}
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &email
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	set := bson.M{}
	if p.Name != nil {
		set["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Photo != nil {
		set["photo"] = *p.Photo
	}
	return set, nil
}

// AdminUserPatch is what admins may change about any account. Passwords
// are never set through it.
type AdminUserPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Photo *string `json:"photo" validate:"omitempty,min=1"`
	Role  *Role   `json:"role" validate:"omitempty,oneof=user guide lead-guide admin"`
}

func (p AdminUserPatch) Update() (bson.M, error) {
	set, err := ProfilePatch{Name: p.Name, Email: p.Email, Photo: p.Photo}.Update()
	if err != nil {
		return nil, err
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	return set, nil
}
