package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/pensamiento/core"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
)

var Roles = []Role{RoleStudent, RoleProfessor, RoleAdmin}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin:
		return true
	}
	return false
}

// CanIssueAwards reports whether the role may issue points awards.
func (r Role) CanIssueAwards() bool {
	switch r {
	case RoleProfessor, RoleAdmin:
		return true
	case RoleStudent:
		return false
	}
	return false
}

type User struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Group          string    `json:"group"`
	Role           Role      `json:"role"`
	InitialProfile string    `json:"initial_profile,omitempty"`
	IsActive       bool      `json:"is_active"`
	PasswordHash   []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
	LastLogin      time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u *User) IsProfessor() bool { return u.Role == RoleProfessor }
func (u *User) IsStudent() bool   { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email"`
	Group           string `json:"group" validate:"omitempty,max=50,groupname"`
	Role            Role   `json:"role" validate:"required,userrole"`
	InitialProfile  string `json:"initial_profile" validate:"omitempty,max=50"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Group = core.CleanString(nu.Group)
	nu.InitialProfile = core.CleanString(nu.InitialProfile)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Roles    []Role `query:"role"`
	Group    string `query:"group"`
	IsActive *bool  `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Group == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Group = core.CleanString(qf.Group)
}
