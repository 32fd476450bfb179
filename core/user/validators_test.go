package user_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pensamiento/core/user"
	"github.com/trezcool/pensamiento/tests"
)

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		wantMsg string
	}{
		{name: "too short", pwd: "Ab1!", wantMsg: "password must contain at least 8 characters"},
		{name: "whitespace", pwd: "Abc 12!xyz", wantMsg: "password must not contain whitespace"},
		{name: "numeric", pwd: "1234567890", wantMsg: "password cannot be entirely numeric"},
		{name: "no special", pwd: "Abcdef123", wantMsg: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{name: "no upper", pwd: "abcdef1!", wantMsg: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{name: "like the name", pwd: "Jonathan1!", wantMsg: "password cannot be similar to user attributes"},
		{name: "ok", pwd: "Zq8!vwKp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag := user.CheckPassword(tt.pwd, "Jonathan", "jon@test.com")
			assert.Equal(t, tt.wantMsg, user.PasswordPolicyText(tag))
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate, translator := testutil.NewValidator()
	valid := func() user.NewUser {
		return user.NewUser{
			Name: " Ana ", Email: " ANA@test.com", Group: "A1", Role: "Student",
			Password: "Zq8!vwKp", PasswordConfirm: "Zq8!vwKp",
		}
	}

	tests := []struct {
		name    string
		mutate  func(nu *user.NewUser)
		wantErr map[string]string
	}{
		{name: "valid", mutate: func(*user.NewUser) {}},
		{name: "professor without group", mutate: func(nu *user.NewUser) { nu.Role, nu.Group = user.RoleProfessor, "" }},
		{
			name: "student without group", mutate: func(nu *user.NewUser) { nu.Group = "" },
			wantErr: map[string]string{"group": "students must belong to a group"},
		},
		{
			name: "bad group", mutate: func(nu *user.NewUser) { nu.Group = "A1/B" },
			wantErr: map[string]string{"group": "only letters, digits, spaces, dashes and underscores are allowed"},
		},
		{
			name: "bad role", mutate: func(nu *user.NewUser) { nu.Role = "dean" },
			wantErr: map[string]string{"role": "role must be one of student, professor or admin"},
		},
		{
			name: "weak password", mutate: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "password", "password" },
			wantErr: map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := nu.Validate(validate)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "ana@test.com", nu.Email)
				assert.Equal(t, "Ana", nu.Name)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}
