package echoapi

import (
	"context"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Portal is the front-end a role lands on after login.
type Portal string

const (
	PortalStudent   Portal = "student"
	PortalProfessor Portal = "professor"
	PortalAdmin     Portal = "admin"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name   string    `json:"name,omitempty"`
	Email  string    `json:"email,omitempty"`
	Group  string    `json:"group,omitempty"`
	Role   user.Role `json:"role"`
	Portal Portal    `json:"portal"`
}

// UserID returns the ID of the authenticated user.
func (c Claims) UserID() (int, error) {
	id, err := strconv.Atoi(c.Subject)
	if err != nil {
		return 0, errUnauthorized
	}
	return id, nil
}

// portalFor selects the portal of a role.
func portalFor(role user.Role) (Portal, error) {
	switch role {
	case user.RoleStudent:
		return PortalStudent, nil
	case user.RoleProfessor:
		return PortalProfessor, nil
	case user.RoleAdmin:
		return PortalAdmin, nil
	}
	return "", errors.Errorf("unknown role %q", role)
}

type authenticator struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) claims(usr user.User) (*Claims, error) {
	portal, err := portalFor(usr.Role)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:   usr.Name,
		Email:  usr.Email,
		Group:  usr.Group,
		Role:   usr.Role,
		Portal: portal,
	}, nil
}

// token generates a signed JWT token string representing the user claims.
func (a *authenticator) token(usr user.User) (string, error) {
	claims, err := a.claims(usr)
	if err != nil {
		return "", err
	}
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	ss, err := jwt.NewWithClaims(method, claims).SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// NewToken returns a bearer token for usr signed with the secret key of conf.
func NewToken(conf *core.Config, usr user.User) (string, error) {
	return newAuthenticator(conf).token(usr)
}

func (a *authenticator) login(ctx context.Context, svc *user.Service, email, pwd string) (string, user.User, error) {
	usr, err := svc.Authenticate(ctx, email, pwd)
	if err != nil {
		return "", user.User{}, err
	}
	token, err := a.token(usr)
	if err != nil {
		return "", user.User{}, errors.Wrap(err, "generating token")
	}
	return token, usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
