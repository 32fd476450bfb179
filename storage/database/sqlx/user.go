package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/user"
)

const userColumns = `id, name, email, "group", role, initial_profile, is_active, password_hash, created_at, updated_at, last_login`

var userOrderingColumns = map[string]string{
	"id":         "id",
	"name":       "LOWER(name)",
	"email":      "email",
	"group":      `"group"`,
	"role":       "role",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRow struct {
	ID             int       `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	Group          string    `db:"group"`
	Role           string    `db:"role"`
	InitialProfile string    `db:"initial_profile"`
	IsActive       bool      `db:"is_active"`
	PasswordHash   []byte    `db:"password_hash"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	LastLogin      null.Time `db:"last_login"`
}

func boilUser(usr user.User) userRow {
	row := userRow{
		ID:             usr.ID,
		Name:           usr.Name,
		Email:          usr.Email,
		Group:          usr.Group,
		Role:           string(usr.Role),
		InitialProfile: usr.InitialProfile,
		IsActive:       usr.IsActive,
		PasswordHash:   usr.PasswordHash,
		CreatedAt:      usr.CreatedAt,
		UpdatedAt:      usr.UpdatedAt,
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin)
	}
	return row
}

func unboilUser(row userRow) user.User {
	return user.User{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		Group:          row.Group,
		Role:           user.Role(row.Role),
		InitialProfile: row.InitialProfile,
		IsActive:       row.IsActive,
		PasswordHash:   row.PasswordHash,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
		LastLogin:      row.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedID int) error {
	var count int
	q := repo.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`)
	if err := sqlx.GetContext(ctx, repo.db, &count, q, email, excludedID); err != nil {
		return errors.Wrap(err, "counting users by email")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := boilUser(usr)
	q := repo.db.Rebind(`
		INSERT INTO users (name, email, "group", role, initial_profile, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := repo.db.QueryRowxContext(
		ctx, q,
		row.Name, row.Email, row.Group, row.Role, row.InitialProfile, row.IsActive, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin,
	).Scan(&usr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, cond string, arg interface{}) (user.User, error) {
	var row userRow
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + cond)
	if err := sqlx.GetContext(ctx, repo.db, &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return unboilUser(row), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, "id = ?", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = ?", email)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if filter.Roles != nil {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		if len(roles) == 0 {
			return []user.User{}, nil
		}
		conds = append(conds, "role IN (?)")
		args = append(args, roles)
	}
	if filter.Group != "" {
		conds = append(conds, `LOWER("group") = LOWER(?)`)
		args = append(args, filter.Group)
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *filter.IsActive)
	}

	q := `SELECT ` + userColumns + ` FROM users` + whereClause(conds) +
		orderByClause(ordering, userOrderingColumns, "LOWER(name) ASC, id ASC")
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}

	var rows []userRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, unboilUser(row))
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := boilUser(usr)
	q := repo.db.Rebind(`
		UPDATE users
		SET name = ?, email = ?, "group" = ?, role = ?, initial_profile = ?, is_active = ?,
			password_hash = ?, updated_at = ?, last_login = ?
		WHERE id = ?`)
	res, err := repo.db.ExecContext(
		ctx, q,
		row.Name, row.Email, row.Group, row.Role, row.InitialProfile, row.IsActive,
		row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = checkRowsAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}
