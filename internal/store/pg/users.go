package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docvault.org/internal/auth"
	"docvault.org/internal/ids"
)

const userColumns = `id, email, password_hash, first_name, last_name, is_active, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (auth.User, error) {
	var (
		u         auth.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, nu auth.NewUser) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, first_name, last_name)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns,
		ids.New(), nu.Email, nu.PasswordHash, nu.FirstName, nu.LastName)
	u, err := scanUser(row)
	if err != nil {
		return auth.User{}, mapWriteError(err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	appendSet := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.FirstName != nil {
		appendSet("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		appendSet("last_name", *upd.LastName)
	}
	if upd.PasswordHash != nil {
		appendSet("password_hash", *upd.PasswordHash)
	}
	if upd.IsActive != nil {
		appendSet("is_active", *upd.IsActive)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.User{}, mapWriteError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.User{}, err
		}
		if aff == 0 {
			return auth.User{}, auth.ErrNotFound
		}
	}
	return s.UserByID(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context, page, limit int) ([]auth.User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at desc limit $1 offset $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range users {
		roles, err := s.RolesForUser(ctx, users[i].ID)
		if err != nil {
			return nil, 0, err
		}
		users[i].Roles = roles
	}
	return users, total, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login = now(), updated_at = now() where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
