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

const roleColumns = `id, name, description, is_default, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (auth.Role, error) {
	var r auth.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.IsDefault, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return auth.Role{}, err
	}
	return r, nil
}

func (s *Store) CreateRole(ctx context.Context, name, description string, isDefault bool) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, is_default)
		values ($1, $2, $3, $4)
		returning `+roleColumns,
		ids.New(), name, description, isDefault)
	r, err := scanRole(row)
	if err != nil {
		return auth.Role{}, mapWriteError(err)
	}
	return r, nil
}

func (s *Store) RoleByID(ctx context.Context, id string) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	return r, nil
}

func (s *Store) RoleByName(ctx context.Context, name string) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where name = $1`, name)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	return r, nil
}

// DefaultRole returns the earliest-created role flagged default. Nothing
// enforces default uniqueness at the data layer, so ordering makes the pick
// deterministic when more than one is flagged.
func (s *Store) DefaultRole(ctx context.Context) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where is_default order by created_at, id limit 1`)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		perms, err := s.PermissionsForRole(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.Role{}, mapWriteError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Role{}, err
		}
		if aff == 0 {
			return auth.Role{}, auth.ErrNotFound
		}
	}
	return s.RoleByID(ctx, id)
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
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

func (s *Store) RolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_default, r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) PermissionNamesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.name
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join user_roles ur on ur.role_id = rp.role_id
		where ur.user_id = $1
		order by p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		on conflict do nothing`, userID, roleID)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Store) RemoveRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id = $1 and role_id = $2`, userID, roleID)
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

// ReplaceRoleGrants swaps the role's full grant set in one transaction so
// concurrent permission reads never observe a half-applied set. A permission
// name matching no catalog row aborts the whole replacement, so a typo never
// results in a role silently granted less than requested.
func (s *Store) ReplaceRoleGrants(ctx context.Context, roleID string, permissionNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, name := range permissionNames {
		res, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2`, roleID, name)
		if err != nil {
			return mapWriteError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if aff == 0 {
			return fmt.Errorf("%w: unknown permission %q", auth.ErrInvalidInput, name)
		}
	}
	return tx.Commit()
}

func (s *Store) PermissionsForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.description, p.resource, p.action, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
