package pg

import (
	"context"

	"docvault.org/internal/auth"
	"docvault.org/internal/ids"
)

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, resource, action, created_at
		from permissions
		order by name`)
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

// EnsurePermissions inserts any catalog entries that are not present yet.
// Existing rows are left untouched so operator edits to descriptions survive
// restarts.
func (s *Store) EnsurePermissions(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		_, err := s.db.ExecContext(ctx, `
			insert into permissions (id, name, description, resource, action)
			values ($1, $2, $3, $4, $5)
			on conflict (name) do nothing`,
			ids.New(), p.Name, p.Description, p.Resource, p.Action)
		if err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}
