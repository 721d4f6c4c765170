package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docvault.org/internal/docs"
	"docvault.org/internal/ids"
)

const documentColumns = `id, filename, original_name, mime_type, size, path,
	uploaded_by, is_public, metadata, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (docs.Document, error) {
	var (
		d    docs.Document
		meta []byte
	)
	err := row.Scan(&d.ID, &d.Filename, &d.OriginalName, &d.MimeType, &d.Size,
		&d.Path, &d.UploadedBy, &d.IsPublic, &meta, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return docs.Document{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return docs.Document{}, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d docs.Document) (docs.Document, error) {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return docs.Document{}, fmt.Errorf("encode document metadata: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into documents (id, filename, original_name, mime_type, size, path,
			uploaded_by, is_public, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+documentColumns,
		ids.New(), d.Filename, d.OriginalName, d.MimeType, d.Size, d.Path,
		d.UploadedBy, d.IsPublic, meta)
	out, err := scanDocument(row)
	if err != nil {
		return docs.Document{}, mapDocWriteError(err)
	}
	return out, nil
}

func (s *Store) DocumentByID(ctx context.Context, id string) (docs.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+documentColumns+` from documents where id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return docs.Document{}, docs.ErrNotFound
	}
	if err != nil {
		return docs.Document{}, err
	}
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context, viewerID string, page, limit int) ([]docs.Document, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from documents
		where uploaded_by = $1 or is_public`, viewerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := s.db.QueryContext(ctx, `
		select `+documentColumns+` from documents
		where uploaded_by = $1 or is_public
		order by created_at desc
		limit $2 offset $3`, viewerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []docs.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) UpdateDocument(ctx context.Context, id string, upd docs.Update) (docs.Document, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.IsPublic != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_public = $%d", idx))
		args = append(args, *upd.IsPublic)
		idx++
	}
	if len(upd.Metadata) > 0 {
		meta, err := json.Marshal(upd.Metadata)
		if err != nil {
			return docs.Document{}, fmt.Errorf("encode document metadata: %w", err)
		}
		// jsonb concatenation merges key-wise, new values win.
		setClauses = append(setClauses, fmt.Sprintf("metadata = metadata || $%d", idx))
		args = append(args, meta)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update documents set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return docs.Document{}, mapDocWriteError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return docs.Document{}, err
		}
		if aff == 0 {
			return docs.Document{}, docs.ErrNotFound
		}
	}
	return s.DocumentByID(ctx, id)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return docs.ErrNotFound
	}
	return nil
}
