// This file defines repository methods for templates and their share
// grants. Questions are stored as an ordered JSON array in the
// `templates.questions` column; shares live in the `template_shares`
// table keyed by (template_id, grantee_email). Reads used for
// authorization always hit the primary, so a share or visibility
// change is observed by the very next authorize call.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"encoding/json"
	"errors"
	"strings"

	"github.com/iliyamo/form-builder/internal/model"
)

// TemplateRepo encapsulates all database queries related to
// templates. It depends on a sql.DB connection configured elsewhere.
type TemplateRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewTemplateRepo constructs a TemplateRepo with the provided DB
// handle, allowing dependency injection of the database in tests and
// at startup.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = "id, owner_id, title, description, questions, visibility, archived, share_link, created_at, updated_at"

// scanTemplate reads one row into a Template, decoding the questions
// JSON column. Shares are loaded separately.
func scanTemplate(row interface{ Scan(...any) error }) (*model.Template, error) {
	var (
		t         model.Template
		questions []byte
		link      sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &questions,
		&t.Visibility, &t.Archived, &link, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &t.Questions); err != nil {
			return nil, err
		}
	}
	t.ShareLink = link.String
	return &t, nil
}

// Insert creates a new template row. On success the ID, CreatedAt
// and UpdatedAt fields are populated so callers receive a fully
// populated record.
func (r *TemplateRepo) Insert(ctx context.Context, t *model.Template) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	const qInsert = `INSERT INTO templates (owner_id, title, description, questions, visibility, archived)
	                 VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, qInsert,
		t.OwnerID, t.Title, t.Description, questions, t.Visibility, t.Archived)
	if err != nil {
		return err // propagate DB errors to the caller
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)

	// Follow-up SELECT to populate default timestamp fields.
	const qSelect = "SELECT created_at, updated_at FROM templates WHERE id = ?"
	return r.db.QueryRowContext(ctx, qSelect, t.ID).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetByID fetches a template with its shares. It returns
// ErrTemplateNotFound if no row is found. Ownership and access are
// enforced above the repository layer by the access engine.
func (r *TemplateRepo) GetByID(ctx context.Context, id uint64) (*model.Template, error) {
	const q = "SELECT " + templateColumns + " FROM templates WHERE id = ?"
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if t.Shares, err = r.loadShares(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// GetByShareLink resolves a minted shareable-link token to its
// template. Returns ErrTemplateNotFound for unknown tokens.
func (r *TemplateRepo) GetByShareLink(ctx context.Context, token string) (*model.Template, error) {
	const q = "SELECT " + templateColumns + " FROM templates WHERE share_link = ?"
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if t.Shares, err = r.loadShares(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListByOwner returns the owner's templates newest-first. Archived
// templates are excluded unless includeArchived is set.
func (r *TemplateRepo) ListByOwner(ctx context.Context, ownerID uint64, includeArchived bool) ([]*model.Template, error) {
	q := "SELECT " + templateColumns + " FROM templates WHERE owner_id = ?"
	if !includeArchived {
		q += " AND archived = 0"
	}
	q += " ORDER BY created_at DESC, id DESC"
	return r.queryTemplates(ctx, q, ownerID)
}

// ListPublic returns public, non-archived templates newest-first.
// When search is non-empty it is matched against title and
// description.
func (r *TemplateRepo) ListPublic(ctx context.Context, search string) ([]*model.Template, error) {
	q := "SELECT " + templateColumns + ` FROM templates
	      WHERE visibility = 'public' AND archived = 0`
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		q += " AND (title LIKE ? OR description LIKE ?)"
		pat := "%" + s + "%"
		args = append(args, pat, pat)
	}
	q += " ORDER BY created_at DESC, id DESC"
	return r.queryTemplates(ctx, q, args...)
}

func (r *TemplateRepo) queryTemplates(ctx context.Context, q string, args ...any) ([]*model.Template, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update persists the mutable template fields (title, description,
// questions, visibility). Archived state changes only through
// Archive. Returns sql.ErrNoRows when the template does not exist.
func (r *TemplateRepo) Update(ctx context.Context, t *model.Template) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	const q = `UPDATE templates
	           SET title = ?, description = ?, questions = ?, visibility = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, t.Title, t.Description, questions, t.Visibility, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Archive marks the template archived and forces visibility back to
// private in the same statement, so no reader can observe an
// archived-but-public row. Returns sql.ErrNoRows when the template
// does not exist.
func (r *TemplateRepo) Archive(ctx context.Context, id uint64) error {
	const q = `UPDATE templates
	           SET archived = 1, visibility = 'private', updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertShare inserts or replaces the grant for a grantee email. The
// unique key on (template_id, grantee_email) makes re-sharing to the
// same grantee replace the level instead of appending a duplicate.
func (r *TemplateRepo) UpsertShare(ctx context.Context, s model.Share) error {
	const q = `INSERT INTO template_shares (template_id, grantee_email, grantee_user_id, level)
	           VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE level = VALUES(level), grantee_user_id = VALUES(grantee_user_id)`
	var uid any
	if s.GranteeUserID != 0 {
		uid = s.GranteeUserID
	}
	_, err := r.db.ExecContext(ctx, q,
		s.TemplateID, strings.ToLower(strings.TrimSpace(s.GranteeEmail)), uid, s.Level)
	return err
}

// SetShareLink records a freshly minted link token. The write only
// succeeds while no token exists, keeping a minted link stable. A
// unique-key collision with another template's token surfaces as
// ErrConflict so the caller can retry with a new token.
func (r *TemplateRepo) SetShareLink(ctx context.Context, id uint64, token string) error {
	const q = "UPDATE templates SET share_link = ? WHERE id = ? AND share_link IS NULL"
	res, err := r.db.ExecContext(ctx, q, token, id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// loadShares returns the share grants for a template in creation
// order.
func (r *TemplateRepo) loadShares(ctx context.Context, templateID uint64) ([]model.Share, error) {
	const q = `SELECT template_id, grantee_email, COALESCE(grantee_user_id, 0), level, created_at
	           FROM template_shares WHERE template_id = ? ORDER BY created_at, grantee_email`
	rows, err := r.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Share
	for rows.Next() {
		var s model.Share
		if err := rows.Scan(&s.TemplateID, &s.GranteeEmail, &s.GranteeUserID, &s.Level, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BackfillShareUserID resolves pending email-keyed grants for a user
// who has just registered or logged in, so future matches can use
// the stable user id instead of the email string.
func (r *TemplateRepo) BackfillShareUserID(ctx context.Context, email string, userID uint64) error {
	const q = `UPDATE template_shares SET grantee_user_id = ?
	           WHERE grantee_email = ? AND grantee_user_id IS NULL`
	_, err := r.db.ExecContext(ctx, q, userID, strings.ToLower(strings.TrimSpace(email)))
	return err
}
