// This file defines repository methods for responses. Responses are
// append-only: there is no update or delete, and archiving a
// template leaves its responses queryable by the owner.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/form-builder/internal/model"
)

// ResponseRepo encapsulates database queries for submitted
// responses.
type ResponseRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewResponseRepo constructs a ResponseRepo with the provided DB
// handle.
func NewResponseRepo(db *sql.DB) *ResponseRepo {
	return &ResponseRepo{db: db}
}

// Insert creates a response row. On success the ID and CreatedAt
// fields are populated. RespondentID stays NULL for anonymous
// submissions.
func (r *ResponseRepo) Insert(ctx context.Context, resp *model.Response) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return err
	}
	var respondent any
	if resp.RespondentID != nil {
		respondent = *resp.RespondentID
	}
	const qInsert = "INSERT INTO responses (template_id, respondent_id, answers) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, qInsert, resp.TemplateID, respondent, answers)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	resp.ID = uint64(id)

	const qSelect = "SELECT created_at FROM responses WHERE id = ?"
	return r.db.QueryRowContext(ctx, qSelect, resp.ID).Scan(&resp.CreatedAt)
}

// ListByTemplate returns all responses for a template newest-first.
func (r *ResponseRepo) ListByTemplate(ctx context.Context, templateID uint64) ([]*model.Response, error) {
	const q = `SELECT id, template_id, respondent_id, answers, created_at
	           FROM responses WHERE template_id = ?
	           ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Response
	for rows.Next() {
		var (
			resp       model.Response
			respondent sql.NullInt64
			answers    []byte
		)
		if err := rows.Scan(&resp.ID, &resp.TemplateID, &respondent, &answers, &resp.CreatedAt); err != nil {
			return nil, err
		}
		if respondent.Valid {
			uid := uint64(respondent.Int64)
			resp.RespondentID = &uid
		}
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &resp.Answers); err != nil {
				return nil, err
			}
		}
		out = append(out, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
