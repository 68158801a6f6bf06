package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ideahub/session-server-go/internal/model"
)

type IdeaRepository interface {
	FindByID(ctx context.Context, id string) (*model.Idea, error)
	FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.IdeaRef, error)
	// AppendSession adds sessionID to the idea's back-reference list.
	// Idempotent: a second append of the same id is a no-op.
	AppendSession(ctx context.Context, ideaID, sessionID string) error
	// RemoveSession retracts sessionID from the idea's back-reference list.
	RemoveSession(ctx context.Context, ideaID, sessionID string) error
}

type ideaRepo struct {
	db *sqlx.DB
}

func NewIdeaRepository(db *sqlx.DB) IdeaRepository {
	return &ideaRepo{db: db}
}

func (r *ideaRepo) FindByID(ctx context.Context, id string) (*model.Idea, error) {
	var idea model.Idea
	err := r.db.GetContext(ctx, &idea, `
		SELECT * FROM ideas WHERE id = $1
	`, id)
	return HandleNotFound(&idea, err)
}

func (r *ideaRepo) FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.IdeaRef, error) {
	refs := make(map[string]model.IdeaRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	var rows []model.IdeaRef
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, title, description FROM ideas WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	for _, ref := range rows {
		refs[ref.ID] = ref
	}
	return refs, nil
}

func (r *ideaRepo) AppendSession(ctx context.Context, ideaID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ideas SET session_ids = array_append(session_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(session_ids))
	`, ideaID, sessionID)
	return err
}

func (r *ideaRepo) RemoveSession(ctx context.Context, ideaID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ideas SET session_ids = array_remove(session_ids, $2)
		WHERE id = $1
	`, ideaID, sessionID)
	return err
}
