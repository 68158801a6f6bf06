package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ideahub/session-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.UserRef, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.UserRef, error) {
	refs := make(map[string]model.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	var rows []model.UserRef
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, username, avatar FROM users WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	for _, ref := range rows {
		refs[ref.ID] = ref
	}
	return refs, nil
}
