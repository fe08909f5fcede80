package pgdb

import (
	"context"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const userColumns = `id, username, email, password_hash, is_staff, created_at`

type UserRepo struct {
	pool *pgxpool.Pool
	conv converter.UserConverter
}

func NewUserRepo(pool *pgxpool.Pool, conv converter.UserConverter) *UserRepo {
	return &UserRepo{
		pool: pool,
		conv: conv,
	}
}

// Create сохраняет пользователя. Нарушение уникальности username/email возвращается как e.ErrDuplicateUser.
func (u *UserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)

	model := u.conv.ToModel(user)
	query := `
		INSERT INTO users (username, email, password_hash, is_staff)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	created, err := u.scan(q.QueryRow(ctx, query, model.Username, model.Email, model.PasswordHash, model.IsStaff))
	if err != nil {
		if postgresDuplicate(err) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrDuplicateUser)
		}
		return nil, err
	}

	return created, nil
}

func (u *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)
	return u.scan(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (u *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)
	return u.scan(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (u *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := tr.QuerierFromCtx(ctx, u.pool)
	return u.scan(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

func (u *UserRepo) scan(row pgx.Row) (*domain.User, error) {
	var model converter.UserModel
	err := row.Scan(&model.ID, &model.Username, &model.Email, &model.PasswordHash, &model.IsStaff, &model.CreatedAt)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), MapError(err))
	}

	return u.conv.ToEntity(&model), nil
}
