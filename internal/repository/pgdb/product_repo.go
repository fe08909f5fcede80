package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const productColumns = `id, title, price::text, description, owner_id, created_at, updated_at`

// ProductRepo реализует репозиторий товаров поверх PostgreSQL.
type ProductRepo struct {
	pool        *pgxpool.Pool
	conv        converter.ProductConverter
	lockTimeout time.Duration
}

// NewProductRepo создаёт репозиторий. lockTimeout ограничивает ожидание блокировки строки
// в GetForUpdate; 0 означает не ждать (NOWAIT).
func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter, lockTimeout time.Duration) *ProductRepo {
	return &ProductRepo{
		pool:        pool,
		conv:        conv,
		lockTimeout: lockTimeout,
	}
}

func (p *ProductRepo) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	model := p.conv.ToModel(product)
	query := `
		INSERT INTO products (title, price, description, owner_id)
		VALUES ($1, $2::numeric, $3, $4)
		RETURNING ` + productColumns

	row := q.QueryRow(ctx, query, model.Title, model.Price, model.Description, model.OwnerID)
	return p.scan(row)
}

func (p *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return p.scan(q.QueryRow(ctx, query, id))
}

// GetForUpdate блокирует строку товара до конца текущей транзакции.
// Если блокировку не удалось получить за lockTimeout, возвращается e.ErrConflict.
func (p *ProductRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	lockClause := "FOR UPDATE NOWAIT"
	if p.lockTimeout > 0 {
		lockClause = "FOR UPDATE"
		// is_local = true: настройка действует только до конца транзакции
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", p.lockTimeout.Milliseconds())); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), MapError(err))
		}
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 ` + lockClause
	return p.scan(tx.QueryRow(ctx, query, id))
}

func (p *ProductRepo) Update(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	model := p.conv.ToModel(product)
	query := `
		UPDATE products
		SET title = $2, price = $3::numeric, description = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	return p.scan(q.QueryRow(ctx, query, model.ID, model.Title, model.Price, model.Description))
}

func (p *ProductRepo) Delete(ctx context.Context, id int64) error {
	q := tr.QuerierFromCtx(ctx, p.pool)

	tag, err := q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
	}

	return nil
}

// List возвращает страницу товаров по возрастанию id; порядок стабилен между страницами.
func (p *ProductRepo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	query := `SELECT ` + productColumns + ` FROM products ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0, limit)
	for rows.Next() {
		product, err := p.scan(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func (p *ProductRepo) Count(ctx context.Context) (int64, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	var count int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return count, nil
}

func (p *ProductRepo) scan(row pgx.Row) (*domain.Product, error) {
	var model converter.ProductModel
	err := row.Scan(
		&model.ID, &model.Title, &model.Price, &model.Description,
		&model.OwnerID, &model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), MapError(err))
	}

	product, err := p.conv.ToEntity(&model)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return product, nil
}
