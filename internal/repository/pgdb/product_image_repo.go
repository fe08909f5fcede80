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

const productImageColumns = `id, product_id, object_key, size, content_type, created_at`

// ProductImageRepo хранит записи об изображениях товаров. Сами файлы лежат в S3.
type ProductImageRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductImageConverter
}

func NewProductImageRepo(pool *pgxpool.Pool, conv converter.ProductImageConverter) *ProductImageRepo {
	return &ProductImageRepo{
		pool: pool,
		conv: conv,
	}
}

// CreateBatch вставляет записи изображений одним запросом и возвращает их в исходном порядке.
func (r *ProductImageRepo) CreateBatch(ctx context.Context, images []domain.ProductImage) ([]domain.ProductImage, error) {
	if len(images) == 0 {
		return []domain.ProductImage{}, nil
	}

	q := tr.QuerierFromCtx(ctx, r.pool)

	var (
		productIDs   = make([]int64, len(images))
		keys         = make([]string, len(images))
		sizes        = make([]int64, len(images))
		contentTypes = make([]string, len(images))
	)
	for i := range images {
		model := r.conv.ToModel(&images[i])
		productIDs[i] = model.ProductID
		keys[i] = model.ObjectKey
		sizes[i] = model.Size
		contentTypes[i] = model.ContentType
	}

	// unnest WITH ORDINALITY сохраняет порядок входных строк в RETURNING
	query := `
		INSERT INTO product_images (product_id, object_key, size, content_type)
		SELECT product_id, object_key, size, content_type
		FROM unnest($1::bigint[], $2::text[], $3::bigint[], $4::text[])
			WITH ORDINALITY AS t(product_id, object_key, size, content_type, ord)
		ORDER BY ord
		RETURNING ` + productImageColumns

	rows, err := q.Query(ctx, query, productIDs, keys, sizes, contentTypes)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.collect(rows)
}

func (r *ProductImageRepo) ListByProduct(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `SELECT ` + productImageColumns + ` FROM product_images WHERE product_id = $1 ORDER BY id`
	rows, err := q.Query(ctx, query, productID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.collect(rows)
}

// ListByProducts загружает изображения нескольких товаров одним запросом.
// Для товаров без изображений в результате будет пустой срез.
func (r *ProductImageRepo) ListByProducts(ctx context.Context, productIDs []int64) (map[int64][]domain.ProductImage, error) {
	result := make(map[int64][]domain.ProductImage, len(productIDs))
	for _, id := range productIDs {
		result[id] = []domain.ProductImage{}
	}
	if len(productIDs) == 0 {
		return result, nil
	}

	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `SELECT ` + productImageColumns + ` FROM product_images WHERE product_id = ANY($1) ORDER BY product_id, id`
	rows, err := q.Query(ctx, query, productIDs)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	images, err := r.collect(rows)
	if err != nil {
		return nil, err
	}

	for _, img := range images {
		result[img.ProductID] = append(result[img.ProductID], img)
	}

	return result, nil
}

// DeleteByIDs удаляет изображения товара по id. Чужие и несуществующие id пропускаются.
func (r *ProductImageRepo) DeleteByIDs(ctx context.Context, productID int64, ids []int64) ([]domain.ProductImage, error) {
	if len(ids) == 0 {
		return []domain.ProductImage{}, nil
	}

	q := tr.QuerierFromCtx(ctx, r.pool)

	query := `
		DELETE FROM product_images
		WHERE product_id = $1 AND id = ANY($2)
		RETURNING ` + productImageColumns

	rows, err := q.Query(ctx, query, productID, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.collect(rows)
}

func (r *ProductImageRepo) collect(rows pgx.Rows) ([]domain.ProductImage, error) {
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (converter.ProductImageModel, error) {
		var m converter.ProductImageModel
		err := row.Scan(&m.ID, &m.ProductID, &m.ObjectKey, &m.Size, &m.ContentType, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), MapError(err))
	}

	return r.conv.ToArrEntity(models), nil
}
