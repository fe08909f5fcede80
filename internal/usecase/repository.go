package usecase

import (
	"context"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetForUpdate читает товар под блокировкой строки; работает только внутри транзакции.
	GetForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
}

type ProductImageRepository interface {
	CreateBatch(ctx context.Context, images []domain.ProductImage) ([]domain.ProductImage, error)
	ListByProduct(ctx context.Context, productID int64) ([]domain.ProductImage, error)
	ListByProducts(ctx context.Context, productIDs []int64) (map[int64][]domain.ProductImage, error)
	// DeleteByIDs удаляет изображения товара и возвращает реально удалённые записи.
	DeleteByIDs(ctx context.Context, productID int64, ids []int64) ([]domain.ProductImage, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CacheRepository — кэш карточек товаров. Промах возвращается как e.ErrNotFound.
type CacheRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	DeleteProducts(ctx context.Context, ids []int64) error
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
}
