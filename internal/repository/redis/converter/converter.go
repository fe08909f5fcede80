package converter

import (
	"fmt"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductConverter interface {
	ToRedisModel(entity *domain.Product) *ProductRedisModel
	ToEntity(model *ProductRedisModel) (*domain.Product, error)
}

type ProductConverterImpl struct{}

func (ProductConverterImpl) ToRedisModel(entity *domain.Product) *ProductRedisModel {
	images := make([]ImageRedisModel, len(entity.Images))
	for i, img := range entity.Images {
		images[i] = ImageRedisModel{
			ID:          img.ID,
			ObjectKey:   img.ObjectKey,
			Size:        img.Size,
			ContentType: img.ContentType,
			CreatedAt:   img.CreatedAt,
		}
	}

	return &ProductRedisModel{
		ID:          entity.ID,
		Title:       entity.Title,
		Price:       entity.Price.StringFixed(2),
		Description: entity.Description,
		OwnerID:     entity.OwnerID,
		CreatedAt:   entity.CreatedAt,
		UpdatedAt:   entity.UpdatedAt,
		Images:      images,
	}
}

func (ProductConverterImpl) ToEntity(model *ProductRedisModel) (*domain.Product, error) {
	price, err := decimal.NewFromString(model.Price)
	if err != nil {
		return nil, fmt.Errorf("cached product %d: invalid price %q: %w", model.ID, model.Price, err)
	}

	images := make([]domain.ProductImage, len(model.Images))
	for i, img := range model.Images {
		images[i] = domain.ProductImage{
			ID:          img.ID,
			ProductID:   model.ID,
			ObjectKey:   img.ObjectKey,
			Size:        img.Size,
			ContentType: img.ContentType,
			CreatedAt:   img.CreatedAt,
		}
	}

	return &domain.Product{
		ID:          model.ID,
		Title:       model.Title,
		Price:       price,
		Description: model.Description,
		OwnerID:     model.OwnerID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		Images:      images,
	}, nil
}
