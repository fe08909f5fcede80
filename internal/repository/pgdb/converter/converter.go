package converter

import (
	"fmt"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
type ProductConverter interface {
	ToModel(entity *domain.Product) *ProductModel
	ToEntity(model *ProductModel) (*domain.Product, error)
}

// ProductImageConverter преобразует сущности ProductImage между domain и моделью PostgreSQL.
type ProductImageConverter interface {
	ToModel(entity *domain.ProductImage) *ProductImageModel
	ToEntity(model *ProductImageModel) *domain.ProductImage
	ToArrEntity(models []ProductImageModel) []domain.ProductImage
}

// UserConverter преобразует сущности User между domain и моделью PostgreSQL.
type UserConverter interface {
	ToModel(entity *domain.User) *UserModel
	ToEntity(model *UserModel) *domain.User
}

type ProductConverterImpl struct{}

func (ProductConverterImpl) ToModel(entity *domain.Product) *ProductModel {
	if entity == nil {
		return nil
	}

	return &ProductModel{
		ID:          entity.ID,
		Title:       entity.Title,
		Price:       entity.Price.StringFixed(2),
		Description: entity.Description,
		OwnerID:     entity.OwnerID,
		CreatedAt:   entity.CreatedAt,
		UpdatedAt:   entity.UpdatedAt,
	}
}

func (ProductConverterImpl) ToEntity(model *ProductModel) (*domain.Product, error) {
	if model == nil {
		return nil, nil
	}

	price, err := decimal.NewFromString(model.Price)
	if err != nil {
		return nil, fmt.Errorf("product %d: invalid price %q: %w", model.ID, model.Price, err)
	}

	return &domain.Product{
		ID:          model.ID,
		Title:       model.Title,
		Price:       price,
		Description: model.Description,
		OwnerID:     model.OwnerID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}

type ProductImageConverterImpl struct{}

func (ProductImageConverterImpl) ToModel(entity *domain.ProductImage) *ProductImageModel {
	if entity == nil {
		return nil
	}

	return &ProductImageModel{
		ID:          entity.ID,
		ProductID:   entity.ProductID,
		ObjectKey:   entity.ObjectKey,
		Size:        entity.Size,
		ContentType: entity.ContentType,
		CreatedAt:   entity.CreatedAt,
	}
}

func (ProductImageConverterImpl) ToEntity(model *ProductImageModel) *domain.ProductImage {
	if model == nil {
		return nil
	}

	return &domain.ProductImage{
		ID:          model.ID,
		ProductID:   model.ProductID,
		ObjectKey:   model.ObjectKey,
		Size:        model.Size,
		ContentType: model.ContentType,
		CreatedAt:   model.CreatedAt,
	}
}

func (c ProductImageConverterImpl) ToArrEntity(models []ProductImageModel) []domain.ProductImage {
	out := make([]domain.ProductImage, len(models))
	for i := range models {
		out[i] = *c.ToEntity(&models[i])
	}
	return out
}

type UserConverterImpl struct{}

func (UserConverterImpl) ToModel(entity *domain.User) *UserModel {
	if entity == nil {
		return nil
	}

	return &UserModel{
		ID:           entity.ID,
		Username:     entity.Username,
		Email:        entity.Email,
		PasswordHash: entity.PasswordHash,
		IsStaff:      entity.IsStaff,
		CreatedAt:    entity.CreatedAt,
	}
}

func (UserConverterImpl) ToEntity(model *UserModel) *domain.User {
	if model == nil {
		return nil
	}

	return &domain.User{
		ID:           model.ID,
		Username:     model.Username,
		Email:        model.Email,
		PasswordHash: model.PasswordHash,
		IsStaff:      model.IsStaff,
		CreatedAt:    model.CreatedAt,
	}
}
