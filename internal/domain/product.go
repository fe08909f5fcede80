package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар. Owner может быть nil, если аккаунт владельца удалён.
type Product struct {
	ID          int64
	Title       string
	Price       decimal.Decimal
	Description string
	OwnerID     *int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Images      []ProductImage
}

func NewProduct(title string, price decimal.Decimal, description string, ownerID *int64) *Product {
	return &Product{
		Title:       title,
		Price:       price,
		Description: description,
		OwnerID:     ownerID,
	}
}

// IsOwnedBy сообщает, является ли пользователь текущим владельцем товара.
func (p *Product) IsOwnedBy(userID int64) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}

// ImageIDs возвращает идентификаторы изображений товара в порядке хранения.
func (p *Product) ImageIDs() []int64 {
	ids := make([]int64, len(p.Images))
	for i, img := range p.Images {
		ids[i] = img.ID
	}
	return ids
}
