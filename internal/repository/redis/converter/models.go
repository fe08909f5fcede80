package converter

import "time"

// ProductRedisModel — карточка товара в кэше. Цена хранится строкой, чтобы не терять точность.
type ProductRedisModel struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Price       string            `json:"price"`
	Description string            `json:"description"`
	OwnerID     *int64            `json:"owner_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
	Images      []ImageRedisModel `json:"images"`
}

type ImageRedisModel struct {
	ID          int64     `json:"id"`
	ObjectKey   string    `json:"object_key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
