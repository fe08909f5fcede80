package domain

import "time"

type ProductEventType string

const (
	ProductCreated ProductEventType = "product.created"
	ProductUpdated ProductEventType = "product.updated"
	ProductDeleted ProductEventType = "product.deleted"
)

// ProductEvent публикуется после коммита изменения товара.
type ProductEvent struct {
	ID         string
	Type       ProductEventType
	ProductID  int64
	ActorID    int64
	ImageCount int
	OccurredAt time.Time
}
