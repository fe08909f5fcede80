package usecase

import (
	"context"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/pkg/tr"
)

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) error
	CleanupImages(keys []string)
}

// ImageDeletionHook вызывается ровно один раз на каждую запись изображения, удаление которой закоммичено.
// Реализация обязана удалить бинарник записи; ошибки только логируются.
type ImageDeletionHook interface {
	ImageDeleted(image domain.ProductImage)
}

type EventProducer interface {
	PublishProductEvent(ctx context.Context, event *domain.ProductEvent) error
}

type TxBeginner interface {
	Begin(ctx context.Context) (context.Context, *tr.Tx, error)
}
