package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/DRSN-tech/catalog-backend/pkg/tr"
	"github.com/google/uuid"
)

// Pagination — размер страницы списка товаров по умолчанию и его жёсткий максимум.
type Pagination struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ProductUseCase реализует бизнес-логику управления товарами и их изображениями.
type ProductUseCase struct {
	productRepo    ProductRepository
	imageRepo      ProductImageRepository
	txBeginner     TxBeginner
	imagesInfra    ImagesInfra
	deletionHook   ImageDeletionHook
	cacheRepo      CacheRepository
	events         EventProducer
	imageValidator *ImageValidator
	filenames      *FilenameGenerator
	pagination     Pagination
	logger         logger.Logger
}

func NewProductUC(
	productRepo ProductRepository,
	imageRepo ProductImageRepository,
	txBeginner TxBeginner,
	imagesInfra ImagesInfra,
	deletionHook ImageDeletionHook,
	cacheRepo CacheRepository,
	events EventProducer,
	limits ImageLimits,
	pagination Pagination,
	logger logger.Logger,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo:    productRepo,
		imageRepo:      imageRepo,
		txBeginner:     txBeginner,
		imagesInfra:    imagesInfra,
		deletionHook:   deletionHook,
		cacheRepo:      cacheRepo,
		events:         events,
		imageValidator: NewImageValidator(limits),
		filenames:      NewFilenameGenerator(),
		pagination:     pagination,
		logger:         logger,
	}
}

// CreateProduct создаёт товар и его изображения в одной транзакции. Владельцем становится caller.
func (p *ProductUseCase) CreateProduct(ctx context.Context, req *CreateProductReq) (_ *domain.Product, err error) {
	const op = "ProductUseCase.CreateProduct"

	if err = Authorize(req.Caller, nil, ActionCreate); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Валидация данных до открытия транзакции
	price, err := p.validateCreate(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	ctx, tx, err := p.txBeginner.Begin(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var uploadedKeys []string
	// Если произошла ошибка, происходит Rollback транзакции и очистка загруженных изображений
	defer func() {
		if err != nil {
			p.rollback(ctx, tx, op)
			p.cleanupOrphans(uploadedKeys, op, err)
		}
	}()

	ownerID := req.Caller.UserID
	product, err := p.productRepo.Create(ctx, domain.NewProduct(strings.TrimSpace(req.Title), price, req.Description, &ownerID))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	uploadedKeys, product.Images, err = p.addImages(ctx, product.ID, req.NewImages)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = p.afterCommit(ctx, domain.ProductCreated, product.ID, req.Caller, len(product.Images)); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	p.logger.Infof("Product created. product_id: %d, owner_id: %d, images: %d", product.ID, ownerID, len(product.Images))
	return product, nil
}

// UpdateProduct изменяет товар под блокировкой строки: удаляет изображения, не вошедшие в
// RetainedImageIDs, применяет переданные поля и добавляет новые изображения.
func (p *ProductUseCase) UpdateProduct(ctx context.Context, req *UpdateProductReq) (_ *domain.Product, err error) {
	const op = "ProductUseCase.UpdateProduct"

	if req.Caller == nil {
		return nil, e.Wrap(op, e.ErrUnauthenticated)
	}

	ctx, tx, err := p.txBeginner.Begin(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var uploadedKeys []string
	defer func() {
		if err != nil {
			p.rollback(ctx, tx, op)
			p.cleanupOrphans(uploadedKeys, op, err)
		}
	}()

	// Набор изображений читается только после захвата блокировки
	product, err := p.productRepo.GetForUpdate(ctx, req.ProductID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = Authorize(req.Caller, product, ActionUpdate); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = p.validateUpdate(req, product); err != nil {
		return nil, e.Wrap(op, err)
	}

	current, err := p.imageRepo.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// id, не принадлежащие товару, игнорируются
	var removed []int64
	for _, img := range current {
		if !slices.Contains(req.RetainedImageIDs, img.ID) {
			removed = append(removed, img.ID)
		}
	}

	if err = p.deleteImages(ctx, product.ID, removed); err != nil {
		return nil, e.Wrap(op, err)
	}

	product, err = p.productRepo.Update(ctx, product)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	uploadedKeys, _, err = p.addImages(ctx, product.ID, req.NewImages)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	product.Images, err = p.imageRepo.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = p.afterCommit(ctx, domain.ProductUpdated, product.ID, req.Caller, len(product.Images)); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	p.logger.Infof(
		"Product updated. product_id: %d, actor_id: %d, removed_images: %d, added_images: %d",
		product.ID, req.Caller.UserID, len(removed), len(req.NewImages),
	)
	return product, nil
}

// DeleteProduct удаляет товар вместе со всеми изображениями.
func (p *ProductUseCase) DeleteProduct(ctx context.Context, req *DeleteProductReq) (err error) {
	const op = "ProductUseCase.DeleteProduct"

	if req.Caller == nil {
		return e.Wrap(op, e.ErrUnauthenticated)
	}

	ctx, tx, err := p.txBeginner.Begin(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil {
			p.rollback(ctx, tx, op)
		}
	}()

	product, err := p.productRepo.GetForUpdate(ctx, req.ProductID)
	if err != nil {
		return e.Wrap(op, err)
	}

	if err = Authorize(req.Caller, product, ActionDelete); err != nil {
		return e.Wrap(op, err)
	}

	// Изображения удаляются явно, чтобы каждое прошло через хук очистки.
	// Каскад внешнего ключа остаётся страховкой на уровне БД.
	product.Images, err = p.imageRepo.ListByProduct(ctx, product.ID)
	if err != nil {
		return e.Wrap(op, err)
	}
	ids := product.ImageIDs()

	if err = p.deleteImages(ctx, product.ID, ids); err != nil {
		return e.Wrap(op, err)
	}

	if err = p.productRepo.Delete(ctx, product.ID); err != nil {
		return e.Wrap(op, err)
	}

	if err = p.afterCommit(ctx, domain.ProductDeleted, product.ID, req.Caller, 0); err != nil {
		return e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	p.logger.Infof("Product deleted. product_id: %d, actor_id: %d, images: %d", product.ID, req.Caller.UserID, len(ids))
	return nil
}

// GetProduct возвращает товар с изображениями. Сначала ищет в кэше, затем в БД.
func (p *ProductUseCase) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	const op = "ProductUseCase.GetProduct"

	cached, err := p.cacheRepo.GetProduct(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		p.logger.Warnf("Failed to get product from cache: %v", e.Wrap(op, err))
	}

	product, err := p.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	product.Images, err = p.imageRepo.ListByProduct(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Кэшируем асинхронно, не задерживая ответ
	toCache := *product
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := p.cacheRepo.SetProduct(bgCtx, &toCache); err != nil {
			p.logger.Warnf("Failed to cache product in background: %v", e.Wrap(op, err))
		}
	}()

	return product, nil
}

// ListProducts возвращает страницу товаров. Размер страницы ограничивается сверху MaxPageSize.
func (p *ProductUseCase) ListProducts(ctx context.Context, req *ListProductsReq) (*ListProductsRes, error) {
	const op = "ProductUseCase.ListProducts"

	pageSize := p.PageSize(req.PageSize)

	count, err := p.productRepo.Count(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	numPages := int((count + int64(pageSize) - 1) / int64(pageSize))
	if numPages < 1 {
		numPages = 1
	}
	if req.Page < 1 || req.Page > numPages {
		return nil, e.Wrap(op, e.ErrInvalidPage)
	}

	products, err := p.productRepo.List(ctx, pageSize, (req.Page-1)*pageSize)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(products) > 0 {
		ids := make([]int64, len(products))
		for i := range products {
			ids[i] = products[i].ID
		}

		// Изображения всей страницы одним запросом
		images, err := p.imageRepo.ListByProducts(ctx, ids)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		for i := range products {
			products[i].Images = images[products[i].ID]
		}
	}

	return NewListProductsRes(products, count, req.Page, pageSize, numPages), nil
}

// PageSize приводит запрошенный размер страницы к допустимому.
func (p *ProductUseCase) PageSize(requested int) int {
	switch {
	case requested <= 0:
		return p.pagination.DefaultPageSize
	case requested > p.pagination.MaxPageSize:
		return p.pagination.MaxPageSize
	default:
		return requested
	}
}

// addImages загружает изображения в хранилище и сохраняет записи о них.
// Возвращает ключи загруженных объектов, даже если запись в БД не удалась.
func (p *ProductUseCase) addImages(ctx context.Context, productID int64, images []UploadImage) ([]string, []domain.ProductImage, error) {
	const op = "ProductUseCase.addImages"

	if len(images) == 0 {
		return nil, []domain.ProductImage{}, nil
	}

	keys := make([]string, len(images))
	records := make([]domain.ProductImage, len(images))
	for i, img := range images {
		keys[i] = p.filenames.Generate(img.Name, img.MimeType)
		records[i] = *domain.NewProductImage(productID, keys[i], int64(len(img.Data)), img.MimeType)
	}

	// Частично загруженные объекты удаляет сама инфраструктура
	if err := p.imagesInfra.UploadImages(ctx, NewUploadImagesReq(keys, images)); err != nil {
		return nil, nil, e.Wrap(op, err)
	}

	created, err := p.imageRepo.CreateBatch(ctx, records)
	if err != nil {
		return keys, nil, e.Wrap(op, err)
	}

	return keys, created, nil
}

// deleteImages — единственный путь удаления изображений. Для каждой удалённой записи
// после коммита вызывается хук очистки хранилища.
func (p *ProductUseCase) deleteImages(ctx context.Context, productID int64, ids []int64) error {
	const op = "ProductUseCase.deleteImages"

	if len(ids) == 0 {
		return nil
	}

	removed, err := p.imageRepo.DeleteByIDs(ctx, productID, ids)
	if err != nil {
		return e.Wrap(op, err)
	}

	if len(removed) == 0 {
		return nil
	}
	p.logger.Debugf("Images removed in transaction. product_id: %d, keys: %v", productID, domain.ObjectKeys(removed))

	return tr.AfterCommit(ctx, func() {
		for _, img := range removed {
			p.deletionHook.ImageDeleted(img)
		}
	})
}

// afterCommit регистрирует инвалидацию кэша и публикацию события после коммита.
func (p *ProductUseCase) afterCommit(ctx context.Context, eventType domain.ProductEventType, productID int64, caller *domain.Caller, imageCount int) error {
	const op = "ProductUseCase.afterCommit"

	event := &domain.ProductEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		ActorID:    caller.UserID,
		ImageCount: imageCount,
	}
	bgCtx := context.WithoutCancel(ctx)

	return tr.AfterCommit(ctx, func() {
		// Удаление из кэша старых данных товара
		if err := p.cacheRepo.DeleteProducts(bgCtx, []int64{productID}); err != nil {
			p.logger.Warnf("Failed to delete products from cache: %v", e.Wrap(op, err))
		}

		event.OccurredAt = time.Now().UTC()
		if err := p.events.PublishProductEvent(bgCtx, event); err != nil {
			p.logger.Warnf("Failed to publish product event. type: %s, product_id: %d, error: %v", eventType, productID, e.Wrap(op, err))
		}
	})
}

func (p *ProductUseCase) rollback(ctx context.Context, tx *tr.Tx, op string) {
	if !tx.IsActive() {
		return
	}
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		p.logger.Errorf(err, "Failed to rollback transaction. op: %s", op)
	}
}

func (p *ProductUseCase) cleanupOrphans(keys []string, op string, cause error) {
	if len(keys) == 0 {
		return
	}

	p.logger.Warnf(
		"Cleaning up orphaned images after transaction failure. op: %s, images: %d, error: %v",
		op, len(keys), cause,
	)
	p.imagesInfra.CleanupImages(keys)
}
