package minio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/jitter"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
)

// DefaultCleanupBackoff: три попытки удаления с паузами от 1 до 4 секунд плюс джиттер.
var DefaultCleanupBackoff = jitter.Backoff{
	Base:     time.Second,
	Max:      4 * time.Second,
	Attempts: 3,
	Factor:   jitter.DefaultJitter,
}

const cleanupTimeout = 30 * time.Second

// MinioInfrastructure управляет загрузкой и очисткой изображений в MinIO.
// Реализует хук удаления изображений: бинарник удаляется в фоне после коммита записи.
type MinioInfrastructure struct {
	minioRepo         usecase.ImageRepository
	bucket            string
	logger            logger.Logger
	shutdownCtx       context.Context
	wg                sync.WaitGroup
	uploadImagesLimit int
	backoff           jitter.Backoff
}

func NewMinioInfrastructure(
	minioRepo usecase.ImageRepository,
	bucket string,
	uploadImagesLimit int,
	backoff jitter.Backoff,
	logger logger.Logger,
	shutdownCtx context.Context,
) *MinioInfrastructure {
	return &MinioInfrastructure{
		minioRepo:         minioRepo,
		bucket:            bucket,
		logger:            logger,
		shutdownCtx:       shutdownCtx,
		uploadImagesLimit: max(uploadImagesLimit, 1),
		backoff:           backoff,
	}
}

// UploadImages загружает изображения в MinIO параллельно с ограничением одновременных операций.
// Ключи заданы вызывающим. В случае ошибки отменяет остальные загрузки и удаляет уже загруженные файлы.
func (m *MinioInfrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) error {
	const op = "MinioInfrastructure.UploadImages"

	if len(req.Keys) != len(req.Images) {
		return e.Wrap(op, fmt.Errorf("got %d keys for %d images", len(req.Keys), len(req.Images)))
	}

	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyCh := make(chan string, len(req.Images))
	errCh := make(chan error, len(req.Images))
	sem := make(chan struct{}, m.uploadImagesLimit)

	var uploadWg sync.WaitGroup
	for i, image := range req.Images {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			defer func() { <-sem }()

			newImage := domain.NewImage(m.bucket, req.Keys[i], image.Data, int64(len(image.Data)), image.MimeType)
			key, err := m.minioRepo.Upload(ctx, newImage)
			if err != nil {
				errCh <- fmt.Errorf("upload %s failed: %w", image.Name, err)
				cancel()
				return
			}

			keyCh <- key
		}()
	}

	uploadWg.Wait()
	close(errCh)
	close(keyCh)

	uploaded := make([]string, 0, len(req.Images))
	for key := range keyCh {
		uploaded = append(uploaded, key)
	}

	if err, failed := <-errCh; failed {
		m.CleanupImages(uploaded)
		return e.Wrap(op, err)
	}

	return nil
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for _, key := range keys {
			m.removeWithRetry(key)
		}
	}()
}

// ImageDeleted удаляет бинарник изображения, запись о котором уже удалена из БД.
func (m *MinioInfrastructure) ImageDeleted(image domain.ProductImage) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.removeWithRetry(image.ObjectKey)
	}()
}

// removeWithRetry удаляет объект с экспоненциальной задержкой и джиттером.
// Окончательная неудача логируется как e.ErrStorageCleanup.
func (m *MinioInfrastructure) removeWithRetry(key string) {
	const op = "MinioInfrastructure.removeWithRetry"

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	attempts := max(m.backoff.Attempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = m.minioRepo.Delete(ctx, key); lastErr == nil {
			m.logger.Debugf("Image removed from storage. key: %s", key)
			return
		}

		if attempt == attempts-1 {
			break
		}

		select {
		case <-time.After(m.backoff.Delay(attempt)):
		case <-ctx.Done():
			m.logger.Warnf("Cleanup interrupted by shutdown. key: %s", key)
			lastErr = ctx.Err()
			attempt = attempts
		}
	}

	m.logger.Errorf(
		e.Wrap(op, fmt.Errorf("%w: %w", e.ErrStorageCleanup, lastErr)),
		"Failed to remove image from storage. key: %s", key,
	)
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
