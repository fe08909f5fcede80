package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/catalog-backend/pkg/logger"
)

const defaultForcedTimeout = 2 * time.Second

// ErrInterrupted возвращается, если контекст Close истёк раньше, чем закрылись все ресурсы.
var ErrInterrupted = errors.New("shutdown interrupted")

// Func — функция закрытия ресурса.
type Func func(ctx context.Context) error

type resource struct {
	name  string
	close Func
}

// Closer закрывает зарегистрированные ресурсы приложения в обратном порядке (LIFO).
// Ошибки содержат имя ресурса, каждый ресурс закрывается не более одного раза.
type Closer struct {
	mu            sync.Mutex
	once          sync.Once
	resources     []resource
	forcedTimeout time.Duration
	logger        logger.Logger
}

// NewCloser создает Closer. forcedTimeout — время на принудительное закрытие
// оставшихся ресурсов после отмены контекста Close; 0 означает значение по умолчанию.
func NewCloser(forcedTimeout time.Duration, logger logger.Logger) *Closer {
	if forcedTimeout <= 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{
		forcedTimeout: forcedTimeout,
		logger:        logger,
	}
}

// Add регистрирует ресурс под именем name.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = append(c.resources, resource{name: name, close: f})
}

// Close закрывает ресурсы по одному в порядке LIFO. Если ctx отменяется раньше,
// оставшиеся ресурсы закрываются параллельно с контекстом на forcedTimeout,
// а результат содержит ErrInterrupted.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		resources := c.resources
		c.mu.Unlock()

		pending, errs := c.closeInOrder(ctx, resources)
		if len(pending) == 0 {
			err = errors.Join(errs...)
			return
		}

		c.logger.Warnf("Shutdown deadline exceeded, forcing %d resource(s)", len(pending))
		errs = append(errs, c.closeForced(pending)...)
		err = errors.Join(append([]error{ErrInterrupted}, errs...)...)
	})

	return err
}

// closeInOrder возвращает ресурсы, до которых не дошла очередь из-за отмены ctx.
func (c *Closer) closeInOrder(ctx context.Context, resources []resource) ([]resource, []error) {
	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return resources[:i+1], errs
		}

		res := resources[i]
		done := make(chan error, 1)

		go func() {
			done <- res.close(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", res.name, err))
				continue
			}
			c.logger.Debugf("Closed %s", res.name)
		case <-ctx.Done():
			// Зависший ресурс тоже попадает в принудительное закрытие
			return resources[:i+1], errs
		}
	}

	return nil, errs
}

func (c *Closer) closeForced(resources []resource) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	for _, res := range resources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := res.close(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s (forced): %w", res.name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
