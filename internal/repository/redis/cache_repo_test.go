package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	r "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Требует TEST_REDIS_ADDR; использует отдельную БД 15.
func openTestCache(t *testing.T) (*CacheRepo, *r.Client) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	client := r.NewClient(&r.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	return NewCacheRepo(client, converter.ProductConverterImpl{}, time.Minute, logger.NewNop()), client
}

func TestCacheRepo_SetGetDelete(t *testing.T) {
	cache, _ := openTestCache(t)
	ctx := context.Background()

	owner := int64(5)
	product := &domain.Product{
		ID:          1001,
		Title:       "p",
		Price:       decimal.RequireFromString("10.50"),
		Description: "d",
		OwnerID:     &owner,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Images:      []domain.ProductImage{{ID: 1, ProductID: 1001, ObjectKey: "product_images/a.png", Size: 3}},
	}

	if err := cache.SetProduct(ctx, product); err != nil {
		t.Fatalf("SetProduct: %v", err)
	}

	got, err := cache.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Price.StringFixed(2) != "10.50" || len(got.Images) != 1 || got.Images[0].ProductID != product.ID {
		t.Errorf("unexpected cached product %+v", got)
	}

	if err := cache.DeleteProducts(ctx, []int64{product.ID}); err != nil {
		t.Fatalf("DeleteProducts: %v", err)
	}
	if _, err := cache.GetProduct(ctx, product.ID); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestCacheRepo_CorruptedEntryIsMiss(t *testing.T) {
	cache, client := openTestCache(t)
	ctx := context.Background()

	if err := client.Set(ctx, "product:2002", "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := cache.GetProduct(ctx, 2002); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected miss, got %v", err)
	}
	if n, _ := client.Exists(ctx, "product:2002").Result(); n != 0 {
		t.Error("corrupted entry must be dropped")
	}
}

func TestProductConverter_KeepsPriceAndImages(t *testing.T) {
	conv := converter.ProductConverterImpl{}
	product := &domain.Product{
		ID:     7,
		Price:  decimal.RequireFromString("1234567890.99"),
		Images: []domain.ProductImage{{ID: 3, ObjectKey: "k"}},
	}

	back, err := conv.ToEntity(conv.ToRedisModel(product))
	if err != nil {
		t.Fatalf("ToEntity: %v", err)
	}
	if !back.Price.Equal(product.Price) {
		t.Errorf("price changed: %s", back.Price)
	}
	if len(back.Images) != 1 || back.Images[0].ProductID != 7 {
		t.Errorf("image owner must be restored, got %+v", back.Images)
	}

	if _, err := conv.ToEntity(&converter.ProductRedisModel{ID: 1, Price: "x"}); err == nil {
		t.Error("invalid price must fail")
	}
}
