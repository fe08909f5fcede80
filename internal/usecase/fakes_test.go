package usecase

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/DRSN-tech/catalog-backend/pkg/tr"
)

// memStore — хранилище в памяти с откатом к снимку, сделанному при Begin.
type memStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	images   map[int64]domain.ProductImage
	nextPID  int64
	nextIID  int64

	snapProducts map[int64]domain.Product
	snapImages   map[int64]domain.ProductImage
	snapPID      int64
	snapIID      int64

	commitErr       error
	failCreateBatch error
	lockErr         error
	locked          []int64
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]domain.Product),
		images:   make(map[int64]domain.ProductImage),
	}
}

func (s *memStore) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapProducts = maps.Clone(s.products)
	s.snapImages = maps.Clone(s.images)
	s.snapPID, s.snapIID = s.nextPID, s.nextIID
}

func (s *memStore) restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = s.snapProducts
	s.images = s.snapImages
	s.nextPID, s.nextIID = s.snapPID, s.snapIID
}

func (s *memStore) imageIDsOf(productID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, img := range s.images {
		if img.ProductID == productID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (s *memStore) productCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products)
}

func (s *memStore) product(id int64) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// seed добавляет товар с n изображениями вне транзакции.
func (s *memStore) seed(ownerID int64, n int) (domain.Product, []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	owner := ownerID
	p := domain.Product{ID: s.nextPID, Title: "seed", Description: "seed", OwnerID: &owner, CreatedAt: time.Now()}
	s.products[p.ID] = p

	ids := make([]int64, n)
	for i := range n {
		s.nextIID++
		s.images[s.nextIID] = domain.ProductImage{ID: s.nextIID, ProductID: p.ID, ObjectKey: "product_images/seed_" + string(rune('a'+i)) + ".png"}
		ids[i] = s.nextIID
	}
	return p, ids
}

type fakeCommitter struct {
	s      *memStore
	active bool
}

func (c *fakeCommitter) Commit(ctx context.Context) error {
	c.active = false
	if c.s.commitErr != nil {
		c.s.restore()
		return c.s.commitErr
	}
	return nil
}

func (c *fakeCommitter) Rollback(ctx context.Context) error {
	c.active = false
	c.s.restore()
	return nil
}

func (c *fakeCommitter) IsActive() bool {
	return c.active
}

type fakeBeginner struct {
	s        *memStore
	beginErr error
}

func (b *fakeBeginner) Begin(ctx context.Context) (context.Context, *tr.Tx, error) {
	if b.beginErr != nil {
		return nil, nil, b.beginErr
	}
	b.s.begin()
	ctx, tx := tr.Bind(ctx, nil, &fakeCommitter{s: b.s, active: true})
	return ctx, tx, nil
}

type fakeProductRepo struct{ s *memStore }

func (r *fakeProductRepo) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextPID++
	p := *product
	p.ID = r.s.nextPID
	p.CreatedAt = time.Now()
	r.s.products[p.ID] = p
	return &p, nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, e.ErrNotFound
	}
	return &p, nil
}

func (r *fakeProductRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	if r.s.lockErr != nil {
		return nil, r.s.lockErr
	}
	r.s.mu.Lock()
	r.s.locked = append(r.s.locked, id)
	r.s.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *fakeProductRepo) Update(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[product.ID]; !ok {
		return nil, e.ErrNotFound
	}
	p := *product
	now := time.Now()
	p.UpdatedAt = &now
	p.Images = nil
	r.s.products[p.ID] = p
	return &p, nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return e.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (r *fakeProductRepo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := slices.Sorted(maps.Keys(r.s.products))
	out := []domain.Product{}
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		out = append(out, r.s.products[ids[i]])
	}
	return out, nil
}

func (r *fakeProductRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.products)), nil
}

type fakeImageRepo struct{ s *memStore }

func (r *fakeImageRepo) CreateBatch(ctx context.Context, images []domain.ProductImage) ([]domain.ProductImage, error) {
	if r.s.failCreateBatch != nil {
		return nil, r.s.failCreateBatch
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.ProductImage, len(images))
	for i, img := range images {
		r.s.nextIID++
		img.ID = r.s.nextIID
		r.s.images[img.ID] = img
		out[i] = img
	}
	return out, nil
}

func (r *fakeImageRepo) ListByProduct(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.ProductImage{}
	for _, img := range r.s.images {
		if img.ProductID == productID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeImageRepo) ListByProducts(ctx context.Context, productIDs []int64) (map[int64][]domain.ProductImage, error) {
	out := make(map[int64][]domain.ProductImage, len(productIDs))
	for _, id := range productIDs {
		imgs, _ := r.ListByProduct(ctx, id)
		out[id] = imgs
	}
	return out, nil
}

func (r *fakeImageRepo) DeleteByIDs(ctx context.Context, productID int64, ids []int64) ([]domain.ProductImage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed []domain.ProductImage
	for _, id := range ids {
		img, ok := r.s.images[id]
		if !ok || img.ProductID != productID {
			continue
		}
		delete(r.s.images, id)
		removed = append(removed, img)
	}
	return removed, nil
}

type fakeImagesInfra struct {
	mu        sync.Mutex
	uploaded  []string
	cleaned   []string
	uploadErr error
}

func (f *fakeImagesInfra) UploadImages(ctx context.Context, req *UploadImagesReq) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, req.Keys...)
	return nil
}

func (f *fakeImagesInfra) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, keys...)
}

type fakeHook struct {
	mu      sync.Mutex
	deleted []domain.ProductImage
}

func (h *fakeHook) ImageDeleted(image domain.ProductImage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, image)
}

func (h *fakeHook) calls() []domain.ProductImage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.deleted)
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[int64]domain.Product
	invalidated []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: make(map[int64]domain.Product)}
}

func (c *fakeCache) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, e.ErrNotFound
	}
	return &p, nil
}

func (c *fakeCache) SetProduct(ctx context.Context, product *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = *product
	return nil
}

func (c *fakeCache) DeleteProducts(ctx context.Context, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.ProductEvent
}

func (f *fakeEvents) PublishProductEvent(ctx context.Context, event *domain.ProductEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEvents) types() []domain.ProductEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProductEventType, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

type productFixture struct {
	store  *memStore
	infra  *fakeImagesInfra
	hook   *fakeHook
	cache  *fakeCache
	events *fakeEvents
	uc     *ProductUseCase
}

func newProductFixture() *productFixture {
	f := &productFixture{
		store:  newMemStore(),
		infra:  &fakeImagesInfra{},
		hook:   &fakeHook{},
		cache:  newFakeCache(),
		events: &fakeEvents{},
	}
	f.uc = NewProductUC(
		&fakeProductRepo{s: f.store},
		&fakeImageRepo{s: f.store},
		&fakeBeginner{s: f.store},
		f.infra,
		f.hook,
		f.cache,
		f.events,
		ImageLimits{MaxSize: 2097152, MaxPerProduct: 5},
		Pagination{DefaultPageSize: 20, MaxPageSize: 20},
		logger.NewNop(),
	)
	return f
}

// pngBytes возвращает n байт, начинающихся с сигнатуры PNG.
func pngBytes(n int) []byte {
	b := make([]byte, n)
	copy(b, []byte("\x89PNG\r\n\x1a\n"))
	return b
}

func pngImages(n, size int) []UploadImage {
	out := make([]UploadImage, n)
	for i := range out {
		out[i] = UploadImage{Data: pngBytes(size), MimeType: "image/png", Name: "photo.png"}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
