package minio

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/jitter"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
)

type fakeImageRepo struct {
	mu        sync.Mutex
	objects   map[string]bool
	failKey   string
	failTimes int
	deletes   map[string]int
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{objects: make(map[string]bool), deletes: make(map[string]int)}
}

func (r *fakeImageRepo) Upload(ctx context.Context, image *domain.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if image.ObjectKey == r.failKey {
		return "", errors.New("upload failed")
	}
	r.objects[image.ObjectKey] = true
	return image.ObjectKey, nil
}

func (r *fakeImageRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes[key]++
	if r.failTimes > 0 {
		r.failTimes--
		return errors.New("temporary failure")
	}
	delete(r.objects, key)
	return nil
}

func (r *fakeImageRepo) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for k := range r.objects {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

var instantBackoff = jitter.Backoff{Attempts: 3}

func newInfra(repo *fakeImageRepo) *MinioInfrastructure {
	return NewMinioInfrastructure(repo, "bucket", 2, instantBackoff, logger.NewNop(), context.Background())
}

func uploads(keys ...string) *usecase.UploadImagesReq {
	images := make([]usecase.UploadImage, len(keys))
	for i := range keys {
		images[i] = usecase.UploadImage{Data: []byte("img"), MimeType: "image/png", Name: keys[i]}
	}
	return usecase.NewUploadImagesReq(keys, images)
}

func wait(t *testing.T, m *MinioInfrastructure) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitForCleanup(ctx); err != nil {
		t.Fatalf("WaitForCleanup: %v", err)
	}
}

func TestUploadImages(t *testing.T) {
	repo := newFakeImageRepo()
	m := newInfra(repo)

	if err := m.UploadImages(context.Background(), uploads("a", "b", "c")); err != nil {
		t.Fatalf("UploadImages: %v", err)
	}
	if got := repo.keys(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected objects %v", got)
	}
}

func TestUploadImages_FailureCleansUp(t *testing.T) {
	repo := newFakeImageRepo()
	repo.failKey = "b"
	m := newInfra(repo)

	if err := m.UploadImages(context.Background(), uploads("a", "b", "c")); err == nil {
		t.Fatal("expected error")
	}
	wait(t, m)

	if got := repo.keys(); len(got) != 0 {
		t.Errorf("uploaded objects must be removed, got %v", got)
	}
}

func TestUploadImages_KeyMismatch(t *testing.T) {
	m := newInfra(newFakeImageRepo())

	req := uploads("a")
	req.Keys = nil
	if err := m.UploadImages(context.Background(), req); err == nil {
		t.Fatal("expected error")
	}
}

func TestImageDeleted_RetriesUntilRemoved(t *testing.T) {
	repo := newFakeImageRepo()
	repo.objects["k"] = true
	repo.failTimes = 2
	m := newInfra(repo)

	m.ImageDeleted(domain.ProductImage{ID: 1, ObjectKey: "k"})
	wait(t, m)

	if len(repo.keys()) != 0 {
		t.Error("object must be removed")
	}
	if repo.deletes["k"] != 3 {
		t.Errorf("expected 3 attempts, got %d", repo.deletes["k"])
	}
}

func TestImageDeleted_GivesUpAfterAttempts(t *testing.T) {
	repo := newFakeImageRepo()
	repo.objects["k"] = true
	repo.failTimes = 10
	m := newInfra(repo)

	m.ImageDeleted(domain.ProductImage{ID: 1, ObjectKey: "k"})
	wait(t, m)

	if repo.deletes["k"] != instantBackoff.Attempts {
		t.Errorf("expected %d attempts, got %d", instantBackoff.Attempts, repo.deletes["k"])
	}
}
