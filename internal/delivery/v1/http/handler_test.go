package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeProductUC struct {
	createReq *usecase.CreateProductReq
	updateReq *usecase.UpdateProductReq
	deleteReq *usecase.DeleteProductReq
	listReq   *usecase.ListProductsReq
	listRes   *usecase.ListProductsRes
	err       error
}

func sampleProduct() *domain.Product {
	owner := int64(1)
	return &domain.Product{
		ID:          10,
		Title:       "Lamp",
		Price:       decimal.RequireFromString("100"),
		Description: "desc",
		OwnerID:     &owner,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Images:      []domain.ProductImage{{ID: 7, ProductID: 10, ObjectKey: "product_images/a.png"}},
	}
}

func (f *fakeProductUC) CreateProduct(_ context.Context, req *usecase.CreateProductReq) (*domain.Product, error) {
	f.createReq = req
	if f.err != nil {
		return nil, f.err
	}
	return sampleProduct(), nil
}

func (f *fakeProductUC) UpdateProduct(_ context.Context, req *usecase.UpdateProductReq) (*domain.Product, error) {
	f.updateReq = req
	if f.err != nil {
		return nil, f.err
	}
	return sampleProduct(), nil
}

func (f *fakeProductUC) DeleteProduct(_ context.Context, req *usecase.DeleteProductReq) error {
	f.deleteReq = req
	return f.err
}

func (f *fakeProductUC) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := sampleProduct()
	p.ID = id
	return p, nil
}

func (f *fakeProductUC) ListProducts(_ context.Context, req *usecase.ListProductsReq) (*usecase.ListProductsRes, error) {
	f.listReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.listRes, nil
}

type fakeAuthUC struct {
	registerReq *usecase.RegisterReq
	err         error
}

func (f *fakeAuthUC) Register(_ context.Context, req *usecase.RegisterReq) (*domain.User, error) {
	f.registerReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: 3, Username: req.Username, Email: req.Email}, nil
}

func (f *fakeAuthUC) Login(_ context.Context, req *usecase.LoginReq) (*usecase.LoginRes, error) {
	if req.Password != "secret" {
		return nil, e.ErrInvalidCredentials
	}
	return &usecase.LoginRes{AccessToken: "good"}, nil
}

func (f *fakeAuthUC) Authenticate(_ context.Context, token string) (*domain.Caller, error) {
	if token != "good" {
		return nil, e.ErrUnauthenticated
	}
	return &domain.Caller{UserID: 1}, nil
}

func newTestRouter(prUC *fakeProductUC, authUC *fakeAuthUC) http.Handler {
	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNop()).Init(prUC, authUC, RouterDeps{
		PublicURL:    "http://cdn.local/bucket",
		MaxBodyBytes: 10 << 20,
	})
	return mux
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type part struct {
	field, value string
	file         []byte
}

func multipartRequest(t *testing.T, method, target string, parts ...part) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.file != nil {
			fw, err := mw.CreateFormFile(p.field, p.value)
			if err != nil {
				t.Fatal(err)
			}
			fw.Write(p.file)
			continue
		}
		mw.WriteField(p.field, p.value)
	}
	mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestCreateProduct_Multipart(t *testing.T) {
	prUC := &fakeProductUC{}
	h := newTestRouter(prUC, &fakeAuthUC{})

	rec := do(t, h, multipartRequest(t, http.MethodPost, "/api/v1/products/",
		part{field: "title", value: "Lamp"},
		part{field: "price", value: "100"},
		part{field: "description", value: "desc"},
		part{field: "new_images", value: "a.png", file: pngHeader},
		part{field: "new_images", value: "b.png", file: pngHeader},
	))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req := prUC.createReq
	if req.Caller == nil || req.Caller.UserID != 1 {
		t.Errorf("caller must come from token, got %+v", req.Caller)
	}
	if req.Title != "Lamp" || req.Price != "100" || len(req.NewImages) != 2 {
		t.Errorf("unexpected request %+v", req)
	}
	if req.NewImages[0].MimeType != "image/png" || req.NewImages[0].Name != "a.png" {
		t.Errorf("mime type must be sniffed, got %+v", req.NewImages[0])
	}

	resp := decodeBody[ProductResponse](t, rec)
	if resp.Price != "100.00" {
		t.Errorf("price must have two decimals, got %q", resp.Price)
	}
	if len(resp.Images) != 1 || resp.Images[0].Image != "http://cdn.local/bucket/product_images/a.png" {
		t.Errorf("unexpected images %+v", resp.Images)
	}
}

func TestCreateProduct_AnonymousReachesUsecase(t *testing.T) {
	prUC := &fakeProductUC{err: e.ErrUnauthenticated}
	h := newTestRouter(prUC, &fakeAuthUC{})

	req := multipartRequest(t, http.MethodPost, "/api/v1/products", part{field: "title", value: "x"})
	req.Header.Del("Authorization")

	rec := do(t, h, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if prUC.createReq == nil || prUC.createReq.Caller != nil {
		t.Error("anonymous request must reach usecase with nil caller")
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	prUC := &fakeProductUC{}
	h := newTestRouter(prUC, &fakeAuthUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/10", nil)
	req.Header.Set("Authorization", "Bearer bad")

	rec := do(t, h, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 must carry WWW-Authenticate")
	}
}

func TestUpdateProduct_RetainedIDs(t *testing.T) {
	cases := []struct {
		name     string
		method   string
		parts    []part
		want     []int64
		partial  bool
		wantNil  bool
		wantCode int
	}{
		{
			name:     "comma separated and repeated",
			method:   http.MethodPatch,
			parts:    []part{{field: "retained_image_ids", value: "1, 2"}, {field: "retained_image_ids", value: "3"}},
			want:     []int64{1, 2, 3},
			partial:  true,
			wantCode: http.StatusOK,
		},
		{
			name:     "empty value means none retained",
			method:   http.MethodPut,
			parts:    []part{{field: "title", value: "t"}, {field: "retained_image_ids", value: ""}},
			want:     []int64{},
			wantCode: http.StatusOK,
		},
		{
			name:     "absent field",
			method:   http.MethodPatch,
			parts:    []part{{field: "title", value: "t"}},
			wantNil:  true,
			partial:  true,
			wantCode: http.StatusOK,
		},
		{
			name:     "not an integer",
			method:   http.MethodPatch,
			parts:    []part{{field: "retained_image_ids", value: "x"}},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prUC := &fakeProductUC{}
			h := newTestRouter(prUC, &fakeAuthUC{})

			rec := do(t, h, multipartRequest(t, tc.method, "/api/v1/products/10/", tc.parts...))
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				if prUC.updateReq != nil {
					t.Error("usecase must not be called")
				}
				return
			}

			req := prUC.updateReq
			if req.ProductID != 10 || req.Partial != tc.partial {
				t.Errorf("unexpected request %+v", req)
			}
			if tc.wantNil {
				if req.RetainedImageIDs != nil {
					t.Errorf("expected nil retained ids, got %v", req.RetainedImageIDs)
				}
				return
			}
			if req.RetainedImageIDs == nil || !slices.Equal(req.RetainedImageIDs, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, req.RetainedImageIDs)
			}
		})
	}
}

func TestUpdateProduct_JSON(t *testing.T) {
	prUC := &fakeProductUC{}
	h := newTestRouter(prUC, &fakeAuthUC{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/products/10",
		strings.NewReader(`{"price": 12.5, "retained_image_ids": []}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer good")

	rec := do(t, h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := prUC.updateReq
	if got.Price == nil || *got.Price != "12.5" {
		t.Errorf("numeric price must be accepted, got %v", got.Price)
	}
	if got.Title != nil {
		t.Error("absent title must stay nil")
	}
	if got.RetainedImageIDs == nil || len(got.RetainedImageIDs) != 0 {
		t.Errorf("expected empty retained ids, got %v", got.RetainedImageIDs)
	}
}

func TestUpdateProduct_UnsupportedMediaType(t *testing.T) {
	h := newTestRouter(&fakeProductUC{}, &fakeAuthUC{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/10", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")

	if rec := do(t, h, req); rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	verr := usecase.NewValidationError()
	verr.Add(usecase.FieldNewImages, "too many")

	cases := []struct {
		err  error
		code int
	}{
		{verr, http.StatusBadRequest},
		{e.Wrap("op", e.ErrForbidden), http.StatusForbidden},
		{e.Wrap("op", e.ErrNotFound), http.StatusNotFound},
		{e.Wrap("op", e.ErrConflict), http.StatusConflict},
		{e.ErrInvalidPage, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		prUC := &fakeProductUC{err: tc.err}
		h := newTestRouter(prUC, &fakeAuthUC{})

		rec := do(t, h, multipartRequest(t, http.MethodPatch, "/api/v1/products/10", part{field: "title", value: "t"}))
		if rec.Code != tc.code {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}

	prUC := &fakeProductUC{err: verr}
	rec := do(t, newTestRouter(prUC, &fakeAuthUC{}), multipartRequest(t, http.MethodPost, "/api/v1/products"))
	resp := decodeBody[ErrorResponse](t, rec)
	if len(resp.Fields[usecase.FieldNewImages]) != 1 {
		t.Errorf("field errors must be rendered, got %+v", resp)
	}
}

func TestDeleteProduct(t *testing.T) {
	prUC := &fakeProductUC{}
	h := newTestRouter(prUC, &fakeAuthUC{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/10", nil)
	req.Header.Set("Authorization", "Bearer good")

	rec := do(t, h, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if prUC.deleteReq.ProductID != 10 || prUC.deleteReq.Caller == nil {
		t.Errorf("unexpected request %+v", prUC.deleteReq)
	}
}

func TestGetProduct_BadID(t *testing.T) {
	h := newTestRouter(&fakeProductUC{}, &fakeAuthUC{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListProducts_PageLinks(t *testing.T) {
	products := []domain.Product{*sampleProduct()}
	prUC := &fakeProductUC{listRes: usecase.NewListProductsRes(products, 25, 2, 10, 3)}
	h := newTestRouter(prUC, &fakeAuthUC{})

	req := httptest.NewRequest(http.MethodGet, "http://api.local/api/v1/products?page=2&page_size=10", nil)
	rec := do(t, h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if prUC.listReq.Page != 2 || prUC.listReq.PageSize != 10 {
		t.Errorf("unexpected list request %+v", prUC.listReq)
	}

	resp := decodeBody[ProductListResponse](t, rec)
	if resp.Count != 25 || len(resp.Results) != 1 {
		t.Errorf("unexpected page %+v", resp)
	}
	if resp.Next == nil || *resp.Next != "http://api.local/api/v1/products?page=3&page_size=10" {
		t.Errorf("unexpected next %v", resp.Next)
	}
	if resp.Previous == nil || *resp.Previous != "http://api.local/api/v1/products?page_size=10" {
		t.Errorf("unexpected previous %v", resp.Previous)
	}
}

func TestListProducts_InvalidPage(t *testing.T) {
	prUC := &fakeProductUC{}
	h := newTestRouter(prUC, &fakeAuthUC{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if prUC.listReq != nil {
		t.Error("usecase must not be called")
	}
}

func TestAuthRoutes(t *testing.T) {
	authUC := &fakeAuthUC{}
	h := newTestRouter(&fakeProductUC{}, authUC)

	reg := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/",
		strings.NewReader(`{"email":"a@b.c","username":"bob","password":"1234","repeat_password":"1234"}`))
	reg.Header.Set("Content-Type", "application/json")
	if rec := do(t, h, reg); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}
	if authUC.registerReq.RepeatPassword != "1234" {
		t.Errorf("unexpected register request %+v", authUC.registerReq)
	}

	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"bob","password":"secret"}`))
	rec := do(t, h, login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	if tok := decodeBody[TokenResponse](t, rec); tok.Access != "good" {
		t.Errorf("unexpected token %+v", tok)
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"bob","password":"x"}`))
	if rec := do(t, h, bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	garbage := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{`))
	if rec := do(t, h, garbage); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed: expected 400, got %d", rec.Code)
	}
}

func TestRegister_LogsOnlyInUsecase(t *testing.T) {
	var buf bytes.Buffer
	mux := chi.NewRouter()
	NewRouter(mux, logger.New(&buf, slog.LevelDebug)).Init(&fakeProductUC{}, &fakeAuthUC{}, RouterDeps{
		PublicURL:    "http://cdn.local/bucket",
		MaxBodyBytes: 10 << 20,
	})

	reg := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"a@b.c","username":"bob","password":"1234","repeat_password":"1234"}`))
	reg.Header.Set("Content-Type", "application/json")
	if rec := do(t, mux, reg); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	if strings.Contains(buf.String(), "User registered") {
		t.Errorf("registration is logged by the auth usecase, handler log: %s", buf.String())
	}
}
