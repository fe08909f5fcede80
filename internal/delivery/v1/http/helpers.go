package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/jimlawless/whereami"
)

type ErrorResponse struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет доменную ошибку с HTTP-статусом и сообщением для клиента.
func ToHTTPResponse(err error) *ErrorResponse {
	var (
		verr    *usecase.ValidationError
		maxBody *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verr):
		resp := NewErrorResponse(http.StatusBadRequest, e.ErrValidation.Error())
		resp.Fields = verr.Fields
		return resp
	case errors.As(err, &maxBody):
		return NewErrorResponse(http.StatusRequestEntityTooLarge, "request body is too large")
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return NewErrorResponse(http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error())
	case errors.Is(err, e.ErrExpectedMultipart):
		return NewErrorResponse(http.StatusBadRequest, e.ErrExpectedMultipart.Error())
	case errors.Is(err, e.ErrMalformedBody):
		return NewErrorResponse(http.StatusBadRequest, e.ErrMalformedBody.Error())
	case errors.Is(err, e.ErrDuplicateUser):
		return NewErrorResponse(http.StatusBadRequest, e.ErrDuplicateUser.Error())
	case errors.Is(err, e.ErrPasswordsMismatch):
		return NewErrorResponse(http.StatusBadRequest, e.ErrPasswordsMismatch.Error())
	case errors.Is(err, e.ErrValidation):
		return NewErrorResponse(http.StatusBadRequest, e.ErrValidation.Error())
	case errors.Is(err, e.ErrUnauthenticated):
		return NewErrorResponse(http.StatusUnauthorized, e.ErrUnauthenticated.Error())
	case errors.Is(err, e.ErrInvalidCredentials):
		return NewErrorResponse(http.StatusUnauthorized, e.ErrInvalidCredentials.Error())
	case errors.Is(err, e.ErrForbidden):
		return NewErrorResponse(http.StatusForbidden, e.ErrForbidden.Error())
	case errors.Is(err, e.ErrInvalidPage):
		return NewErrorResponse(http.StatusNotFound, e.ErrInvalidPage.Error())
	case errors.Is(err, e.ErrNotFound):
		return NewErrorResponse(http.StatusNotFound, e.ErrNotFound.Error())
	case errors.Is(err, e.ErrConflict):
		return NewErrorResponse(http.StatusConflict, e.ErrConflict.Error())
	default:
		return NewErrorResponse(http.StatusInternalServerError, e.ErrInternalServerError.Error())
	}
}

func WriteError(w http.ResponseWriter, err error) {
	resp := ToHTTPResponse(err)
	if resp.Code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	WriteSuccess(w, resp.Code, resp)
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RESPONSES

type ImageResponse struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       string          `json:"price"`
	Description string          `json:"description"`
	Owner       *int64          `json:"owner"`
	Images      []ImageResponse `json:"images"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}

type ProductListResponse struct {
	Count    int64             `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []ProductResponse `json:"results"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type TokenResponse struct {
	Access string `json:"access"`
}

// toProductResponse собирает ответ; ссылка на изображение строится как publicURL + ключ объекта.
func toProductResponse(p *domain.Product, publicURL string) ProductResponse {
	images := make([]ImageResponse, len(p.Images))
	for i, img := range p.Images {
		images[i] = ImageResponse{ID: img.ID, Image: publicURL + "/" + img.ObjectKey}
	}

	return ProductResponse{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price.StringFixed(2),
		Description: p.Description,
		Owner:       p.OwnerID,
		Images:      images,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// REQUESTS

const (
	contentTypeJSON      = "application/json"
	contentTypeMultipart = "multipart/form-data"
)

// productForm — поля товара из multipart-формы или JSON. nil, если поле не передано.
type productForm struct {
	Title            *string
	Price            *string
	Description      *string
	RetainedImageIDs []int64
	NewImages        []usecase.UploadImage
}

type productJSON struct {
	Title            *string         `json:"title"`
	Price            json.RawMessage `json:"price"`
	Description      *string         `json:"description"`
	RetainedImageIDs *[]int64        `json:"retained_image_ids"`
}

// parseProductBody разбирает тело запроса: multipart/form-data (с файлами new_images) или JSON.
func parseProductBody(r *http.Request, maxMemory int64) (*productForm, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))

	switch {
	case strings.HasPrefix(ct, contentTypeMultipart):
		return parseProductMultipart(r, maxMemory)
	case strings.HasPrefix(ct, contentTypeJSON):
		return parseProductJSON(r)
	case ct == "":
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	default:
		return nil, e.Wrap(ct, e.ErrUnsupportedMediaType)
	}
}

func parseProductMultipart(r *http.Request, maxMemory int64) (*productForm, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBody *http.MaxBytesError
		if errors.As(err, &maxBody) {
			return nil, err
		}
		return nil, e.Wrap(err.Error(), e.ErrMalformedBody)
	}

	values := r.MultipartForm.Value
	form := &productForm{
		Title:       formValue(values, "title"),
		Price:       formValue(values, "price"),
		Description: formValue(values, "description"),
	}

	if raw, ok := values["retained_image_ids"]; ok {
		ids, err := parseIDList(raw)
		if err != nil {
			return nil, err
		}
		form.RetainedImageIDs = ids
	}

	images, err := readImages(r.MultipartForm.File["new_images"])
	if err != nil {
		return nil, err
	}
	form.NewImages = images

	return form, nil
}

func parseProductJSON(r *http.Request) (*productForm, error) {
	var body productJSON
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		var maxBody *http.MaxBytesError
		if errors.As(err, &maxBody) {
			return nil, err
		}
		return nil, e.Wrap(err.Error(), e.ErrMalformedBody)
	}

	form := &productForm{
		Title:       body.Title,
		Description: body.Description,
	}

	// Цена принимается и строкой, и числом
	if len(body.Price) > 0 && string(body.Price) != "null" {
		var s string
		if err := json.Unmarshal(body.Price, &s); err != nil {
			s = string(body.Price)
		}
		form.Price = &s
	}

	if body.RetainedImageIDs != nil {
		form.RetainedImageIDs = *body.RetainedImageIDs
		if form.RetainedImageIDs == nil {
			form.RetainedImageIDs = []int64{}
		}
	}

	return form, nil
}

func formValue(values map[string][]string, key string) *string {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}

// parseIDList принимает повторяющееся поле и/или значения через запятую.
// Пустое значение означает пустой список.
func parseIDList(raw []string) ([]int64, error) {
	ids := []int64{}
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				verr := usecase.NewValidationError()
				verr.Add(usecase.FieldRetainedImageIDs, "A valid integer is required.")
				return nil, verr
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func readImages(files []*multipart.FileHeader) ([]usecase.UploadImage, error) {
	images := make([]usecase.UploadImage, 0, len(files))
	for _, fh := range files {
		data, mimeType, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, *usecase.NewUploadImage(data, mimeType, fh.Filename))
	}
	return images, nil
}

// readFile читает файл формы и определяет тип по содержимому, а не по заголовку клиента.
func readFile(fh *multipart.FileHeader) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return data, mimeType, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if ct := strings.ToLower(r.Header.Get("Content-Type")); ct != "" && !strings.HasPrefix(ct, contentTypeJSON) {
		return e.Wrap(ct, e.ErrUnsupportedMediaType)
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBody *http.MaxBytesError
		if errors.As(err, &maxBody) {
			return err
		}
		return e.Wrap(err.Error(), e.ErrMalformedBody)
	}
	return nil
}

// PAGINATION

// parsePage читает номер страницы; без параметра первая страница, мусор даёт ErrInvalidPage.
func parsePage(q url.Values) (int, error) {
	raw := q.Get("page")
	if raw == "" {
		return 1, nil
	}

	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, e.ErrInvalidPage
	}
	return page, nil
}

// parsePageSize возвращает 0 для отсутствующего или некорректного значения (размер по умолчанию).
func parsePageSize(q url.Values) int {
	size, err := strconv.Atoi(q.Get("page_size"))
	if err != nil || size < 0 {
		return 0
	}
	return size
}

// pageURL строит абсолютную ссылку на страницу page текущего запроса.
// Для первой страницы параметр page убирается.
func pageURL(r *http.Request, page int) *string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}
