package usecase

import (
	"github.com/DRSN-tech/catalog-backend/internal/domain"
)

// PRODUCT USECASE

// UploadImage — изображение, полученное через multipart/form-data.
type UploadImage struct {
	Data     []byte // байты изображения
	MimeType string // определённый по содержимому Content-Type
	Name     string // оригинальное имя файла
}

// CreateProductReq — запрос на создание товара. Price передаётся строкой и разбирается при валидации.
type CreateProductReq struct {
	Caller      *domain.Caller
	Title       string
	Price       string
	Description string
	NewImages   []UploadImage
}

// UpdateProductReq — запрос на изменение товара. nil в скалярных полях означает «не менять».
// RetainedImageIDs == nil означает, что поле не передано; пустой срез означает удалить все изображения.
// При Partial == false (PUT) title, price и description обязательны.
type UpdateProductReq struct {
	Caller           *domain.Caller
	ProductID        int64
	Partial          bool
	Title            *string
	Price            *string
	Description      *string
	RetainedImageIDs []int64
	NewImages        []UploadImage
}

type DeleteProductReq struct {
	Caller    *domain.Caller
	ProductID int64
}

// ListProductsReq — номер страницы (с 1) и желаемый размер, который ограничивается сервером.
type ListProductsReq struct {
	Page     int
	PageSize int
}

type ListProductsRes struct {
	Products []domain.Product
	Count    int64
	Page     int
	PageSize int
	NumPages int
}

// HasNext сообщает, есть ли страница после текущей.
func (r *ListProductsRes) HasNext() bool {
	return r.Page < r.NumPages
}

// HasPrevious сообщает, есть ли страница перед текущей.
func (r *ListProductsRes) HasPrevious() bool {
	return r.Page > 1
}

// AUTH USECASE

type RegisterReq struct {
	Email          string
	Username       string
	Password       string
	RepeatPassword string
}

type LoginReq struct {
	Username string
	Password string
}

type LoginRes struct {
	AccessToken string
}

// INFRASTUCTURE

// UploadImagesReq — пакет изображений и заранее сгенерированные для них ключи S3 (по индексу).
type UploadImagesReq struct {
	Keys   []string
	Images []UploadImage
}

// MAPPERS

func NewUploadImagesReq(keys []string, images []UploadImage) *UploadImagesReq {
	return &UploadImagesReq{
		Keys:   keys,
		Images: images,
	}
}

func NewUploadImage(data []byte, mimeType string, name string) *UploadImage {
	return &UploadImage{
		Data:     data,
		MimeType: mimeType,
		Name:     name,
	}
}

func NewListProductsRes(products []domain.Product, count int64, page, pageSize, numPages int) *ListProductsRes {
	return &ListProductsRes{
		Products: products,
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		NumPages: numPages,
	}
}
