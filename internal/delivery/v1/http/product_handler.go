package http

import (
	"net/http"
	"strconv"

	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const maxMultipartMemory = 32 << 20

type ProductHandler struct {
	productUsecase usecase.ProductUC
	publicURL      string
	maxBodyBytes   int64
	logger         logger.Logger
}

func NewProductHandler(productUsecase usecase.ProductUC, publicURL string, maxBodyBytes int64, logger logger.Logger) *ProductHandler {
	return &ProductHandler{
		productUsecase: productUsecase,
		publicURL:      publicURL,
		maxBodyBytes:   maxBodyBytes,
		logger:         logger,
	}
}

// listProducts
//
//	@Summary		Список товаров
//	@Description	Постраничный список товаров с изображениями в порядке возрастания id
//	@Tags			products
//	@Produce		json
//	@Param			page		query		int	false	"Номер страницы, с 1"
//	@Param			page_size	query		int	false	"Размер страницы"
//	@Success		200			{object}	ProductListResponse
//	@Failure		404			{object}	ErrorResponse	"Неверная страница"
//	@Router			/products [get]
func (p *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := parsePage(q)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := p.productUsecase.ListProducts(r.Context(), &usecase.ListProductsReq{Page: page, PageSize: parsePageSize(q)})
	if err != nil {
		p.fail(w, err)
		return
	}

	resp := ProductListResponse{
		Count:   res.Count,
		Results: make([]ProductResponse, len(res.Products)),
	}
	for i := range res.Products {
		resp.Results[i] = toProductResponse(&res.Products[i], p.publicURL)
	}
	if res.HasNext() {
		resp.Next = pageURL(r, res.Page+1)
	}
	if res.HasPrevious() {
		resp.Previous = pageURL(r, res.Page-1)
	}

	WriteSuccess(w, http.StatusOK, resp)
}

// createProduct
//
//	@Summary		Создание товара
//	@Description	Создает товар с изображениями, владельцем становится текущий пользователь
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			title		formData	string	true	"Название"
//	@Param			price		formData	string	true	"Цена, два знака после запятой"
//	@Param			description	formData	string	true	"Описание"
//	@Param			new_images	formData	file	false	"Изображения товара"
//	@Success		201			{object}	ProductResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		401			{object}	ErrorResponse
//	@Router			/products [post]
func (p *ProductHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)

	form, err := parseProductBody(r, maxMultipartMemory)
	if err != nil {
		p.logger.Debugf("%d: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	product, err := p.productUsecase.CreateProduct(r.Context(), &usecase.CreateProductReq{
		Caller:      CallerFromCtx(r.Context()),
		Title:       deref(form.Title),
		Price:       deref(form.Price),
		Description: deref(form.Description),
		NewImages:   form.NewImages,
	})
	if err != nil {
		p.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toProductResponse(product, p.publicURL))
}

// getProduct
//
//	@Summary		Товар по ID
//	@Tags			products
//	@Produce		json
//	@Param			id	path		int	true	"ID товара"
//	@Success		200	{object}	ProductResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/products/{id} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := p.productUsecase.GetProduct(r.Context(), id)
	if err != nil {
		p.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductResponse(product, p.publicURL))
}

// replaceProduct
//
//	@Summary		Полное изменение товара
//	@Description	Заменяет поля товара. retained_image_ids обязателен: изображения не из списка удаляются
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id					path		int		true	"ID товара"
//	@Param			title				formData	string	true	"Название"
//	@Param			price				formData	string	true	"Цена"
//	@Param			description			formData	string	true	"Описание"
//	@Param			retained_image_ids	formData	string	true	"ID сохраняемых изображений через запятую"
//	@Param			new_images			formData	file	false	"Новые изображения"
//	@Success		200					{object}	ProductResponse
//	@Failure		400					{object}	ErrorResponse
//	@Failure		403					{object}	ErrorResponse
//	@Failure		409					{object}	ErrorResponse	"Товар изменяется другим запросом"
//	@Router			/products/{id} [put]
func (p *ProductHandler) replaceProduct(w http.ResponseWriter, r *http.Request) {
	p.updateProduct(w, r, false)
}

// patchProduct
//
//	@Summary		Частичное изменение товара
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id					path		int		true	"ID товара"
//	@Param			title				formData	string	false	"Название"
//	@Param			price				formData	string	false	"Цена"
//	@Param			description			formData	string	false	"Описание"
//	@Param			retained_image_ids	formData	string	true	"ID сохраняемых изображений через запятую"
//	@Param			new_images			formData	file	false	"Новые изображения"
//	@Success		200					{object}	ProductResponse
//	@Failure		400					{object}	ErrorResponse
//	@Failure		403					{object}	ErrorResponse
//	@Failure		409					{object}	ErrorResponse
//	@Router			/products/{id} [patch]
func (p *ProductHandler) patchProduct(w http.ResponseWriter, r *http.Request) {
	p.updateProduct(w, r, true)
}

func (p *ProductHandler) updateProduct(w http.ResponseWriter, r *http.Request, partial bool) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodyBytes)

	form, err := parseProductBody(r, maxMultipartMemory)
	if err != nil {
		p.logger.Debugf("%d: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	product, err := p.productUsecase.UpdateProduct(r.Context(), &usecase.UpdateProductReq{
		Caller:           CallerFromCtx(r.Context()),
		ProductID:        id,
		Partial:          partial,
		Title:            form.Title,
		Price:            form.Price,
		Description:      form.Description,
		RetainedImageIDs: form.RetainedImageIDs,
		NewImages:        form.NewImages,
	})
	if err != nil {
		p.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductResponse(product, p.publicURL))
}

// deleteProduct
//
//	@Summary		Удаление товара
//	@Description	Удаляет товар и его изображения
//	@Tags			products
//	@Security		BearerAuth
//	@Param			id	path	int	true	"ID товара"
//	@Success		204
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/products/{id} [delete]
func (p *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	err := p.productUsecase.DeleteProduct(r.Context(), &usecase.DeleteProductReq{
		Caller:    CallerFromCtx(r.Context()),
		ProductID: id,
	})
	if err != nil {
		p.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fail логирует ответ 5xx с причиной; клиентские ошибки пишутся на уровне debug.
func (p *ProductHandler) fail(w http.ResponseWriter, err error) {
	resp := ToHTTPResponse(err)
	if resp.Code >= http.StatusInternalServerError {
		p.logger.Errorf(err, "Product request failed")
	} else {
		p.logger.Debugf("%d: %v", resp.Code, err)
	}
	WriteError(w, err)
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, e.ErrNotFound)
		return 0, false
	}
	return id, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
