package usecase

import (
	"fmt"
	"net/mail"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/shopspring/decimal"
)

const (
	FieldTitle            = "title"
	FieldPrice            = "price"
	FieldDescription      = "description"
	FieldNewImages        = "new_images"
	FieldRetainedImageIDs = "retained_image_ids"
	FieldEmail            = "email"
	FieldUsername         = "username"
	FieldPassword         = "password"
	FieldRepeatPassword   = "repeat_password"
	FieldNonField         = "non_field_errors"

	maxTitleLength    = 255
	maxUsernameLength = 150
	minPasswordLength = 4
	maxPasswordBytes  = 72
	priceDecimals     = 2
)

var maxPrice = decimal.New(1, 10) // 10 знаков целой части

const msgRequired = "This field is required."

// ValidationError — ошибки валидации по полям. errors.Is(err, e.ErrValidation) == true.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add добавляет сообщение к полю.
func (v *ValidationError) Add(field, msg string) {
	v.Fields[field] = append(v.Fields[field], msg)
}

// OrNil возвращает nil, если ошибок не накоплено.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], "; "))
	}
	return e.ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (v *ValidationError) Unwrap() error {
	return e.ErrValidation
}

// validationStep — один шаг конвейера; пишет найденные ошибки в общий ValidationError.
type validationStep func(verr *ValidationError)

// runValidation выполняет шаги по порядку и возвращает накопленные ошибки.
func runValidation(steps ...validationStep) error {
	verr := NewValidationError()
	for _, step := range steps {
		step(verr)
	}
	return verr.OrNil()
}

func requireTitle(title string) validationStep {
	return func(verr *ValidationError) {
		switch {
		case strings.TrimSpace(title) == "":
			verr.Add(FieldTitle, "This field may not be blank.")
		case utf8.RuneCountInString(title) > maxTitleLength:
			verr.Add(FieldTitle, fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength))
		}
	}
}

func requireDescription(description string) validationStep {
	return func(verr *ValidationError) {
		if strings.TrimSpace(description) == "" {
			verr.Add(FieldDescription, "This field may not be blank.")
		}
	}
}

// parsePrice разбирает цену в dst: неотрицательная, не более 2 знаков после запятой и 10 до.
func parsePrice(raw string, dst *decimal.Decimal) validationStep {
	return func(verr *ValidationError) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			verr.Add(FieldPrice, "A valid number is required.")
			return
		}

		price, err := decimal.NewFromString(raw)
		if err != nil {
			verr.Add(FieldPrice, "A valid number is required.")
			return
		}
		if price.IsNegative() {
			verr.Add(FieldPrice, "Ensure this value is greater than or equal to 0.")
			return
		}
		if price.Exponent() < -priceDecimals {
			verr.Add(FieldPrice, fmt.Sprintf("Ensure that there are no more than %d decimal places.", priceDecimals))
			return
		}
		if price.Abs().GreaterThanOrEqual(maxPrice) {
			verr.Add(FieldPrice, "Ensure that there are no more than 10 digits before the decimal point.")
			return
		}
		*dst = price
	}
}

func requireField(present bool, field string) validationStep {
	return func(verr *ValidationError) {
		if !present {
			verr.Add(field, msgRequired)
		}
	}
}

// ImageLimits — ограничения на изображения товара.
type ImageLimits struct {
	MaxSize       int64
	MaxPerProduct int
}

// ImageValidator проверяет размер, тип и количество изображений до любых изменений в БД.
type ImageValidator struct {
	limits ImageLimits
}

func NewImageValidator(limits ImageLimits) *ImageValidator {
	return &ImageValidator{limits: limits}
}

// step проверяет пакет новых изображений с учётом retained уже оставляемых.
func (iv *ImageValidator) step(retained int, images []UploadImage) validationStep {
	return func(verr *ValidationError) {
		if retained+len(images) > iv.limits.MaxPerProduct {
			verr.Add(FieldNewImages, fmt.Sprintf("Only up to %d images are allowed per product.", iv.limits.MaxPerProduct))
		}

		for i, img := range images {
			name := img.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}

			if len(img.Data) == 0 {
				verr.Add(FieldNewImages, fmt.Sprintf("Image %s is empty.", name))
				continue
			}
			if int64(len(img.Data)) > iv.limits.MaxSize {
				verr.Add(FieldNewImages, fmt.Sprintf("Image %s is over %d bytes.", name, iv.limits.MaxSize))
				continue
			}
			if _, ok := domain.ExtensionFromMIME(img.MimeType); !ok {
				verr.Add(FieldNewImages, fmt.Sprintf("Image %s has unsupported type %q.", name, img.MimeType))
			}
		}
	}
}

// Validate проверяет новые изображения отдельно от полей товара.
func (iv *ImageValidator) Validate(retained int, images []UploadImage) error {
	return runValidation(iv.step(retained, images))
}

// validateCreate проверяет запрос на создание и возвращает разобранную цену.
func (p *ProductUseCase) validateCreate(req *CreateProductReq) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := runValidation(
		requireTitle(req.Title),
		parsePrice(req.Price, &price),
		requireDescription(req.Description),
		p.imageValidator.step(0, req.NewImages),
	)
	return price, err
}

// validateUpdate проверяет запрос на изменение против текущего состояния товара
// и применяет переданные скалярные поля к product.
func (p *ProductUseCase) validateUpdate(req *UpdateProductReq, product *domain.Product) error {
	var price decimal.Decimal
	steps := []validationStep{
		requireField(req.RetainedImageIDs != nil, FieldRetainedImageIDs),
	}

	if !req.Partial {
		steps = append(steps,
			requireField(req.Title != nil, FieldTitle),
			requireField(req.Price != nil, FieldPrice),
			requireField(req.Description != nil, FieldDescription),
		)
	}
	if req.Title != nil {
		steps = append(steps, requireTitle(*req.Title))
	}
	if req.Price != nil {
		steps = append(steps, parsePrice(*req.Price, &price))
	}
	if req.Description != nil {
		steps = append(steps, requireDescription(*req.Description))
	}
	steps = append(steps, p.imageValidator.step(len(uniqueIDs(req.RetainedImageIDs)), req.NewImages))

	if err := runValidation(steps...); err != nil {
		return err
	}

	if req.Title != nil {
		product.Title = strings.TrimSpace(*req.Title)
	}
	if req.Price != nil {
		product.Price = price
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	return nil
}

func validateRegister(req *RegisterReq) error {
	return runValidation(
		func(verr *ValidationError) {
			if _, err := mail.ParseAddress(req.Email); err != nil || strings.TrimSpace(req.Email) == "" {
				verr.Add(FieldEmail, "Enter a valid email address.")
			}
		},
		func(verr *ValidationError) {
			switch {
			case strings.TrimSpace(req.Username) == "":
				verr.Add(FieldUsername, "This field may not be blank.")
			case utf8.RuneCountInString(req.Username) > maxUsernameLength:
				verr.Add(FieldUsername, fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLength))
			}
		},
		func(verr *ValidationError) {
			if utf8.RuneCountInString(req.Password) < minPasswordLength {
				verr.Add(FieldPassword, fmt.Sprintf("Ensure this field has at least %d characters.", minPasswordLength))
			}
			if utf8.RuneCountInString(req.RepeatPassword) < minPasswordLength {
				verr.Add(FieldRepeatPassword, fmt.Sprintf("Ensure this field has at least %d characters.", minPasswordLength))
			}
			// bcrypt не принимает пароли длиннее 72 байт
			if len(req.Password) > maxPasswordBytes {
				verr.Add(FieldPassword, fmt.Sprintf("Ensure this field has no more than %d bytes.", maxPasswordBytes))
			}
		},
		func(verr *ValidationError) {
			if req.Password != req.RepeatPassword {
				verr.Add(FieldNonField, e.ErrPasswordsMismatch.Error())
			}
		},
	)
}

// uniqueIDs убирает повторы, сохраняя порядок.
func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
