package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// 400 Bad Request
	ErrValidation           = fmt.Errorf("validation failed")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data or application/json body")
	ErrMalformedBody        = fmt.Errorf("malformed request body")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrPasswordsMismatch    = fmt.Errorf("passwords do not match")
	ErrDuplicateUser        = fmt.Errorf("user with this username or email already exists")

	// 401 / 403
	ErrUnauthenticated    = fmt.Errorf("authentication credentials were not provided or are invalid")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrForbidden          = fmt.Errorf("you do not have permission to perform this action")

	// 404
	ErrNotFound    = fmt.Errorf("not found")
	ErrInvalidPage = fmt.Errorf("invalid page")

	// 409 — конкурентное изменение, клиент может повторить запрос
	ErrConflict = fmt.Errorf("resource is locked by a concurrent modification, retry later")

	// Удаление бинарника после коммита; только логируется
	ErrStorageCleanup = fmt.Errorf("storage cleanup failed")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
