package usecase

import (
	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
)

type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Authorize решает, может ли caller выполнить action над product.
// Чтение доступно всем, создание любому аутентифицированному,
// изменение и удаление владельцу или сотруднику.
func Authorize(caller *domain.Caller, product *domain.Product, action Action) error {
	if action == ActionRead {
		return nil
	}
	if caller == nil {
		return e.ErrUnauthenticated
	}
	if action == ActionCreate || caller.IsStaff {
		return nil
	}
	if product != nil && product.IsOwnedBy(caller.UserID) {
		return nil
	}
	return e.ErrForbidden
}
