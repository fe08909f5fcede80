package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthUseCase регистрирует пользователей и выдаёт/проверяет JWT (HS256, sub = id пользователя).
type AuthUseCase struct {
	userRepo   UserRepository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	logger     logger.Logger
}

func NewAuthUC(userRepo UserRepository, secret string, tokenTTL time.Duration, bcryptCost int, logger logger.Logger) *AuthUseCase {
	return &AuthUseCase{
		userRepo:   userRepo,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     logger,
	}
}

func (a *AuthUseCase) Register(ctx context.Context, req *RegisterReq) (*domain.User, error) {
	const op = "AuthUseCase.Register"

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	if err := validateRegister(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Проверка уникальности; гонку закрывает уникальный индекс в БД
	verr := NewValidationError()
	if err := a.ensureFree(ctx, a.userRepo.GetByUsername, req.Username); err != nil {
		if !errors.Is(err, e.ErrDuplicateUser) {
			return nil, e.Wrap(op, err)
		}
		verr.Add(FieldUsername, "A user with that username already exists.")
	}
	if err := a.ensureFree(ctx, a.userRepo.GetByEmail, req.Email); err != nil {
		if !errors.Is(err, e.ErrDuplicateUser) {
			return nil, e.Wrap(op, err)
		}
		verr.Add(FieldEmail, "A user with that email already exists.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, e.Wrap(op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.bcryptCost)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	user, err := a.userRepo.Create(ctx, domain.NewUser(req.Username, req.Email, string(hash)))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	a.logger.Infof("User registered. user_id: %d", user.ID)
	return user, nil
}

func (a *AuthUseCase) Login(ctx context.Context, req *LoginReq) (*LoginRes, error) {
	const op = "AuthUseCase.Login"

	if err := runValidation(
		requireField(strings.TrimSpace(req.Username) != "", FieldUsername),
		requireField(req.Password != "", FieldPassword),
	); err != nil {
		return nil, e.Wrap(op, err)
	}

	user, err := a.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, e.Wrap(op, e.ErrInvalidCredentials)
		}
		return nil, e.Wrap(op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, e.Wrap(op, e.ErrInvalidCredentials)
	}

	token, err := a.issueToken(user)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &LoginRes{AccessToken: token}, nil
}

// Authenticate проверяет токен и загружает пользователя. Любая проблема с токеном даёт ErrUnauthenticated.
func (a *AuthUseCase) Authenticate(ctx context.Context, token string) (*domain.Caller, error) {
	const op = "AuthUseCase.Authenticate"

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return nil, e.Wrap(op, e.ErrUnauthenticated)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, e.Wrap(op, e.ErrUnauthenticated)
	}

	user, err := a.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, e.Wrap(op, e.ErrUnauthenticated)
		}
		return nil, e.Wrap(op, err)
	}

	return domain.NewCaller(user), nil
}

func (a *AuthUseCase) issueToken(user *domain.User) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ensureFree возвращает ErrDuplicateUser, если lookup нашёл пользователя.
func (a *AuthUseCase) ensureFree(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), value string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return e.ErrDuplicateUser
	case errors.Is(err, e.ErrNotFound):
		return nil
	default:
		return err
	}
}
