package http

import (
	"net/http"

	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
)

const maxAuthBodyBytes = 1 << 20

type AuthHandler struct {
	authUsecase usecase.AuthUC
	logger      logger.Logger
}

func NewAuthHandler(authUsecase usecase.AuthUC, logger logger.Logger) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase, logger: logger}
}

type RegisterRequest struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeat_password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// register
//
//	@Summary	Регистрация пользователя
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		RegisterRequest	true	"Данные пользователя"
//	@Success	201		{object}	UserResponse
//	@Failure	400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router		/auth/register [post]
func (a *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodyBytes)

	var body RegisterRequest
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	user, err := a.authUsecase.Register(r.Context(), &usecase.RegisterReq{
		Email:          body.Email,
		Username:       body.Username,
		Password:       body.Password,
		RepeatPassword: body.RepeatPassword,
	})
	if err != nil {
		if ToHTTPResponse(err).Code >= http.StatusInternalServerError {
			a.logger.Errorf(err, "Registration failed")
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, UserResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

// login
//
//	@Summary	Получение токена доступа
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		LoginRequest	true	"Учётные данные"
//	@Success	200		{object}	TokenResponse
//	@Failure	401		{object}	ErrorResponse	"Неверные учётные данные"
//	@Router		/auth/login [post]
func (a *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodyBytes)

	var body LoginRequest
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	res, err := a.authUsecase.Login(r.Context(), &usecase.LoginReq{Username: body.Username, Password: body.Password})
	if err != nil {
		if ToHTTPResponse(err).Code >= http.StatusInternalServerError {
			a.logger.Errorf(err, "Login failed")
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, TokenResponse{Access: res.AccessToken})
}
