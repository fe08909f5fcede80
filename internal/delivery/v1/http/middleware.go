package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/catalog-backend/internal/domain"
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

type callerCtxKey struct{}

// CallerFromCtx возвращает аутентифицированного пользователя запроса; nil для анонимного запроса.
func CallerFromCtx(ctx context.Context) *domain.Caller {
	caller, _ := ctx.Value(callerCtxKey{}).(*domain.Caller)
	return caller
}

func withCaller(ctx context.Context, caller *domain.Caller) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, caller)
}

// Authenticate разбирает заголовок Authorization: Bearer <token>.
// Без заголовка запрос проходит как анонимный; неверный токен даёт 401.
func Authenticate(authUC usecase.AuthUC, logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				WriteError(w, e.ErrUnauthenticated)
				return
			}

			caller, err := authUC.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.Debugf("Token rejected: %v", err)
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
		})
	}
}

// AccessLog пишет строку лога на каждый запрос.
func AccessLog(logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			format := "%s %s %d %dB %s request_id=%s"
			args := []any{r.Method, r.URL.RequestURI(), status, ww.BytesWritten(), time.Since(start), middleware.GetReqID(r.Context())}
			if status >= http.StatusInternalServerError {
				logger.Warnf(format, args...)
				return
			}
			logger.Infof(format, args...)
		})
	}
}
