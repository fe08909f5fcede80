package http

import (
	"net/http"

	_ "github.com/DRSN-tech/catalog-backend/docs" // Импорт описания API для swagger
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// RouterDeps — то, что нужно обработчикам помимо usecase.
type RouterDeps struct {
	PublicURL    string // базовый URL изображений
	MaxBodyBytes int64
}

func (r *Router) Init(prUC usecase.ProductUC, authUC usecase.AuthUC, deps RouterDeps) {
	r.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		AccessLog(r.logger),
		middleware.Recoverer,
		middleware.StripSlashes,
	)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerAuthRoutes(v1, NewAuthHandler(authUC, r.logger))

		v1.Group(func(protected chi.Router) {
			protected.Use(Authenticate(authUC, r.logger))
			registerProductRoutes(protected, NewProductHandler(prUC, deps.PublicURL, deps.MaxBodyBytes, r.logger))
		})
	})
}

func registerAuthRoutes(router chi.Router, authHandler *AuthHandler) {
	router.Route("/auth", func(a chi.Router) {
		a.Post("/register", authHandler.register)
		a.Post("/login", authHandler.login)
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Get("/", prHandler.listProducts)
		pr.Post("/", prHandler.createProduct)
		pr.Get("/{id}", prHandler.getProduct)
		pr.Put("/{id}", prHandler.replaceProduct)
		pr.Patch("/{id}", prHandler.patchProduct)
		pr.Delete("/{id}", prHandler.deleteProduct)
	})
}
