package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/catalog-backend/internal/cfg"
	v1Grpc "github.com/DRSN-tech/catalog-backend/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/catalog-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/catalog-backend/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/catalog-backend/internal/infrastructure/minio"
	s3Repo "github.com/DRSN-tech/catalog-backend/internal/repository/minio"
	"github.com/DRSN-tech/catalog-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/catalog-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/catalog-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/catalog-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/catalog-backend/internal/usecase"
	"github.com/DRSN-tech/catalog-backend/pkg/clients"
	"github.com/DRSN-tech/catalog-backend/pkg/closer"
	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/DRSN-tech/catalog-backend/pkg/logger"
	"github.com/DRSN-tech/catalog-backend/pkg/postgres"
	"github.com/DRSN-tech/catalog-backend/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	closer      *closer.Closer
	httpSrv     *v1Http.Server
	grpcSrv     *v1Grpc.GRPCServer
	stopCleanup context.CancelFunc
}

// NewApp поднимает соединения с хранилищами и собирает зависимости.
// Ресурсы регистрируются в closer в порядке, обратном порядку закрытия.
func NewApp(cfg *config.Config, logger logger.Logger) (app *App, err error) {
	c := closer.NewCloser(0, logger)
	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cerr := c.Close(ctx); cerr != nil {
				logger.Warnf("Cleanup after failed start: %v", cerr)
			}
		}
	}()

	db, err := initPGDB(logger, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	c.Add("postgres", func(context.Context) error {
		db.Close()
		return nil
	})

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer minioCancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	c.Add("redis", redisClient.Close)

	redisCtx, redisCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	events := initEvents(logger, cfg.Kafka, c)

	productRepo := pgdb.NewProductRepo(db.Pool, pgdbConv.ProductConverterImpl{}, cfg.Catalog.LockTimeout)
	productImageRepo := pgdb.NewProductImageRepo(db.Pool, pgdbConv.ProductImageConverterImpl{})
	userRepo := pgdb.NewUserRepo(db.Pool, pgdbConv.UserConverterImpl{})
	cacheRepo := redis.NewCacheRepo(redisClient.Client, redisConv.ProductConverterImpl{}, cfg.Redis.ProductTTL, logger)
	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio.BucketName)

	// Фоновая очистка MinIO переживает отмену запроса, но не завершение приложения
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	imagesInfra := minioInfra.NewMinioInfrastructure(
		imageRepo,
		cfg.Minio.BucketName,
		cfg.Minio.UploadImagesLimit,
		minioInfra.DefaultCleanupBackoff,
		logger,
		cleanupCtx,
	)
	c.Add("image cleanup", func(ctx context.Context) error {
		defer stopCleanup()
		return imagesInfra.WaitForCleanup(ctx)
	})

	productUC := usecase.NewProductUC(
		productRepo,
		productImageRepo,
		tr.NewBeginner(db.Pool, pgdb.MapError),
		imagesInfra,
		imagesInfra,
		cacheRepo,
		events,
		usecase.ImageLimits{
			MaxSize:       cfg.Catalog.MaxImageSize,
			MaxPerProduct: cfg.Catalog.MaxImagesPerProduct,
		},
		usecase.Pagination{
			DefaultPageSize: cfg.Catalog.DefaultPageSize,
			MaxPageSize:     cfg.Catalog.MaxPageSize,
		},
		logger,
	)
	authUC := usecase.NewAuthUC(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.BcryptCost, logger)

	grpcSrv := v1Grpc.NewGRPCServer(cfg.Grpc, logger)
	grpcSrv.RegisterServices()
	c.Add("grpc server", grpcSrv.Stop)

	r := chi.NewRouter()
	v1Http.NewRouter(r, logger).Init(productUC, authUC, v1Http.RouterDeps{
		PublicURL:    cfg.Minio.PublicURL,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
	})

	httpSrv := v1Http.NewServer(r, cfg.Http)
	c.Add("http server", httpSrv.Stop)

	return &App{
		cfg:         cfg,
		logger:      logger,
		closer:      c,
		httpSrv:     httpSrv,
		grpcSrv:     grpcSrv,
		stopCleanup: stopCleanup,
	}, nil
}

// Run запускает серверы и блокируется до сигнала остановки или фатальной ошибки сервера.
func (a *App) Run() error {
	defer a.stopCleanup()

	errCh := make(chan error, 2)

	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			errCh <- e.Wrap("grpc", err)
		}
	}()

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- e.Wrap("http", err)
		}
	}()

	a.grpcSrv.SetServing(true)

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "Server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.grpcSrv.SetServing(false)

	// === Graceful shutdown ===
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Warnf("Shutdown: %v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// initEvents включает публикацию в Kafka, если заданы брокеры.
func initEvents(logger logger.Logger, cfg *config.KafkaCfg, c *closer.Closer) usecase.EventProducer {
	if !cfg.Enabled() {
		logger.Infof("KAFKA_BROKERS is empty, product events are disabled")
		return kafka.NopProducer{}
	}

	producer := kafka.NewProducer(logger, cfg)
	if err := producer.EnsureTopic(startupTimeout); err != nil {
		logger.Warnf("Kafka topic check failed, continuing: %v", err)
	}
	c.Add("kafka producer", func(context.Context) error {
		return producer.Close()
	})

	return producer
}
