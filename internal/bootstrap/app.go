package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trackit-backend/internal/jobs"
	"trackit-backend/internal/services/health"
	"trackit-backend/internal/shared/config"
	"trackit-backend/internal/shared/metrics"
	"trackit-backend/internal/shared/server/middleware"
	"trackit-backend/internal/shared/server/respond"
	"trackit-backend/internal/shared/storage/blob"
	"trackit-backend/internal/shared/storage/db"
	localstore "trackit-backend/internal/shared/storage/blob/local"
	s3store "trackit-backend/internal/shared/storage/blob/s3"
)

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Store       blob.Store
	JobsRepo    jobs.Repo
	JobsService *jobs.Service
	JobsHandler *jobs.Handler
	Sweeper     *jobs.Sweeper
	Health      *health.Service
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.BlobStoreType) == "" {
		cfg.BlobStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo jobs.Repo
	if sqlDB != nil {
		repo = &jobs.PGRepo{DB: sqlDB}
	} else {
		repo = jobs.NewMemoryRepo()
	}

	svc := jobs.NewService(repo, store)
	handler := jobs.NewHandler(svc, cfg.MaxUploadBytes)
	sweeper := &jobs.Sweeper{
		Repo:        repo,
		Store:       store,
		GracePeriod: cfg.SweepGracePeriod,
	}
	healthSvc := health.NewService(sqlDB != nil, cfg.BlobStoreType)

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		Store:       store,
		JobsRepo:    repo,
		JobsService: svc,
		JobsHandler: handler,
		Sweeper:     sweeper,
		Health:      healthSvc,
	}
	app.Router = buildRouter(app)
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repository")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repository: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRouter(app *App) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(app.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, app.Health.Status())
	})
	app.JobsHandler.RegisterRoutes(api)

	return r
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
