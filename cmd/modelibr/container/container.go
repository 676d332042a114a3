package container

import (
	"fmt"

	"github.com/modelibr/modelibr/cmd/modelibr/service"
	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/events"
	"github.com/modelibr/modelibr/common/queue"
	"github.com/modelibr/modelibr/common/ratelimit"
	rediscommon "github.com/modelibr/modelibr/common/redis"
	"github.com/modelibr/modelibr/common/repository"
	"github.com/redis/go-redis/v9"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client

	// Repositories
	FileRepo      *repository.FileRepository
	ModelRepo     *repository.ModelRepository
	JobRepo       *repository.ThumbnailJobRepository
	JobEventRepo  *repository.JobEventRepository
	ThumbnailRepo *repository.ThumbnailRepository

	// Services
	Dispatcher     *events.Dispatcher
	ThumbnailQueue *queue.ThumbnailQueue
	UploadPolicy   *service.UploadPolicy
	ContentStore   *service.ContentStoreService
	Catalog        *service.CatalogService
	RateLimiter    *ratelimit.RateLimiter
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Create Redis client (raw), then wrap for instrumentation
	redisRaw := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisClient := rediscommon.NewClient(redisRaw, components.Logger)

	// Initialize repositories
	fileRepo := repository.NewFileRepository(components.DB)
	modelRepo := repository.NewModelRepository(components.DB)
	jobRepo := repository.NewThumbnailJobRepository(components.DB)
	jobEventRepo := repository.NewJobEventRepository(components.DB)
	thumbnailRepo := repository.NewThumbnailRepository(components.DB)

	// Notification dispatch: events go out over Redis pub/sub after commit
	dispatcher := events.NewDispatcher(components.Logger)
	dispatcher.Register(service.NewRedisNotifier(redisClient))

	// Initialize services (bottom-up: dependencies first)
	targetResolver := service.NewTargetResolver(modelRepo)
	thumbnailQueue := queue.New(
		jobRepo,
		jobEventRepo,
		thumbnailRepo,
		targetResolver,
		dispatcher,
		components.Logger,
		cfg.Jobs.MaxAttempts,
		cfg.Jobs.LeaseDuration,
	)

	uploadPolicy, err := service.NewUploadPolicy(cfg.Uploads.Policy, cfg.Uploads.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile upload policy: %w", err)
	}

	contentStore := service.NewContentStoreService(fileRepo, components.Storage, uploadPolicy, components.Logger)
	if components.Cache != nil {
		contentStore.EnableCache(components.Cache, cfg.Cache.DefaultTTL)
	}
	catalog := service.NewCatalogService(modelRepo, contentStore, thumbnailQueue, components.Logger)
	rateLimiter := ratelimit.NewRateLimiter(redisRaw, components.Logger)

	return &Container{
		Components:     components,
		Redis:          redisClient,
		FileRepo:       fileRepo,
		ModelRepo:      modelRepo,
		JobRepo:        jobRepo,
		JobEventRepo:   jobEventRepo,
		ThumbnailRepo:  thumbnailRepo,
		Dispatcher:     dispatcher,
		ThumbnailQueue: thumbnailQueue,
		UploadPolicy:   uploadPolicy,
		ContentStore:   contentStore,
		Catalog:        catalog,
		RateLimiter:    rateLimiter,
	}, nil
}
