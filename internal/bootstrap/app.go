package bootstrap

import (
	"context"
	"fmt"
	"time"

	miniosdk "github.com/minio/minio-go/v7"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"peerai-backend/internal/ai"
	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/cache"
	"peerai-backend/internal/config"
	"peerai-backend/internal/lease"
	"peerai-backend/internal/model"
	"peerai-backend/internal/platform/logger"
	minioClient "peerai-backend/internal/platform/minio"
	mysqlClient "peerai-backend/internal/platform/mysql"
	rabbitmqClient "peerai-backend/internal/platform/rabbitmq"
	redisClient "peerai-backend/internal/platform/redis"
	"peerai-backend/internal/repository"
	"peerai-backend/internal/storage"
	"peerai-backend/internal/uploadsession"
	"peerai-backend/internal/worker"
)

// App holds the shared infrastructure every request path hangs off:
// clients, the object store, session/lease stores, the provider client
// and the background ingest worker.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Minio  *miniosdk.Client

	ObjectStore storage.ObjectStore
	Sessions    uploadsession.Store
	Leases      lease.Lease
	ChunkCache  *cache.ChunkCache
	AIClient    *ai.OpenAICompatibleClient
	Publisher   *rabbitmqClient.IngestPublisher

	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQL, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.Team{},
		&model.User{},
		&model.App{},
		&model.Document{},
		&model.DocumentChunk{},
		&model.AppDocument{},
		&model.UsageRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	minioCli, err := minioClient.New(ctx, cfg.Minio)
	if err != nil {
		return nil, err
	}

	objectStore := storage.NewMinioStore(minioCli, cfg.Minio.Bucket)
	sessions := uploadsession.NewRedisStore(redisCli, time.Duration(cfg.Upload.SessionTTLMins)*time.Minute)
	leases := lease.NewRedisLease(redisCli, time.Duration(cfg.Processing.LeaseTTLSeconds)*time.Second)
	chunkCache := cache.NewChunkCache(redisCli, time.Duration(cfg.Redis.ChunkCacheTTLSecs)*time.Second)
	aiClient := ai.NewOpenAICompatibleClient()
	publisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

	processingService := appsvc.NewProcessingService(
		appsvc.ProcessingServiceConfig{
			ChunkSize:          cfg.Processing.ChunkSize,
			ChunkOverlap:       cfg.Processing.ChunkOverlap,
			EmbeddingBatchSize: cfg.Processing.EmbeddingBatchSize,
			MaxRetries:         cfg.Processing.MaxRetries,
		},
		repository.NewDocumentRepository(mysqlDB),
		repository.NewDocumentChunkRepository(mysqlDB),
		repository.NewAppDocumentRepository(mysqlDB),
		repository.NewUsageRepository(mysqlDB),
		objectStore,
		aiClient,
		ai.EmbeddingConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.EmbeddingModel,
		},
		leases,
		chunkCache,
		log,
	)

	ingestWorker := worker.NewIngestWorker(mqConn, processingService, cfg.RabbitMQ.IngestQueue, log)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:       cfg,
		Log:          log,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		Minio:        minioCli,
		ObjectStore:  objectStore,
		Sessions:     sessions,
		Leases:       leases,
		ChunkCache:   chunkCache,
		AIClient:     aiClient,
		Publisher:    publisher,
		IngestWorker: ingestWorker,
		StartedAt:    time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return closeErr
}
