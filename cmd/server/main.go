// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"hierarchy-go/internal/config"
	"hierarchy-go/internal/handler"
	"hierarchy-go/internal/middleware"
	"hierarchy-go/internal/pipeline"
	"hierarchy-go/internal/repository"
	"hierarchy-go/internal/service"
	"hierarchy-go/pkg/database"
	"hierarchy-go/pkg/es"
	"hierarchy-go/pkg/kafka"
	"hierarchy-go/pkg/log"
	"hierarchy-go/pkg/storage"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO 和 Elasticsearch
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	entityRepo := repository.NewCachedEntityRepository(
		repository.NewEntityRepository(database.DB),
		database.RDB,
		time.Duration(cfg.Hierarchy.CacheTTLSeconds)*time.Second,
	)
	attemptRepo := repository.NewAttemptRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	eventHub := service.NewEventHub(64)
	entityIndex := es.NewEntityIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	entityService, err := service.NewEntityService(
		entityRepo,
		cfg.Hierarchy.KeyConfig(),
		cfg.Hierarchy.MaxDepth,
		producer,
		entityIndex,
		eventHub,
	)
	if err != nil {
		log.Fatal("初始化实体服务失败", err)
	}
	searchService := service.NewSearchService(entityIndex)
	exportService := service.NewExportService(
		entityService,
		storage.NewObjectStore(storage.MinioClient, cfg.MinIO.BucketName),
		time.Duration(cfg.MinIO.PresignExpireMins)*time.Minute,
	)

	// 6. 启动后台 Kafka 消费者处理子树重排任务
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(consumerCtx, cfg.Kafka, pipeline.NewProcessor(entityService), attemptRepo)
	}()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestID(), middleware.Metrics(), middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	handler.RegisterRoutes(r, handler.Handlers{
		Entity: handler.NewEntityHandler(entityService),
		Search: handler.NewSearchHandler(searchService),
		Export: handler.NewExportHandler(exportService),
		Events: handler.NewEventsHandler(eventHub),
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}
