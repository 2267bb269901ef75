package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"lablink-go/internal/api/handler"
	"lablink-go/internal/api/router"
	"lablink-go/internal/config"
	"lablink-go/internal/embedding"
	"lablink-go/internal/logger"
	"lablink-go/internal/matching"
	"lablink-go/internal/storage"
)

var (
	version     = "1.0.0"      //nolint:gochecknoglobals
	serviceName = "lablink-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	// Hertz框架日志走同一个zerolog实例
	glog.SetLogger(hertzadapter.From(logger.Logger))
	logger.Info().Str("service", serviceName).Str("version", version).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	logger.Info().Msg("存储服务初始化成功")

	// 可选能力：语义索引与交叉编码重排。
	// 初始化失败只降级，不阻止服务启动。
	var embedder matching.TextEmbedder
	if cfg.Embedding.Enabled {
		httpEmbedder, err := embedding.NewHTTPEmbedder(cfg.Embedding)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Embedder失败，语义索引停用")
		} else {
			embedder = httpEmbedder
			logger.Info().Str("model", cfg.Embedding.Model).Msg("Embedder初始化成功")
		}
	}
	var scorer matching.PairScorer
	if cfg.Reranker.Enabled {
		httpReranker, err := embedding.NewHTTPReranker(cfg.Reranker)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Reranker失败，交叉编码重排停用")
		} else {
			scorer = httpReranker
			logger.Info().Str("model", cfg.Reranker.Model).Msg("Reranker初始化成功")
		}
	}

	opts := matching.DefaultOptions()
	if cfg.Matcher.RerankDepth > 0 {
		opts.RerankDepth = cfg.Matcher.RerankDepth
	}
	engine := matching.NewEngine(opts, embedder, scorer)

	// 启动时从数据库构建首个索引代
	profs, err := storageManager.MySQL.ListProfessors(ctx, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("启动时加载教授数据失败")
	}
	records := make([]matching.CandidateRecord, 0, len(profs))
	for i := range profs {
		records = append(records, storage.ToCandidateRecord(&profs[i]))
	}
	gen := engine.Rebuild(ctx, records)
	logger.Info().Str("generation", gen.ID).Int("professors", len(records)).Msg("启动索引构建完成")

	// Redis/RabbitMQ可能降级为nil，具名接口变量避免把nil指针装进非nil接口
	var matchCache handler.ResultCache
	var listCache handler.ListCache
	var locker handler.RebuildLocker
	if storageManager.Redis != nil {
		matchCache = storageManager.Redis
		listCache = storageManager.Redis
		locker = storageManager.Redis
	}
	var mq storage.MessageQueue
	if storageManager.RabbitMQ != nil {
		mq = storageManager.RabbitMQ
	}

	matchHandler := handler.NewMatchHandler(cfg, engine, matchCache)
	professorHandler := handler.NewProfessorHandler(cfg, storageManager.MySQL, engine, listCache, locker)
	emailHandler := handler.NewEmailHandler(cfg, mq)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, matchHandler, professorHandler, emailHandler)
	logger.Info().Msg("HTTP路由注册成功")

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动")
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}
