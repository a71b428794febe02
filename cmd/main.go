package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/cloudwego/eino/components/model"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/spf13/pflag"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"resume-screen-go/internal/agent"
	"resume-screen-go/internal/api/handler"
	"resume-screen-go/internal/api/router"
	"resume-screen-go/internal/config"
	appCoreLogger "resume-screen-go/internal/logger"
	"resume-screen-go/internal/parser"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/ratelimit"
	"resume-screen-go/internal/storage"
	"resume-screen-go/internal/tracing"
	"resume-screen-go/pkg/utils"
)

var (
	version     = "1.0.0"         //nolint:gochecknoglobals
	serviceName = "resume-screen" //nolint:gochecknoglobals
)

func main() {
	initLogger()

	var configPath string
	var oneShotFile string
	var oneShotConditionSetID string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.StringVarP(&oneShotFile, "file", "f", "", "单次筛选指定简历文件后退出，不启动HTTP服务")
	pflag.StringVar(&oneShotConditionSetID, "condition-set", "", "单次筛选使用的条件集ID")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
			Endpoint:    cfg.Tracing.OTLPEndpoint,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracing(shutdownCtx); err != nil {
				glog.Warnf("关闭链路追踪失败: %v", err)
			}
		}()
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	if storageManager.MySQL == nil {
		glog.Fatalf("MySQL未配置，筛选流水线无法落库")
	}
	talentStore := storage.NewTalentStore(storageManager.MySQL)

	// 没有API Key时退回Mock模型，方便本地联调
	var llmModel model.ToolCallingChatModel
	if cfg.Aliyun.APIKey != "" {
		llmModel, err = agent.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
		if err != nil {
			glog.Fatalf("初始化通义千问模型失败: %v", err)
		}
		llmModel = ratelimit.NewLimitedChatModel(llmModel, cfg.Aliyun.QPM).
			WithRetryPolicy(time.Duration(cfg.Extractor.RetryWaitSeconds)*time.Second, cfg.Extractor.MaxRetries)
		glog.Infof("通义千问模型初始化成功: %s (QPM=%d)", cfg.Aliyun.Model, cfg.Aliyun.QPM)
	} else {
		llmModel = agent.NewMockChatModel(`{"qualified": false, "score": 0, "reason": "mock模型无法评估"}`)
		glog.Warn("未配置阿里云API Key，使用Mock模型，抽取和评估结果不可用于生产")
	}

	var parserOptions []parser.CompositeParserOption
	if cfg.Tika.ServerURL != "" {
		tikaClient := parser.NewTikaClient(cfg.Tika.ServerURL, time.Duration(cfg.Tika.Timeout)*time.Second)
		parserOptions = append(parserOptions, parser.WithTika(tikaClient))
		glog.Infof("Tika客户端初始化成功: %s", cfg.Tika.ServerURL)
	}
	if cfg.Logger.Level == "debug" {
		parserOptions = append(parserOptions, parser.WithParserLogger(log.New(os.Stderr, "[DocParser] ", log.LstdFlags)))
	}
	docParser, err := parser.NewCompositeDocumentParser(ctx, parserOptions...)
	if err != nil {
		glog.Fatalf("初始化文档解析器失败: %v", err)
	}
	glog.Info("文档解析器初始化成功")

	var llmLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		llmLogger = log.New(os.Stderr, "[LLM] ", log.LstdFlags|log.Lshortfile)
	} else {
		llmLogger = log.New(io.Discard, "", 0)
	}
	extractor := parser.NewLLMCandidateExtractor(llmModel, llmLogger)
	judge := parser.NewLLMQualificationJudge(llmModel, llmLogger)

	cipher, err := utils.NewContactCipher(cfg.Screening.EncryptSecret)
	if err != nil {
		glog.Fatalf("初始化联系方式加密器失败: %v", err)
	}

	comps := &pipeline.Components{
		Parser:    docParser,
		Extractor: extractor,
		Judge:     judge,
		Repo:      talentStore,
		Cipher:    cipher,
	}

	photoLogger := log.New(appCoreLogger.Logger, "[PhotoStore] ", log.LstdFlags)
	comps.Photos = storage.NewPhotoStorage(storageManager.MinIO, cfg.MinIO.LocalFallbackDir, photoLogger)

	var resultReader handler.ResultReader
	if storageManager.Redis != nil {
		screenCache := storage.NewScreenCache(storageManager.Redis, cfg.ResultTTL())
		comps.Cache = screenCache
		resultReader = screenCache
	} else {
		glog.Warn("Redis未配置，筛选结果缓存与去重短路不可用")
	}

	var searcher handler.SimilaritySearcher
	if storageManager.Qdrant != nil {
		embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
		if err != nil {
			glog.Fatalf("初始化Embedder失败: %v", err)
		}
		vectorStore, err := storage.NewResumeVectorStore(storageManager.Qdrant, embedder)
		if err != nil {
			glog.Fatalf("初始化向量存储失败: %v", err)
		}
		comps.Vectors = vectorStore
		searcher = vectorStore
		glog.Info("向量存储初始化成功")
	} else {
		glog.Warn("Qdrant未配置，简历向量化与相似检索不可用")
	}

	if storageManager.RabbitMQ != nil {
		publisher, err := storage.NewScreeningEventPublisher(storageManager.RabbitMQ, &cfg.RabbitMQ)
		if err != nil {
			glog.Fatalf("初始化事件发布器失败: %v", err)
		}
		comps.Events = publisher
		glog.Info("筛选事件发布器初始化成功")
	} else {
		glog.Warn("RabbitMQ未配置，筛选完成事件不会发布")
	}

	orchestrator, err := pipeline.NewOrchestrator(comps, pipeline.Settings{
		MaxReasonItems:    cfg.Screening.MaxReasonItems,
		BatchConcurrency:  cfg.Screening.BatchConcurrency,
		DedupShortCircuit: cfg.Screening.DedupShortCircuit,
	})
	if err != nil {
		glog.Fatalf("初始化筛选流水线失败: %v", err)
	}
	glog.Info("筛选流水线初始化成功")

	// 单次筛选模式：跑完一个文件即退出
	if oneShotFile != "" {
		result := orchestrator.Run(ctx, oneShotFile, oneShotConditionSetID, nil)
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			glog.Fatalf("序列化筛选结果失败: %v", err)
		}
		os.Stdout.Write(output)
		os.Stdout.WriteString("\n")
		if result.Status != string(pipeline.StatusCompleted) {
			os.Exit(1)
		}
		return
	}

	screenHandler := handler.NewScreenHandler(orchestrator, talentStore, resultReader, searcher, cipher, cfg.Screening.UploadTmpDir)
	conditionHandler := handler.NewConditionHandler(talentStore)

	hertzOptions := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	}
	var tracerCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracer, c := hertztracing.NewServerTracer()
		tracerCfg = c
		hertzOptions = append(hertzOptions, tracer)
	}

	h := server.New(hertzOptions...)
	if tracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	}
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, screenHandler, conditionHandler, cfg.Server.APIKeys)
	glog.Info("HTTP路由注册成功")

	glog.Infof("%s v%s 启动中，监听地址: %s", serviceName, version, cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger() {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		log.Fatalf("创建日志目录失败: %v", err)
	}
	logFilePath := "logs/app.log"
	fileWriter, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("无法打开日志文件 %s: %v", logFilePath, err)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	multiWriter := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = "15:04:05"

	logger := zerolog.New(multiWriter).With().Timestamp().Caller().Logger()
	appCoreLogger.Logger = logger
	zlog.Logger = logger

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	glog.SetLevel(glog.LevelInfo)
}
