package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-chat/internal/api/handler"
	"portfolio-chat/internal/api/router"
	"portfolio-chat/internal/app"
	"portfolio-chat/internal/config"
	"portfolio-chat/internal/constants"
	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/tracing"

	hertzapp "github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	var writeSample bool
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认按 config.yaml、configs/config.yaml 顺序查找)")
	pflag.BoolVar(&writeSample, "init-config", false, "在 --config 指定的位置生成示例配置后退出")
	pflag.Parse()

	if writeSample {
		path := configPath
		if path == "" {
			path = "config.yaml"
		}
		if err := config.CreateSampleConfig(path); err != nil {
			logger.Fatal().Err(err).Msg("生成示例配置失败")
		}
		logger.Info().Str("path", path).Msg("示例配置已生成")
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.BridgeHertz()
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, constants.ServiceName, constants.Version)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	components, err := app.Build(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化服务组件失败: %v", err)
	}
	defer components.Close()
	glog.Info("服务组件初始化成功")

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		// 流式回答可能持续较久，不设置写超时
		server.WithReadTimeout(10*time.Second),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *hertzapp.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		logger.Ctx(c).Info().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("请求完成")
	})

	router.RegisterRoutes(h, handler.NewChatHandler(components.Router), cfg.Server.APIKeys)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
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
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
