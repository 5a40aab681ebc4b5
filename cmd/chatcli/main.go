package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"portfolio-chat/internal/app"
	"portfolio-chat/internal/config"
	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/resume"
	"portfolio-chat/internal/types"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	configPath = pflag.StringP("config", "c", "", "配置文件路径")
	command    = pflag.String("cmd", "ask", "执行的命令: classify=只做意图分类, ask=完整工作流并流式输出, context=打印注入的系统消息")
	query      = pflag.StringP("query", "q", "", "问题文本 (classify/ask 必填)")
	verbose    = pflag.BoolP("verbose", "v", false, "输出调试日志")
)

func main() {
	pflag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger.InitWithWriter(logger.Config{Level: level, Format: "pretty"}, os.Stderr)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch *command {
	case "classify":
		err = withComponents(ctx, cfg, handleClassifyCommand)
	case "ask":
		err = withComponents(ctx, cfg, handleAskCommand)
	case "context":
		err = handleContextCommand(ctx, cfg)
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: classify, ask, context\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func withComponents(ctx context.Context, cfg *config.Config, fn func(context.Context, *app.Components) error) error {
	if strings.TrimSpace(*query) == "" {
		return errors.New("必须通过 --query 提供问题")
	}
	components, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(ctx, components)
}

func handleClassifyCommand(ctx context.Context, c *app.Components) error {
	category, err := c.Classifier.Classify(ctx, *query)
	if err != nil {
		return err
	}
	fmt.Println(category)
	return nil
}

func handleAskCommand(ctx context.Context, c *app.Components) error {
	reply, err := c.Router.Handle(ctx, types.Transcript{{Role: types.RoleUser, Content: *query}})
	if err != nil {
		return err
	}
	defer reply.Close()
	if reply.Empty {
		return nil
	}

	fmt.Fprintf(os.Stderr, "[%s -> %s]\n", reply.Category, reply.Path)
	for {
		msg, err := reply.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Println()
			return err
		}
		fmt.Print(msg.Content)
	}
	fmt.Println()
	return nil
}

// handleContextCommand 不调用模型，只检查简历能否加载
func handleContextCommand(ctx context.Context, cfg *config.Config) error {
	if cfg.Resume.Source == "minio" {
		components, err := app.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer components.Close()
		return printInstruction(ctx, components.Loader)
	}
	loader, err := resume.NewLoaderFromConfig(&cfg.Resume, nil)
	if err != nil {
		return err
	}
	return printInstruction(ctx, loader)
}

func printInstruction(ctx context.Context, loader *resume.Loader) error {
	doc, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	turn, err := resume.BuildSystemInstruction(doc)
	if err != nil {
		return err
	}
	fmt.Println(turn.Content)
	return nil
}
