package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"genai-studio/common"
	"genai-studio/internal/genai/gemini"
	"genai-studio/internal/i18n"
	"genai-studio/internal/metrics"
	"genai-studio/internal/studio"
	"genai-studio/internal/tools"
	"genai-studio/internal/web"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// 构建时通过 -ldflags "-X main.Version=v1.0.0" 注入
var (
	Version = "dev"
	Commit  = "unknown"
)

const (
	metricsNamespace = "genai_studio"
	sweepInterval    = time.Minute
	shutdownTimeout  = 10 * time.Second
)

// flagOverrides 命令行参数，非空时覆盖环境变量
type flagOverrides struct {
	addr     string
	port     string
	logLevel string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &flagOverrides{}

	root := &cobra.Command{
		Use:          "genai-studio",
		Short:        "GenAI Studio - generate and transform images with Gemini",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web studio over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), config)
		},
	}
	serve.Flags().StringVar(&flags.addr, "addr", "", "listen address, overrides SERVER_ADDRESS")
	serve.Flags().StringVar(&flags.port, "port", "", "listen port, overrides SERVER_PORT")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the image tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// stdout 留给 MCP 协议
			if config.LogOutput == "stdout" {
				config.LogOutput = "stderr"
			}
			return runMCP(cmd.Context(), config)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "genai-studio %s (commit %s, %s %s/%s)\n",
				Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	root.AddCommand(serve, mcpCmd, version)
	return root
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig(flags *flagOverrides) (*common.Config, error) {
	config, err := common.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(config, flags)
	return config, nil
}

func applyOverrides(config *common.Config, flags *flagOverrides) {
	if flags.addr != "" {
		config.ServerAddress = flags.addr
	}
	if flags.port != "" {
		config.ServerPort = flags.port
	}
	if flags.logLevel != "" {
		config.LogLevel = flags.logLevel
	}
}

func runServe(ctx context.Context, config *common.Config) error {
	if err := config.InitLogging(); err != nil {
		return err
	}
	logStartup(config)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := gemini.NewClientFromConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	collector := metrics.NewCollector(metricsNamespace)
	previews := studio.NewPreviewStore()

	sessions, err := studio.NewSessionManager(func(locale language.Tag) (*studio.Controller, error) {
		return studio.NewController(studio.ControllerConfig{
			Generator: client,
			Previews:  previews,
			Locale:    locale,
			Observer:  collector,
		})
	}, config.SessionIdleTimeout())
	if err != nil {
		return err
	}
	defer sessions.CloseAll()

	if err := collector.RegisterSessionGauge(metricsNamespace, sessions.Len); err != nil {
		return fmt.Errorf("failed to register session gauge: %w", err)
	}

	webServer, err := web.NewServer(web.Config{
		Sessions:      sessions,
		Metrics:       collector,
		DefaultLocale: i18n.Parse(config.DefaultLocale),
	})
	if err != nil {
		return err
	}

	go sessions.Run(ctx, sweepInterval)

	httpServer := &http.Server{
		Addr:              config.GetServerAddr(),
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		common.Infof("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	common.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, config *common.Config) error {
	if err := config.InitLogging(); err != nil {
		return err
	}
	logStartup(config)

	client, err := gemini.NewClientFromConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	ctrl, err := tools.NewStudioController(client, i18n.Parse(config.DefaultLocale))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	// 创建 MCP 服务器
	s := server.NewMCPServer(
		"GenAI Studio MCP Server",
		Version,
		server.WithToolCapabilities(true),
	)

	if err := tools.RegisterStudioTools(s, ctrl); err != nil {
		return fmt.Errorf("failed to register studio tools: %w", err)
	}

	// 启动 stdio 服务器
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

// logStartup 打印配置信息（隐藏敏感信息）
func logStartup(config *common.Config) {
	common.WithFields(map[string]interface{}{
		"version":         Version,
		"base_url":        config.GenAIBaseURL,
		"model":           config.GenAIModelName,
		"api_key":         maskAPIKey(config.GenAIAPIKey),
		"timeout_seconds": config.GenAITimeoutSeconds,
		"default_locale":  config.DefaultLocale,
	}).Info("Server starting")
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
