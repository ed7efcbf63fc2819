package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"chatwarden/internal/chatops"
	"chatwarden/internal/driver"
	"chatwarden/internal/kernel"
	"chatwarden/internal/ledger"
	"chatwarden/modules/help"
	"chatwarden/modules/history"
	"chatwarden/modules/noticeguard"
	"chatwarden/modules/qecho"
	"chatwarden/modules/rename"
	"chatwarden/modules/repic"
	"chatwarden/pkg/warden"
)

const (
	telegramDriverName = "telegram-main"
	ledgerFileName     = "title_changes.csv"
	stagingDirName     = "staging"
)

// appConfig is read env-first; every tunable has an env-default so only the
// Telegram API credentials are mandatory.
type appConfig struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	DataDir  string `env:"DATA_DIR" env-default:"data"`

	// HistoryUser is the only identity allowed to query /history.
	HistoryUser string `env:"HISTORY_USER"`

	TelegramAppID    int    `env:"TG_APP_ID" env-required:"true"`
	TelegramAppHash  string `env:"TG_APP_HASH" env-required:"true"`
	TelegramPhone    string `env:"TG_PHONE"`
	TelegramCode     string `env:"TG_CODE"`
	TelegramPassword string `env:"TG_PASSWORD"`
	SessionFile      string `env:"SESSION_FILE" env-default:".cache/telegram/session.json"`

	ModuleHookTimeout   time.Duration `env:"KERNEL_MODULE_HOOK_TIMEOUT" env-default:"3s"`
	ShutdownTimeout     time.Duration `env:"KERNEL_SHUTDOWN_TIMEOUT" env-default:"10s"`
	SubscriptionBuffer  int           `env:"KERNEL_SUBSCRIPTION_BUFFER" env-default:"256"`
	SubscriptionWorkers int           `env:"KERNEL_SUBSCRIPTION_WORKERS" env-default:"2"`
	PublishTimeout      time.Duration `env:"DRIVER_PUBLISH_TIMEOUT" env-default:"2s"`
	AuthTimeout         time.Duration `env:"DRIVER_AUTH_TIMEOUT" env-default:"3m"`
}

// telegramDriverConfig mirrors the telegram runtime JSON config payload.
type telegramDriverConfig struct {
	AppID          int    `json:"app_id"`
	AppHash        string `json:"app_hash"`
	PublishTimeout string `json:"publish_timeout"`
	AuthTimeout    string `json:"auth_timeout"`
	Phone          string `json:"phone,omitempty"`
	Code           string `json:"code,omitempty"`
	Password       string `json:"password,omitempty"`
	SessionFile    string `json:"session_file"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	registry, err := driver.NewBuiltinRegistry()
	if err != nil {
		return fmt.Errorf("new builtin driver registry: %w", err)
	}

	definitions, err := driverDefinitions(cfg)
	if err != nil {
		return err
	}
	runtimes, err := registry.BuildEnabled(context.Background(), definitions, logger)
	if err != nil {
		return fmt.Errorf("build drivers: %w", err)
	}
	port, err := driver.FirstPort(runtimes)
	if err != nil {
		return fmt.Errorf("resolve chat port: %w", err)
	}

	changeLedger, pipeline, err := buildChatAdministration(cfg, logger, port)
	if err != nil {
		return err
	}

	kernelRuntime := kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.ModuleHookTimeout),
		kernel.WithShutdownTimeout(cfg.ShutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.SubscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.SubscriptionWorkers),
	)

	if err := registerRuntimeServices(kernelRuntime, port, changeLedger, pipeline); err != nil {
		return err
	}
	if err := registerRuntimeDrivers(kernelRuntime, runtimes); err != nil {
		return err
	}
	if err := registerRuntimeModules(context.Background(), kernelRuntime, cfg, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return appConfig{}, err
	}
	if err := validateAppConfig(cfg); err != nil {
		return appConfig{}, err
	}

	return cfg, nil
}

func validateAppConfig(cfg appConfig) error {
	if cfg.TelegramAppID <= 0 {
		return fmt.Errorf("TG_APP_ID must be > 0")
	}
	if strings.TrimSpace(cfg.TelegramAppHash) == "" {
		return fmt.Errorf("TG_APP_HASH is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if cfg.ModuleHookTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("kernel timeouts must be > 0")
	}
	if cfg.SubscriptionBuffer <= 0 || cfg.SubscriptionWorkers <= 0 {
		return fmt.Errorf("kernel subscription tuning must be > 0")
	}
	if cfg.PublishTimeout <= 0 || cfg.AuthTimeout <= 0 {
		return fmt.Errorf("driver timeouts must be > 0")
	}

	return nil
}

func driverDefinitions(cfg appConfig) ([]driver.Definition, error) {
	payload, err := json.Marshal(telegramDriverConfig{
		AppID:          cfg.TelegramAppID,
		AppHash:        cfg.TelegramAppHash,
		PublishTimeout: cfg.PublishTimeout.String(),
		AuthTimeout:    cfg.AuthTimeout.String(),
		Phone:          cfg.TelegramPhone,
		Code:           cfg.TelegramCode,
		Password:       cfg.TelegramPassword,
		SessionFile:    cfg.SessionFile,
	})
	if err != nil {
		return nil, fmt.Errorf("encode telegram driver config: %w", err)
	}

	return []driver.Definition{
		{
			Name:    telegramDriverName,
			Type:    "telegram",
			Enabled: true,
			Config:  payload,
		},
	}, nil
}

func buildChatAdministration(
	cfg appConfig,
	logger *slog.Logger,
	port warden.ChatPort,
) (warden.ChangeLedger, warden.MutationPipeline, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	changeLedger, err := ledger.NewCSVStore(filepath.Join(cfg.DataDir, ledgerFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("open change ledger: %w", err)
	}

	pipeline, err := chatops.NewPipeline(
		port,
		changeLedger,
		chatops.WithLogger(logger),
		chatops.WithStagingDir(filepath.Join(cfg.DataDir, stagingDirName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build mutation pipeline: %w", err)
	}

	return changeLedger, pipeline, nil
}

func registerRuntimeServices(
	kernelRuntime *kernel.Kernel,
	port warden.ChatPort,
	changeLedger warden.ChangeLedger,
	pipeline warden.MutationPipeline,
) error {
	if err := kernelRuntime.RegisterService(warden.ServiceChatPort, port); err != nil {
		return fmt.Errorf("register chat port service: %w", err)
	}
	if err := kernelRuntime.RegisterService(warden.ServiceChangeLedger, changeLedger); err != nil {
		return fmt.Errorf("register change ledger service: %w", err)
	}
	if err := kernelRuntime.RegisterService(warden.ServiceMutationPipeline, pipeline); err != nil {
		return fmt.Errorf("register mutation pipeline service: %w", err)
	}

	return nil
}

func registerRuntimeDrivers(kernelRuntime *kernel.Kernel, runtimes []driver.Runtime) error {
	for _, runtime := range runtimes {
		if err := kernelRuntime.RegisterDriver(runtime.Driver); err != nil {
			return fmt.Errorf("register driver %s: %w", runtime.Driver.Name(), err)
		}
	}

	return nil
}

// registerRuntimeModules registers modules in dispatch-order: noticeguard
// observes service notices before anything else reacts to them.
func registerRuntimeModules(
	ctx context.Context,
	kernelRuntime *kernel.Kernel,
	cfg appConfig,
	logger *slog.Logger,
) error {
	modules := []warden.Module{
		noticeguard.New(noticeguard.WithLogger(logger)),
		rename.New(rename.WithLogger(logger)),
		repic.New(repic.WithLogger(logger)),
		history.New(cfg.HistoryUser, history.WithLogger(logger)),
		qecho.New(qecho.WithLogger(logger)),
		help.New(),
	}
	for _, module := range modules {
		if err := kernelRuntime.RegisterModule(ctx, module); err != nil {
			return fmt.Errorf("register %s module: %w", module.Name(), err)
		}
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
