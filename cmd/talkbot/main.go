package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"talkbot/internal/command"
	"talkbot/internal/commands"
	"talkbot/internal/config"
	"talkbot/internal/dispatch"
	"talkbot/internal/provider"
	"talkbot/internal/store"
	"talkbot/internal/stream"
	"talkbot/internal/telegram"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// .env is optional; config expansion picks the variables up
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "talkbot",
		Short: "talkbot: conversational Telegram AI bot",
		Long:  "talkbot is a Telegram chat bot that streams AI responses in place and moderates its chats.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.talkbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			dataDir := config.ExpandPath(cfg.Store.DataDir)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data", dataDir)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Long:  "Connects to Telegram via long polling and serves updates until interrupted.",
		RunE:  runBot,
	}
}

// setupLogger rebuilds the process logger from config: level, and optionally
// a log file alongside stderr.
func setupLogger(cfg *config.Config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		return fmt.Errorf("bad log level %q: %w", cfg.General.LogLevel, err)
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(config.ExpandPath(cfg.General.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	dataDir := config.ExpandPath(cfg.Store.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	logger.Info("connected to telegram", "username", bot.Self.UserName, "version", version)

	client := telegram.NewBotClient(bot, cfg.Telegram.ParseMode, logger)

	st, err := store.Open(config.ExpandPath(cfg.Store.DBPath), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	mod, err := store.NewModeration(ctx, st)
	if err != nil {
		return fmt.Errorf("load moderation state: %w", err)
	}

	answers, err := store.LoadAnswers(config.ExpandPath(cfg.Store.AnswersPath), logger)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}

	photos := store.NewPhotoCache(dataDir, cfg.Store.MaxPhotoSize, client, logger)

	backends, err := provider.Build(cfg.Backends, logger)
	if err != nil {
		return fmt.Errorf("build backends: %w", err)
	}
	if b, ok := backends[cfg.Chat.DefaultBackend]; ok {
		if err := b.Healthy(ctx); err != nil {
			logger.Warn("default backend unhealthy at startup", "backend", b.Name(), "err", err)
		} else {
			logger.Info("backend healthy", "backend", b.Name())
		}
	}

	registry := stream.NewRegistry()
	coord := &stream.Coordinator{
		Client:       client,
		Store:        st,
		Registry:     registry,
		Logger:       logger,
		EditInterval: time.Duration(cfg.Chat.EditIntervalMS) * time.Millisecond,
		Timeout:      time.Duration(cfg.Chat.RequestTimeoutMin) * time.Minute,
		CancelData:   commands.CancelData,
		CancelLabel:  "Cancel",
	}

	chatSvc := &commands.ChatService{Backends: backends, Coord: coord}

	env := &command.Env{
		Client:    client,
		Store:     st,
		Photos:    photos,
		Mod:       mod,
		Answers:   answers,
		Cfg:       cfg,
		CfgPath:   cfgPath,
		Streams:   registry,
		Services:  map[string]command.ChatExecutor{command.ServiceDefaultChat: chatSvc},
		Logger:    logger,
		StartedAt: time.Now(),
		Shutdown:  stop,
	}

	list, err := commands.All(chatSvc)
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	if err := client.RegisterCommands(commands.BotCommands(list)); err != nil {
		logger.Warn("register command menu failed", "err", err)
	}

	dispatcher := &dispatch.Dispatcher{
		Env:       env,
		Commands:  list,
		Callbacks: commands.Callbacks(),
		Logger:    logger,
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := bot.GetUpdatesChan(updateCfg)

	logger.Info("bot started. Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			dispatcher.Dispatch(ctx, update)
		}
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config and backend health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx := context.Background()
			backends, err := provider.Build(cfg.Backends, logger)
			if err != nil {
				logger.Info("backends", "configured", false)
				return nil
			}
			for name, b := range backends {
				if err := b.Healthy(ctx); err != nil {
					logger.Info("backend", "name", name, "healthy", false, "err", err)
				} else {
					logger.Info("backend", "name", name, "healthy", true)
				}
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. chat.defaultBackend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. chat.defaultBackend ollama)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
