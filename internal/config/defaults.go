package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			BotPrefix: "bot",
		},
		Telegram: TelegramConfig{
			ParseMode: "Markdown",
		},
		Backends: map[string]BackendConfig{
			"ollama": {
				Enabled: true,
				Kind:    "ollama",
				APIBase: "http://localhost:11434",
				Model:   "llama3.1:8b",
			},
		},
		Chat: ChatConfig{
			DefaultBackend:    "ollama",
			EditIntervalMS:    4500,
			RequestTimeoutMin: 10,
			ReplyChainLimit:   40,
		},
		Store: StoreConfig{
			DataDir:      "~/.talkbot/data",
			DBPath:       "~/.talkbot/data/talkbot.db",
			MaxPhotoSize: 1280,
		},
	}
}
