package config

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		CachePath: "./cache",
		Sources: Sources{
			Local: LocalSource{
				Enabled: true,
				Path:    "./media",
			},
			Remote: RemoteSource{
				Enabled:        false,
				Hosts:          []string{},
				Extension:      "mp3",
				TimeoutSeconds: 300,
			},
			Deezer: DeezerSource{
				Enabled:   false,
				BaseURL:   "https://api.deezer.com",
				RateLimit: 5,
			},
		},
		Requests: Requests{
			DefaultSource:     "local",
			MaxDownloadSizeMB: 10,
			LogRequesters:     true,
			WaitForDownload:   false,
		},
		Queue: Queue{
			Voting: false,
		},
		Database: Database{
			Path: "./archive.db",
		},
		Server: Server{
			PrintRoutes:  false,
			Port:         3636,
			RequestRate:  0.2,
			RequestBurst: 3,
		},
		Broadcast: Broadcast{
			WebsocketAddr: ":3637",
			Redis: Redis{
				Enabled: false,
				Addr:    "127.0.0.1:6379",
				Channel: "jukebox:state",
			},
		},
		Logger: Logger{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Jobs: Jobs{
			Workers: 4,
			Log:     false,
			LogPath: "./logs/jobs",
		},
		Telegram: Telegram{
			Enabled:      false,
			Token:        "",                                   // Can be obtained with https://t.me/BotFather
			AllowedUsers: []string{"<your_telegram_username>"}, // No @
		},
	}
}
