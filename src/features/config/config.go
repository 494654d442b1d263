package config

// Config holds the application configuration.
type Config struct {
	CachePath string    `yaml:"cachePath" validate:"required"`
	Sources   Sources   `yaml:"sources"`
	Requests  Requests  `yaml:"requests"`
	Queue     Queue     `yaml:"queue"`
	Database  Database  `yaml:"database"`
	Server    Server    `yaml:"server"`
	Broadcast Broadcast `yaml:"broadcast"`
	Logger    Logger    `yaml:"logger"`
	Jobs      Jobs      `yaml:"jobs"`
	Telegram  Telegram  `yaml:"telegram"`
}

// Sources holds the configuration of every media source the providers can use.
type Sources struct {
	Local  LocalSource  `yaml:"local"`
	Remote RemoteSource `yaml:"remote"`
	Deezer DeezerSource `yaml:"deezer"`
}

// LocalSource serves file:// requests out of a media directory.
type LocalSource struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// RemoteSource downloads tracks over HTTP from a fixed set of hosts.
type RemoteSource struct {
	Enabled bool     `yaml:"enabled"`
	Hosts   []string `yaml:"hosts" validate:"dive,hostname_rfc1123"`
	// Extension is used when the URL path carries none.
	Extension      string `yaml:"extension"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

// DeezerSource streams tracks resolved through the Deezer catalog API.
type DeezerSource struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// RateLimit is the number of catalog calls allowed per second.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
}

// Requests holds the behaviour of the request pipeline.
type Requests struct {
	// DefaultSource handles free-text queries: "local" or "deezer".
	DefaultSource string `yaml:"default_source" validate:"oneof=local deezer"`
	// MaxDownloadSizeMB rejects downloads above this size. 0 disables the limit.
	MaxDownloadSizeMB int  `yaml:"max_download_size_mb" validate:"gte=0"`
	LogRequesters     bool `yaml:"log_requesters"`
	WaitForDownload   bool `yaml:"wait_for_download"`
}

// Queue holds the queue ordering options.
type Queue struct {
	Voting bool `yaml:"voting"`
}

// Database holds the configuration for the archive database
type Database struct {
	Path string `yaml:"path" validate:"required"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
	// RequestRate limits song requests per client address, in requests per second. 0 disables it.
	RequestRate  float64 `yaml:"request_rate" validate:"gte=0"`
	RequestBurst int     `yaml:"request_burst" validate:"gte=0"`
}

// Broadcast holds where state snapshots are published.
type Broadcast struct {
	// WebsocketAddr is the listen address of the state websocket. Empty disables it.
	WebsocketAddr string `yaml:"websocket_addr"`
	Redis         Redis  `yaml:"redis"`
}

// Redis holds the optional pub/sub publisher configuration.
type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// Jobs holds the background worker pool configuration.
type Jobs struct {
	Workers int    `yaml:"workers" validate:"gte=0"`
	Log     bool   `yaml:"log"`
	LogPath string `yaml:"log_path"`
}

type Telegram struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	AllowedUsers []string `yaml:"allowedUsers"`
}
