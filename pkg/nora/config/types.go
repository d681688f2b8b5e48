package config

type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	// Security settings
	Security SecurityConfig `json:"security"`

	// Logging settings
	Logging LoggingConfig `json:"logging"`

	// Notification queue settings
	Notify NotifyConfig `json:"notify"`
}

type ServerConfig struct {
	Host         string `json:"host" default:"0.0.0.0"`
	Port         int    `json:"port" default:"8080"`
	ReadTimeout  int    `json:"read_timeout" default:"30"`  // seconds
	WriteTimeout int    `json:"write_timeout" default:"30"` // seconds
	IdleTimeout  int    `json:"idle_timeout" default:"120"` // seconds
	GracefulStop int    `json:"graceful_stop" default:"30"` // seconds

	// BaseURL prefixes the selection links sent to commensals
	BaseURL  string `json:"base_url" default:"http://localhost:8080"`
	TimeZone string `json:"time_zone" default:"UTC"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver" default:"sqlite"` // sqlite, postgres
	Host     string `json:"host" default:"localhost"`
	Port     int    `json:"port" default:"5432"`
	Database string `json:"database" default:"nora.db"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode" default:"disable"`

	// Connection pool settings
	MaxOpenConns    int `json:"max_open_conns" default:"25"`
	MaxIdleConns    int `json:"max_idle_conns" default:"5"`
	ConnMaxLifetime int `json:"conn_max_lifetime" default:"300"` // seconds
}

type SecurityConfig struct {
	JWTSecret          string `json:"jwt_secret"`
	JWTExpirationHours int    `json:"jwt_expiration_hours" default:"24"`

	SessionSecret       string `json:"session_secret"`
	SessionCookieName   string `json:"session_cookie_name" default:"nora_session"`
	SessionCookieSecure bool   `json:"session_cookie_secure" default:"false"`

	AllowRegistration bool   `json:"allow_registration" default:"false"`
	AdminEmail        string `json:"admin_email" default:"admin@nora.local"`
	AdminPassword     string `json:"admin_password" default:"changeme"`

	// Rate limiting for the public selection form and the login endpoints
	RateLimitEnabled   bool `json:"rate_limit_enabled" default:"true"`
	RateLimitPerMinute int  `json:"rate_limit_per_minute" default:"60"`
	RateLimitBurstSize int  `json:"rate_limit_burst_size" default:"10"`

	CORSOrigins []string `json:"cors_origins"`
}

type LoggingConfig struct {
	Level      string `json:"level" default:"info"`    // debug, info, warn, error
	Format     string `json:"format" default:"json"`   // json, text
	Output     string `json:"output" default:"stdout"` // stdout, file
	FilePath   string `json:"file_path" default:"logs/nora.log"`
	MaxSize    int    `json:"max_size" default:"100"` // megabytes
	MaxBackups int    `json:"max_backups" default:"3"`
	MaxAge     int    `json:"max_age" default:"28"` // days
	Compress   bool   `json:"compress" default:"true"`
}

type NotifyConfig struct {
	// SlackServiceURL is joined with a distribution's link_id to form the webhook URL
	SlackServiceURL string `json:"slack_service_url" default:"https://hooks.slack.com/services/"`
	WorkerCount     int    `json:"worker_count" default:"2"`
	PollInterval    int    `json:"poll_interval" default:"5"` // seconds
	BatchSize       int    `json:"batch_size" default:"10"`
	RequestTimeout  int    `json:"request_timeout" default:"30"` // seconds
	EnqueueTimeout  int    `json:"enqueue_timeout" default:"2"`  // seconds
	RunWorkers      bool   `json:"run_workers" default:"false"`
}
