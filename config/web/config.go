package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port     int    `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	Backend BackendConfig
	SSO     SSOConfig
	Auth    AuthConfig
	Store   StoreConfig
	Upload  UploadConfig
	Poll    PollConfig
}

type BackendConfig struct {
	URL     string        `env:"BACKEND_URL" env-default:"http://localhost:8888"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT" env-default:"30s"`
	// LLM calls run for minutes on long transcripts.
	LLMTimeout time.Duration `env:"BACKEND_LLM_TIMEOUT" env-default:"5m"`
}

type SSOConfig struct {
	IssuerURL    string `env:"AUTHENTIK_ISSUER_URL"`
	ClientID     string `env:"AUTHENTIK_CLIENT_ID"`
	ClientSecret string `env:"AUTHENTIK_CLIENT_SECRET"`
	RedirectURI  string `env:"AUTHENTIK_REDIRECT_URI" env-default:"http://localhost:3000/auth/callback"`
	Scope        string `env:"AUTHENTIK_SCOPE" env-default:"openid profile email groups"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL" env-default:"30m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" env-default:"168h"`
	AdminGroup string        `env:"ADMIN_GROUP" env-default:"admin"`
}

type StoreConfig struct {
	Path string `env:"STORE_PATH" env-default:"voiceline.sqlite"`
	// Terminal sessions older than this are swept on startup.
	Retention time.Duration `env:"STORE_RETENTION" env-default:"720h"`
}

type UploadConfig struct {
	MaxSizeBytes int64 `env:"UPLOAD_MAX_SIZE" env-default:"104857600"`
}

type PollConfig struct {
	Interval  time.Duration `env:"POLL_INTERVAL" env-default:"2500ms"`
	MaxErrors int           `env:"POLL_MAX_ERRORS" env-default:"3"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	return &cfg
}
