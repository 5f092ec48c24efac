package config

import "github.com/ilyakaznacheev/cleanenv"

type Config struct {
	GatewayURL string `env:"GATEWAY_URL" env-default:"http://localhost:8080"`
	Token      string `env:"GATEWAY_TOKEN"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}
	return &cfg
}
