package config

import (
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
}

type HTTPConfig struct {
	Port int `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type StorageConfig struct {
	// PostgresURL selects the postgres storage; when empty the process runs
	// on the in-memory storage and loses state on restart.
	PostgresURL string `yaml:"postgres_url" env:"POSTGRES_URL"`
}

type AuthConfig struct {
	// TokenSecret verifies access tokens issued by the identity service.
	TokenSecret string `yaml:"token_secret" env:"TOKEN_SECRET" env-required:"true"`
}

func Load(path string) *Config {
	var config Config
	err := cleanenv.ReadConfig(path, &config)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &config
}
