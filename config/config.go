package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type (
	// Env holds the values of environment variable based configuration
	Env struct {
		Host              string        `envconfig:"HOST" default:"127.0.0.1"`
		Port              int           `envconfig:"PORT" default:"8080"`
		Folder            string        `envconfig:"RAMLIZER_FOLDER"`
		Pattern           string        `envconfig:"RAMLIZER_PATTERN" default:"*.raml"`
		Endpoint          string        `envconfig:"RAMLIZER_ENDPOINT" default:"ramlizer"`
		OpsPort           int           `envconfig:"OPS_PORT" default:"8081"`
		StartupGrace      time.Duration `envconfig:"STARTUP_GRACE" default:"0s"`
		StrictNegotiation bool          `envconfig:"STRICT_NEGOTIATION" default:"true"`
		RandomSeed        int64         `envconfig:"RANDOM_SEED" default:"0"`
		LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
		LogFormat         string        `envconfig:"LOG_FORMAT" default:"text"`
	}
)

// DotEnvFile is loaded into the environment, when present, before the Env is processed.
const DotEnvFile = ".env"

// Load reads an optional dotenv file and then processes the environment.
// Variables already set in the environment win over the file.
func Load(dotEnvPath string) (*Env, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Env{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
