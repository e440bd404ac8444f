package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/pion/stun/v3"
)

type Config struct {
	Port            uint16        `env:"PORT"             envDefault:"8080"        validate:"min=1"`
	Environment     string        `env:"ENVIRONMENT"      envDefault:"development" validate:"oneof=development production test"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"        validate:"oneof=debug info warn error"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"  envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"         validate:"gt=0"`
	ICE             ICEConfig
	Redis           RedisConfig `envPrefix:"REDIS_"`
}

// ICEConfig lists the external STUN/TURN servers handed to browsers
type ICEConfig struct {
	Servers        []string `env:"ICE_SERVERS"     envDefault:"stun:stun.l.google.com:19302" envSeparator:"," validate:"dive,iceuri"`
	TURNUsername   string   `env:"TURN_USERNAME"`
	TURNCredential string   `env:"TURN_CREDENTIAL"`
}

// RedisConfig controls the optional presence mirror
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     uint16 `env:"PORT"     envDefault:"6379" validate:"min=1"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"    validate:"min=0"`
}

// Addr returns host:port for the Redis client
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration from the environment, after loading envFile.
// A missing envFile is only an error when required is set.
// Variables already set in the environment win over the file.
func Load(envFile string, required bool) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && (required || !errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	validate := validator.New()
	if err := validate.RegisterValidation("iceuri", validateICEURI); err != nil {
		return nil, fmt.Errorf("register validator: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func validateICEURI(fl validator.FieldLevel) bool {
	_, err := stun.ParseURI(fl.Field().String())
	return err == nil
}

// ICEServers groups the configured URLs the way RTCPeerConnection expects:
// STUN URLs in one entry, TURN URLs in another carrying the credentials.
func (c ICEConfig) ICEServers() []models.ICEServer {
	var stunURLs, turnURLs []string
	for _, raw := range c.Servers {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			continue
		}
		switch uri.Scheme {
		case stun.SchemeTypeTURN, stun.SchemeTypeTURNS:
			turnURLs = append(turnURLs, raw)
		default:
			stunURLs = append(stunURLs, raw)
		}
	}

	servers := []models.ICEServer{}
	if len(stunURLs) > 0 {
		servers = append(servers, models.ICEServer{URLs: stunURLs})
	}
	if len(turnURLs) > 0 {
		servers = append(servers, models.ICEServer{
			URLs:       turnURLs,
			Username:   c.TURNUsername,
			Credential: c.TURNCredential,
		})
	}
	return servers
}
