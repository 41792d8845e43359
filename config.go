package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig is the environment-backed Config implementation. All values are
// read once at startup and treated as immutable afterwards.
type EnvConfig struct {
	SigningKey      string        `env:"AUTH_SIGNING_KEY,required,notEmpty"`
	Issuer          string        `env:"AUTH_ISSUER" envDefault:"projectmanagement"`
	Audience        []string      `env:"AUTH_AUDIENCE" envSeparator:","`
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"168h"`
	TempTokenTTL    time.Duration `env:"AUTH_TEMP_TOKEN_TTL" envDefault:"20m"`
	PublicURL       string        `env:"AUTH_PUBLIC_URL" envDefault:"http://localhost:3000"`
}

var _ Config = (*EnvConfig)(nil)

// NewEnvConfig loads configuration from environment variables.
func NewEnvConfig() (*EnvConfig, error) {
	cfg := EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse auth config")
	}

	return &cfg, nil
}

func (c *EnvConfig) GetSigningKey() string { return c.SigningKey }

func (c *EnvConfig) GetIssuer() string { return c.Issuer }

func (c *EnvConfig) GetAudience() []string { return c.Audience }

func (c *EnvConfig) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

func (c *EnvConfig) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c *EnvConfig) GetTempTokenTTL() time.Duration { return c.TempTokenTTL }

func (c *EnvConfig) GetPublicURL() string { return c.PublicURL }
