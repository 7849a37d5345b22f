package goAuthClient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GOAUTHCLIENT_TRANSPORT_BASE_URL.
const EnvPrefix = "GOAUTHCLIENT"

// LoadConfig layers the file at path (YAML, JSON or TOML by extension) and
// GOAUTHCLIENT_* environment variables over DefaultConfig, then validates the
// result. An empty path reads the environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if errors.As(err, &nf) {
				return Config{}, fmt.Errorf("config file not found: %s", path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	)); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("transport.base_url", cfg.Transport.BaseURL)
	v.SetDefault("transport.timeout", cfg.Transport.Timeout)
	v.SetDefault("transport.user_agent", cfg.Transport.UserAgent)

	v.SetDefault("refresh.path", cfg.Refresh.Path)
	v.SetDefault("refresh.expired_code", cfg.Refresh.ExpiredCode)

	v.SetDefault("cookie.access_token_name", cfg.Cookie.AccessTokenName)
	v.SetDefault("cookie.refresh_token_name", cfg.Cookie.RefreshTokenName)
	v.SetDefault("cookie.max_age", cfg.Cookie.MaxAge)
	v.SetDefault("cookie.path", cfg.Cookie.Path)
	v.SetDefault("cookie.domain", cfg.Cookie.Domain)
	v.SetDefault("cookie.secure", cfg.Cookie.Secure)
	v.SetDefault("cookie.http_only", cfg.Cookie.HTTPOnly)
	v.SetDefault("cookie.same_site", cfg.Cookie.SameSite)

	v.SetDefault("guard.no_session_redirect", cfg.Guard.NoSessionRedirect)
	v.SetDefault("guard.forbidden_redirect", cfg.Guard.ForbiddenRedirect)
	v.SetDefault("guard.session_reset_redirect", cfg.Guard.SessionResetRedirect)
	v.SetDefault("guard.permanent", cfg.Guard.Permanent)

	v.SetDefault("execution", cfg.Execution.String())

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", cfg.Metrics.EnableLatencyHistograms)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.buffer_size", cfg.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", cfg.Audit.DropIfFull)
}
