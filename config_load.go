package khata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. BOIKHATA_BASEURL or
// BOIKHATA_AUTH_REFRESHPATH.
const EnvPrefix = "BOIKHATA"

// LoadConfig reads configuration from path (yaml, optional) and the environment on top of
// DefaultConfig. An empty path searches ./boikhata.yaml and ./config/boikhata.yaml.
// The result is validated.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("boikhata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("baseurl", d.BaseURL)

	v.SetDefault("auth.loginpath", d.Auth.LoginPath)
	v.SetDefault("auth.refreshpath", d.Auth.RefreshPath)
	v.SetDefault("auth.logoutpath", d.Auth.LogoutPath)
	v.SetDefault("auth.tokenscheme", d.Auth.TokenScheme)

	v.SetDefault("session.namespace", d.Session.Namespace)
	v.SetDefault("session.rehydrationwarnafter", d.Session.RehydrationWarnAfter.String())
	v.SetDefault("session.persisttimeout", d.Session.PersistTimeout.String())

	v.SetDefault("transport.timeout", d.Transport.Timeout.String())
	v.SetDefault("transport.ratelimit", d.Transport.RateLimit)
	v.SetDefault("transport.burst", d.Transport.Burst)
	v.SetDefault("transport.useragent", d.Transport.UserAgent)
	v.SetDefault("transport.maxresponsebytes", d.Transport.MaxResponseBytes)

	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("notifications.buffersize", d.Notifications.BufferSize)
	v.SetDefault("notifications.dropiffull", d.Notifications.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enablelatencyhistograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.redisaddr", d.Storage.RedisAddr)
	v.SetDefault("storage.redispassword", d.Storage.RedisPassword)
	v.SetDefault("storage.redisdb", d.Storage.RedisDB)
	v.SetDefault("storage.redisprefix", d.Storage.RedisPrefix)
	v.SetDefault("storage.redisttl", d.Storage.RedisTTL.String())

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}
