package util

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const ENV_PREFIX = ""

const CONFIG_NAME = "light_agent"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

func setDefaults() {
	// simulator and decision rules
	Config.SetDefault("simulator_url", "http://localhost:8080")
	Config.SetDefault("poll_interval", 0.5)
	Config.SetDefault("http_timeout", 10)
	Config.SetDefault("daylight_threshold", 0.3)
	Config.SetDefault("auto_brightness", true)
	Config.SetDefault("min_brightness", 30)
	Config.SetDefault("max_brightness", 100)
	Config.SetDefault("brightness_tolerance", 0)

	// output
	Config.SetDefault("log_level", "info")
	Config.SetDefault("quiet", false)
	Config.SetDefault("details_port", 0)

	// mqtt
	Config.SetDefault("mqtt_enabled", false)
	Config.SetDefault("broker_uri", "tcp://mqtt")
	Config.SetDefault("cleansess", false)
	Config.SetDefault("id_base", "light_agent")
	Config.SetDefault("username", "")
	Config.SetDefault("password", "")
	Config.SetDefault("topic_base", "light_agent")
	Config.SetDefault("ha_discovery", true)
}

// SetupConfig loads .env, defaults, the config file and the environment, in
// increasing order of precedence. Flags bound later win over all of them.
// configFile, when not empty, replaces the search path.
func SetupConfig(configFile string) {
	if err := gotenv.Load(); err != nil {
		Logger.Debug().Msgf("no .env loaded: %v", err)
	}

	Config.SetEnvPrefix(ENV_PREFIX)
	Config.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	setDefaults()

	if configFile != "" {
		Config.SetConfigFile(configFile)
	} else {
		Config.SetConfigName(CONFIG_NAME)
		Config.AddConfigPath("./")
		Config.AddConfigPath("./config")
		Config.AddConfigPath("/etc")
		Config.AddConfigPath("/light_agent")
		Config.AddConfigPath("/light_agent/config")
	}

	err := Config.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
			Logger.Debug().Msg("no config file found, using defaults and environment")
		} else {
			Logger.Error().Msgf("unable to read config file: %v", fmt.Errorf("%v", err))
		}
	}

	Config.AutomaticEnv()

	if Config.ConfigFileUsed() != "" {
		Config.WatchConfig()
		Config.OnConfigChange(func(e fsnotify.Event) {
			Logger.Info().Msgf("Config file changed: %v", e.Name)
			Logger.Debug().Msgf("Config Additional Info: %v", e.String())
			OnNewConfig()
		})
	}
}

// Seconds reads a float number of seconds from the config as a duration.
func Seconds(key string) time.Duration {
	return time.Duration(Config.GetFloat64(key) * float64(time.Second))
}
