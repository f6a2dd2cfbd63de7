package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	WebRTC    WebRTCConfig    `mapstructure:"webrtc"`
	Session   SessionConfig   `mapstructure:"session"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Cameras   []CameraConfig  `mapstructure:"cameras"`
	Media     MediaConfig     `mapstructure:"media"`
	Intents   IntentsConfig   `mapstructure:"intents"`
}

type MQTTConfig struct {
	BrokerURL          string        `mapstructure:"broker_url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	KeepAlive          time.Duration `mapstructure:"keepalive"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReconnectPeriod    time.Duration `mapstructure:"reconnect_period"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

type WebRTCConfig struct {
	ICEServers []string `mapstructure:"ice_servers"`
}

type SessionConfig struct {
	AutoStart bool `mapstructure:"auto_start"`
}

// DirectoryConfig points at the camera registry. An empty URL means the
// static camera list is used instead.
type DirectoryConfig struct {
	URL     string        `mapstructure:"url"`
	UserID  string        `mapstructure:"user_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CameraConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type MediaConfig struct {
	RecordDir     string `mapstructure:"record_dir"`
	ThumbnailPath string `mapstructure:"thumbnail_path"`
	TalkbackFile  string `mapstructure:"talkback_file"`
}

// IntentsConfig limits start/stop requests per camera within a sliding window.
type IntentsConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults. A missing file is not an error;
// CAMVIEW_* variables override both (CAMVIEW_MQTT_BROKER_URL for mqtt.broker_url).
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CAMVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Broker: %s\n", cfg.Mode, cfg.Port, cfg.MQTT.BrokerURL)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "camview-dev-secret")

	v.SetDefault("mqtt.broker_url", "wss://localhost:8084/mqtt")
	v.SetDefault("mqtt.username", "client")
	v.SetDefault("mqtt.password", "client")
	v.SetDefault("mqtt.keepalive", "600s")
	v.SetDefault("mqtt.connect_timeout", "4s")
	v.SetDefault("mqtt.reconnect_period", "4s")
	v.SetDefault("mqtt.insecure_skip_verify", true)

	v.SetDefault("webrtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("session.auto_start", true)

	v.SetDefault("directory.timeout", "10s")

	v.SetDefault("intents.limit", 5)
	v.SetDefault("intents.interval", "10s")
}

func (c *Config) validate() error {
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("config: mqtt.broker_url is required")
	}
	if c.MQTT.ReconnectPeriod <= 0 {
		return fmt.Errorf("config: mqtt.reconnect_period must be positive")
	}
	if c.Directory.URL != "" && c.Directory.UserID == "" {
		return fmt.Errorf("config: directory.user_id is required with directory.url")
	}
	return nil
}
