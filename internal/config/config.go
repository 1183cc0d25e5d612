package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"parkvision-service/internal/domain/occupancy"
)

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type SourceConfig struct {
	URL              string        `mapstructure:"url"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
}

type DetectorConfig struct {
	Endpoint            string        `mapstructure:"endpoint"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	ProcessEveryN       int           `mapstructure:"process_every_n"`
	VehicleClasses      []string      `mapstructure:"vehicle_classes"`
}

type ZoneConfig struct {
	ID string  `mapstructure:"id"`
	X1 float64 `mapstructure:"x1"`
	Y1 float64 `mapstructure:"y1"`
	X2 float64 `mapstructure:"x2"`
	Y2 float64 `mapstructure:"y2"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      int    `mapstructure:"qos"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Detector DetectorConfig `mapstructure:"detector"`
	Zones    []ZoneConfig   `mapstructure:"zones"`
	Database DatabaseConfig `mapstructure:"database"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Log      LogConfig      `mapstructure:"log"`
}

// Load reads the config file (yaml) and environment overrides, applies
// defaults, and validates. A validation error here is fatal to startup.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.stream_interval", 33*time.Millisecond)
	v.SetDefault("source.connect_timeout", 10*time.Second)
	v.SetDefault("source.reconnect_backoff", 2*time.Second)
	v.SetDefault("detector.timeout", 5*time.Second)
	v.SetDefault("detector.confidence_threshold", 0.5)
	v.SetDefault("detector.process_every_n", 3)
	v.SetDefault("detector.vehicle_classes", []string{"car", "vehicle"})
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("parkvision")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/parkvision")
	}

	v.SetEnvPrefix("PARKVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return errors.New("source.url is required")
	}
	if c.Detector.Endpoint == "" {
		return errors.New("detector.endpoint is required")
	}
	if c.Detector.ConfidenceThreshold <= 0 || c.Detector.ConfidenceThreshold > 1 {
		return fmt.Errorf("detector.confidence_threshold must be in (0, 1], got %v", c.Detector.ConfidenceThreshold)
	}
	if c.Detector.ProcessEveryN < 1 {
		return fmt.Errorf("detector.process_every_n must be >= 1, got %d", c.Detector.ProcessEveryN)
	}
	if len(c.Detector.VehicleClasses) == 0 {
		return errors.New("detector.vehicle_classes must not be empty")
	}
	if len(c.Zones) == 0 {
		return errors.New("at least one zone is required")
	}
	seen := make(map[string]struct{}, len(c.Zones))
	for i, z := range c.Zones {
		if z.ID == "" {
			return fmt.Errorf("zones[%d]: id is required", i)
		}
		if _, dup := seen[z.ID]; dup {
			return fmt.Errorf("zones[%d]: duplicate id %q", i, z.ID)
		}
		seen[z.ID] = struct{}{}
		if z.X1 >= z.X2 || z.Y1 >= z.Y2 {
			return fmt.Errorf("zone %q: rectangle must satisfy x1<x2 and y1<y2", z.ID)
		}
	}
	if c.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive, got %v", c.Server.StreamInterval)
	}
	return nil
}

// ZoneList converts the configured rectangles into domain zones, preserving
// configuration order.
func (c *Config) ZoneList() []occupancy.Zone {
	zones := make([]occupancy.Zone, 0, len(c.Zones))
	for _, z := range c.Zones {
		zones = append(zones, occupancy.NewZone(z.ID, z.X1, z.Y1, z.X2, z.Y2))
	}
	return zones
}

// VehicleClassSet returns the configured vehicle-class labels lowered for
// case-insensitive matching.
func (c *Config) VehicleClassSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Detector.VehicleClasses))
	for _, cls := range c.Detector.VehicleClasses {
		set[strings.ToLower(cls)] = struct{}{}
	}
	return set
}
