package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"cleanxpert/internal/domain"
)

type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	HTTP     HTTPConfig     `yaml:"http"`
	Pushover PushoverConfig `yaml:"pushover"`
	Chime    ChimeConfig    `yaml:"chime"`
	Log      LogConfig      `yaml:"log"`
}

type DeviceConfig struct {
	Address        string `yaml:"address"`
	ServiceUUID    string `yaml:"service_uuid"`
	Channel        uint8  `yaml:"channel"`
	Adapter        string `yaml:"adapter"`
	Transport      string `yaml:"transport"` // "rfcomm" | "tty"
	TTYPath        string `yaml:"tty_path"`
	BaudRate       int    `yaml:"baud_rate"`
	ConnectTimeout string `yaml:"connect_timeout"`
	StartupDelay   string `yaml:"startup_delay"`
	CheckAdapter   *bool  `yaml:"check_adapter"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type ChimeConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate int     `yaml:"sample_rate"`
	Volume     float32 `yaml:"volume"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	MaxLines int    `yaml:"max_lines"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Device.Address == "" {
		c.Device.Address = "00:22:12:01:4A:0E"
	}
	if c.Device.ServiceUUID == "" {
		c.Device.ServiceUUID = domain.SerialPortServiceID.String()
	}
	if c.Device.Channel == 0 {
		c.Device.Channel = 1
	}
	if c.Device.Adapter == "" {
		c.Device.Adapter = "hci0"
	}
	if c.Device.Transport == "" {
		c.Device.Transport = "rfcomm"
	}
	if c.Device.TTYPath == "" {
		c.Device.TTYPath = "/dev/rfcomm0"
	}
	if c.Device.BaudRate == 0 {
		c.Device.BaudRate = 9600
	}
	if c.Device.ConnectTimeout == "" {
		c.Device.ConnectTimeout = "15s"
	}
	if c.Device.StartupDelay == "" {
		c.Device.StartupDelay = "0s"
	}
	if c.Device.CheckAdapter == nil {
		check := true
		c.Device.CheckAdapter = &check
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Chime.SampleRate == 0 {
		c.Chime.SampleRate = 44100
	}
	if c.Chime.Volume == 0 {
		c.Chime.Volume = 0.5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Device.Transport {
	case "rfcomm", "tty":
	default:
		return fmt.Errorf("invalid device.transport %q: want rfcomm or tty", c.Device.Transport)
	}
	if _, err := c.Endpoint(); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.Device.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid device.connect_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Device.StartupDelay); err != nil {
		return fmt.Errorf("invalid device.startup_delay: %w", err)
	}
	return nil
}

// Endpoint builds the device endpoint from the device section.
func (c *Config) Endpoint() (domain.Endpoint, error) {
	serviceID, err := uuid.Parse(c.Device.ServiceUUID)
	if err != nil {
		return domain.Endpoint{}, fmt.Errorf("invalid device.service_uuid: %w", err)
	}
	ep, err := domain.NewEndpoint(c.Device.Address, serviceID, c.Device.Channel)
	if err != nil {
		return domain.Endpoint{}, fmt.Errorf("invalid device.address: %w", err)
	}
	return ep, nil
}

func (d DeviceConfig) ConnectTimeoutDuration() time.Duration {
	v, _ := time.ParseDuration(d.ConnectTimeout)
	return v
}

func (d DeviceConfig) StartupDelayDuration() time.Duration {
	v, _ := time.ParseDuration(d.StartupDelay)
	return v
}
