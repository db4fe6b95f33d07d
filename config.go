package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"swarmctl/internal/aggregator"
	"swarmctl/internal/display"
	"swarmctl/internal/notify"
	"swarmctl/internal/packet"
	"swarmctl/internal/render"
)

// Notification backends.
const (
	backendLocal = "local"
	backendRedis = "redis"
	backendMQTT  = "mqtt"
)

// Config holds the controller configuration loaded from environment
// variables. All settings have defaults and can be overridden via env vars
// or a dotenv file.
type Config struct {
	Swarm struct {
		Port          int
		BroadcastAddr string
	}

	Display struct {
		Driver    string // max7219 or memory
		SPIDevice string
		Intensity int
	}

	Render struct {
		MaxData int
		Window  int
		History int
	}

	CreditOnReset bool

	GPIO struct {
		Enabled           bool
		Chip              string
		LEDPins           []int
		ResetLEDPin       int
		ButtonPin         int
		Blink             time.Duration
		IndicatorDuration time.Duration
		Debounce          time.Duration
	}

	Notify struct {
		Backends []string
		Queue    int
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
		Channel  string
	}

	MQTT notify.MQTTConfig

	Dashboard struct {
		Enabled    bool
		ServerPort string
	}

	Log struct {
		Level  string
		Format string
	}
}

// loadConfig reads the dotenv file named by ENV_FILE, or .env when present,
// then builds the configuration from the environment.
func loadConfig() (*Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	var errs []error
	env := envReader{errs: &errs}
	cfg := &Config{}

	cfg.Swarm.Port = env.Int("SWARM_PORT", packet.Port)
	cfg.Swarm.BroadcastAddr = env.String("SWARM_BROADCAST_ADDR", packet.BroadcastAddr)

	cfg.Display.Driver = env.String("DISPLAY_DRIVER", "max7219")
	cfg.Display.SPIDevice = env.String("SPI_DEVICE", "/dev/spidev0.0")
	cfg.Display.Intensity = env.Int("DISPLAY_INTENSITY", 8)

	cfg.Render.MaxData = env.Int("RENDER_MAX_DATA", render.DefaultMaxData)
	cfg.Render.Window = env.Int("RENDER_WINDOW", render.DefaultWindow)
	cfg.Render.History = env.Int("SAMPLE_HISTORY", aggregator.DefaultHistory)

	cfg.CreditOnReset = env.Bool("CREDIT_ON_RESET", false)

	cfg.GPIO.Enabled = env.Bool("GPIO_ENABLED", false)
	cfg.GPIO.Chip = env.String("GPIO_CHIP", "gpiochip0")
	cfg.GPIO.LEDPins = env.Ints("GPIO_LED_PINS", []int{23, 24, 25})
	cfg.GPIO.ResetLEDPin = env.Int("GPIO_RESET_LED_PIN", 17)
	cfg.GPIO.ButtonPin = env.Int("GPIO_BUTTON_PIN", 4)
	cfg.GPIO.Blink = env.Duration("BLINK_DURATION", 300*time.Millisecond)
	cfg.GPIO.IndicatorDuration = env.Duration("RESET_INDICATOR_DURATION", 3*time.Second)
	cfg.GPIO.Debounce = env.Duration("BUTTON_DEBOUNCE", 50*time.Millisecond)

	cfg.Notify.Backends = env.List("NOTIFY_BACKENDS", []string{backendLocal})
	cfg.Notify.Queue = env.Int("NOTIFY_QUEUE", notify.DefaultQueue)

	cfg.Redis.Addr = env.String("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = env.String("REDIS_PASSWORD", "")
	cfg.Redis.DB = env.Int("REDIS_DB", 0)
	cfg.Redis.Channel = env.String("REDIS_CHANNEL", "swarm_dashboard")

	cfg.MQTT.Broker = env.String("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = env.String("MQTT_CLIENT_ID", "swarmctl")
	cfg.MQTT.Username = env.String("MQTT_USERNAME", "")
	cfg.MQTT.Password = env.String("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = env.String("MQTT_TOPIC", "swarm/dashboard")
	if qos := env.Int("MQTT_QOS", 0); qos < 0 || qos > 2 {
		errs = append(errs, fmt.Errorf("MQTT_QOS %d out of range 0..2", qos))
	} else {
		cfg.MQTT.QoS = byte(qos)
	}

	cfg.Dashboard.Enabled = env.Bool("DASHBOARD_ENABLED", true)
	cfg.Dashboard.ServerPort = env.String("SERVER_PORT", ":8080")

	cfg.Log.Level = env.String("LOG_LEVEL", "info")
	cfg.Log.Format = env.String("LOG_FORMAT", "json")
	if env.Bool("DEBUG", false) {
		cfg.Log.Level = "debug"
	}

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Swarm.Port < 1 || c.Swarm.Port > 65535 {
		errs = append(errs, fmt.Errorf("SWARM_PORT %d out of range", c.Swarm.Port))
	}
	switch c.Display.Driver {
	case "max7219", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown DISPLAY_DRIVER %q", c.Display.Driver))
	}
	if c.Display.Intensity < 0 || c.Display.Intensity > display.MaxIntensity {
		errs = append(errs, fmt.Errorf("DISPLAY_INTENSITY %d out of range 0..%d", c.Display.Intensity, display.MaxIntensity))
	}
	if c.Render.Window < 1 {
		errs = append(errs, fmt.Errorf("RENDER_WINDOW must be positive"))
	}
	if c.Render.MaxData < display.Rows {
		errs = append(errs, fmt.Errorf("RENDER_MAX_DATA must be at least %d", display.Rows))
	}
	if c.Render.History < c.Render.Window {
		errs = append(errs, fmt.Errorf("SAMPLE_HISTORY must hold at least RENDER_WINDOW samples"))
	}
	for _, b := range c.Notify.Backends {
		switch b {
		case backendLocal, backendRedis, backendMQTT:
		default:
			errs = append(errs, fmt.Errorf("unknown NOTIFY_BACKENDS entry %q", b))
		}
	}
	if c.Dashboard.Enabled && !c.hasBackend(backendLocal) && !c.hasBackend(backendRedis) {
		errs = append(errs, errors.New("DASHBOARD_ENABLED needs NOTIFY_BACKENDS to include local or redis"))
	}
	return errs
}

// hasBackend reports whether name is among the configured backends.
func (c *Config) hasBackend(name string) bool {
	for _, b := range c.Notify.Backends {
		if b == name {
			return true
		}
	}
	return false
}

// envReader reads typed environment variables with a default fallback,
// collecting parse errors.
type envReader struct {
	errs *[]error
}

func (e envReader) String(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) Int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (e envReader) Bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

func (e envReader) Duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func (e envReader) List(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e envReader) Ints(key string, defaultValue []int) []int {
	parts := e.List(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
