package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"ENV_FILE", "SWARM_PORT", "SWARM_BROADCAST_ADDR", "DISPLAY_DRIVER", "SPI_DEVICE",
	"DISPLAY_INTENSITY", "RENDER_MAX_DATA", "RENDER_WINDOW", "SAMPLE_HISTORY",
	"CREDIT_ON_RESET", "GPIO_ENABLED", "GPIO_CHIP", "GPIO_LED_PINS", "GPIO_RESET_LED_PIN",
	"GPIO_BUTTON_PIN", "BLINK_DURATION", "RESET_INDICATOR_DURATION", "BUTTON_DEBOUNCE",
	"NOTIFY_BACKENDS", "NOTIFY_QUEUE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"REDIS_CHANNEL", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"MQTT_TOPIC", "MQTT_QOS", "DASHBOARD_ENABLED", "SERVER_PORT", "LOG_LEVEL",
	"LOG_FORMAT", "DEBUG",
}

// clearEnv blanks every configuration variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2910, cfg.Swarm.Port)
	assert.Equal(t, "255.255.255.255", cfg.Swarm.BroadcastAddr)
	assert.Equal(t, "max7219", cfg.Display.Driver)
	assert.Equal(t, "/dev/spidev0.0", cfg.Display.SPIDevice)
	assert.Equal(t, 8, cfg.Display.Intensity)
	assert.Equal(t, 1024, cfg.Render.MaxData)
	assert.Equal(t, 4, cfg.Render.Window)
	assert.Equal(t, 1024, cfg.Render.History)
	assert.False(t, cfg.CreditOnReset)
	assert.False(t, cfg.GPIO.Enabled)
	assert.Equal(t, []int{23, 24, 25}, cfg.GPIO.LEDPins)
	assert.Equal(t, 17, cfg.GPIO.ResetLEDPin)
	assert.Equal(t, 4, cfg.GPIO.ButtonPin)
	assert.Equal(t, 300*time.Millisecond, cfg.GPIO.Blink)
	assert.Equal(t, 3*time.Second, cfg.GPIO.IndicatorDuration)
	assert.Equal(t, []string{"local"}, cfg.Notify.Backends)
	assert.Equal(t, 100, cfg.Notify.Queue)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "swarm_dashboard", cfg.Redis.Channel)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "swarm/dashboard", cfg.MQTT.Topic)
	assert.True(t, cfg.Dashboard.Enabled)
	assert.Equal(t, ":8080", cfg.Dashboard.ServerPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SWARM_PORT", "3000")
	t.Setenv("DISPLAY_DRIVER", "memory")
	t.Setenv("DISPLAY_INTENSITY", "15")
	t.Setenv("CREDIT_ON_RESET", "true")
	t.Setenv("GPIO_LED_PINS", "5, 6")
	t.Setenv("BLINK_DURATION", "1s")
	t.Setenv("NOTIFY_BACKENDS", "redis,mqtt")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("DEBUG", "true")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Swarm.Port)
	assert.Equal(t, "memory", cfg.Display.Driver)
	assert.Equal(t, 15, cfg.Display.Intensity)
	assert.True(t, cfg.CreditOnReset)
	assert.Equal(t, []int{5, 6}, cfg.GPIO.LEDPins)
	assert.Equal(t, time.Second, cfg.GPIO.Blink)
	assert.Equal(t, []string{"redis", "mqtt"}, cfg.Notify.Backends)
	assert.True(t, cfg.hasBackend(backendMQTT))
	assert.False(t, cfg.hasBackend(backendLocal))
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_MQTTOnlyWithoutDashboard(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTIFY_BACKENDS", "mqtt")
	t.Setenv("DASHBOARD_ENABLED", "false")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"mqtt"}, cfg.Notify.Backends)
	assert.False(t, cfg.Dashboard.Enabled)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "swarm.env")
	require.NoError(t, os.WriteFile(path, []byte("SWARMCTL_TEST_DRIVER=memory\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SWARMCTL_TEST_DRIVER") })
	t.Setenv("ENV_FILE", path)

	_, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", os.Getenv("SWARMCTL_TEST_DRIVER"))

	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad number", "SWARM_PORT", "twenty"},
		{"port out of range", "SWARM_PORT", "70000"},
		{"unknown driver", "DISPLAY_DRIVER", "lcd"},
		{"intensity too high", "DISPLAY_INTENSITY", "16"},
		{"negative intensity", "DISPLAY_INTENSITY", "-1"},
		{"zero window", "RENDER_WINDOW", "0"},
		{"tiny max data", "RENDER_MAX_DATA", "4"},
		{"history below window", "SAMPLE_HISTORY", "2"},
		{"bad bool", "CREDIT_ON_RESET", "maybe"},
		{"bad duration", "BLINK_DURATION", "soon"},
		{"bad pin list", "GPIO_LED_PINS", "23,x"},
		{"unknown backend", "NOTIFY_BACKENDS", "local,kafka"},
		{"bad qos", "MQTT_QOS", "3"},
		{"qos wraps a byte", "MQTT_QOS", "257"},
		{"negative qos", "MQTT_QOS", "-1"},
		{"dashboard without feed", "NOTIFY_BACKENDS", "mqtt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := loadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
