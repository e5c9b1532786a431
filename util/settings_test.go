package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetConfig() {
	Config = viper.New()
}

func TestGetRandStringVariousLengths(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{"Zero length", 0},
		{"Single character", 1},
		{"Small string", 5},
		{"Medium string", 10},
		{"Large string", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetRandString(tt.length)

			if len(result) != tt.length {
				t.Errorf("GetRandString(%d) = length %d, expected %d", tt.length, len(result), tt.length)
			}

			for i, char := range result {
				if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')) {
					t.Errorf("GetRandString(%d) contains non-letter at position %d: %c", tt.length, i, char)
				}
			}
		})
	}
}

func TestRegisterNewConfigListener(t *testing.T) {
	config_listeners = []func(){}

	called1 := false
	called2 := false

	listener1 := func() { called1 = true }
	listener2 := func() { called2 = true }

	RegisterNewConfigListener(listener1)
	RegisterNewConfigListener(listener2)

	if len(config_listeners) != 2 {
		t.Errorf("Expected 2 listeners, got %d", len(config_listeners))
	}

	RegisterNewConfigListener(listener1) // Should not add duplicate

	if len(config_listeners) != 2 {
		t.Errorf("Expected 2 listeners after duplicate addition, got %d", len(config_listeners))
	}

	OnNewConfig()

	if !called1 || !called2 {
		t.Error("OnNewConfig should call all registered listeners")
	}
	config_listeners = []func(){}
}

func TestSetupConfigDefaults(t *testing.T) {
	resetConfig()
	SetupConfig("")

	if url := Config.GetString("simulator_url"); url != "http://localhost:8080" {
		t.Errorf("simulator_url default = %s, expected http://localhost:8080", url)
	}
	if interval := Seconds("poll_interval"); interval != 500*time.Millisecond {
		t.Errorf("poll_interval default = %v, expected 500ms", interval)
	}
	if threshold := Config.GetFloat64("daylight_threshold"); threshold != 0.3 {
		t.Errorf("daylight_threshold default = %v, expected 0.3", threshold)
	}
	if !Config.GetBool("auto_brightness") {
		t.Error("auto_brightness should default to true")
	}
	if Config.GetInt("min_brightness") != 30 || Config.GetInt("max_brightness") != 100 {
		t.Errorf("brightness defaults = %d..%d, expected 30..100", Config.GetInt("min_brightness"), Config.GetInt("max_brightness"))
	}
	if Config.GetBool("mqtt_enabled") {
		t.Error("mqtt should be disabled by default")
	}
	if Config.GetInt("details_port") != 0 {
		t.Error("monitor server should be disabled by default")
	}
}

func TestSetupConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("SIMULATOR_URL", "http://sim.example:9090")
	t.Setenv("AUTO_BRIGHTNESS", "false")
	t.Setenv("POLL_INTERVAL", "2.5")

	resetConfig()
	SetupConfig("")

	if url := Config.GetString("simulator_url"); url != "http://sim.example:9090" {
		t.Errorf("simulator_url = %s, expected value from environment", url)
	}
	if Config.GetBool("auto_brightness") {
		t.Error("auto_brightness should be false from environment")
	}
	if interval := Seconds("poll_interval"); interval != 2500*time.Millisecond {
		t.Errorf("poll_interval = %v, expected 2.5s", interval)
	}
}

func TestSetupConfigDotEnv(t *testing.T) {
	if _, err := os.Stat(".env"); err == nil {
		t.Skip(".env already present in package directory")
	}
	if err := os.WriteFile(".env", []byte("DAYLIGHT_THRESHOLD=0.55\n"), 0o600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	defer func() { _ = os.Remove(".env") }()                  //nolint:errcheck // test cleanup
	defer func() { _ = os.Unsetenv("DAYLIGHT_THRESHOLD") }() //nolint:errcheck // test cleanup

	resetConfig()
	SetupConfig("")

	if threshold := Config.GetFloat64("daylight_threshold"); threshold != 0.55 {
		t.Errorf("daylight_threshold = %v, expected 0.55 from .env", threshold)
	}
}

func TestSetupConfigFileSearch(t *testing.T) {
	tempConfigContent := `{
		"simulator_url": "http://from-file:8080",
		"max_brightness": 90
	}`

	expectedName := CONFIG_NAME + ".json"
	if err := os.WriteFile(expectedName, []byte(tempConfigContent), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	defer func() { _ = os.Remove(expectedName) }() //nolint:errcheck // test cleanup

	resetConfig()
	SetupConfig("")

	if url := Config.GetString("simulator_url"); url != "http://from-file:8080" {
		t.Errorf("simulator_url = %s, expected value from file", url)
	}
	if maxB := Config.GetInt("max_brightness"); maxB != 90 {
		t.Errorf("max_brightness = %d, expected 90", maxB)
	}
	if minB := Config.GetInt("min_brightness"); minB != 30 {
		t.Errorf("min_brightness = %d, expected default 30", minB)
	}
}

func TestSetupConfigExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := "daylight_threshold: 0.7\nquiet: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	resetConfig()
	SetupConfig(path)

	if Config.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed = %s, expected %s", Config.ConfigFileUsed(), path)
	}
	if threshold := Config.GetFloat64("daylight_threshold"); threshold != 0.7 {
		t.Errorf("daylight_threshold = %v, expected 0.7", threshold)
	}
	if !Config.GetBool("quiet") {
		t.Error("quiet should be true from file")
	}
}

func TestSetupConfigMissingExplicitFile(t *testing.T) {
	resetConfig()
	SetupConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	// defaults still apply
	if url := Config.GetString("simulator_url"); url != "http://localhost:8080" {
		t.Errorf("simulator_url = %s, expected default", url)
	}
}
