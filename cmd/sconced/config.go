package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StripConfig selects and configures the strip output driver.
type StripConfig struct {
	// Driver is one of "ws281x", "nrz-spi" or "screen".
	Driver string `yaml:"driver"`
	// GPIO is the PWM data pin for the ws281x driver.
	GPIO int `yaml:"gpio"`
	// DMAChannel is the DMA channel for the ws281x driver.
	DMAChannel int `yaml:"dma_channel"`
	// SPIPort names the SPI port for the nrz-spi driver. Empty picks
	// the first registered port.
	SPIPort string `yaml:"spi_port"`
}

// GridConfig configures the button grid hardware.
type GridConfig struct {
	// SPIPort names the SPI port driving the pad backlights. Empty
	// picks the first registered port.
	SPIPort string `yaml:"spi_port"`
	// I2CBus names the bus of the button expander. Empty picks the
	// first registered bus.
	I2CBus string `yaml:"i2c_bus"`
	// InterruptPin is the expander's active-low interrupt line.
	InterruptPin string `yaml:"interrupt_pin"`
	// SleepTimeoutSeconds overrides the 30s idle fade-out.
	SleepTimeoutSeconds int `yaml:"sleep_timeout_s"`
}

// HomeAssistantConfig configures the upstream Home Assistant link.
type HomeAssistantConfig struct {
	// URL is the websocket API endpoint.
	URL string `yaml:"url"`
	// Token is the long-lived access token. TokenFile, if set, wins.
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	// Entities are the entity IDs whose state drives the grid.
	Entities []string `yaml:"entities"`
}

// Config is the daemon's YAML configuration file.
type Config struct {
	// CommandAddr is the UDP address for strip commands.
	CommandAddr string `yaml:"command_addr"`
	// DiscoveryAddr is the UDP address answering discovery probes.
	DiscoveryAddr string `yaml:"discovery_addr"`
	// AdminAddr is the local HTTP admin address.
	AdminAddr string `yaml:"admin_addr"`

	Strip         StripConfig         `yaml:"strip"`
	Grid          GridConfig          `yaml:"grid"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
}

// DefaultConfig is what an absent or partial config file falls back to.
func DefaultConfig() Config {
	return Config{
		CommandAddr:   ":7650",
		DiscoveryAddr: ":7651",
		AdminAddr:     "127.0.0.1:9002",
		Strip: StripConfig{
			Driver:     "ws281x",
			GPIO:       12,
			DMAChannel: 10,
		},
		Grid: GridConfig{
			InterruptPin: "GPIO3",
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is fine; the
// defaults are complete except for the Home Assistant token.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.HomeAssistant.TokenFile != "" {
		token, err := os.ReadFile(cfg.HomeAssistant.TokenFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read token file: %w", err)
		}
		cfg.HomeAssistant.Token = string(trimNewline(token))
	}

	return cfg, nil
}

func (c GridConfig) SleepTimeout() time.Duration {
	return time.Duration(c.SleepTimeoutSeconds) * time.Second
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
