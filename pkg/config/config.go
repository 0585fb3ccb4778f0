package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const userAgentFormat = "/eth-gateway:%s/"

// Version is the version of the gateway, set at build time.
var Version string

// Config is the top level struct representing the gateway config.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
	GatewayConfiguration     GatewayConfiguration     `yaml:"GatewayConfiguration"`
}

// GenerateUserAgent creates a user agent string based on the build time environment.
func (c Config) GenerateUserAgent() string {
	return fmt.Sprintf(userAgentFormat, Version)
}

// Load attempts to load the config from the given path.
func Load(path string) (Config, error) {
	configData, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Unmarshal(configData)
}

// Unmarshal unmarshals the config from the given bytes, filling in
// defaults for options that are not set.
func Unmarshal(data []byte) (Config, error) {
	config := Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: "info",
		},
		GatewayConfiguration: GatewayConfiguration{
			DefaultGas:      DefaultGas,
			DefaultGasPrice: DefaultGasPrice,
			RequestTimeout:  DefaultRequestTimeout,
		},
	}
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, fmt.Errorf("problem unmarshaling config data: %w", err)
	}
	err = config.GatewayConfiguration.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}
