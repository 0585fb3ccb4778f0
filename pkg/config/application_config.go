package config

// ApplicationConfiguration holds application-level settings that are
// not related to the gateway logic itself.
type ApplicationConfiguration struct {
	LogLevel   string       `yaml:"LogLevel"`
	Pprof      BasicService `yaml:"Pprof"`
	Prometheus BasicService `yaml:"Prometheus"`
}
