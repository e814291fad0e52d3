package config

// LokiConfig configures shipping log entries to a Grafana Loki instance
// alongside the normal stderr stream.
type LokiConfig struct {
	Address string            `yaml:"address" mapstructure:"address"`
	Labels  map[string]string `yaml:"labels" mapstructure:"labels"`
}

// LogConfig configures the fabric's logging: level, output formatter and
// an optional Loki sink. A zero-value LogConfig falls back to logrus's
// own defaults (info level, text formatter, no hooks).
type LogConfig struct {
	Formatter string     `yaml:"formatter" mapstructure:"formatter"`
	Level     string     `yaml:"level" mapstructure:"level"`
	Loki      LokiConfig `yaml:"loki" mapstructure:"loki"`
}
