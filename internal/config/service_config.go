package config

import "time"

// ServiceConfig is the configuration shared by the long-running fabric
// services (NameService, Dispatcher, Worker, Monitor): an identifier
// plus the endpoints and timing knobs each binds or dials.
type ServiceConfig struct {
	ID string `yaml:"id" mapstructure:"id"`

	BindAddress    string `yaml:"bind_address" mapstructure:"bind_address"`
	MetricsAddress string `yaml:"metrics_address" mapstructure:"metrics_address"`

	NameServiceEndpoint string `yaml:"nameservice_endpoint" mapstructure:"nameservice_endpoint"`
	DispatcherEndpoint  string `yaml:"dispatcher_endpoint" mapstructure:"dispatcher_endpoint"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	Log LogConfig `yaml:"log" mapstructure:"log"`
}
