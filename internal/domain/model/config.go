package model

type Config struct {
	Address       string `json:"address" yaml:"address"`
	Port          int    `json:"port" yaml:"port"`
	Username      string `json:"username,omitempty" yaml:"username,omitempty"`
	ClientKey     string `json:"clientkey,omitempty" yaml:"clientkey,omitempty"`
	AppName       string `json:"app_name,omitempty" yaml:"app_name,omitempty"`
	DeviceName    string `json:"device_name,omitempty" yaml:"device_name,omitempty"`
	LogLevel      string `json:"log_level,omitempty" yaml:"log_level,omitempty"`     // zerolog level name
	DebugLevel    string `json:"debug_level,omitempty" yaml:"debug_level,omitempty"` // off, err, info, debug
	TraceEndpoint string `json:"trace_endpoint,omitempty" yaml:"trace_endpoint,omitempty"`
}

// Credentials returns the pairing part of the configuration.
func (c *Config) Credentials() Credentials {
	return Credentials{Username: c.Username, ClientKey: c.ClientKey}
}

// SetCredentials stores credentials issued by the bridge.
func (c *Config) SetCredentials(cr Credentials) {
	c.Username = cr.Username
	c.ClientKey = cr.ClientKey
}
