package config

type Config interface {
	EnvConfig
	ClientConfig
	StubConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

// ClientConfig covers the settings every surface needs to talk to the
// attachment backend and to share local state with the other surfaces
// on the same device.
type ClientConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeoutSeconds() int
	GetWatchIntervalMillis() int
	GetVaultSealKey() string
}

// StubConfig covers the settings of the development stub backend.
type StubConfig interface {
	GetPort() string
	GetTokenSecret() string
	GetTokenTTLMinutes() int
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
