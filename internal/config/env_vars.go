package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	folderEnvVar  = "FOLDER"
	baseURLVar    = "API_BASE_URL"
	sealKeyVar    = "VAULT_SEAL_KEY"
	tokenSecret   = "TOKEN_SECRET"
	tokenTTLVar   = "TOKEN_TTL_MINUTES"
	httpTimeout   = "HTTP_TIMEOUT_SECONDS"
	watchInterval = "WATCH_INTERVAL_MILLIS"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}
var _ ClientConfig = EnvVars{}
var _ StubConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Attachly Client")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetAPIBaseURL returns the base URL of the attachment backend
// (e.g. "https://api.attachly.example.com/api/v1").
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080/api/v1")
}

// GetVaultSealKey returns the passphrase used by the sealed credential
// codec. Empty means credentials are cached in the clear, matching the
// behavior of the original surfaces.
func (EnvVars) GetVaultSealKey() string {
	return GetEnv(sealKeyVar, "")
}

func (EnvVars) GetHTTPTimeoutSeconds() int {
	return GetEnvInt(httpTimeout, 30)
}

func (EnvVars) GetWatchIntervalMillis() int {
	return GetEnvInt(watchInterval, 500)
}

func (EnvVars) GetTokenSecret() string {
	return GetEnv(tokenSecret, "dev-only-secret")
}

func (EnvVars) GetTokenTTLMinutes() int {
	return GetEnvInt(tokenTTLVar, 480)
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
