package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tkrehbiel/statuslace/statusnet"
)

const (
	defaultConfigTTL = 10 * time.Minute
	defaultPort      = 8080
)

type apiConfig struct {
	Root           string `json:"root"` // e.g. https://example.net/api
	Username       string `json:"username"`
	Password       string `json:"password"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	KeyID          string `json:"key_id"`      // signs requests when set with private_key
	PrivateKey     string `json:"private_key"` // pem file
}

type serverConfig struct {
	HostName         string `json:"host"`
	Certificate      string `json:"certificate"`
	PrivateKey       string `json:"privatekey"`
	Port             int    `json:"port"`
	ConfigTTLSeconds int    `json:"config_ttl_seconds"`
	MaxCount         int    `json:"max_count"` // upper bound for count on proxied conversations
}

func (s serverConfig) useTLS() bool {
	return s.Certificate != "" && s.PrivateKey != ""
}

func (s serverConfig) configTTL() time.Duration {
	if s.ConfigTTLSeconds <= 0 {
		return defaultConfigTTL
	}
	return time.Duration(s.ConfigTTLSeconds) * time.Second
}

func (s serverConfig) addr() string {
	port := s.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", s.HostName, port)
}

type Config struct {
	API      apiConfig    `json:"api"`
	Server   serverConfig `json:"server"`
	Database string       `json:"database"` // sqlite file, no persistence when empty
	Trace    bool         `json:"trace"`
	JSONLogs bool         `json:"json_logs"`
}

// ClientOptions turns the api section into statusnet client options,
// loading the signing key if one is configured
func (c Config) ClientOptions() (statusnet.Options, error) {
	opts := statusnet.Options{
		APIRoot:   c.API.Root,
		Username:  c.API.Username,
		Password:  c.API.Password,
		UserAgent: c.API.UserAgent,
		Timeout:   time.Duration(c.API.TimeoutSeconds) * time.Second,
	}
	if c.API.KeyID != "" && c.API.PrivateKey != "" {
		key, err := statusnet.LoadPrivateKey(c.API.PrivateKey)
		if err != nil {
			return opts, fmt.Errorf("loading private key [%s]: %w", c.API.PrivateKey, err)
		}
		opts.Signer = statusnet.NewSigner(c.API.KeyID, key)
	}
	return opts, nil
}

func ReadConfig(b []byte) (config Config, err error) {
	if uErr := json.Unmarshal(b, &config); uErr != nil {
		return config, uErr
	}
	return config, nil
}
