package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// EchoServer holds the HTTP listener settings.
type EchoServer struct {
	ListenAddress string
}

// AuthServer holds the device token settings.
type AuthServer struct {
	Secret        string `json:"-"` // never log or serialize the secret
	Issuer        string
	TokenDuration time.Duration
}

// Redis holds the persistence settings. When disabled the agent falls back
// to the in-memory store, which is only useful for development.
type Redis struct {
	Enabled bool
	URL     string
}

// Chain holds the ledger connection settings. ConfirmationMode selects how
// registration confirmations arrive: "subscribe" uses an event subscription
// over websocket, "poll" polls transaction receipts over plain RPC.
type Chain struct {
	RPCURL              string
	ContractAddress     string
	ChainID             int64
	WalletPrivateKey    string `json:"-"`
	ConfirmationMode    string
	RegistrationTimeout time.Duration
}

// Logger holds the logging settings.
type Logger struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
}

// Server is the root configuration of the agent.
type Server struct {
	Echo   EchoServer
	Auth   AuthServer
	Redis  Redis
	Chain  Chain
	Logger Logger
}

// DefaultServerConfigFromEnv returns the server config populated from the
// environment, with development-friendly defaults.
func DefaultServerConfigFromEnv() Server {
	return Server{
		Echo: EchoServer{
			ListenAddress: getEnv("AGENT_LISTEN_ADDRESS", ":8080"),
		},
		Auth: AuthServer{
			Secret:        getEnv("AGENT_AUTH_SECRET", "insecure-dev-secret"),
			Issuer:        getEnv("AGENT_AUTH_ISSUER", "lock-agent"),
			TokenDuration: getEnvAsDuration("AGENT_AUTH_TOKEN_DURATION", 24*time.Hour),
		},
		Redis: Redis{
			Enabled: getEnvAsBool("AGENT_REDIS_ENABLED", false),
			URL:     getEnv("AGENT_REDIS_URL", "redis://localhost:6379/0"),
		},
		Chain: Chain{
			RPCURL:              getEnv("AGENT_CHAIN_RPC_URL", "ws://localhost:8545"),
			ContractAddress:     getEnv("AGENT_CHAIN_CONTRACT_ADDRESS", ""),
			ChainID:             getEnvAsInt64("AGENT_CHAIN_ID", 1337),
			WalletPrivateKey:    getEnv("AGENT_CHAIN_WALLET_PRIVATE_KEY", ""),
			ConfirmationMode:    getEnv("AGENT_CHAIN_CONFIRMATION_MODE", "subscribe"),
			RegistrationTimeout: getEnvAsDuration("AGENT_CHAIN_REGISTRATION_TIMEOUT", 2*time.Minute),
		},
		Logger: Logger{
			Level:              getEnvAsLogLevel("AGENT_LOGGER_LEVEL", zerolog.InfoLevel),
			PrettyPrintConsole: getEnvAsBool("AGENT_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvAsLogLevel(key string, defaultVal zerolog.Level) zerolog.Level {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	level, err := zerolog.ParseLevel(v)
	if err != nil {
		return defaultVal
	}
	return level
}
