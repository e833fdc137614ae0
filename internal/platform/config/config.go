package config

import (
	"encoding/hex"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/argon2"

	dErrors "chatvault/pkg/domain-errors"
)

// keySize is the required content-encryption key length: AES-256.
const keySize = 32

// Kafka holds the live-intake consumer configuration. Intake is disabled
// when Brokers is empty.
type Kafka struct {
	Brokers string
	Topic   string
	GroupID string
}

// Server captures process-level configuration. The value is built once at
// startup and treated as immutable for the process lifetime; components
// receive what they need at construction time instead of reading ambient
// environment state.
type Server struct {
	Addr          string
	DatabaseURL   string
	MigrateOnBoot bool

	// EncryptionKey is the 256-bit content key. Loaded from a 64-char hex
	// string, or derived from a passphrase via argon2id when only a
	// passphrase is configured.
	EncryptionKey []byte

	// ChannelID scopes history collection to exactly one channel.
	ChannelID string
	// HistoryLimit bounds a single history collection pass.
	HistoryLimit int

	// ChatAPIURL points at the chat platform's export API; collection is
	// disabled when empty.
	ChatAPIURL   string
	ChatAPIToken string

	// CollectToken authenticates the operator collect command.
	CollectToken string

	Kafka Kafka

	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file is honored when present, matching how deployments of
// the collector have always been configured.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:            getEnv("CHATVAULT_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("CHATVAULT_DATABASE_URL"),
		MigrateOnBoot:   os.Getenv("CHATVAULT_MIGRATE") == "true",
		ChannelID:       os.Getenv("CHATVAULT_CHANNEL_ID"),
		CollectToken:    os.Getenv("CHATVAULT_COLLECT_TOKEN"),
		HistoryLimit:    getEnvInt("CHATVAULT_HISTORY_LIMIT", 1000),
		ChatAPIURL:      os.Getenv("CHATVAULT_CHAT_API_URL"),
		ChatAPIToken:    os.Getenv("CHATVAULT_CHAT_API_TOKEN"),
		ShutdownTimeout: 10 * time.Second,
		Kafka: Kafka{
			Brokers: os.Getenv("CHATVAULT_KAFKA_BROKERS"),
			Topic:   getEnv("CHATVAULT_KAFKA_TOPIC", "chat.messages"),
			GroupID: getEnv("CHATVAULT_KAFKA_GROUP", "chatvault"),
		},
	}

	key, err := loadKey()
	if err != nil {
		return Server{}, err
	}
	cfg.EncryptionKey = key

	return cfg, nil
}

// loadKey resolves the content-encryption key. A misconfigured key is a
// startup failure: the process must refuse to run rather than ingest
// anything it cannot encrypt correctly.
func loadKey() ([]byte, error) {
	if keyHex := os.Getenv("CHATVAULT_ENCRYPTION_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeKeyConfig, "CHATVAULT_ENCRYPTION_KEY is not valid hex")
		}
		if len(key) != keySize {
			return nil, dErrors.New(dErrors.CodeKeyConfig, "CHATVAULT_ENCRYPTION_KEY must be 64 hex characters (256-bit key)")
		}
		return key, nil
	}

	if passphrase := os.Getenv("CHATVAULT_KEY_PASSPHRASE"); passphrase != "" {
		salt := os.Getenv("CHATVAULT_KEY_SALT")
		if salt == "" {
			return nil, dErrors.New(dErrors.CodeKeyConfig, "CHATVAULT_KEY_SALT required when deriving the key from a passphrase")
		}
		return argon2.IDKey([]byte(passphrase), []byte(salt), 1, 64*1024, 4, keySize), nil
	}

	return nil, dErrors.New(dErrors.CodeKeyConfig, "no encryption key configured")
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
