package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Program holds the on-chain namespace identifiers every address derivation
// and instruction is scoped to. These are data, not compile-time constants,
// so a sandboxed deployment (or a test suite) can substitute its own.
type Program struct {
	// DarkpoolID is the base58 id of the darkpool program.
	DarkpoolID string
	// DelegationID is the base58 id of the delegation program that owns the
	// buffer/record/metadata sub-accounts.
	DelegationID string
	// TEEValidator is the identity of the trusted execution environment that
	// delegated orders are handed to.
	TEEValidator string
}

// Policy carries operational bounds the protocol itself leaves open.
// Zero means unbounded.
type Policy struct {
	// MinCommitFreq / MaxCommitFreq bound the delegated-state checkpoint
	// cadence. The program only requires positivity; deployments that want
	// to protect the TEE from sub-millisecond checkpointing tighten these.
	MinCommitFreq time.Duration
	MaxCommitFreq time.Duration
}

type Node struct {
	// APIAddr is the REST/WebSocket listen address.
	APIAddr string
	// DBPath is the pebble directory for the local ledger.
	DBPath string
	// LogFile receives the JSON log tee ("" = console only).
	LogFile string
}

type Config struct {
	Program Program
	Policy  Policy
	Node    Node
}

func Default() Config {
	return Config{
		Program: Program{
			DarkpoolID:   "7LKw8vSiLfawMNFUSzCoAp9v4GomjTKkhaiXUfmoA6Wu",
			DelegationID: "DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh",
			TEEValidator: "FnE6VJT5QNZdedZPnCoLsARgBwoE6DeJNjBs2H1gySXA",
		},
		Policy: Policy{
			MinCommitFreq: 0,
			MaxCommitFreq: 0,
		},
		Node: Node{
			APIAddr: ":8080",
			DBPath:  "data/ledger",
			LogFile: "data/darkpool.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Program.DarkpoolID = getEnv("DARKPOOL_PROGRAM_ID", cfg.Program.DarkpoolID)
	cfg.Program.DelegationID = getEnv("DELEGATION_PROGRAM_ID", cfg.Program.DelegationID)
	cfg.Program.TEEValidator = getEnv("TEE_VALIDATOR", cfg.Program.TEEValidator)

	if v := os.Getenv("MIN_COMMIT_FREQ_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Policy.MinCommitFreq = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("MAX_COMMIT_FREQ_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Policy.MaxCommitFreq = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.DBPath = getEnv("DB_PATH", cfg.Node.DBPath)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
