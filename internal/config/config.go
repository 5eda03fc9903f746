package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings" // strings splits the replica host list
    "time"    // time expresses timeout and TTL values

    "github.com/joho/godotenv" // godotenv loads a local .env file when present
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// timeouts and cache lifetimes.
type Config struct {
    Env               string        // application environment (e.g. "dev", "prod")
    Port              string        // HTTP port to listen on
    DBUser            string        // database username
    DBPass            string        // database password (optional)
    DBHost            string        // primary (write) database host address
    DBPort            string        // database port number
    DBName            string        // database name
    DBReplicaHosts    []string      // read replica hosts, comma separated; may be empty
    RedisAddr         string        // redis host:port; defaults applied by the redis constructor
    AMQPURL           string        // message broker URL (optional; queue package applies a default)
    ProviderBaseURL   string        // base URL of the payment gateway status API
    ProviderServerKey string        // server key used for gateway basic auth and signature checks
    ProviderTimeout   time.Duration // bound on gateway status calls
    TerminalStatusTTL time.Duration // idempotency cache lifetime once an order is terminal
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file is consulted first when present so local development
// does not require exporting everything by hand.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
    _ = godotenv.Load()
    return Config{
        Env:               must("APP_ENV"),
        Port:              must("APP_PORT"),
        DBUser:            must("DB_USER"),
        DBPass:            os.Getenv("DB_PASS"), // empty allowed
        DBHost:            must("DB_HOST"),
        DBPort:            must("DB_PORT"),
        DBName:            must("DB_NAME"),
        DBReplicaHosts:    splitHosts(os.Getenv("DB_REPLICA_HOSTS")),
        RedisAddr:         os.Getenv("REDIS_ADDR"),
        AMQPURL:           os.Getenv("RABBITMQ_URL"),
        ProviderBaseURL:   must("PAYMENT_API_BASE_URL"),
        ProviderServerKey: must("PAYMENT_SERVER_KEY"),
        ProviderTimeout:   time.Duration(mustInt("PAYMENT_TIMEOUT_SEC")) * time.Second,
        TerminalStatusTTL: time.Duration(mustInt("STATUS_CACHE_TTL_SEC")) * time.Second,
    }
}

// splitHosts parses a comma separated list of host:port pairs.  Blank
// entries are dropped so trailing commas are harmless.
func splitHosts(s string) []string {
    if strings.TrimSpace(s) == "" {
        return nil
    }
    parts := strings.Split(s, ",")
    hosts := make([]string, 0, len(parts))
    for _, p := range parts {
        if h := strings.TrimSpace(p); h != "" {
            hosts = append(hosts, h)
        }
    }
    return hosts
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
