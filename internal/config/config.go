package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhengjr9/gemini-relay/internal/gemini"
)

type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	// Gemini
	APIKey         string
	BaseURL        string
	APIVersion     string
	Model          string
	ProxyURL       string
	Transport      string
	PartPolicy     gemini.PartPolicy
	RequestTimeout time.Duration
	// Credential sources after the GEMINI_API_KEY variable
	SecretsFile string
	AWSSecretID string
	// Logging
	LogLevel  string
	LogFormat string
	// A2A
	A2AEnabled bool
	A2APort    int
	AgentName  string
	AgentDesc  string
	// Args holds positional arguments left after the flags.
	Args []string
}

const (
	TransportREST = "rest"
	TransportSDK  = "sdk"
)

// Load reads a .env file when present, then parses args with environment
// variables as flag defaults. The API key is resolved separately by
// ResolveAPIKey so that parsing never touches the network.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	fset := flag.NewFlagSet("gemini-relay", flag.ContinueOnError)

	a2aEnabled, errA2A := getEnvBool("A2A_ENABLED", false)
	a2aPort, errPort := getEnvInt("A2A_PORT", 8000)
	timeout, errTimeout := getEnvDuration("REQUEST_TIMEOUT", 0)
	if err := errors.Join(errA2A, errPort, errTimeout); err != nil {
		return nil, err
	}

	var origins, policy string
	fset.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", ":8080"), "HTTP listen address")
	fset.StringVar(&origins, "allowed-origins", getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), "Comma separated CORS origins allowed to call /ask")
	fset.StringVar(&cfg.BaseURL, "gemini-base-url", getEnv("GEMINI_BASE_URL", gemini.DefaultBaseURL), "Gemini API base URL or full generateContent URL")
	fset.StringVar(&cfg.APIVersion, "gemini-api-version", getEnv("GEMINI_API_VERSION", gemini.DefaultAPIVersion), "Gemini API version path segment")
	fset.StringVar(&cfg.Model, "gemini-model", getEnv("GEMINI_MODEL", gemini.DefaultModel), "Gemini model name")
	fset.StringVar(&cfg.ProxyURL, "gemini-proxy-url", getEnv("GEMINI_PROXY_URL", ""), "HTTP/HTTPS proxy URL for Gemini requests (e.g. http://proxy:8080)")
	fset.StringVar(&cfg.Transport, "transport", getEnv("GEMINI_TRANSPORT", TransportREST), "Upstream transport: rest or sdk")
	fset.StringVar(&policy, "part-policy", getEnv("PART_POLICY", string(gemini.PartFirst)), "Answer part policy: first or join")
	fset.DurationVar(&cfg.RequestTimeout, "request-timeout", timeout, "Gemini round-trip timeout (0 keeps transport defaults)")
	fset.StringVar(&cfg.SecretsFile, "secrets-file", getEnv("SECRETS_FILE", "secrets.json"), "JSON file holding GEMINI_API_KEY")
	fset.StringVar(&cfg.AWSSecretID, "aws-secret-id", getEnv("AWS_SECRET_ID", ""), "AWS Secrets Manager secret holding the API key (optional)")
	fset.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fset.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")

	fset.BoolVar(&cfg.A2AEnabled, "a2a", a2aEnabled, "Enable A2A server alongside the HTTP endpoint")
	fset.IntVar(&cfg.A2APort, "a2a-port", a2aPort, "A2A server listen port")
	fset.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", "gemini-relay"), "A2A AgentCard name")
	fset.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", "Answers a question with Gemini"), "A2A AgentCard description")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	cfg.Args = fset.Args()
	cfg.AllowedOrigins = splitList(origins)
	p, err := gemini.ParsePartPolicy(policy)
	if err != nil {
		return nil, err
	}
	cfg.PartPolicy = p

	switch cfg.Transport {
	case TransportREST, TransportSDK:
	default:
		return nil, fmt.Errorf("unknown transport %q (want %q or %q)", cfg.Transport, TransportREST, TransportSDK)
	}
	return cfg, nil
}

// Endpoint returns the configured Gemini method location.
func (c *Config) Endpoint() gemini.Endpoint {
	return gemini.Endpoint{BaseURL: c.BaseURL, APIVersion: c.APIVersion, Model: c.Model}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	switch v := os.Getenv(key); v {
	case "":
		return fallback, nil
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return fallback, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
