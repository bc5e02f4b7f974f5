package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// APIKeyName is both the environment variable and the JSON field that carry
// the Gemini access key.
const APIKeyName = "GEMINI_API_KEY"

var ErrMissingAPIKey = errors.New("missing Gemini API key: set " + APIKeyName + ", provide a secrets file, or configure an AWS secret")

// KeySource yields an API key, or "" when it has none.
type KeySource interface {
	Name() string
	Lookup(ctx context.Context) (string, error)
}

// EnvSource reads the key from an environment variable.
type EnvSource struct {
	Var string
}

func (s EnvSource) Name() string { return "env:" + s.Var }

func (s EnvSource) Lookup(context.Context) (string, error) {
	return strings.TrimSpace(os.Getenv(s.Var)), nil
}

// FileSource reads {"GEMINI_API_KEY": "..."} from a JSON file. A missing file
// is not an error.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Lookup(context.Context) (string, error) {
	if s.Path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	key, err := decodeKey(raw)
	if err != nil {
		return "", fmt.Errorf("decode secrets file %s: %w", s.Path, err)
	}
	return key, nil
}

// decodeKey reads GEMINI_API_KEY from a JSON object. Other fields may hold any
// JSON type.
func decodeKey(raw []byte) (string, error) {
	var secrets struct {
		Key string `json:"GEMINI_API_KEY"`
	}
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return "", err
	}
	return strings.TrimSpace(secrets.Key), nil
}

// SecretValueGetter is the subset of the Secrets Manager client used here.
type SecretValueGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads the key from an AWS Secrets Manager secret. The
// secret may be the bare key or a JSON object with a GEMINI_API_KEY field.
type SecretsManagerSource struct {
	SecretID string
	Client   SecretValueGetter
}

// NewSecretsManagerSource builds a source using the default AWS credential chain.
func NewSecretsManagerSource(ctx context.Context, secretID string) (*SecretsManagerSource, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SecretsManagerSource{
		SecretID: secretID,
		Client:   secretsmanager.NewFromConfig(awsCfg),
	}, nil
}

func (s *SecretsManagerSource) Name() string { return "aws-secret:" + s.SecretID }

func (s *SecretsManagerSource) Lookup(ctx context.Context) (string, error) {
	out, err := s.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.SecretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", s.SecretID, err)
	}
	value := strings.TrimSpace(aws.ToString(out.SecretString))
	if strings.HasPrefix(value, "{") {
		key, err := decodeKey([]byte(value))
		if err != nil {
			return "", fmt.Errorf("decode secret %s: %w", s.SecretID, err)
		}
		value = key
	}
	return value, nil
}

// KeySources returns the configured chain: environment, secrets file, then the
// AWS secret when one is named.
func (c *Config) KeySources(ctx context.Context) ([]KeySource, error) {
	sources := []KeySource{
		EnvSource{Var: APIKeyName},
		FileSource{Path: c.SecretsFile},
	}
	if c.AWSSecretID != "" {
		sm, err := NewSecretsManagerSource(ctx, c.AWSSecretID)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sm)
	}
	return sources, nil
}

// ResolveAPIKey sets c.APIKey from the first source that yields a non-empty key.
// A source error stops the chain.
func (c *Config) ResolveAPIKey(ctx context.Context, sources ...KeySource) error {
	for _, src := range sources {
		key, err := src.Lookup(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", src.Name(), err)
		}
		if key != "" {
			slog.Debug("api key resolved", "source", src.Name())
			c.APIKey = key
			return nil
		}
	}
	return ErrMissingAPIKey
}
