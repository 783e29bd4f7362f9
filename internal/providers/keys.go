package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"sheetsync/internal/store"
)

// APIKeyProperty is the property-store key holding the remote table API key.
const APIKeyProperty = "SUPABASE_API_KEY"

// APIKeyPrefix starts every valid key (a base64url-encoded JWT header).
const APIKeyPrefix = "eyJ"

var (
	// ErrMissingAPIKey means no key has been set up yet.
	ErrMissingAPIKey = errors.New(`Supabase API key not found. Please run "sheetsync setup-key" first`)

	// ErrInvalidAPIKey means a key was rejected before being stored.
	ErrInvalidAPIKey = errors.New("invalid API key format")
)

// Properties is the key/value store the key lives in.
type Properties interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// PropertyProvider reads the API key from the property store.
type PropertyProvider struct {
	props Properties
}

func NewPropertyProvider(props Properties) *PropertyProvider {
	return &PropertyProvider{props: props}
}

func (p *PropertyProvider) APIKey(ctx context.Context) (string, error) {
	key, err := p.props.Get(ctx, APIKeyProperty)
	if errors.Is(err, store.ErrNotFound) || (err == nil && key == "") {
		return "", ErrMissingAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return key, nil
}

// EnvProvider reads the API key from an environment variable.
type EnvProvider struct {
	Name string
}

func (p EnvProvider) APIKey(ctx context.Context) (string, error) {
	key := strings.TrimSpace(os.Getenv(p.Name))
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

// Chain returns the first key any provider has.
type Chain []interface {
	APIKey(ctx context.Context) (string, error)
}

func (c Chain) APIKey(ctx context.Context) (string, error) {
	for _, p := range c {
		key, err := p.APIKey(ctx)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrMissingAPIKey) {
			return "", err
		}
	}
	return "", ErrMissingAPIKey
}

// ValidateAPIKey checks the key's format without contacting the server.
func ValidateAPIKey(key string) error {
	if key == "" || !strings.HasPrefix(key, APIKeyPrefix) {
		return ErrInvalidAPIKey
	}
	return nil
}

// SetupAPIKey validates and stores a key.
func SetupAPIKey(ctx context.Context, props Properties, key string) error {
	key = strings.TrimSpace(key)
	if err := ValidateAPIKey(key); err != nil {
		log.Warn().Int("length", len(key)).Msg("Rejected API key with invalid format")
		return err
	}
	if err := props.Set(ctx, APIKeyProperty, key); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	log.Info().Msg("API key stored")
	return nil
}
