// Package secrets loads provider credentials from AWS Secrets Manager so they
// can be layered in front of the process environment.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Client is the subset of the Secrets Manager API this package needs.
type Client interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Store struct {
	client Client
}

func New(client Client) *Store {
	return &Store{client: client}
}

func NewAWS(ctx context.Context, region string) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(secretsmanager.NewFromConfig(cfg)), nil
}

// Credentials fetches a secret holding a flat JSON object, for example
// {"GROQ_API_KEY": "...", "GEMINI_API_KEY": "..."}. Non-string values are
// rejected so a malformed secret fails loudly at startup.
func (s *Store) Credentials(ctx context.Context, name string) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", name)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(*out.SecretString), &raw); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", name, err)
	}

	creds := make(map[string]string, len(raw))
	for k, v := range raw {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("secret %s: key %s is not a string", name, k)
		}
		creds[k] = str
	}
	return creds, nil
}
