package algolia

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
)

// mockSecretsManagerClient records the requested secret and returns a canned value.
type mockSecretsManagerClient struct {
	secretValue *string
	err         error
	requested   string
}

func (m *mockSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.requested = aws.ToString(params.SecretId)
	if m.err != nil {
		return nil, m.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: m.secretValue}, nil
}

func TestAWSSecrets(t *testing.T) {
	tests := map[string]struct {
		secretValue *string
		err         error
		fetch       func(SecretsManagerClient) FetchSecrets
		requested   string
		expected    Secrets
		errContains string
	}{
		"environment_path": {
			secretValue: aws.String(`{"app_id":"staging-app-id","write_api_key":"staging-api-key"}`),
			fetch: func(c SecretsManagerClient) FetchSecrets {
				return AWSSecrets(context.Background(), c, "staging")
			},
			requested: "staging/algolia",
			expected:  Secrets{AppID: "staging-app-id", WriteApiKey: "staging-api-key"},
		},
		"arn": {
			secretValue: aws.String(`{"app_id":"app","write_api_key":"key"}`),
			fetch: func(c SecretsManagerClient) FetchSecrets {
				return AWSSecretsFromARN(context.Background(), c, "arn:aws:secretsmanager:eu-west-1:1:secret:algolia")
			},
			requested: "arn:aws:secretsmanager:eu-west-1:1:secret:algolia",
			expected:  Secrets{AppID: "app", WriteApiKey: "key"},
		},
		"get_secret_error": {
			err: errors.New("secrets manager error"),
			fetch: func(c SecretsManagerClient) FetchSecrets {
				return AWSSecrets(context.Background(), c, "production")
			},
			requested:   "production/algolia",
			errContains: "failed to get secret from AWS Secrets Manager at path production/algolia",
		},
		"nil_secret_string": {
			fetch: func(c SecretsManagerClient) FetchSecrets {
				return AWSSecrets(context.Background(), c, "production")
			},
			requested:   "production/algolia",
			errContains: "secret at path production/algolia has no string value",
		},
		"invalid_json": {
			secretValue: aws.String(`{"app_id":"test-app-id","write_api_key":}`),
			fetch: func(c SecretsManagerClient) FetchSecrets {
				return AWSSecretsFromARN(context.Background(), c, "arn:secret")
			},
			requested:   "arn:secret",
			errContains: "failed to unmarshal secret JSON from ARN arn:secret",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := &mockSecretsManagerClient{secretValue: tt.secretValue, err: tt.err}
			secrets, err := tt.fetch(client)()

			if client.requested != tt.requested {
				t.Errorf("Expected secret %q to be requested, got %q", tt.requested, client.requested)
			}
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Expected error containing %q, got %v", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if secrets != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, secrets)
			}
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("ALGOLIA_APP_ID", "env-app")
	t.Setenv("ALGOLIA_API_KEY", "env-key")

	tests := map[string]struct {
		src      SecretsSource
		expected Secrets
	}{
		"static_pair": {
			src:      SecretsSource{AppID: "flag-app", APIKey: "flag-key"},
			expected: Secrets{AppID: "flag-app", WriteApiKey: "flag-key"},
		},
		"incomplete_pair_falls_back_to_env": {
			src:      SecretsSource{AppID: "flag-app"},
			expected: Secrets{AppID: "env-app", WriteApiKey: "env-key"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fetch, err := ResolveSecrets(context.Background(), tt.src)
			if err != nil {
				t.Fatalf("ResolveSecrets failed: %v", err)
			}
			secrets, err := fetch()
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if secrets != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, secrets)
			}
		})
	}
}
