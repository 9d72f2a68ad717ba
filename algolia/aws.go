package algolia

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
)

// SecretsManagerClient is the subset of the Secrets Manager API used to load
// Algolia credentials.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets loads credentials stored at "{env}/algolia". The secret is a JSON
// object with app_id and write_api_key.
func AWSSecrets(ctx context.Context, client SecretsManagerClient, env string) FetchSecrets {
	secretPath := fmt.Sprintf("%s/algolia", env)
	return func() (Secrets, error) {
		return getSecrets(ctx, client, secretPath, "path "+secretPath)
	}
}

// AWSSecretsFromARN loads credentials from the secret with the given ARN.
func AWSSecretsFromARN(ctx context.Context, client SecretsManagerClient, secretArn string) FetchSecrets {
	return func() (Secrets, error) {
		return getSecrets(ctx, client, secretArn, "ARN "+secretArn)
	}
}

func getSecrets(ctx context.Context, client SecretsManagerClient, secretID, describe string) (Secrets, error) {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return Secrets{}, errors.Wrapf(err, "failed to get secret from AWS Secrets Manager at %s", describe)
	}
	if result.SecretString == nil {
		return Secrets{}, errors.Newf("secret at %s has no string value", describe)
	}

	var secrets Secrets
	if err := json.Unmarshal([]byte(aws.ToString(result.SecretString)), &secrets); err != nil {
		return Secrets{}, errors.Wrapf(err, "failed to unmarshal secret JSON from %s", describe)
	}
	return secrets, nil
}

// SecretsSource names the places credentials may come from.
type SecretsSource struct {
	// Env selects the "{env}/algolia" secret in Secrets Manager.
	Env string
	// SecretARN selects a Secrets Manager secret by ARN.
	SecretARN string
	AppID     string
	APIKey    string
}

// ResolveSecrets picks the credential strategy for src: Secrets Manager by
// environment, then by ARN, then the static pair, then EnvSecrets.
func ResolveSecrets(ctx context.Context, src SecretsSource) (FetchSecrets, error) {
	if src.Env != "" || src.SecretARN != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		client := secretsmanager.NewFromConfig(cfg)
		if src.Env != "" {
			slog.InfoContext(ctx, "Using AWS Secrets Manager for credentials", "environment", src.Env)
			return AWSSecrets(ctx, client, src.Env), nil
		}
		slog.InfoContext(ctx, "Using AWS Secrets Manager ARN for credentials")
		return AWSSecretsFromARN(ctx, client, src.SecretARN), nil
	}

	if src.AppID != "" && src.APIKey != "" {
		slog.InfoContext(ctx, "Using static credentials")
		return StaticSecrets(src.AppID, src.APIKey), nil
	}

	slog.InfoContext(ctx, "Using environment variables for credentials")
	return EnvSecrets(), nil
}
