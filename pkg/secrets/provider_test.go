package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/raywall/dados-api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSecretsClient implementa SecretsClient com comportamento injetável.
type mockSecretsClient struct {
	calls  int
	output *secretsmanager.GetSecretValueOutput
	err    error
}

func (m *mockSecretsClient) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	return m.output, m.err
}

func productionConfig() *config.Config {
	return &config.Config{
		Env: "production",
		AWS: config.AWSConf{
			Region:     "us-east-1",
			SecretName: "prod/dados-api/credentials",
		},
	}
}

const validSecret = `{
	"database": {"host": "db.internal", "port": 5432, "username": "app", "password": "s3cr3t", "database": "toshiro_db"},
	"redis": {"host": "cache.internal", "port": 6379, "authToken": "token123"}
}`

func TestProvider_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("should parse the bundle from secrets manager", func(t *testing.T) {
		client := &mockSecretsClient{
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(validSecret)},
		}
		p := NewProviderWithClient(productionConfig(), client)

		bundle, err := p.Get(ctx)
		require.NoError(t, err)

		assert.Equal(t, "db.internal", bundle.Database.Host)
		assert.Equal(t, 5432, bundle.Database.Port)
		assert.Equal(t, "app", bundle.Database.Username)
		assert.Equal(t, "toshiro_db", bundle.Database.Database)
		assert.Equal(t, "cache.internal", bundle.Redis.Host)
		assert.Equal(t, "token123", bundle.Redis.AuthToken)
	})

	t.Run("should cache the bundle between calls", func(t *testing.T) {
		client := &mockSecretsClient{
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(validSecret)},
		}
		p := NewProviderWithClient(productionConfig(), client)

		_, err := p.Get(ctx)
		require.NoError(t, err)
		_, err = p.Get(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, client.calls, "segunda chamada deveria vir do cache")
	})

	t.Run("should refetch after ClearCache", func(t *testing.T) {
		client := &mockSecretsClient{
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(validSecret)},
		}
		p := NewProviderWithClient(productionConfig(), client)

		_, err := p.Get(ctx)
		require.NoError(t, err)

		p.ClearCache()

		_, err = p.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("should propagate aws failure without fallback", func(t *testing.T) {
		client := &mockSecretsClient{err: errors.New("AccessDeniedException")}
		p := NewProviderWithClient(productionConfig(), client)

		_, err := p.Get(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SecretsManager")
	})

	t.Run("should reject empty secret payload", func(t *testing.T) {
		client := &mockSecretsClient{
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("")},
		}
		p := NewProviderWithClient(productionConfig(), client)

		_, err := p.Get(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vazio")
	})

	t.Run("should reject malformed secret payload", func(t *testing.T) {
		client := &mockSecretsClient{
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("{nope")},
		}
		p := NewProviderWithClient(productionConfig(), client)

		_, err := p.Get(ctx)
		assert.Error(t, err)
	})

	t.Run("should fail when secret name is missing", func(t *testing.T) {
		cfg := productionConfig()
		cfg.AWS.SecretName = ""
		p := NewProviderWithClient(cfg, &mockSecretsClient{})

		_, err := p.Get(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AWS_SECRET_NAME")
	})
}

func TestProvider_DevelopmentBundle(t *testing.T) {
	ctx := context.Background()

	t.Run("should build local bundle without touching aws", func(t *testing.T) {
		client := &mockSecretsClient{}
		cfg := &config.Config{
			Env: "development",
			Database: config.DatabaseConf{
				Port: 5432,
				Name: "toshiro_db",
			},
			Redis: config.RedisConf{Port: 6379},
		}
		p := NewProviderWithClient(cfg, client)

		bundle, err := p.Get(ctx)
		require.NoError(t, err)

		assert.Zero(t, client.calls, "desenvolvimento não deve chamar a AWS")
		assert.Equal(t, "localhost", bundle.Database.Host)
		assert.Equal(t, "postgres", bundle.Database.Username)
		assert.Equal(t, "devpassword", bundle.Database.Password)
		assert.Equal(t, "toshiro_db", bundle.Database.Database)
		assert.Equal(t, "localhost", bundle.Redis.Host)
	})

	t.Run("should respect explicit local credentials", func(t *testing.T) {
		cfg := &config.Config{
			Env: "development",
			Database: config.DatabaseConf{
				Host:     "db.docker.local",
				Port:     5433,
				Name:     "toshiro_db",
				User:     "dev",
				Password: "outra",
			},
		}
		p := NewProviderWithClient(cfg, nil)

		bundle, err := p.Get(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "db.docker.local", bundle.Database.Host)
		assert.Equal(t, "dev", bundle.Database.Username)
		assert.Equal(t, "outra", bundle.Database.Password)
	})
}
