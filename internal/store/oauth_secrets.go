package store

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
)

// Secrets path
// projects/{project}/secrets/oauth-client-{prefix}-{id|secret}/versions/latest

type oauthSecretsStore struct {
	client    *secretmanager.Client
	projectID string
}

// NewOAuthSecretsStore keeps each provider family's OAuth app registration in
// Secret Manager rather than alongside ordinary settings.
func NewOAuthSecretsStore(client *secretmanager.Client, projectID string) *oauthSecretsStore {
	return &oauthSecretsStore{client: client, projectID: projectID}
}

func (s *oauthSecretsStore) secretID(prefix, part string) string {
	return fmt.Sprintf("oauth-client-%s-%s", prefix, part)
}

func (s *oauthSecretsStore) secretName(prefix, part string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, s.secretID(prefix, part))
}

// ClientCredentials returns the client ID and secret for a provider family.
func (s *oauthSecretsStore) ClientCredentials(ctx context.Context, prefix string) (string, string, error) {
	clientID, err := s.access(ctx, prefix, "id")
	if err != nil {
		return "", "", err
	}
	clientSecret, err := s.access(ctx, prefix, "secret")
	if err != nil {
		return "", "", err
	}
	return clientID, clientSecret, nil
}

// SetClientCredentials writes both halves of a provider family's registration.
func (s *oauthSecretsStore) SetClientCredentials(ctx context.Context, prefix, clientID, clientSecret string) error {
	if err := s.addVersion(ctx, prefix, "id", clientID); err != nil {
		return err
	}
	return s.addVersion(ctx, prefix, "secret", clientSecret)
}

func (s *oauthSecretsStore) access(ctx context.Context, prefix, part string) (string, error) {
	res, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("%s/versions/latest", s.secretName(prefix, part)),
	})
	if status.Code(err) == codes.NotFound {
		return "", errs.NewNotConfiguredError(fmt.Sprintf("oauth client %s for %s not configured", part, prefix))
	}
	if err != nil {
		return "", err
	}
	return string(res.Payload.Data), nil
}

func (s *oauthSecretsStore) addVersion(ctx context.Context, prefix, part, value string) error {
	if err := s.ensureSecret(ctx, prefix, part); err != nil {
		return err
	}
	_, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: s.secretName(prefix, part),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(value),
		},
	})
	return err
}

func (s *oauthSecretsStore) ensureSecret(ctx context.Context, prefix, part string) error {
	name := s.secretName(prefix, part)
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: name})
	if status.Code(err) == codes.NotFound {
		_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: s.secretID(prefix, part),
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{Automatic: &secretmanagerpb.Replication_Automatic{}},
				},
			},
		})
	}
	return err
}
