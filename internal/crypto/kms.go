package crypto

import (
	"context"
	"encoding/base64"

	gcpkms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
)

// TokenCipher encrypts OAuth tokens before they touch Firestore, so a leaked
// database export does not leak live bank credentials.
type TokenCipher struct {
	client  *gcpkms.KeyManagementClient
	keyName string
}

func NewTokenCipher(client *gcpkms.KeyManagementClient, keyName string) *TokenCipher {
	return &TokenCipher{client: client, keyName: keyName}
}

// Encrypt seals plaintext with the configured KMS key and returns base64 text.
func (c *TokenCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	resp, err := c.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      c.keyName,
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(resp.Ciphertext), nil
}

// Decrypt opens base64 ciphertext produced by Encrypt.
func (c *TokenCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       c.keyName,
		Ciphertext: raw,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Plaintext), nil
}
