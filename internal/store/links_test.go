package store

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
)

// reversibleCipher stands in for KMS against the emulator.
type reversibleCipher struct{}

func (reversibleCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return "sealed:" + plaintext, nil
}

func (reversibleCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return ciphertext[len("sealed:"):], nil
}

func emulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "test-project")
	if err != nil {
		t.Fatalf("firestore client error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLinkRoundTripWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	store := NewLinkStore(client, reversibleCipher{})

	link := &models.CreditLink{
		Type: models.ProviderAmex,
		Credential: models.Credential{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenExpiry:  1_700_000_000,
		},
		PotID:       "pot-1",
		PrevBalance: 1200,
		Cooldown:    &models.Cooldown{Until: 1_700_010_000, Baseline: 1200, PendingDrop: 300},
	}
	if err := store.SaveCreditLink(ctx, link); err != nil {
		t.Fatalf("save error: %v", err)
	}

	// tokens must never be stored in the clear
	snap, err := client.Collection("links").Doc(models.ProviderAmex).Get(ctx)
	if err != nil {
		t.Fatalf("raw read error: %v", err)
	}
	raw := snap.Data()
	if raw["accessToken"] != "sealed:access-1" {
		t.Fatalf("access token not sealed at rest, got %v", raw["accessToken"])
	}

	got, err := store.GetCreditLink(ctx, models.ProviderAmex)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Credential.AccessToken != "access-1" || got.Credential.RefreshToken != "refresh-1" {
		t.Fatalf("credential did not round trip, got %+v", got.Credential)
	}
	if got.Cooldown == nil || got.Cooldown.Baseline != 1200 {
		t.Fatalf("cooldown did not round trip, got %+v", got.Cooldown)
	}
}

func TestUpdateSyncStateClearsCooldownWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	store := NewLinkStore(client, reversibleCipher{})

	link := &models.CreditLink{
		Type:        models.ProviderHalifax,
		Credential:  models.Credential{AccessToken: "a", RefreshToken: "r"},
		PotID:       "pot-2",
		PrevBalance: 500,
		Cooldown:    &models.Cooldown{Until: 1_700_020_000, Baseline: 500, PendingDrop: 100},
	}
	if err := store.SaveCreditLink(ctx, link); err != nil {
		t.Fatalf("save error: %v", err)
	}

	if err := store.UpdateSyncState(ctx, models.ProviderHalifax, 400, nil); err != nil {
		t.Fatalf("update error: %v", err)
	}

	got, err := store.GetCreditLink(ctx, models.ProviderHalifax)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.PrevBalance != 400 {
		t.Fatalf("expected prev balance 400, got %d", got.PrevBalance)
	}
	if got.Cooldown != nil {
		t.Fatalf("expected cooldown cleared, got %+v", got.Cooldown)
	}
}

func TestMoneyLinkHiddenFromCreditListWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	store := NewLinkStore(client, reversibleCipher{})

	money := &models.MoneyLink{
		Type:       models.ProviderMonzo,
		Credential: models.Credential{AccessToken: "m", RefreshToken: "mr"},
		Selection:  models.SelectJoint,
	}
	if err := store.SaveMoneyLink(ctx, money); err != nil {
		t.Fatalf("save money error: %v", err)
	}

	links, err := store.GetCreditLinks(ctx)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	for _, l := range links {
		if l.Type == models.ProviderMonzo {
			t.Fatal("money link leaked into the credit list")
		}
	}

	gotMoney, err := store.GetMoneyLink(ctx)
	if err != nil {
		t.Fatalf("get money error: %v", err)
	}
	if gotMoney.Selection != models.SelectJoint {
		t.Fatalf("selection did not round trip, got %q", gotMoney.Selection)
	}

	if _, err := store.GetCreditLink(ctx, models.ProviderMonzo); !errs.IsNotFound(err) {
		t.Fatalf("expected not found for money link as credit, got %v", err)
	}
}

func TestGetMissingLinkWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	store := NewLinkStore(client, reversibleCipher{})

	_, err := store.GetCreditLink(context.Background(), "nonexistent-"+time.Now().Format("150405"))
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
