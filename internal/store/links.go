package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
)

// tokenCipher seals OAuth tokens before they are written; the store never
// persists a plaintext token.
type tokenCipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// linkDoc is the persisted shape of both link kinds. One collection, document
// ID = provider type, money link flagged.
type linkDoc struct {
	Type         string            `firestore:"type"`
	IsMoney      bool              `firestore:"isMoney"`
	AccessToken  string            `firestore:"accessToken"`  // ciphertext
	RefreshToken string            `firestore:"refreshToken"` // ciphertext
	TokenExpiry  int64             `firestore:"tokenExpiry"`
	Selection    string            `firestore:"selection,omitempty"`
	PotID        string            `firestore:"potId,omitempty"`
	PrevBalance  int64             `firestore:"prevBalance"`
	Cooldown     *models.Cooldown  `firestore:"cooldown,omitempty"`
	CreatedAt    time.Time         `firestore:"createdAt"`
	UpdatedAt    time.Time         `firestore:"updatedAt"`
}

type linkStore struct {
	collection *firestore.CollectionRef
	cipher     tokenCipher
}

func NewLinkStore(client *firestore.Client, cipher tokenCipher) *linkStore {
	return &linkStore{
		collection: client.Collection("links"),
		cipher:     cipher,
	}
}

// GetMoneyLink returns the funding-account link, or a NotFoundError when no
// money account has been connected yet.
func (s *linkStore) GetMoneyLink(ctx context.Context) (*models.MoneyLink, error) {
	doc, err := s.fetch(ctx, models.ProviderMonzo)
	if err != nil {
		return nil, err
	}
	cred, err := s.openCredential(ctx, doc)
	if err != nil {
		return nil, err
	}
	sel := models.AccountSelection(doc.Selection)
	if sel == "" {
		sel = models.SelectPersonal
	}
	return &models.MoneyLink{
		Type:       doc.Type,
		Credential: cred,
		Selection:  sel,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

// GetCreditLinks returns every credit-card link, in stable document order.
func (s *linkStore) GetCreditLinks(ctx context.Context) ([]*models.CreditLink, error) {
	docs, err := s.collection.OrderBy("type", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	links := make([]*models.CreditLink, 0, len(docs))
	for _, d := range docs {
		var doc linkDoc
		if err := d.DataTo(&doc); err != nil {
			return nil, err
		}
		if doc.IsMoney {
			continue
		}
		link, err := s.toCreditLink(ctx, &doc)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

// GetCreditLink returns one credit link by provider type.
func (s *linkStore) GetCreditLink(ctx context.Context, typ string) (*models.CreditLink, error) {
	doc, err := s.fetch(ctx, typ)
	if err != nil {
		return nil, err
	}
	if doc.IsMoney {
		return nil, errs.NewNotFoundError(fmt.Sprintf("%s is not a credit link", typ))
	}
	return s.toCreditLink(ctx, doc)
}

// SaveMoneyLink upserts the funding-account link.
func (s *linkStore) SaveMoneyLink(ctx context.Context, link *models.MoneyLink) error {
	cred, err := s.sealCredential(ctx, link.Credential)
	if err != nil {
		return err
	}
	now := time.Now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	doc := linkDoc{
		Type:         link.Type,
		IsMoney:      true,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenExpiry:  cred.TokenExpiry,
		Selection:    string(link.Selection),
		CreatedAt:    link.CreatedAt,
		UpdatedAt:    link.UpdatedAt,
	}
	_, err = s.collection.Doc(link.Type).Set(ctx, doc)
	return err
}

// SaveCreditLink upserts a credit link, including its sync state.
func (s *linkStore) SaveCreditLink(ctx context.Context, link *models.CreditLink) error {
	cred, err := s.sealCredential(ctx, link.Credential)
	if err != nil {
		return err
	}
	now := time.Now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	doc := linkDoc{
		Type:         link.Type,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenExpiry:  cred.TokenExpiry,
		PotID:        link.PotID,
		PrevBalance:  link.PrevBalance,
		Cooldown:     link.Cooldown,
		CreatedAt:    link.CreatedAt,
		UpdatedAt:    link.UpdatedAt,
	}
	_, err = s.collection.Doc(link.Type).Set(ctx, doc)
	return err
}

// Delete removes a link of either kind.
func (s *linkStore) Delete(ctx context.Context, typ string) error {
	_, err := s.collection.Doc(typ).Delete(ctx)
	return err
}

// UpdateSyncState writes the reconciled baseline and cooldown in one call, so
// the next phase (or cycle) reads a consistent picture. A nil cooldown clears
// both halves of the pending state at once.
func (s *linkStore) UpdateSyncState(ctx context.Context, typ string, prevBalance int64, cooldown *models.Cooldown) error {
	updates := []firestore.Update{
		{Path: "prevBalance", Value: prevBalance},
		{Path: "updatedAt", Value: time.Now()},
	}
	if cooldown == nil {
		updates = append(updates, firestore.Update{Path: "cooldown", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "cooldown", Value: cooldown})
	}
	_, err := s.collection.Doc(typ).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return errs.NewNotFoundError(fmt.Sprintf("link %s not found", typ))
	}
	return err
}

// UpdatePot changes a credit link's designated pot.
func (s *linkStore) UpdatePot(ctx context.Context, typ, potID string) error {
	_, err := s.collection.Doc(typ).Update(ctx, []firestore.Update{
		{Path: "potId", Value: potID},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return errs.NewNotFoundError(fmt.Sprintf("link %s not found", typ))
	}
	return err
}

// UpdateSelection changes which current account funds pot movements.
func (s *linkStore) UpdateSelection(ctx context.Context, sel models.AccountSelection) error {
	_, err := s.collection.Doc(models.ProviderMonzo).Update(ctx, []firestore.Update{
		{Path: "selection", Value: string(sel)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return errs.NewNotFoundError("no money link connected")
	}
	return err
}

// --- helpers ---

func (s *linkStore) fetch(ctx context.Context, typ string) (*linkDoc, error) {
	snap, err := s.collection.Doc(typ).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, errs.NewNotFoundError(fmt.Sprintf("link %s not found", typ))
	}
	if err != nil {
		return nil, err
	}
	var doc linkDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *linkStore) toCreditLink(ctx context.Context, doc *linkDoc) (*models.CreditLink, error) {
	cred, err := s.openCredential(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &models.CreditLink{
		Type:        doc.Type,
		Credential:  cred,
		PotID:       doc.PotID,
		PrevBalance: doc.PrevBalance,
		Cooldown:    doc.Cooldown,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func (s *linkStore) sealCredential(ctx context.Context, cred models.Credential) (models.Credential, error) {
	access, err := s.cipher.Encrypt(ctx, cred.AccessToken)
	if err != nil {
		return models.Credential{}, err
	}
	refresh, err := s.cipher.Encrypt(ctx, cred.RefreshToken)
	if err != nil {
		return models.Credential{}, err
	}
	return models.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  cred.TokenExpiry,
	}, nil
}

func (s *linkStore) openCredential(ctx context.Context, doc *linkDoc) (models.Credential, error) {
	access, err := s.cipher.Decrypt(ctx, doc.AccessToken)
	if err != nil {
		return models.Credential{}, err
	}
	refresh, err := s.cipher.Decrypt(ctx, doc.RefreshToken)
	if err != nil {
		return models.Credential{}, err
	}
	return models.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  doc.TokenExpiry,
	}, nil
}
