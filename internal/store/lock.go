package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type lockDoc struct {
	Owner     string    `firestore:"owner"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// lockStore hands out named leases through Firestore transactions, so two
// processes sharing the database can serialize work without any channel
// between them.
type lockStore struct {
	client   *firestore.Client
	clockNow func() time.Time
}

func NewLockStore(client *firestore.Client) *lockStore {
	return &lockStore{client: client, clockNow: time.Now}
}

// Acquire takes the named lease for ttl unless another owner holds it and its
// lease has not lapsed. A lapsed lease is taken over, so a crashed holder
// cannot wedge the lock.
func (s *lockStore) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ref := s.client.Collection("locks").Doc(name)
	var acquired bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		now := s.clockNow()
		if err == nil {
			var doc lockDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Owner != owner && doc.ExpiresAt.After(now) {
				return nil
			}
		}
		acquired = true
		return tx.Set(ref, lockDoc{Owner: owner, ExpiresAt: now.Add(ttl)})
	})
	return acquired, err
}

// Release gives the lease back. Only the current owner may release it; a
// holder whose lease already lapsed and was taken over must not delete the
// new holder's lease.
func (s *lockStore) Release(ctx context.Context, name, owner string) error {
	ref := s.client.Collection("locks").Doc(name)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var doc lockDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Owner != owner {
			return nil
		}
		return tx.Delete(ref)
	})
}
