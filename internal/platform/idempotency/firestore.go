package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	pfirestore "github.com/hanko-field/order-admin/internal/platform/firestore"
)

const defaultCollection = "idempotencyKeys"

// FirestoreOption customises the FirestoreStore.
type FirestoreOption func(*firestoreOptions)

type firestoreOptions struct {
	collection string
}

// WithCollection overrides the collection used to store keys.
func WithCollection(name string) FirestoreOption {
	return func(opts *firestoreOptions) {
		if name != "" {
			opts.collection = name
		}
	}
}

// FirestoreStore implements Store on top of the shared Firestore provider. Reservations run in
// a transaction so concurrent instances agree on a single owner.
type FirestoreStore struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[firestoreRecord]
}

// NewFirestoreStore constructs a Firestore-backed store.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) *FirestoreStore {
	cfg := firestoreOptions{collection: defaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &FirestoreStore{
		provider: provider,
		base:     pfirestore.NewBaseRepository[firestoreRecord](provider, cfg.collection),
	}
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	id := documentID(key)

	var result Reservation
	err := s.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		doc, err := s.base.Get(txCtx, id)
		switch {
		case err == nil && !doc.Data.toRecord().expired(now):
			result, err = classify(doc.Data.toRecord(), fingerprint)
			return err
		case err != nil && !pfirestore.IsNotFound(err):
			return err
		}
		record := pendingRecord(key, fingerprint, now, ttl)
		result = Reservation{State: ReservationStateNew, Record: record}
		return s.base.Set(txCtx, id, newFirestoreRecord(record))
	})
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	id := documentID(key)

	return s.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		record := Record{Key: key, Fingerprint: fingerprint}
		doc, err := s.base.Get(txCtx, id)
		switch {
		case err == nil:
			record = doc.Data.toRecord()
			if record.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
		case !pfirestore.IsNotFound(err):
			return err
		}
		return s.base.Set(txCtx, id, newFirestoreRecord(completeRecord(record, resp, now, ttl)))
	})
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	return s.base.Delete(ctx, documentID(key))
}

// firestoreRecord stores expiresAt as a timestamp so a Firestore TTL policy can purge old keys.
type firestoreRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders,omitempty"`
	ResponseBody    []byte              `firestore:"responseBody,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func newFirestoreRecord(r Record) firestoreRecord {
	return firestoreRecord{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          string(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func (r firestoreRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
