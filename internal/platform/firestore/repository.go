package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository provides typed collection helpers. Every method joins the transaction bound to
// ctx, if any, so a Firestore transaction sees reads and buffers writes made through it.
// Firestore requires all transactional reads to happen before the first write.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

// NewBaseRepository constructs a BaseRepository bound to a collection.
func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
	}
}

// Collection returns the collection name.
func (r *BaseRepository[T]) Collection() string {
	return r.collection
}

// Get fetches and decodes the document by ID.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}

	var snap *firestore.DocumentSnapshot
	if tx, ok := TransactionFromContext(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return decodeDocument[T](snap)
}

// GetAll fetches several documents in one round trip, preserving the order of ids. Missing
// documents yield an error reporting IsNotFound together with the missing id.
func (r *BaseRepository[T]) GetAll(ctx context.Context, ids []string) ([]Document[T], error) {
	if len(ids) == 0 {
		return nil, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		ref, err := r.DocumentRef(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	var (
		snaps []*firestore.DocumentSnapshot
		err   error
	)
	if tx, ok := TransactionFromContext(ctx); ok {
		snaps, err = tx.GetAll(refs)
	} else {
		client, clientErr := r.provider.Client(ctx)
		if clientErr != nil {
			return nil, clientErr
		}
		snaps, err = client.GetAll(ctx, refs)
	}
	if err != nil {
		return nil, WrapError(r.op("get_all"), err)
	}

	docs := make([]Document[T], 0, len(snaps))
	for i, snap := range snaps {
		if snap == nil || !snap.Exists() {
			return nil, &MissingDocumentError{Collection: r.collection, ID: ids[i]}
		}
		doc, err := decodeDocument[T](snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Create writes value under id and fails with IsAlreadyExists when the document exists.
// Inside a transaction the existence check happens at commit.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		return WrapError(r.op("create"), tx.Create(ref, value))
	}
	_, err = ref.Create(ctx, value)
	return WrapError(r.op("create"), err)
}

// Set upserts the given value under the provided document ID.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		return WrapError(r.op("set"), tx.Set(ref, value, opts...))
	}
	_, err = ref.Set(ctx, value, opts...)
	return WrapError(r.op("set"), err)
}

// Update applies field updates; it fails with IsNotFound for a missing document.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update, preconds ...firestore.Precondition) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		return WrapError(r.op("update"), tx.Update(ref, updates, preconds...))
	}
	_, err = ref.Update(ctx, updates, preconds...)
	return WrapError(r.op("update"), err)
}

// Delete removes the document; a missing document is not an error.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TransactionFromContext(ctx); ok {
		return WrapError(r.op("delete"), tx.Delete(ref))
	}
	_, err = ref.Delete(ctx)
	return WrapError(r.op("delete"), err)
}

// Query executes a collection query and returns the decoded documents.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}

	var iter *firestore.DocumentIterator
	if tx, ok := TransactionFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		doc, err := decodeDocument[T](snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocumentRef exposes the underlying document reference.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	}
	if r.collection == "" {
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) op(action string) string {
	name := "firestore"
	if r != nil && r.collection != "" {
		name = r.collection
	}
	return fmt.Sprintf("%s.%s", name, action)
}

func decodeDocument[T any](snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, err)
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Data:       data,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}

// MissingDocumentError reports the first absent document of a GetAll call.
type MissingDocumentError struct {
	Collection string
	ID         string
}

// Error implements the error interface.
func (e *MissingDocumentError) Error() string {
	return fmt.Sprintf("%s.get_all: document %s not found", e.Collection, e.ID)
}

// IsNotFound always reports true.
func (e *MissingDocumentError) IsNotFound() bool { return true }

// IsConflict always reports false.
func (e *MissingDocumentError) IsConflict() bool { return false }

// IsUnavailable always reports false.
func (e *MissingDocumentError) IsUnavailable() bool { return false }
