package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
)

const tracerName = "github.com/showcase/api/internal/platform/firestore"

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
	ReadTime   time.Time
}

// MutationResult captures the update timestamp returned by Firestore mutations.
type MutationResult struct {
	UpdateTime time.Time
}

// Snapshot is one delivery of a watched query: the full result set at ReadTime, or Err
// when the watch failed. The stream closes after an error.
type Snapshot[T any] struct {
	Docs     []Document[T]
	ReadTime time.Time
	Err      error
}

// Encoder serialises the strongly typed entity prior to persistence.
type Encoder[T any] func(ctx context.Context, value T) (any, error)

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(ctx context.Context, snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository provides typed helpers wrapping Firestore collection access.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	encode     Encoder[T]
	decode     Decoder[T]
	tracer     trace.Tracer
}

// NewBaseRepository constructs a BaseRepository bound to a collection.
func NewBaseRepository[T any](provider *Provider, collection string, encode Encoder[T], decode Decoder[T]) *BaseRepository[T] {
	if encode == nil {
		encode = IdentityEncoder[T]()
	}
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		encode:     encode,
		decode:     decode,
		tracer:     otel.Tracer(tracerName),
	}
}

// Collection returns the collection name the repository is bound to.
func (r *BaseRepository[T]) Collection() string {
	return r.collection
}

// Create stores value under a new auto-generated document ID and returns that ID.
func (r *BaseRepository[T]) Create(ctx context.Context, value T) (id string, err error) {
	ctx, end := r.span(ctx, "create")
	defer func() { end(err) }()

	coll, err := r.collectionRef(ctx)
	if err != nil {
		return "", err
	}
	payload, err := r.encode(ctx, value)
	if err != nil {
		return "", fmt.Errorf("firestore: encode new document: %w", err)
	}
	doc := coll.NewDoc()
	if _, err := doc.Create(ctx, payload); err != nil {
		return "", WrapError(r.op("create"), err)
	}
	return doc.ID, nil
}

// Set upserts the given value under the provided document ID.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) (res MutationResult, err error) {
	ctx, end := r.span(ctx, "set")
	defer func() { end(err) }()

	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	payload, err := r.encode(ctx, value)
	if err != nil {
		return MutationResult{}, fmt.Errorf("firestore: encode document %s: %w", id, err)
	}
	result, err := doc.Set(ctx, payload, opts...)
	if err != nil {
		return MutationResult{}, WrapError(r.op("set"), err)
	}
	return MutationResult{UpdateTime: result.UpdateTime}, nil
}

// Update applies partial updates to an existing document. Missing documents yield a
// not-found error.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update, opts ...firestore.Precondition) (res MutationResult, err error) {
	ctx, end := r.span(ctx, "update")
	defer func() { end(err) }()

	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	result, err := doc.Update(ctx, updates, opts...)
	if err != nil {
		return MutationResult{}, WrapError(r.op("update"), err)
	}
	return MutationResult{UpdateTime: result.UpdateTime}, nil
}

// Increment atomically adds delta to the numeric field at path. The server creates the
// field at zero when it is absent.
func (r *BaseRepository[T]) Increment(ctx context.Context, id string, path string, delta int64) (MutationResult, error) {
	if strings.TrimSpace(path) == "" {
		return MutationResult{}, WrapError(r.op("increment"), errors.New("firestore: field path is required"))
	}
	return r.Update(ctx, id, []firestore.Update{{Path: path, Value: firestore.Increment(delta)}})
}

// Delete removes the document. Deleting a missing document yields a not-found error.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) (err error) {
	ctx, end := r.span(ctx, "delete")
	defer func() { end(err) }()

	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx, firestore.Exists); err != nil {
		return WrapError(r.op("delete"), err)
	}
	return nil
}

// Get fetches the document by ID and decodes it into the strongly typed entity.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (out Document[T], err error) {
	ctx, end := r.span(ctx, "get")
	defer func() { end(err) }()

	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decodeDocument(ctx, snapshot)
}

// Query executes a collection query and returns the decoded documents.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) (docs []Document[T], err error) {
	ctx, end := r.span(ctx, "query")
	defer func() { end(err) }()

	query, err := r.query(ctx, build)
	if err != nil {
		return nil, err
	}
	iter := query.Documents(ctx)
	defer iter.Stop()
	return r.drain(ctx, iter)
}

// QueryTx runs the query inside tx. Firestore requires all transactional reads to happen
// before the first write.
func (r *BaseRepository[T]) QueryTx(ctx context.Context, tx *firestore.Transaction, build QueryBuilder) ([]Document[T], error) {
	query, err := r.query(ctx, build)
	if err != nil {
		return nil, err
	}
	iter := tx.Documents(query)
	defer iter.Stop()
	return r.drain(ctx, iter)
}

// GetTx reads a document inside tx.
func (r *BaseRepository[T]) GetTx(ctx context.Context, tx *firestore.Transaction, id string) (Document[T], error) {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := tx.Get(doc)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decodeDocument(ctx, snapshot)
}

// Watch streams full result sets of the query whenever it changes. The first snapshot
// reflects the current state and is delivered as soon as the listener is established.
// The channel is closed once ctx is cancelled or the listener fails; a failure is
// delivered as a final Snapshot with Err set.
func (r *BaseRepository[T]) Watch(ctx context.Context, build QueryBuilder) (<-chan Snapshot[T], error) {
	query, err := r.query(ctx, build)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot[T], 1)
	go func() {
		defer close(out)
		iter := query.Snapshots(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.send(ctx, out, Snapshot[T]{Err: WrapError(r.op("watch"), err)})
				return
			}
			docs, err := r.drain(ctx, snap.Documents)
			if err != nil {
				r.send(ctx, out, Snapshot[T]{Err: err})
				return
			}
			if !r.send(ctx, out, Snapshot[T]{Docs: docs, ReadTime: snap.ReadTime}) {
				return
			}
		}
	}()
	return out, nil
}

func (r *BaseRepository[T]) send(ctx context.Context, out chan<- Snapshot[T], snap Snapshot[T]) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- snap:
		return true
	}
}

// DocumentRef exposes the underlying document reference for advanced scenarios such as transactions.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	return r.documentRef(ctx, id)
}

// Encode runs the repository encoder, for callers writing through a transaction.
func (r *BaseRepository[T]) Encode(ctx context.Context, value T) (any, error) {
	return r.encode(ctx, value)
}

type documentIterator interface {
	Next() (*firestore.DocumentSnapshot, error)
}

func (r *BaseRepository[T]) drain(ctx context.Context, iter documentIterator) ([]Document[T], error) {
	docs := make([]Document[T], 0)
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		decoded, err := r.decodeDocument(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
		}
		docs = append(docs, decoded)
	}
}

func (r *BaseRepository[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	return query, nil
}

func (r *BaseRepository[T]) decodeDocument(ctx context.Context, snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := r.decode(ctx, snapshot)
	if err != nil {
		return Document[T]{}, err
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
		ReadTime:   snapshot.ReadTime,
	}, nil
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

func (r *BaseRepository[T]) documentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) span(ctx context.Context, action string) (context.Context, func(error)) {
	if r == nil || r.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := r.tracer.Start(ctx, r.op(action),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "firestore"),
			attribute.String("db.collection.name", r.collection),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (r *BaseRepository[T]) op(action string) string {
	name := "firestore"
	if r != nil && r.collection != "" {
		name = r.collection
	}
	return fmt.Sprintf("%s.%s", name, strings.ToLower(action))
}

// IdentityEncoder returns an encoder that writes the value unchanged.
func IdentityEncoder[T any]() Encoder[T] {
	return func(_ context.Context, value T) (any, error) {
		return value, nil
	}
}

// StructDecoder populates the target struct using Firestore's native decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		if err := snap.DataTo(&target); err != nil {
			return target, err
		}
		return target, nil
	}
}
