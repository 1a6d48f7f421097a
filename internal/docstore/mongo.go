package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Collection over a MongoDB collection. keyField names the
// document field holding the key; a unique index is created on it.
type Mongo[K comparable, T any] struct {
	coll     *mongo.Collection
	keyField string
}

// NewMongo wraps coll and ensures the unique key index exists.
func NewMongo[K comparable, T any](ctx context.Context, coll *mongo.Collection, keyField string) (*Mongo[K, T], error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: keyField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create index %s.%s: %w", coll.Name(), keyField, err)
	}
	return &Mongo[K, T]{coll: coll, keyField: keyField}, nil
}

func (m *Mongo[K, T]) byKey(key K) bson.D { return bson.D{{Key: m.keyField, Value: key}} }

func (m *Mongo[K, T]) FindOne(ctx context.Context, key K) (*T, error) {
	var out T
	err := m.coll.FindOne(ctx, m.byKey(key)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("%s findOne: %w", m.coll.Name(), err)
	}
	return &out, nil
}

func (m *Mongo[K, T]) Find(ctx context.Context, f Filter) ([]*T, error) {
	q, err := mongoFilter(f)
	if err != nil {
		return nil, err
	}
	cur, err := m.coll.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s find: %w", m.coll.Name(), err)
	}
	defer cur.Close(ctx)

	var out []*T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s decode: %w", m.coll.Name(), err)
	}
	return out, nil
}

func (m *Mongo[K, T]) Upsert(ctx context.Context, key K, doc *T) error {
	return m.set(ctx, key, doc)
}

func (m *Mongo[K, T]) Set(ctx context.Context, key K, fields Fields) error {
	if err := validateFields(fields); err != nil {
		return err
	}
	return m.set(ctx, key, bson.M(fields))
}

func (m *Mongo[K, T]) set(ctx context.Context, key K, update any) error {
	_, err := m.coll.UpdateOne(ctx, m.byKey(key),
		bson.M{"$set": update},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%s upsert: %w", m.coll.Name(), err)
	}
	return nil
}

func (m *Mongo[K, T]) UpdateMany(ctx context.Context, f Filter, fields Fields) (int64, error) {
	if err := validateFields(fields); err != nil {
		return 0, err
	}
	q, err := mongoFilter(f)
	if err != nil {
		return 0, err
	}
	res, err := m.coll.UpdateMany(ctx, q, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return 0, fmt.Errorf("%s updateMany: %w", m.coll.Name(), err)
	}
	return res.MatchedCount, nil
}

func (m *Mongo[K, T]) Delete(ctx context.Context, key K) error {
	if _, err := m.coll.DeleteOne(ctx, m.byKey(key)); err != nil {
		return fmt.Errorf("%s delete: %w", m.coll.Name(), err)
	}
	return nil
}

func (m *Mongo[K, T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	q, err := mongoFilter(f)
	if err != nil {
		return 0, err
	}
	res, err := m.coll.DeleteMany(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("%s deleteMany: %w", m.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (m *Mongo[K, T]) Count(ctx context.Context, f Filter) (int64, error) {
	q, err := mongoFilter(f)
	if err != nil {
		return 0, err
	}
	n, err := m.coll.CountDocuments(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", m.coll.Name(), err)
	}
	return n, nil
}

func mongoFilter(f Filter) (bson.D, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	conds := make(bson.A, 0, len(f))
	for _, c := range f {
		switch c.Op {
		case OpEq:
			conds = append(conds, bson.D{{Key: c.Field, Value: c.Value}})
		case OpLt:
			conds = append(conds, bson.D{{Key: c.Field, Value: bson.D{{Key: "$lt", Value: c.Value}}}})
		default:
			return nil, fmt.Errorf("docstore: unsupported operator %s", c.Op)
		}
	}
	if len(conds) == 0 {
		return bson.D{}, nil
	}
	return bson.D{{Key: "$and", Value: conds}}, nil
}
