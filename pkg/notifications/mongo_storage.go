package notifications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection is the collection MongoStorage writes to.
const DefaultMongoCollection = "notifications"

// MongoStorage keeps records in a MongoDB collection.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage binds to collection name in db (DefaultMongoCollection if
// empty) and makes sure the list and status indexes exist.
func NewMongoStorage(ctx context.Context, db *mongo.Database, name string) (*MongoStorage, error) {
	if name == "" {
		name = DefaultMongoCollection
	}
	coll := db.Collection(name)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &MongoStorage{coll: coll}, nil
}

func (s *MongoStorage) Create(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errInvalid("duplicate id " + rec.ID)
		}
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *MongoStorage) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	rec.Payload = normalizeDocument(rec.Payload)
	return &rec, nil
}

func (s *MongoStorage) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	filter := bson.D{{Key: "user_id", Value: userID}}
	if opts.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: opts.Status})
	}

	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Offset > 0 {
		find.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}

	cur, err := s.coll.Find(ctx, filter, find)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	out := []Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	for i := range out {
		out[i].Payload = normalizeDocument(out[i].Payload)
	}
	return out, nil
}

func (s *MongoStorage) MarkSent(ctx context.Context, id string, at time.Time) error {
	// Pipeline update so sent_at keeps its first value.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "status", Value: StatusSent},
			{Key: "error", Value: ""},
			{Key: "sent_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$sent_at", at.UTC()}}}},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStorage) MarkFailed(ctx context.Context, id string, reason string) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: StatusSent}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: StatusFailed},
		{Key: "error", Value: reason},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return s.exists(ctx, id)
	}
	return nil
}

func (s *MongoStorage) SetAttempts(ctx context.Context, id string, n int) error {
	update := bson.D{
		{Key: "$max", Value: bson.D{{Key: "attempts", Value: n}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStorage) exists(ctx context.Context, id string) error {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// normalizeDocument turns nested bson.D and bson.A values, which the driver
// produces for untyped fields, into plain maps and slices so records encode
// to JSON the same way regardless of the store.
func normalizeDocument(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		return normalizeDocument(map[string]any(t))
	case map[string]any:
		return normalizeDocument(t)
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}
