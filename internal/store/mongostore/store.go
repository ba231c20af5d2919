// Package mongostore implements the store capability on MongoDB. Status
// transitions are single conditional updates ("set read where status in
// [sent, delivered]") so racing events never overwrite each other.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	messages    *mongo.Collection
	connections *mongo.Collection
	users       *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		messages:    db.Collection(MessagesCollection),
		connections: db.Collection(ConnectionsCollection),
		users:       db.Collection(UsersCollection),
	}
}

// EnsureIndexes creates the indexes the engine relies on. The unique pair key
// is what makes "one relationship per unordered pair" hold under races.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.connections.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: FieldPairKey, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair_key"),
		},
		{
			Keys: bson.D{{Key: FieldReceiverID, Value: 1}, {Key: FieldStatus, Value: 1}},
		},
	})
	if err != nil {
		return translate(err, "ensure connection indexes")
	}

	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: FieldSenderID, Value: 1}, {Key: FieldReceiverID, Value: 1}, {Key: FieldStatus, Value: 1}},
		},
		{
			Keys: bson.D{{Key: FieldReceiverID, Value: 1}, {Key: FieldStatus, Value: 1}},
		},
		{
			Keys: bson.D{{Key: FieldCreatedAt, Value: 1}},
		},
	})
	return translate(err, "ensure message indexes")
}

// --- messages ---

func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	_, err := s.messages.InsertOne(ctx, fromMessage(msg))
	return translate(err, "create message")
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var doc messageDoc
	if err := s.messages.FindOne(ctx, bson.M{FieldID: id.String()}).Decode(&doc); err != nil {
		return nil, translate(err, "get message")
	}
	return doc.toModel()
}

func (s *Store) FindMessages(ctx context.Context, filter store.MessageFilter) ([]*model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: FieldCreatedAt, Value: 1}})
	return s.findMessages(ctx, messageQuery(filter), opts)
}

func (s *Store) FindConversation(ctx context.Context, a, b uuid.UUID) ([]*model.Message, error) {
	q := bson.M{"$or": bson.A{
		bson.M{FieldSenderID: a.String(), FieldReceiverID: b.String()},
		bson.M{FieldSenderID: b.String(), FieldReceiverID: a.String()},
	}}
	opts := options.Find().SetSort(bson.D{{Key: FieldCreatedAt, Value: 1}})
	return s.findMessages(ctx, q, opts)
}

func (s *Store) findMessages(ctx context.Context, q bson.M, opts *options.FindOptions) ([]*model.Message, error) {
	cur, err := s.messages.Find(ctx, q, opts)
	if err != nil {
		return nil, translate(err, "find messages")
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "decode messages")
	}
	res := make([]*model.Message, 0, len(docs))
	for i := range docs {
		m, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, nil
}

func (s *Store) AdvanceStatus(ctx context.Context, filter store.MessageFilter, to model.MessageStatus, now int64) (int64, error) {
	from := store.AdvanceableFrom(filter, to)
	if len(from) == 0 {
		return 0, nil
	}
	filter.Statuses = from

	res, err := s.messages.UpdateMany(ctx, messageQuery(filter), bson.M{
		"$set": bson.M{
			FieldStatus:    to.String(),
			FieldUpdatedAt: now,
		},
	})
	if err != nil {
		return 0, translate(err, "advance message status")
	}
	return res.ModifiedCount, nil
}

func (s *Store) UpdateContent(ctx context.Context, filter store.MessageFilter, patch model.MessagePatch) (*model.Message, error) {
	set := bson.M{
		FieldText:      patch.Text,
		FieldUpdatedAt: patch.UpdatedAt,
	}
	if patch.MarkDeleted {
		set[FieldDeleted] = true
	}
	update := bson.M{"$set": set}
	if patch.ClearAttachment {
		update["$unset"] = bson.M{FieldImage: ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDoc
	if err := s.messages.FindOneAndUpdate(ctx, messageQuery(filter), update, opts).Decode(&doc); err != nil {
		return nil, translate(err, "update message content")
	}
	return doc.toModel()
}

// --- connections ---

func (s *Store) CreateConnection(ctx context.Context, conn *model.Connection) error {
	_, err := s.connections.InsertOne(ctx, fromConnection(conn))
	return translate(err, "create connection")
}

func (s *Store) FindConnection(ctx context.Context, filter store.ConnectionFilter) (*model.Connection, error) {
	var doc connectionDoc
	if err := s.connections.FindOne(ctx, connectionQuery(filter)).Decode(&doc); err != nil {
		return nil, translate(err, "find connection")
	}
	return doc.toModel()
}

func (s *Store) FindConnections(ctx context.Context, filter store.ConnectionFilter) ([]*model.Connection, error) {
	opts := options.Find().SetSort(bson.D{{Key: FieldCreatedAt, Value: 1}})
	cur, err := s.connections.Find(ctx, connectionQuery(filter), opts)
	if err != nil {
		return nil, translate(err, "find connections")
	}
	var docs []connectionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "decode connections")
	}
	res := make([]*model.Connection, 0, len(docs))
	for i := range docs {
		c, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (s *Store) TransitionConnection(ctx context.Context, filter store.ConnectionFilter, to model.ConnectionStatus, now int64) (*model.Connection, error) {
	update := bson.M{"$set": bson.M{
		FieldStatus:    to.String(),
		FieldUpdatedAt: now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc connectionDoc
	if err := s.connections.FindOneAndUpdate(ctx, connectionQuery(filter), update, opts).Decode(&doc); err != nil {
		return nil, translate(err, "transition connection")
	}
	return doc.toModel()
}

// --- users ---

// publicProjection strips credentials at the source.
var publicProjection = bson.M{FieldPassword: 0}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var doc userDoc
	opts := options.FindOne().SetProjection(publicProjection)
	if err := s.users.FindOne(ctx, bson.M{FieldID: id.String()}, opts).Decode(&doc); err != nil {
		return nil, translate(err, "get user")
	}
	return doc.toModel()
}

func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	return s.findUsers(ctx, bson.M{FieldID: bson.M{"$in": raw}})
}

func (s *Store) ListUsers(ctx context.Context, except uuid.UUID) ([]*model.User, error) {
	return s.findUsers(ctx, bson.M{FieldID: bson.M{"$ne": except.String()}})
}

func (s *Store) findUsers(ctx context.Context, q bson.M) ([]*model.User, error) {
	opts := options.Find().
		SetProjection(publicProjection).
		SetSort(bson.D{{Key: FieldFullName, Value: 1}})
	cur, err := s.users.Find(ctx, q, opts)
	if err != nil {
		return nil, translate(err, "find users")
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "decode users")
	}
	res := make([]*model.User, 0, len(docs))
	for i := range docs {
		u, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

// --- filters ---

func messageQuery(f store.MessageFilter) bson.M {
	q := bson.M{}
	if f.ID != uuid.Nil {
		q[FieldID] = f.ID.String()
	}
	if f.SenderID != uuid.Nil {
		q[FieldSenderID] = f.SenderID.String()
	}
	if f.ReceiverID != uuid.Nil {
		q[FieldReceiverID] = f.ReceiverID.String()
	}
	if len(f.Statuses) > 0 {
		names := make(bson.A, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			names = append(names, st.String())
		}
		q[FieldStatus] = bson.M{"$in": names}
	}
	if f.Live {
		q[FieldDeleted] = bson.M{"$ne": true}
	}
	return q
}

func connectionQuery(f store.ConnectionFilter) bson.M {
	q := bson.M{}
	if f.SenderID != uuid.Nil {
		q[FieldSenderID] = f.SenderID.String()
	}
	if f.ReceiverID != uuid.Nil {
		q[FieldReceiverID] = f.ReceiverID.String()
	}
	if f.Pair != "" {
		q[FieldPairKey] = string(f.Pair)
	}
	if f.Involving != uuid.Nil {
		id := f.Involving.String()
		q["$or"] = bson.A{
			bson.M{FieldSenderID: id},
			bson.M{FieldReceiverID: id},
		}
	}
	if f.Status != 0 {
		q[FieldStatus] = f.Status.String()
	}
	return q
}

// translate maps driver errors onto the engine's taxonomy.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, store.ErrDuplicate)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
