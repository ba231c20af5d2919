package mongostore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMessageQuery(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	q := messageQuery(store.MessageFilter{
		SenderID:   a,
		ReceiverID: b,
		Statuses:   []model.MessageStatus{model.StatusSent, model.StatusDelivered},
	})
	assert.Equal(t, bson.M{
		FieldSenderID:   a.String(),
		FieldReceiverID: b.String(),
		FieldStatus:     bson.M{"$in": bson.A{"sent", "delivered"}},
	}, q)

	assert.Empty(t, messageQuery(store.MessageFilter{}))

	id := uuid.New()
	assert.Equal(t, bson.M{
		FieldID:      id.String(),
		FieldDeleted: bson.M{"$ne": true},
	}, messageQuery(store.MessageFilter{ID: id, Live: true}))
}

func TestConnectionQuery(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	q := connectionQuery(store.ConnectionFilter{Involving: a, Status: model.ConnectionAccepted})
	assert.Equal(t, bson.M{
		"$or": bson.A{
			bson.M{FieldSenderID: a.String()},
			bson.M{FieldReceiverID: a.String()},
		},
		FieldStatus: "accepted",
	}, q)

	q = connectionQuery(store.ConnectionFilter{Pair: model.NewPairKey(b, a)})
	assert.Equal(t, bson.M{FieldPairKey: string(model.NewPairKey(a, b))}, q)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "op"))
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments, "get"), model.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, translate(dup, "insert"), store.ErrDuplicate)

	err := translate(fmt.Errorf("find: %w", context.DeadlineExceeded), "find")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, translate(mongo.ErrClientDisconnected, "find"), model.ErrStoreUnavailable)

	other := translate(errors.New("bad query"), "find")
	assert.Equal(t, model.CodeInternal, model.Code(other))
}

func TestDocuments_RoundTrip(t *testing.T) {
	msg := model.NewMessage(uuid.New(), uuid.New(), "hi", "img", model.StatusDelivered, 7)
	raw, err := bson.Marshal(fromMessage(msg))
	require.NoError(t, err)

	var doc messageDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	conn := model.NewConnection(uuid.New(), uuid.New(), 3)
	cd := fromConnection(conn)
	cd.PairKey = ""
	gotConn, err := cd.toModel()
	require.NoError(t, err)
	assert.Equal(t, conn.Pair, gotConn.Pair)
}

func TestDocuments_RejectCorruptRecords(t *testing.T) {
	_, err := (&messageDoc{ID: "nope"}).toModel()
	assert.ErrorIs(t, err, model.ErrValidation)

	d := fromMessage(model.NewMessage(uuid.New(), uuid.New(), "x", "", model.StatusSent, 1))
	d.Status = "seen"
	_, err = d.toModel()
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUserDoc_NeverCarriesPassword(t *testing.T) {
	u, err := (&userDoc{ID: uuid.NewString(), FullName: "A", Password: "hash"}).toModel()
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash)
}
