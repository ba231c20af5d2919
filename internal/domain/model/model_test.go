package model

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStatus_Lifecycle(t *testing.T) {
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusSent.CanAdvanceTo(StatusRead))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusRead))

	assert.False(t, StatusRead.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusSent.CanAdvanceTo(MessageStatus(9)))

	assert.Equal(t, []MessageStatus{StatusSent, StatusDelivered}, StatusRead.Predecessors())
	assert.Empty(t, StatusSent.Predecessors())

	assert.True(t, StatusDelivered.Mutable())
	assert.False(t, StatusRead.Mutable())
}

func TestMessageStatus_ParseRoundTrip(t *testing.T) {
	for _, s := range []MessageStatus{StatusSent, StatusDelivered, StatusRead} {
		got, err := ParseMessageStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseMessageStatus("seen")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "MessageStatus(0)", MessageStatus(0).String())
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, StatusDelivered, InitialStatus(true))
	assert.Equal(t, StatusSent, InitialStatus(false))
}

func TestPairKey_DirectionFree(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	k := NewPairKey(a, b)
	assert.Equal(t, k, NewPairKey(b, a))

	x, y, err := k.Members()
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, []uuid.UUID{x, y})

	_, _, err = PairKey("garbage").Members()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConnection_Other(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	c := NewConnection(a, b, 1)
	assert.Equal(t, b, c.Other(a))
	assert.Equal(t, a, c.Other(b))
	assert.True(t, c.Involves(b))
	assert.False(t, c.Involves(uuid.New()))
	assert.Equal(t, ConnectionPending, c.Status)
}

func TestMessagePatch_Tombstone(t *testing.T) {
	m := NewMessage(uuid.New(), uuid.New(), "hello", "img", StatusSent, 1)
	MessagePatch{Text: "deleted", ClearAttachment: true, MarkDeleted: true, UpdatedAt: 5}.Apply(m)

	assert.Equal(t, "deleted", m.Text)
	assert.Empty(t, m.Attachment)
	assert.True(t, m.Deleted)
	assert.EqualValues(t, 5, m.UpdatedAt)
	assert.EqualValues(t, 1, m.CreatedAt)
}

func TestCode(t *testing.T) {
	cases := map[error]string{
		nil:                              "",
		fmt.Errorf("x: %w", ErrNotFound): CodeNotFound,
		ErrNotConnected:                  CodeForbidden,
		ErrImmutable:                     CodeInvalidState,
		ErrSelfConnection:                CodeValidation,
		ErrStoreUnavailable:              CodeUnavailable,
		fmt.Errorf("boom"):               CodeInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, Code(err), "%v", err)
	}
}

func TestUser_PublicStripsPassword(t *testing.T) {
	u := &User{ID: uuid.New(), FullName: "A", PasswordHash: "secret"}
	p := u.Public()
	assert.Equal(t, Profile{ID: u.ID, FullName: "A"}, p)
}
