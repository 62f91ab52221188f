package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	bob := f.agent("bob")
	carol := f.agent("carol")
	svc := NewMessagingService(f.store)

	conv, err := svc.CreateConversation(f.ctx, alice.ID, []uint{bob.ID, bob.ID, alice.ID})
	require.NoError(t, err)
	require.Len(t, conv.Participants, 2)
	assert.Nil(t, conv.LastMessage)

	_, err = svc.Send(f.ctx, alice.ID, conv.ID, "hello bob")
	require.NoError(t, err)
	second, err := svc.Send(f.ctx, alice.ID, conv.ID, "are you there?")
	require.NoError(t, err)

	unread, err := svc.UnreadCount(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	list, err := svc.Conversations(f.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, second.ID, list[0].LastMessage.ID)

	msgs, err := svc.Messages(f.ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello bob", msgs[0].Content)

	unread, err = svc.UnreadCount(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread, "reading the thread marks it read")

	_, err = svc.Conversation(f.ctx, carol.ID, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Message(f.ctx, carol.ID, second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Send(f.ctx, carol.ID, conv.ID, "let me in")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "conversation")

	assert.ErrorIs(t, svc.DeleteMessage(f.ctx, bob.ID, second.ID), ErrForbidden)
	require.NoError(t, svc.DeleteMessage(f.ctx, alice.ID, second.ID))
	_, err = svc.Message(f.ctx, alice.ID, second.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateConversationValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	svc := NewMessagingService(f.store)

	_, err := svc.CreateConversation(f.ctx, alice.ID, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateConversation(f.ctx, alice.ID, []uint{42})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["participant_ids"], "42")
}

func TestSearchConversations(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	bob := f.agent("bobby")
	carol := f.agent("carol")
	svc := NewMessagingService(f.store)

	_, err := svc.CreateConversation(f.ctx, alice.ID, []uint{bob.ID})
	require.NoError(t, err)
	_, err = svc.CreateConversation(f.ctx, alice.ID, []uint{carol.ID})
	require.NoError(t, err)

	found, err := svc.Search(f.ctx, alice.ID, "BOB")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, containsID([]uint{found[0].Participants[0].ID, found[0].Participants[1].ID}, bob.ID))

	_, err = svc.Search(f.ctx, alice.ID, "  ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
