package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	engine     *Engine
	messages   *memory.MessageStore
	users      *memory.UserStore
	properties *memory.PropertyStore
	leases     *memory.LeaseStore

	alice *models.User
	bob   *models.User
	carol *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	messages := memory.NewMessageStore()
	users := memory.NewUserStore()
	properties := memory.NewPropertyStore()
	leases := memory.NewLeaseStore()

	alice, err := users.Create(ctx, "Alice Archer", "alice@example.com", "x", models.RoleTenant, "")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "Bob Builder", "bob@example.com", "x", models.RoleLandlord, "")
	require.NoError(t, err)
	carol, err := users.Create(ctx, "Carol Chen", "carol@example.com", "x", models.RoleTenant, "")
	require.NoError(t, err)

	return &fixture{
		engine:     NewEngine(messages, users, properties, leases, nil, zap.NewNop()),
		messages:   messages,
		users:      users,
		properties: properties,
		leases:     leases,
		alice:      alice,
		bob:        bob,
		carol:      carol,
	}
}

func (f *fixture) send(t *testing.T, from, to uuid.UUID, content string) *models.MessageView {
	t.Helper()
	sent, err := f.engine.Send(context.Background(), from, SendInput{
		RecipientID: to,
		Content:     content,
	})
	require.NoError(t, err)
	return sent
}

func TestSendBasics(t *testing.T) {
	f := newFixture(t)

	sent := f.send(t, f.alice.ID, f.bob.ID, "Is this available?")

	require.Equal(t, f.alice.ID, sent.SenderID)
	require.Equal(t, f.bob.ID, sent.RecipientID)
	require.Equal(t, models.TypeGeneral, sent.MessageType)
	require.False(t, sent.IsRead)
	require.Nil(t, sent.ReadAt)
	require.Equal(t, "Alice Archer", sent.SenderName)
	require.Equal(t, "bob@example.com", sent.RecipientEmail)
}

func TestSendToSelfRejectedAndNotStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Send(ctx, f.alice.ID, SendInput{
		RecipientID: f.alice.ID,
		Content:     "note to self",
	})
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	stats, err := f.engine.Stats(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Zero(t, stats.TotalMessages)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Send(ctx, f.alice.ID, SendInput{RecipientID: f.bob.ID, Content: "   "})
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	long := make([]byte, models.MaxContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.engine.Send(ctx, f.alice.ID, SendInput{RecipientID: f.bob.ID, Content: string(long)})
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.engine.Send(ctx, f.alice.ID, SendInput{RecipientID: uuid.New(), Content: "hi"})
	require.ErrorIs(t, err, models.ErrNotFound)

	missingProperty := uuid.New()
	_, err = f.engine.Send(ctx, f.alice.ID, SendInput{
		RecipientID: f.bob.ID,
		PropertyID:  &missingProperty,
		Content:     "hi",
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestReplyRequiresAccessToParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.send(t, f.alice.ID, f.bob.ID, "original")

	_, err := f.engine.Send(ctx, f.carol.ID, SendInput{
		RecipientID:     f.alice.ID,
		ParentMessageID: &parent.ID,
		Content:         "butting in",
	})
	require.ErrorIs(t, err, models.ErrForbidden)

	reply, err := f.engine.Send(ctx, f.bob.ID, SendInput{
		RecipientID:     f.alice.ID,
		ParentMessageID: &parent.ID,
		Content:         "replying",
	})
	require.NoError(t, err)
	require.Equal(t, parent.ID, *reply.ParentMessageID)
}

func TestConversationIsSymmetricAndChronological(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.bob.ID, f.alice.ID, "two")
	f.send(t, f.alice.ID, f.bob.ID, "three")
	f.send(t, f.alice.ID, f.carol.ID, "unrelated")

	fromAlice, err := f.engine.Conversation(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	fromBob, err := f.engine.Conversation(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)

	require.Len(t, fromAlice, 3)
	require.Equal(t, fromAlice, fromBob)

	var contents []string
	for _, m := range fromAlice {
		contents = append(contents, m.Content)
	}
	require.Equal(t, []string{"one", "two", "three"}, contents)
}

func TestConversationsOneSummaryPerCounterpart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, f.alice.ID, f.bob.ID, "hello bob")
	f.send(t, f.bob.ID, f.alice.ID, "hello alice")
	f.send(t, f.bob.ID, f.alice.ID, "still there?")
	f.send(t, f.carol.ID, f.alice.ID, "hey alice")

	summaries, err := f.engine.Conversations(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most recent activity first: carol's message arrived last.
	require.Equal(t, f.carol.ID, summaries[0].OtherUserID)
	require.Equal(t, "hey alice", summaries[0].LatestMessage.Content)
	require.EqualValues(t, 1, summaries[0].UnreadCount)

	require.Equal(t, f.bob.ID, summaries[1].OtherUserID)
	require.Equal(t, "still there?", summaries[1].LatestMessage.Content)
	require.EqualValues(t, 2, summaries[1].UnreadCount)
}

func TestGetMarksReadForRecipientOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, f.alice.ID, f.bob.ID, "ping")

	// The sender reading their own message is not an acknowledgement.
	got, err := f.engine.Get(ctx, sent.ID, f.alice.ID)
	require.NoError(t, err)
	require.False(t, got.IsRead)

	got, err = f.engine.Get(ctx, sent.ID, f.bob.ID)
	require.NoError(t, err)
	require.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	require.False(t, got.ReadAt.Before(got.SentAt))

	// Re-reading keeps the original acknowledgement timestamp.
	firstReadAt := *got.ReadAt
	again, err := f.engine.Get(ctx, sent.ID, f.bob.ID)
	require.NoError(t, err)
	require.True(t, firstReadAt.Equal(*again.ReadAt))
}

func TestGetForbiddenForThirdParty(t *testing.T) {
	f := newFixture(t)

	sent := f.send(t, f.alice.ID, f.bob.ID, "between us")

	_, err := f.engine.Get(context.Background(), sent.ID, f.carol.ID)
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestInboxFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, f.alice.ID, f.bob.ID, "Is this available?")

	inbox, err := f.engine.ListReceived(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.False(t, inbox[0].IsRead)

	unread, err := f.engine.ListUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	_, err = f.engine.Get(ctx, sent.ID, f.bob.ID)
	require.NoError(t, err)

	unread, err = f.engine.ListUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestMarkReadIdempotentAndScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	toBob := f.send(t, f.alice.ID, f.bob.ID, "for bob")
	toCarol := f.send(t, f.alice.ID, f.carol.ID, "for carol")

	// Bob asks to mark both; only the one addressed to him flips.
	flipped, err := f.engine.MarkRead(ctx, f.bob.ID, []int64{toBob.ID, toCarol.ID, 9999})
	require.NoError(t, err)
	require.Equal(t, []int64{toBob.ID}, flipped)

	got, err := f.engine.Get(ctx, toBob.ID, f.bob.ID)
	require.NoError(t, err)
	firstReadAt := *got.ReadAt

	// Second call is a no-op and leaves the timestamp alone.
	flipped, err = f.engine.MarkRead(ctx, f.bob.ID, []int64{toBob.ID})
	require.NoError(t, err)
	require.Empty(t, flipped)

	got, err = f.engine.Get(ctx, toBob.ID, f.bob.ID)
	require.NoError(t, err)
	require.True(t, firstReadAt.Equal(*got.ReadAt))

	// Carol's copy was untouched by bob's request.
	got, err = f.engine.Get(ctx, toCarol.ID, f.carol.ID)
	require.NoError(t, err)
	require.True(t, got.IsRead)
}

func TestMarkAllFromSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.alice.ID, f.bob.ID, "two")
	f.send(t, f.carol.ID, f.bob.ID, "from carol")

	n, err := f.engine.MarkAllFromSender(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	unread, err := f.engine.ListUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, f.carol.ID, unread[0].SenderID)
}

func TestSearchIsScopedAndCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, f.alice.ID, f.bob.ID, "The boiler is broken")
	f.send(t, f.bob.ID, f.alice.ID, "A plumber will fix the BOILER tomorrow")
	f.send(t, f.carol.ID, f.bob.ID, "different boiler entirely")

	results, err := f.engine.Search(ctx, f.alice.ID, "boiler")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Carol was not party to either match.
	results, err = f.engine.Search(ctx, f.carol.ID, "plumber")
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDeleteSenderOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, f.alice.ID, f.bob.ID, "oops, wrong person")

	err := f.engine.Delete(ctx, sent.ID, f.bob.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	err = f.engine.Delete(ctx, sent.ID, f.alice.ID)
	require.NoError(t, err)

	_, err = f.engine.Get(ctx, sent.ID, f.alice.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteLeavesRepliesOrphaned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.send(t, f.alice.ID, f.bob.ID, "original")
	reply, err := f.engine.Send(ctx, f.bob.ID, SendInput{
		RecipientID:     f.alice.ID,
		ParentMessageID: &parent.ID,
		Content:         "reply",
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Delete(ctx, parent.ID, f.alice.ID))

	// The reply survives, still pointing at the deleted parent.
	got, err := f.engine.Get(ctx, reply.ID, f.bob.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentMessageID)
	require.Equal(t, parent.ID, *got.ParentMessageID)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.alice.ID, f.bob.ID, "two")
	read := f.send(t, f.carol.ID, f.alice.ID, "three")
	_, err := f.engine.Get(ctx, read.ID, f.alice.ID)
	require.NoError(t, err)
	f.send(t, f.carol.ID, f.alice.ID, "four")

	stats, err := f.engine.Stats(ctx, f.alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, stats.TotalMessages)
	require.EqualValues(t, 2, stats.TotalSent)
	require.EqualValues(t, 2, stats.TotalReceived)
	require.EqualValues(t, 1, stats.UnreadCount)
}

func TestListByPropertyIsPublicButPropertyMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	property, err := f.properties.Create(ctx, models.Property{
		Title:         "Garden Flat",
		Address:       "7 Rose Lane",
		RentAmount:    900,
		AvailableFrom: time.Now(),
		LandlordID:    f.bob.ID,
	})
	require.NoError(t, err)

	_, err = f.engine.Send(ctx, f.alice.ID, SendInput{
		RecipientID: f.bob.ID,
		PropertyID:  &property.ID,
		Content:     "about the garden flat",
		MessageType: models.TypePropertyInquiry,
	})
	require.NoError(t, err)

	// Carol is not a party to the thread but may browse by property.
	msgs, err := f.engine.ListByProperty(ctx, property.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, models.TypePropertyInquiry, msgs[0].MessageType)
	require.Equal(t, "Garden Flat", msgs[0].PropertyTitle)

	_, err = f.engine.ListByProperty(ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestListRepliesRequiresPartyToParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.send(t, f.alice.ID, f.bob.ID, "original")
	_, err := f.engine.Send(ctx, f.bob.ID, SendInput{
		RecipientID:     f.alice.ID,
		ParentMessageID: &parent.ID,
		Content:         "first reply",
	})
	require.NoError(t, err)

	replies, err := f.engine.ListReplies(ctx, parent.ID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)

	_, err = f.engine.ListReplies(ctx, parent.ID, f.carol.ID)
	require.ErrorIs(t, err, models.ErrForbidden)
}
