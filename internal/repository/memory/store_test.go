package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMessageOrderingIsMonotone(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	// A burst of sends faster than the clock can resolve still produces
	// distinct, ordered SentAt values.
	for i := 0; i < 50; i++ {
		_, err := s.Create(ctx, models.Message{
			SenderID:    a,
			RecipientID: b,
			Content:     fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	msgs, err := s.ListForUser(ctx, a)
	require.NoError(t, err)
	require.Len(t, msgs, 50)

	// Newest first, strictly decreasing SentAt, ids matching send order.
	for i := 1; i < len(msgs); i++ {
		require.True(t, msgs[i-1].SentAt.After(msgs[i].SentAt))
		require.Greater(t, msgs[i-1].ID, msgs[i].ID)
	}
	require.Equal(t, "message 49", msgs[0].Content)
}

func TestConversationReadsOldestFirst(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	_, err := s.Create(ctx, models.Message{SenderID: a, RecipientID: b, Content: "first"})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.Message{SenderID: a, RecipientID: c, Content: "noise"})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.Message{SenderID: b, RecipientID: a, Content: "second"})
	require.NoError(t, err)

	msgs, err := s.Conversation(ctx, a, b)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
}

func TestLatestPerCounterpartPicksNewest(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	_, err := s.Create(ctx, models.Message{SenderID: a, RecipientID: b, Content: "old"})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.Message{SenderID: a, RecipientID: c, Content: "only"})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.Message{SenderID: b, RecipientID: a, Content: "new"})
	require.NoError(t, err)

	latest, err := s.LatestPerCounterpart(ctx, a)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "new", latest[0].Content)
	require.Equal(t, "only", latest[1].Content)
}

func TestMarkReadSkipsForeignAndReadMessages(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	mine, err := s.Create(ctx, models.Message{SenderID: a, RecipientID: b, Content: "mine"})
	require.NoError(t, err)
	theirs, err := s.Create(ctx, models.Message{SenderID: a, RecipientID: c, Content: "theirs"})
	require.NoError(t, err)

	at := time.Now()
	flipped, err := s.MarkRead(ctx, b, []int64{mine.ID, theirs.ID, 404}, at)
	require.NoError(t, err)
	require.Equal(t, []int64{mine.ID}, flipped)

	stored, err := s.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	require.True(t, stored.IsRead)
	require.True(t, at.Equal(*stored.ReadAt))

	// Already read: nothing flips, the timestamp stays.
	flipped, err = s.MarkRead(ctx, b, []int64{mine.ID}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, flipped)
	stored, err = s.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	require.True(t, at.Equal(*stored.ReadAt))

	untouched, err := s.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	require.False(t, untouched.IsRead)
}

func TestLeaseTransitionExactlyOneWinner(t *testing.T) {
	s := NewLeaseStore()
	ctx := context.Background()

	lease, err := s.Create(ctx, models.Lease{
		PropertyID: uuid.New(),
		TenantID:   uuid.New(),
		Status:     models.LeasePending,
		StartDate:  time.Now(),
		EndDate:    time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	results := make([]bool, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, won, err := s.TransitionStatus(ctx, lease.ID, []models.LeaseStatus{models.LeasePending}, models.LeaseActive)
			results[i] = won
			errs[i] = err
		}(i)
	}
	wg.Wait()

	var winners int
	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i])
		if results[i] {
			winners++
		}
	}
	require.Equal(t, 1, winners)

	current, err := s.GetByID(ctx, lease.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaseActive, current.Status)
}

func TestLeaseTransitionMissingLease(t *testing.T) {
	s := NewLeaseStore()

	lease, won, err := s.TransitionStatus(context.Background(), uuid.New(),
		[]models.LeaseStatus{models.LeasePending}, models.LeaseActive)
	require.NoError(t, err)
	require.False(t, won)
	require.Nil(t, lease)
}

func TestLoserStillSeesCurrentLease(t *testing.T) {
	s := NewLeaseStore()
	ctx := context.Background()

	lease, err := s.Create(ctx, models.Lease{
		PropertyID: uuid.New(),
		TenantID:   uuid.New(),
		Status:     models.LeaseTerminated,
	})
	require.NoError(t, err)

	current, won, err := s.TransitionStatus(ctx, lease.ID,
		[]models.LeaseStatus{models.LeasePending, models.LeaseActive}, models.LeaseTerminated)
	require.NoError(t, err)
	require.False(t, won)
	require.NotNil(t, current)
	require.Equal(t, models.LeaseTerminated, current.Status)
}

func TestUserStoreEmailLookup(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	created, err := s.Create(ctx, "Dana Doe", "dana@example.com", "hash", models.RoleTenant, "555-0100")
	require.NoError(t, err)

	byEmail, err := s.GetByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	missing, err := s.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, missing)

	ok, err := s.Exists(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := s.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	ok, err = s.Exists(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, ok)
}
