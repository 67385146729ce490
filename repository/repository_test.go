package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/database/dbtest"
	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/gorm"
)

// stepClock advances one millisecond per reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fixture struct {
	db            *gorm.DB
	conversations *GormConversationRepository
	messages      *GormMessageRepository
	blocks        *GormBlockRepository
	directory     *GormDirectoryRepository
}

func newFixture(t *testing.T) *fixture {
	return newFixtureOn(dbtest.New(t))
}

func newFixtureOn(db *gorm.DB) *fixture {
	clock := newStepClock()
	f := &fixture{
		db:            db,
		conversations: NewGormConversationRepository(db),
		messages:      NewGormMessageRepository(db, DefaultLimits()),
		blocks:        NewGormBlockRepository(db),
		directory:     NewGormDirectoryRepository(db),
	}
	f.conversations.now = clock.Now
	f.messages.now = clock.Now
	return f
}

func (f *fixture) conversation(t *testing.T, a, b uuid.UUID, productID *uuid.UUID) *models.Conversation {
	t.Helper()
	conv, _, err := f.conversations.GetOrCreate(context.Background(), a, b, productID)
	require.NoError(t, err)
	return conv
}

func (f *fixture) send(t *testing.T, conv *models.Conversation, from, to uuid.UUID, body string) *models.Message {
	t.Helper()
	msg, err := f.messages.Append(context.Background(), AppendInput{
		ConversationID: conv.ID, SenderID: from, ReceiverID: to, Body: body,
	})
	require.NoError(t, err)
	return msg
}

func (f *fixture) unread(t *testing.T, convID, userID uuid.UUID) int {
	t.Helper()
	var p models.ConversationParticipant
	require.NoError(t, f.db.First(&p, "conversation_id = ? AND user_id = ?", convID, userID).Error)
	return p.UnreadCount
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := dbtest.User(t, f.db, "tendai")
	seller := dbtest.User(t, f.db, "rudo")
	product := dbtest.Product(t, f.db, seller.ID, "Mazoe orange crush")

	t.Run("creates once and is order insensitive", func(t *testing.T) {
		first, created, err := f.conversations.GetOrCreate(ctx, buyer.ID, seller.ID, nil)
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := f.conversations.GetOrCreate(ctx, seller.ID, buyer.ID, nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		var participants []models.ConversationParticipant
		require.NoError(t, f.db.Find(&participants, "conversation_id = ?", first.ID).Error)
		assert.Len(t, participants, 2)
		for _, p := range participants {
			assert.Zero(t, p.UnreadCount)
		}
	})

	t.Run("product scopes a separate conversation", func(t *testing.T) {
		plain := f.conversation(t, buyer.ID, seller.ID, nil)
		scoped := f.conversation(t, buyer.ID, seller.ID, &product.ID)
		assert.NotEqual(t, plain.ID, scoped.ID)
		require.NotNil(t, scoped.ProductID)
		assert.Equal(t, product.ID, *scoped.ProductID)

		again := f.conversation(t, seller.ID, buyer.ID, &product.ID)
		assert.Equal(t, scoped.ID, again.ID)
	})

	t.Run("rejects self conversation", func(t *testing.T) {
		_, _, err := f.conversations.GetOrCreate(ctx, buyer.ID, buyer.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrSelfMessage)
	})
}

// concurrentBackends are the stores the race tests run against. The in-memory
// one has a single connection; the others let writers overlap for real.
var concurrentBackends = []struct {
	name string
	open func(t *testing.T) *gorm.DB
}{
	{"sqlite single connection", func(t *testing.T) *gorm.DB { return dbtest.New(t) }},
	{"sqlite pooled", func(t *testing.T) *gorm.DB { return dbtest.Pooled(t, 8) }},
	{"postgres", func(t *testing.T) *gorm.DB { return dbtest.Postgres(t, 8) }},
}

func TestGetOrCreateConcurrent(t *testing.T) {
	for _, backend := range concurrentBackends {
		t.Run(backend.name, func(t *testing.T) {
			testGetOrCreateConcurrent(t, newFixtureOn(backend.open(t)))
		})
	}
}

func testGetOrCreateConcurrent(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := dbtest.User(t, f.db, "farai")
	b := dbtest.User(t, f.db, "chipo")

	const callers = 16
	ids := make([]uuid.UUID, callers)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a.ID, b.ID
			if i%2 == 1 {
				x, y = y, x
			}
			conv, created, err := f.conversations.GetOrCreate(ctx, x, y, nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[i] = conv.ID
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, createdCount)

	for _, user := range []uuid.UUID{a.ID, b.ID} {
		var count int64
		require.NoError(t, f.db.Model(&models.ConversationParticipant{}).
			Where("user_id = ?", user).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	}
	var count int64
	require.NoError(t, f.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", ids[0]).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := dbtest.User(t, f.db, "tatenda")
	b := dbtest.User(t, f.db, "nyasha")
	stranger := dbtest.User(t, f.db, "stranger")
	conv := f.conversation(t, a.ID, b.ID, nil)

	tests := []struct {
		name        string
		in          AppendInput
		wantErr     error
		wantBody    string
		attachments int
	}{
		{name: "empty body no attachments", in: AppendInput{Body: ""}, wantErr: apperrors.ErrEmptyMessage},
		{name: "whitespace only", in: AppendInput{Body: "   \n\t"}, wantErr: apperrors.ErrEmptyMessage},
		{name: "body of 2001", in: AppendInput{Body: strings.Repeat("a", 2001)}, wantErr: apperrors.ErrMessageTooLong},
		{name: "body of 2000", in: AppendInput{Body: strings.Repeat("a", 2000)}, wantBody: strings.Repeat("a", 2000)},
		{name: "multibyte counted by rune", in: AppendInput{Body: strings.Repeat("ü", 2000)}, wantBody: strings.Repeat("ü", 2000)},
		{name: "attachment only", in: AppendInput{Attachments: []string{"https://res.cloudinary.com/demo/image/upload/v1/a.jpg"}}, attachments: 1},
		{name: "bad attachment", in: AppendInput{Body: "hi", Attachments: []string{"not a url"}}, wantErr: apperrors.ErrInvalidAttachment},
		{name: "trims body", in: AppendInput{Body: "  Hello  "}, wantBody: "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.ConversationID, in.SenderID, in.ReceiverID = conv.ID, a.ID, b.ID
			msg, err := f.messages.Append(ctx, in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, msg.Body)
			assert.Len(t, msg.Attachments, tt.attachments)
		})
	}

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := f.messages.Append(ctx, AppendInput{ConversationID: uuid.New(), SenderID: a.ID, ReceiverID: b.ID, Body: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("sender outside conversation", func(t *testing.T) {
		_, err := f.messages.Append(ctx, AppendInput{ConversationID: conv.ID, SenderID: stranger.ID, ReceiverID: b.ID, Body: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrParticipantMismatch)
	})

	t.Run("sender equals receiver", func(t *testing.T) {
		_, err := f.messages.Append(ctx, AppendInput{ConversationID: conv.ID, SenderID: a.ID, ReceiverID: a.ID, Body: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrSelfMessage)
	})
}

func TestAppendUpdatesConversation(t *testing.T) {
	f := newFixture(t)
	a := dbtest.User(t, f.db, "tinashe")
	b := dbtest.User(t, f.db, "vimbai")
	conv := f.conversation(t, a.ID, b.ID, nil)

	f.send(t, conv, a.ID, b.ID, "first")
	last := f.send(t, conv, a.ID, b.ID, "second")

	stored, err := f.conversations.FindDetailed(context.Background(), conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageID)
	assert.Equal(t, last.ID, *stored.LastMessageID)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, "second", stored.LastMessage.Body)
	require.NotNil(t, stored.LastMessageAt)
	assert.True(t, stored.LastMessageAt.Equal(last.CreatedAt))
	assert.Equal(t, 2, stored.UnreadFor(b.ID))
	assert.Equal(t, 0, stored.UnreadFor(a.ID))
}

func TestConcurrentAppendNoLostUpdates(t *testing.T) {
	for _, backend := range concurrentBackends {
		t.Run(backend.name, func(t *testing.T) {
			testConcurrentAppend(t, newFixtureOn(backend.open(t)))
		})
	}
}

func testConcurrentAppend(t *testing.T, f *fixture) {
	ctx := context.Background()
	recipient := dbtest.User(t, f.db, "recipient")

	t.Run("many senders to one recipient", func(t *testing.T) {
		const senders = 12
		convs := make([]*models.Conversation, senders)
		from := make([]models.User, senders)
		for i := range convs {
			from[i] = dbtest.User(t, f.db, "sender")
			convs[i] = f.conversation(t, from[i].ID, recipient.ID, nil)
		}

		var wg sync.WaitGroup
		for i := range convs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.messages.Append(ctx, AppendInput{
					ConversationID: convs[i].ID, SenderID: from[i].ID, ReceiverID: recipient.ID, Body: "mhoro",
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		total, err := f.conversations.UnreadTotal(ctx, recipient.ID)
		require.NoError(t, err)
		assert.EqualValues(t, senders, total)
	})

	t.Run("many messages into one conversation", func(t *testing.T) {
		sender := dbtest.User(t, f.db, "chatty")
		conv := f.conversation(t, sender.ID, recipient.ID, nil)

		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.messages.Append(ctx, AppendInput{
					ConversationID: conv.ID, SenderID: sender.ID, ReceiverID: recipient.ID, Body: "ping",
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, n, f.unread(t, conv.ID, recipient.ID))
	})
}

func TestListMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := dbtest.User(t, f.db, "kuda")
	b := dbtest.User(t, f.db, "tsitsi")
	conv := f.conversation(t, a.ID, b.ID, nil)

	for i := 0; i < 7; i++ {
		if i%2 == 0 {
			f.send(t, conv, a.ID, b.ID, "from a")
		} else {
			f.send(t, conv, b.ID, a.ID, "from b")
		}
	}

	t.Run("oldest first", func(t *testing.T) {
		msgs, err := f.messages.List(ctx, conv.ID, Pagination{})
		require.NoError(t, err)
		require.Len(t, msgs, 7)
		for i := 1; i < len(msgs); i++ {
			assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	})

	t.Run("latest page first", func(t *testing.T) {
		msgs, err := f.messages.List(ctx, conv.ID, Pagination{Page: Page{Page: 1, PageSize: 3}, Order: "desc"})
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		for i := 1; i < len(msgs); i++ {
			assert.False(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
		}

		all, err := f.messages.List(ctx, conv.ID, Pagination{})
		require.NoError(t, err)
		assert.Equal(t, all[len(all)-1].ID, msgs[0].ID)
	})

	t.Run("pages do not overlap", func(t *testing.T) {
		p1, err := f.messages.List(ctx, conv.ID, Pagination{Page: Page{Page: 1, PageSize: 4}})
		require.NoError(t, err)
		p2, err := f.messages.List(ctx, conv.ID, Pagination{Page: Page{Page: 2, PageSize: 4}})
		require.NoError(t, err)
		assert.Len(t, p1, 4)
		assert.Len(t, p2, 3)
		assert.True(t, p1[3].CreatedAt.Before(p2[0].CreatedAt))
	})
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := dbtest.User(t, f.db, "alice")
	b := dbtest.User(t, f.db, "bongani")
	stranger := dbtest.User(t, f.db, "eve")

	t.Run("hello scenario", func(t *testing.T) {
		conv := f.conversation(t, a.ID, b.ID, nil)
		msg := f.send(t, conv, a.ID, b.ID, "Hello")
		assert.Equal(t, 1, f.unread(t, conv.ID, b.ID))

		receipt, err := f.conversations.MarkRead(ctx, conv.ID, b.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, receipt.Count)
		assert.Equal(t, 0, f.unread(t, conv.ID, b.ID))

		var stored models.Message
		require.NoError(t, f.db.First(&stored, "id = ?", msg.ID).Error)
		assert.True(t, stored.IsRead)
		require.NotNil(t, stored.ReadAt)
	})

	t.Run("idempotent", func(t *testing.T) {
		conv := f.conversation(t, a.ID, b.ID, nil)
		f.send(t, conv, a.ID, b.ID, "again")

		_, err := f.conversations.MarkRead(ctx, conv.ID, b.ID)
		require.NoError(t, err)
		receipt, err := f.conversations.MarkRead(ctx, conv.ID, b.ID)
		require.NoError(t, err)
		assert.Zero(t, receipt.Count)
		assert.Equal(t, 0, f.unread(t, conv.ID, b.ID))
	})

	t.Run("only flips messages addressed to the reader", func(t *testing.T) {
		conv := f.conversation(t, a.ID, b.ID, nil)
		f.send(t, conv, b.ID, a.ID, "reply")

		_, err := f.conversations.MarkRead(ctx, conv.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, f.unread(t, conv.ID, a.ID))

		var unread int64
		require.NoError(t, f.db.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conv.ID, a.ID, false).
			Count(&unread).Error)
		assert.EqualValues(t, 1, unread)
	})

	t.Run("non participant is forbidden", func(t *testing.T) {
		conv := f.conversation(t, a.ID, b.ID, nil)
		_, err := f.conversations.MarkRead(ctx, conv.ID, stranger.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := f.conversations.MarkRead(ctx, uuid.New(), a.ID)
		assert.ErrorIs(t, err, apperrors.ErrConversationNotFound)
	})
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := dbtest.User(t, f.db, "me")
	p1 := dbtest.User(t, f.db, "peer1")
	p2 := dbtest.User(t, f.db, "peer2")
	other := dbtest.User(t, f.db, "other")
	product := dbtest.Product(t, f.db, p2.ID, "Solar lantern")

	c1 := f.conversation(t, me.ID, p1.ID, nil)
	c2 := f.conversation(t, p2.ID, me.ID, &product.ID)
	f.conversation(t, p1.ID, other.ID, nil)

	f.send(t, c1, p1.ID, me.ID, "older")
	f.send(t, c2, p2.ID, me.ID, "newer")

	convs, err := f.conversations.ListForUser(ctx, me.ID, Page{})
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, c2.ID, convs[0].ID)
	assert.Equal(t, c1.ID, convs[1].ID)

	require.NotNil(t, convs[0].Product)
	assert.Equal(t, "Solar lantern", convs[0].Product.Title)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "newer", convs[0].LastMessage.Body)
	assert.Equal(t, 1, convs[0].UnreadFor(me.ID))
	assert.Equal(t, "peer2", convs[0].ParticipantUser(p2.ID).FullName)

	f.send(t, c1, p1.ID, me.ID, "newest")
	convs, err = f.conversations.ListForUser(ctx, me.ID, Page{})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, convs[0].ID)

	total, err := f.conversations.UnreadTotal(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := dbtest.User(t, f.db, "blocker")
	b := dbtest.User(t, f.db, "blocked")

	blocked, err := f.blocks.IsBlockedEitherWay(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	first, err := f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)
	second, err := f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	for _, pair := range [][2]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
		blocked, err := f.blocks.IsBlockedEitherWay(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}

	list, err := f.blocks.ListBlocked(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "blocked", list[0].Blocked.FullName)

	require.NoError(t, f.blocks.Unblock(ctx, a.ID, b.ID))
	require.NoError(t, f.blocks.Unblock(ctx, a.ID, b.ID))
	blocked, err = f.blocks.IsBlockedEitherWay(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	_, err = f.blocks.Block(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfBlock)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	active := dbtest.User(t, f.db, "active")
	inactive := dbtest.InactiveUser(t, f.db, "gone")
	product := dbtest.Product(t, f.db, active.ID, "Maize meal 10kg")

	u, err := f.directory.FindActiveUser(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, u.ID)

	_, err = f.directory.FindActiveUser(ctx, inactive.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = f.directory.FindActiveUser(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	p, err := f.directory.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maize meal 10kg", p.Title)
	_, err = f.directory.FindProduct(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestStoreErrClassification(t *testing.T) {
	assert.ErrorIs(t, storeErr("op", gorm.ErrRecordNotFound, nil), apperrors.ErrNotFound)
	assert.ErrorIs(t, storeErr("op", gorm.ErrInvalidDB, nil), apperrors.ErrStoreUnavailable)
	assert.ErrorIs(t, storeErr("op", apperrors.ErrBlocked, nil), apperrors.ErrBlocked)
	assert.NoError(t, storeErr("op", nil, nil))
}
