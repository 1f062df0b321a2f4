package sessionstore

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
)

func createSession(id string) *models.Session {
	income := decimal.NewFromInt(6500)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:    id,
		State: models.StateCollecting,
		Record: models.ApplicantRecord{
			MonthlyIncome: &models.Tagged[decimal.Decimal]{Value: income, Source: models.SourceUserStated, UpdatedTurn: 2},
		},
		History: []models.Message{
			{Role: models.RoleAssistant, Text: "hello", Timestamp: now},
			{Role: models.RoleUser, Text: "I make $6500", TurnIndex: 1, Timestamp: now},
		},
		Turn:      2,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func assertSameSession(t *testing.T, want, got *models.Session) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.Turn, got.Turn)
	assert.Len(t, got.History, len(want.History))
	require.NotNil(t, got.Record.MonthlyIncome)
	assert.True(t, want.Record.MonthlyIncome.Value.Equal(got.Record.MonthlyIncome.Value))
	assert.Equal(t, models.SourceUserStated, got.Record.MonthlyIncome.Source)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.CodeOf(err))

	sess := createSession("s1")
	require.NoError(t, store.Save(ctx, sess))
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assertSameSession(t, sess, got)

	got.Turn = 99
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Turn)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	store := NewMemory(20 * time.Millisecond)
	require.NoError(t, store.Save(context.Background(), createSession("s1")))
	time.Sleep(40 * time.Millisecond)

	_, err := store.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewRedis(client, "loan:session:", 30*time.Minute, logger.NewTestLogger(t))
	require.NoError(t, store.Ping(ctx))

	sess := createSession("abc")
	require.NoError(t, store.Save(ctx, sess))
	assert.True(t, mr.Exists("loan:session:abc"))
	assert.Equal(t, 30*time.Minute, mr.TTL("loan:session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assertSameSession(t, sess, got)

	mr.FastForward(31 * time.Minute)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Delete(ctx, "abc"))
	assert.False(t, mr.Exists("loan:session:abc"))
}

func TestRedis_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("get error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("p:abc").SetErr(stderrors.New("connection refused"))

		_, err := NewRedis(client, "p:", time.Minute, logger.NewNoOpLogger()).Get(ctx, "abc")
		assert.Equal(t, errors.ErrCodeSessionStoreFailed, errors.CodeOf(err))
		assert.True(t, errors.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt payload", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("p:abc").SetVal("{not json")

		_, err := NewRedis(client, "p:", time.Minute, logger.NewNoOpLogger()).Get(ctx, "abc")
		assert.Equal(t, errors.ErrCodeSessionStoreFailed, errors.CodeOf(err))
	})

	t.Run("save error", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		err := NewRedis(client, "p:", time.Minute, logger.NewNoOpLogger()).Save(ctx, createSession("abc"))
		assert.Equal(t, errors.ErrCodeSessionStoreFailed, errors.CodeOf(err))
	})
}

func TestNew(t *testing.T) {
	cfg := &config.Config{}
	cfg.Session.Store = "memory"
	store, err := New(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	cfg.Session.Store = "redis"
	cfg.Database.Redis.Address = "localhost:6379"
	store, err = New(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, store)

	cfg.Session.Store = "etcd"
	_, err = New(cfg, logger.NewNoOpLogger())
	assert.Error(t, err)
}
