package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreGetSet(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore[entry](client, "auth:", 30*time.Second)

	mock.ExpectSet("auth:u1", []byte(`{"Name":"a","Count":2}`), 30*time.Second).SetVal("OK")
	require.NoError(t, store.Set(ctx, "u1", entry{Name: "a", Count: 2}))

	mock.ExpectGet("auth:u1").SetVal(`{"Name":"a","Count":2}`)
	got, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entry{Name: "a", Count: 2}, got)

	mock.ExpectGet("auth:missing").RedisNil()
	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore[entry](client, "auth:", time.Second)

	mock.ExpectGet("auth:u1").SetErr(errors.New("connection refused"))
	_, ok, err := store.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestRedisStoreClearScansPrefix(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore[entry](client, "auth:", time.Second)

	mock.ExpectScan(0, "auth:*", 100).SetVal([]string{"auth:1", "auth:2"}, 7)
	mock.ExpectDel("auth:1", "auth:2").SetVal(2)
	mock.ExpectScan(7, "auth:*", 100).SetVal([]string{}, 0)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreInvalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore[entry](client, "auth:", time.Second)

	mock.ExpectDel("auth:u1").SetVal(1)
	require.NoError(t, store.Invalidate(context.Background(), "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerClaim(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(client, "ledger:", time.Hour)

	mock.ExpectSetNX("ledger:cancel:sub_1", 1, time.Hour).SetVal(true)
	mock.ExpectSetNX("ledger:cancel:sub_1", 1, time.Hour).SetVal(false)

	first, err := ledger.Claim(ctx, "cancel:sub_1")
	require.NoError(t, err)
	second, err := ledger.Claim(ctx, "cancel:sub_1")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(client, "ledger:", time.Hour)

	mock.ExpectDel("ledger:cancel:sub_1").SetVal(1)
	require.NoError(t, ledger.Release(context.Background(), "cancel:sub_1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
