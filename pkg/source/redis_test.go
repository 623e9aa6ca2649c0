package source_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/pkg/source"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func TestRedisSource_Fetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("version key", func(t *testing.T) {
		t.Parallel()
		client := new(MockRedisClient)
		client.On("Get", mock.Anything, "devices:version").Return("42", nil)
		client.On("Get", mock.Anything, "devices").Return("blob", nil).Once()

		src, err := source.NewRedisSource(client, "devices", "devices:version")
		require.NoError(t, err)

		p, err := src.Fetch(ctx, "")
		require.NoError(t, err)
		body, _ := io.ReadAll(p.Body)
		assert.Equal(t, "blob", string(body))
		assert.Equal(t, "version:42", p.Fingerprint)

		_, err = src.Fetch(ctx, p.Fingerprint)
		assert.ErrorIs(t, err, source.ErrNotModified)
		client.AssertExpectations(t)
	})

	t.Run("content digest without version key", func(t *testing.T) {
		t.Parallel()
		client := new(MockRedisClient)
		client.On("Get", mock.Anything, "devices").Return("blob", nil)

		src, err := source.NewRedisSource(client, "devices", "")
		require.NoError(t, err)

		sum := sha256.Sum256([]byte("blob"))
		fp := "sha256:" + hex.EncodeToString(sum[:])

		p, err := src.Fetch(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, fp, p.Fingerprint)
		assert.Equal(t, int64(4), p.Size)

		_, err = src.Fetch(ctx, fp)
		assert.ErrorIs(t, err, source.ErrNotModified)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		client := new(MockRedisClient)
		client.On("Get", mock.Anything, "devices").Return("", redis.Nil)

		src, err := source.NewRedisSource(client, "devices", "")
		require.NoError(t, err)
		_, err = src.Fetch(ctx, "")
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("connection error", func(t *testing.T) {
		t.Parallel()
		client := new(MockRedisClient)
		client.On("Get", mock.Anything, "devices").Return("", errors.New("dial tcp: connection refused"))

		src, err := source.NewRedisSource(client, "devices", "")
		require.NoError(t, err)
		_, err = src.Fetch(ctx, "")
		assert.ErrorIs(t, err, source.ErrUnreachable)
	})
}

func TestNewRedisSource_Validation(t *testing.T) {
	t.Parallel()

	_, err := source.NewRedisSource(nil, "devices", "")
	assert.ErrorIs(t, err, source.ErrInvalidConfig)

	_, err = source.NewRedisSource(new(MockRedisClient), "", "")
	assert.ErrorIs(t, err, source.ErrInvalidConfig)
}
