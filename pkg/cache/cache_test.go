package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/statsql/internal/testutil"
)

func TestResultCache_GetSet(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)

	cfg := &Config{Enabled: true, Address: mr.Addr(), Prefix: "test", TTL: time.Minute}
	c := New(logrus.New(), client, cfg)
	ctx := context.Background()

	data, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	require.NoError(t, c.Set(ctx, "abc", []byte(`{"rows":[]}`)))

	data, ok, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"rows":[]}`, string(data))

	// Verify key layout and TTL in Redis
	assert.True(t, mr.Exists("test:result:abc"))
	assert.Equal(t, time.Minute, mr.TTL("test:result:abc"))

	mr.FastForward(2 * time.Minute)

	_, ok, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultCache_Invalidate(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)

	c := New(logrus.New(), client, &Config{Enabled: true, Address: mr.Addr(), TTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "abc", []byte("x")))
	require.NoError(t, c.Invalidate(ctx, "abc"))

	_, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	// invalidating a missing key is not an error
	require.NoError(t, c.Invalidate(ctx, "missing"))
}

func TestResultCache_RedisDown(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)

	c := New(logrus.New(), client, &Config{Enabled: true, Address: mr.Addr(), TTL: time.Hour})
	mr.Close()

	_, _, err := c.Get(context.Background(), "abc")
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "disabled needs nothing", cfg: Config{}},
		{name: "enabled", cfg: Config{Enabled: true, Address: "localhost:6379", TTL: time.Hour}},
		{name: "missing address", cfg: Config{Enabled: true, TTL: time.Hour}, wantErr: ErrAddressRequired},
		{name: "zero ttl", cfg: Config{Enabled: true, Address: "localhost:6379"}, wantErr: ErrInvalidTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(&Config{Address: "redis://localhost:6380/2"})
	defer client.Close()

	assert.Equal(t, "localhost:6380", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)

	plain := NewClient(&Config{Address: "localhost:6379"})
	defer plain.Close()

	assert.Equal(t, "localhost:6379", plain.Options().Addr)
}
