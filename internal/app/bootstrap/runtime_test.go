package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gp-clinic-console/internal/config"
	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

func TestBuildMemoryWithoutRedis(t *testing.T) {
	cfg := config.Config{StoreBackend: config.BackendMemory, AllowedEmailDomains: []string{"monash.edu"}}

	rt, err := Build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Nil(t, rt.Redis)
	assert.IsType(t, &store.MemoryBackend{}, rt.Backend)
	assert.Equal(t, []string{"monash.edu"}, rt.Accounts.AllowedDomains())
	require.NotNil(t, rt.Appointments)
	require.NotNil(t, rt.Admin)
	require.NotNil(t, rt.Reports)
}

func TestBuildCSVWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{
		StoreBackend: config.BackendCSV,
		DataDir:      t.TempDir(),
		RedisAddr:    mr.Addr(),
		LockTTL:      time.Second,
	}

	rt, err := Build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, rt.Redis)
	assert.NoError(t, rt.Close())
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Config{StoreBackend: config.BackendMemory, RedisAddr: addr}
	_, err := Build(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}
