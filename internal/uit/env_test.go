package uit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"uit-client/internal/uit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	connected bool
	values    map[string]string
	err       error
	calls     atomic.Int32
	commands  []string
	mu        sync.Mutex
}

func (f *fakeCaller) Connected() bool {
	return f.connected
}

func (f *fakeCaller) Call(_ context.Context, command, workingDir string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.commands = append(f.commands, command+"@"+workingDir)
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	return f.values[command[len("echo $"):]] + "\n", nil
}

func TestEnv_Get(t *testing.T) {
	caller := &fakeCaller{connected: true, values: map[string]string{"HOME": "/p/home/user1"}}
	env := uit.NewEnv(caller)

	for range 3 {
		value, err := env.Get(context.Background(), "HOME")
		require.NoError(t, err)
		assert.Equal(t, "/p/home/user1", value)
	}

	assert.Equal(t, int32(1), caller.calls.Load())
	assert.Equal(t, []string{"echo $HOME@."}, caller.commands)

	cached, ok := env.Cached("HOME")
	assert.True(t, ok)
	assert.Equal(t, "/p/home/user1", cached)
}

func TestEnv_Refresh(t *testing.T) {
	caller := &fakeCaller{connected: true, values: map[string]string{"WORKDIR": "/p/work1/user1"}}
	env := uit.NewEnv(caller)

	_, err := env.Get(context.Background(), "WORKDIR")
	require.NoError(t, err)

	caller.values["WORKDIR"] = "/p/work2/user1"
	value, err := env.Get(context.Background(), "WORKDIR")
	require.NoError(t, err)
	assert.Equal(t, "/p/work1/user1", value)

	value, err = env.Refresh(context.Background(), "WORKDIR")
	require.NoError(t, err)
	assert.Equal(t, "/p/work2/user1", value)
	assert.Equal(t, int32(2), caller.calls.Load())

	value, err = env.Get(context.Background(), "WORKDIR")
	require.NoError(t, err)
	assert.Equal(t, "/p/work2/user1", value)
}

func TestEnv_EmptyValueNotCached(t *testing.T) {
	caller := &fakeCaller{connected: true, values: map[string]string{}}
	env := uit.NewEnv(caller)

	for range 2 {
		value, err := env.Get(context.Background(), "ARCHIVE_HOME")
		require.NoError(t, err)
		assert.Empty(t, value)
	}

	_, ok := env.Cached("ARCHIVE_HOME")
	assert.False(t, ok)
	assert.Equal(t, int32(2), caller.calls.Load())
}

func TestEnv_NotConnected(t *testing.T) {
	caller := &fakeCaller{connected: false}
	env := uit.NewEnv(caller)

	_, err := env.Get(context.Background(), "HOME")
	assert.ErrorIs(t, err, uit.ErrNotConnected)

	_, err = env.Refresh(context.Background(), "HOME")
	assert.ErrorIs(t, err, uit.ErrNotConnected)
	assert.Equal(t, int32(0), caller.calls.Load())
}

func TestEnv_CallError(t *testing.T) {
	callErr := errors.New("exec failed")
	env := uit.NewEnv(&fakeCaller{connected: true, err: callErr})

	_, err := env.Get(context.Background(), "HOME")
	assert.ErrorIs(t, err, callErr)
	_, ok := env.Cached("HOME")
	assert.False(t, ok)
}

func TestEnv_ConcurrentGet(t *testing.T) {
	caller := &fakeCaller{connected: true, values: map[string]string{"HOME": "/p/home/user1"}}
	env := uit.NewEnv(caller)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := env.Get(context.Background(), "HOME")
			assert.NoError(t, err)
			results[i] = value
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "/p/home/user1", r)
	}
	assert.LessOrEqual(t, caller.calls.Load(), int32(len(results)))
}
