package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"uit-client/internal/config"
	"uit-client/internal/pbs"
	"uit-client/internal/uit"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		modify      func(c *config.Config)
		expectedErr error
		expectErr   bool
	}{
		{
			name:   "Valid remote config",
			modify: func(c *config.Config) { c.Token = "abc"; c.System = "narwhal" },
		},
		{
			name:   "Upper case system",
			modify: func(c *config.Config) { c.Token = "abc"; c.System = "ONYX" },
		},
		{
			name:   "Login node instead of system",
			modify: func(c *config.Config) { c.Token = "abc"; c.LoginNode = "onyx02" },
		},
		{
			name:   "Local needs no token",
			modify: func(c *config.Config) { c.Local = true },
		},
		{
			name:        "Missing token",
			modify:      func(c *config.Config) { c.System = "onyx" },
			expectedErr: config.ErrTokenRequired,
		},
		{
			name:        "Missing target",
			modify:      func(c *config.Config) { c.Token = "abc" },
			expectedErr: config.ErrTargetRequired,
		},
		{
			name:        "Both targets",
			modify:      func(c *config.Config) { c.Token = "abc"; c.System = "onyx"; c.LoginNode = "onyx01" },
			expectedErr: config.ErrTargetConflict,
		},
		{
			name:      "Unknown system",
			modify:    func(c *config.Config) { c.Token = "abc"; c.System = "cray1" },
			expectErr: true,
		},
		{
			name:      "Negative retries",
			modify:    func(c *config.Config) { c.Local = true; c.Retries = -1 },
			expectErr: true,
		},
		{
			name:      "Malformed login node",
			modify:    func(c *config.Config) { c.Token = "abc"; c.LoginNode = "onyx01; rm -rf" },
			expectErr: true,
		},
		{
			name:   "Fully qualified login node",
			modify: func(c *config.Config) { c.Token = "abc"; c.LoginNode = "narwhal02.navydsrc.hpc.mil" },
		},
		{
			name:      "Malformed api url",
			modify:    func(c *config.Config) { c.Local = true; c.APIURL = "not a url" },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := config.Default()
			tc.modify(c)

			err := c.Validate()
			switch {
			case tc.expectedErr != nil:
				assert.ErrorIs(t, err, tc.expectedErr)
			case tc.expectErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_UnknownSystemListsOptions(t *testing.T) {
	c := config.Default()
	c.Token = "abc"
	c.System = "cray1"

	err := c.Validate()
	var validationErr *pbs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ElementsMatch(t, pbs.Systems(), validationErr.Options)
}

func TestDefault(t *testing.T) {
	c := config.Default()
	assert.Equal(t, uit.DefaultAPIURL, c.APIURL)
	assert.Equal(t, uit.DefaultRetryPolicy(), c.RetryPolicy())
	assert.Equal(t, uit.DefaultRequestTimeout, c.RequestTimeout)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token: file-token
system: narwhal
retry_delay: 2s
local_temp_dir: /scratch/tmp
`), 0o600))

	c, err := config.FromFile(path, config.Default(), config.NewConfigLogger())
	require.NoError(t, err)

	assert.Equal(t, "file-token", c.Token)
	assert.Equal(t, "narwhal", c.System)
	assert.Equal(t, 2*time.Second, c.RetryDelay)
	assert.Equal(t, "/scratch/tmp", c.LocalTempDir)
	assert.Equal(t, uit.DefaultRetries, c.Retries)
	assert.Equal(t, uit.DefaultAPIURL, c.APIURL)
}

func TestFromFile_Missing(t *testing.T) {
	base := config.Default()
	c, err := config.FromFile(filepath.Join(t.TempDir(), "missing.yaml"), base, config.NewConfigLogger())
	assert.Error(t, err)
	assert.Equal(t, base, c)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("UIT_TOKEN", "env-token")
	t.Setenv("UIT_LOGIN_NODE", "onyx03")
	t.Setenv("UIT_RETRIES", "4")
	t.Setenv("UIT_REQUEST_TIMEOUT", "30s")
	t.Setenv("UIT_RETRY_DELAY", "soon")

	logger := config.NewConfigLogger()
	c, err := config.FromEnv(config.Default(), logger)
	require.NoError(t, err)

	assert.Equal(t, "env-token", c.Token)
	assert.Equal(t, "onyx03", c.LoginNode)
	assert.Equal(t, 4, c.Retries)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, uit.DefaultRetryDelay, c.RetryDelay)

	// missing .env plus the bad duration
	assert.Equal(t, 2, logger.Len())
	logger.FlushToZap(zaptest.NewLogger(t))
	assert.Equal(t, 0, logger.Len())
}

func TestFromFlags(t *testing.T) {
	flags := pflag.NewFlagSet("uitctl", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--retries=0", "--system=carpenter", "--local", "--request_timeout=5s"}))

	base := config.Default()
	base.Token = "kept"

	c, err := config.FromFlags(base, flags)
	require.NoError(t, err)

	assert.Equal(t, 0, c.Retries)
	assert.Equal(t, "carpenter", c.System)
	assert.True(t, c.Local)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, "kept", c.Token)
	assert.Equal(t, uit.DefaultRetryDelay, c.RetryDelay)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: file-token\nsystem: onyx\n"), 0o600))
	t.Setenv("UIT_SYSTEM", "narwhal")

	flags := pflag.NewFlagSet("uitctl", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--token=flag-token"}))

	c, logger := config.Load(path, flags)
	assert.Equal(t, "flag-token", c.Token)
	assert.Equal(t, "narwhal", c.System)
	assert.NoError(t, c.Validate())
	logger.FlushToZap(zaptest.NewLogger(t))
}
