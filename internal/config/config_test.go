package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("AISAM_DEFAULT_TOKEN", "shared")

	c, err := LoadClient(nil)
	require.NoError(t, err)
	require.Equal(t, "shared", c.DefaultToken)
	require.Equal(t, "http://localhost:8080/submit", c.SubmitURL())
	require.Equal(t, "http://localhost:8080/check", c.CheckURL())
	require.Equal(t, 40, c.Width)
	require.Equal(t, 20, c.Height)
	require.Equal(t, 6*time.Second, c.PollInterval)
	require.Equal(t, 90*time.Second, c.Timeout)
	require.Equal(t, byte('\n'), c.EOL())
	require.Equal(t, "info", c.LogLevel)
}

func TestLoadClient_FlagsBeatEnvironment(t *testing.T) {
	t.Setenv("AISAM_DEFAULT_TOKEN", "from-env")
	t.Setenv("AISAM_SERVER", "http://env.example")
	t.Setenv("AISAM_WIDTH", "80")

	c, err := LoadClient([]string{
		"--env", "",
		"-t", "from-flag",
		"--poll", "2s",
		"--atascii",
	})
	require.NoError(t, err)
	require.Equal(t, "from-flag", c.DefaultToken)
	require.Equal(t, "http://env.example/submit", c.SubmitURL())
	require.Equal(t, 80, c.Width)
	require.Equal(t, 2*time.Second, c.PollInterval)
	require.Equal(t, byte(0x9B), c.EOL())
}

func TestLoadClient_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.env")
	require.NoError(t, os.WriteFile(path, []byte("AISAM_TEST_FILE_TOKEN=x\nAISAM_SPEECH=espeak\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("AISAM_TEST_FILE_TOKEN")
		_ = os.Unsetenv("AISAM_SPEECH")
	})

	c, err := LoadClient([]string{"-e", path, "-t", "tok"})
	require.NoError(t, err)
	require.Equal(t, "espeak", c.Speech)
	require.Equal(t, "x", os.Getenv("AISAM_TEST_FILE_TOKEN"))
}

func TestLoadClient_ExplicitEnvFileMustExist(t *testing.T) {
	_, err := LoadClient([]string{"-e", noEnvFile(t), "-t", "tok"})
	require.ErrorContains(t, err, "load env file")
}

func TestLoadClient_Invalid(t *testing.T) {
	cases := map[string][]string{
		"no token":   {},
		"bad url":    {"-t", "tok", "--server", "ftp://x"},
		"long token": {"-t", string(make([]byte, 65))},
		"tiny":       {"-t", "tok", "--width", "1"},
		"bad log":    {"-t", "tok", "--log", "loud"},
		"zero poll":  {"-t", "tok", "--poll", "0s"},
		"bad flag":   {"--nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("AISAM_DEFAULT_TOKEN", "")
			_, err := LoadClient(args)
			require.Error(t, err)
		})
	}
}

func TestLoadClient_BadEnvValue(t *testing.T) {
	t.Setenv("AISAM_TIMEOUT", "soon")
	_, err := LoadClient([]string{"-t", "tok"})
	require.ErrorContains(t, err, "AISAM_TIMEOUT")
}

func TestLoadProxy(t *testing.T) {
	t.Setenv("AISAM_DEFAULT_TOKEN", "shared")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AISAM_REDIS_PASSWORD", "hunter2")

	p, err := LoadProxy([]string{"--history", "5", "--redis", "localhost:6379"})
	require.NoError(t, err)
	require.Equal(t, ":8080", p.Addr)
	require.Equal(t, "sk-test", p.APIKey)
	require.Equal(t, 5, p.History)
	require.Equal(t, 7*24*time.Hour, p.Retention)
	require.Equal(t, "@hourly", p.Sweep)
	require.Equal(t, "localhost:6379", p.Redis)
	require.Equal(t, "hunter2", p.RedisPassword)
	require.True(t, p.Metrics)
}

func TestLoadProxy_RequiresKeyAndToken(t *testing.T) {
	t.Setenv("AISAM_DEFAULT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := LoadProxy(nil)
	require.ErrorContains(t, err, "default-token is required")
	require.ErrorContains(t, err, "OPENAI_API_KEY not set")
}
