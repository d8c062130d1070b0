package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synrais/ROLL-GO/pkg/assets"
)

func TestParseEmbeddedDefaults(t *testing.T) {
	cfg, err := Parse(assets.DefaultIni, NewDefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Roll.Min)
	assert.Equal(t, 11, cfg.Roll.Max)
	assert.Equal(t, "mpv", cfg.Player.Binary)
	assert.Equal(t, DefaultPlayerArgs, cfg.Player.Args)
	assert.Equal(t, DefaultHold, cfg.HoldDuration())
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.False(t, cfg.Server.Play)
	assert.Equal(t, []string{"*"}, cfg.Server.CorsOrigins)
	assert.True(t, cfg.History.Enabled)

	require.Len(t, cfg.Ranges, 4)
	assert.Equal(t, RangeConfig{Lo: 11, Hi: 11, Video: "assets/video4.mp4", Message: "Jackpot!"}, cfg.Ranges["top"])
}

func TestParseCaseInsensitive(t *testing.T) {
	src := []byte(`
[ROLL]
MIN = 1
Max = 9

[Range.All]
LO = 1
hi = 9
Video = assets/video1.mkv
`)
	cfg, err := Parse(src, NewDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Roll.Max)
	require.Contains(t, cfg.Ranges, "all")
	assert.Equal(t, "assets/video1.mkv", cfg.Ranges["all"].Video)
}

func TestParseOverridesOnlyGivenKeys(t *testing.T) {
	src := []byte(`
[player]
binary = vlc

[display]
hold = 0.5

[history]
enabled = no
`)
	cfg, err := Parse(src, NewDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "vlc", cfg.Player.Binary)
	assert.Equal(t, DefaultPlayerArgs, cfg.Player.Args)
	assert.Equal(t, 500*time.Millisecond, cfg.HoldDuration())
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 11, cfg.Roll.Max)
}

func TestParseErrors(t *testing.T) {
	t.Run("range without bounds", func(t *testing.T) {
		_, err := Parse([]byte("[range.x]\nvideo = a.mp4\n"), NewDefaultConfig())
		assert.Error(t, err)
	})
	t.Run("max below min", func(t *testing.T) {
		_, err := Parse([]byte("[roll]\nmin = 5\nmax = 2\n"), NewDefaultConfig())
		assert.Error(t, err)
	})
}

func TestEnsureIni(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", IniFileName)

	created, err := EnsureIni(path)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, assets.DefaultIni, data)

	created, err = EnsureIni(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoadUserConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.ini")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nlisten = 0.0.0.0:9000\n"), 0644))
	t.Setenv(UserConfigEnv, path)

	cfg, err := LoadUserConfig("ROLL", NewDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, path, cfg.IniPath)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName), []byte("ROLL_TEST_ENV_FILE=loaded\n"), 0644))
	t.Setenv("ROLL_TEST_ENV_FILE", "")
	os.Unsetenv("ROLL_TEST_ENV_FILE")

	LoadEnvFiles(filepath.Join(dir, "ROLL"))
	assert.Equal(t, "loaded", os.Getenv("ROLL_TEST_ENV_FILE"))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, IniFileName)
	require.NoError(t, os.WriteFile(path, []byte("[roll]\nmax = 11\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got *UserConfig
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, NewDefaultConfig, func(cfg *UserConfig, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			got = cfg
			mu.Unlock()
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[roll]\nmax = 20\n"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.Roll.Max == 20
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}
