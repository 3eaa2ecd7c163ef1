package theme

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDetectDefault(t *testing.T) {
	assert.Equal(t, DefaultPalette(), DetectIn(t.TempDir(), noEnv))
}

func TestDetectAlacritty(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".config", "alacritty", "alacritty.toml"), `
[colors.primary]
background = "0x1d1f21"
foreground = "#C5C8C6"

[colors.normal]
green = "#b5bd68"
`)

	p := DetectIn(home, noEnv)
	assert.Equal(t, "#1d1f21", p.BG)
	assert.Equal(t, "#c5c8c6", p.FG)
	assert.Equal(t, "#626463", p.Muted)
	assert.Equal(t, "#b5bd68", p.Accent)
	assert.Equal(t, DefaultPalette().Error, p.Error)
}

func TestDetectKitty(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".config", "kitty", "kitty.conf"), `
# theme
background #000
foreground #ffffff
selection_background #333333
color1 #ff0000
`)

	p := DetectIn(home, noEnv)
	assert.Equal(t, "#000000", p.BG)
	assert.Equal(t, "#ffffff", p.FG)
	assert.Equal(t, "#333333", p.AccentBg)
	assert.Equal(t, "#ff0000", p.Error)
}

func TestDetectFoot(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".config", "foot", "foot.ini"), `
[colors]
background=000000
foreground=ffffff
regular2=00ff00
`)

	p := DetectIn(home, noEnv)
	assert.Equal(t, "#000000", p.BG)
	assert.Equal(t, "#00ff00", p.Accent)
	assert.Equal(t, "#262626", p.AccentBg)
}

func TestDetectSkipsIncompleteConfig(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".config", "alacritty", "alacritty.toml"), "[colors.primary]\nbackground = \"#000000\"\n")
	writeFile(t, filepath.Join(home, ".config", "kitty", "kitty.conf"), "background #111111\nforeground #eeeeee\n")

	assert.Equal(t, "#111111", DetectIn(home, noEnv).BG)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"ABB_TUI_ACCENT": "abc",
		"ABB_TUI_ERROR":  "0xFF00FF",
	}
	p := DetectIn(t.TempDir(), func(k string) string { return env[k] })
	assert.Equal(t, "#aabbcc", p.Accent)
	assert.Equal(t, "#ff00ff", p.Error)
	assert.Equal(t, DefaultPalette().FG, p.FG)
}

func TestNormalizeHex(t *testing.T) {
	assert.Equal(t, "#aabbcc", normalizeHex("#ABC"))
	assert.Equal(t, "#102030", normalizeHex(" 0x102030 "))
	assert.Equal(t, "#notacolor", normalizeHex("notacolor"))
}

func TestMixColors(t *testing.T) {
	assert.Equal(t, "#000000", MixColors("#000000", "#ffffff", 0))
	assert.Equal(t, "#ffffff", MixColors("#000000", "#ffffff", 1))
	assert.Equal(t, "#7f7f7f", MixColors("#000000", "#ffffff", 0.5))
	assert.Equal(t, "#zz", MixColors("zz", "#ffffff", 0.5))
}

func TestWatcherRefreshes(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan struct{}, 1)
	w, err := watchPaths([]string{dir, filepath.Join(dir, "missing")}, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "kitty.conf"), "background #000000\n")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire")
	}
	w.Stop()
}
