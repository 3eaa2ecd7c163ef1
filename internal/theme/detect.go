package theme

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
)

// EnvPrefix prefixes the palette override variables, e.g. ABB_TUI_ACCENT.
const EnvPrefix = "ABB_TUI_"

var (
	longHex  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	shortHex = regexp.MustCompile(`^#[0-9a-fA-F]{3}$`)
)

// source is one terminal config location and its parser.
type source struct {
	rel   []string
	parse func(path string) (Palette, bool)
}

var sources = []source{
	{rel: []string{".config", "alacritty", "alacritty.toml"}, parse: parseAlacrittyTOML},
	{rel: []string{".alacritty.toml"}, parse: parseAlacrittyTOML},
	{rel: []string{".config", "kitty", "kitty.conf"}, parse: parseKittyConf},
	{rel: []string{".config", "foot", "foot.ini"}, parse: parseFootINI},
}

// watchDirs are the directories the theme watcher listens on.
func watchDirs(home string) []string {
	return []string{
		filepath.Join(home, ".config", "alacritty"),
		filepath.Join(home, ".config", "kitty"),
		filepath.Join(home, ".config", "foot"),
	}
}

// Detect loads the palette from the user's terminal config.
func Detect() Palette {
	home, err := os.UserHomeDir()
	if err != nil {
		return applyEnvOverrides(DefaultPalette(), os.Getenv)
	}
	return DetectIn(home, os.Getenv)
}

// DetectIn tries alacritty, kitty then foot under home, falling back to the
// default palette. getenv supplies the ABB_TUI_* overrides.
func DetectIn(home string, getenv func(string) string) Palette {
	for _, s := range sources {
		path := filepath.Join(append([]string{home}, s.rel...)...)
		if p, ok := s.parse(path); ok {
			return applyEnvOverrides(p, getenv)
		}
	}
	return applyEnvOverrides(DefaultPalette(), getenv)
}

type alacrittyConfig struct {
	Colors struct {
		Primary struct {
			Background string `toml:"background"`
			Foreground string `toml:"foreground"`
		} `toml:"primary"`
		Selection struct {
			Background string `toml:"background"`
		} `toml:"selection"`
		Normal struct {
			Green string `toml:"green"`
			Red   string `toml:"red"`
		} `toml:"normal"`
	} `toml:"colors"`
}

func parseAlacrittyTOML(path string) (Palette, bool) {
	var cfg alacrittyConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Palette{}, false
	}

	c := cfg.Colors
	if c.Primary.Background == "" || c.Primary.Foreground == "" {
		return Palette{}, false
	}

	p := fromBase(c.Primary.Background, c.Primary.Foreground, c.Selection.Background)
	if c.Normal.Green != "" {
		p.Accent = normalizeHex(c.Normal.Green)
	}
	if c.Normal.Red != "" {
		p.Error = normalizeHex(c.Normal.Red)
	}
	return p, true
}

func parseKittyConf(path string) (Palette, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Palette{}, false
	}

	var bg, fg, sel, green, red string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "background":
			bg = fields[1]
		case "foreground":
			fg = fields[1]
		case "selection_background":
			sel = fields[1]
		case "color2":
			green = fields[1]
		case "color1":
			red = fields[1]
		}
	}
	if bg == "" || fg == "" {
		return Palette{}, false
	}

	p := fromBase(bg, fg, sel)
	if green != "" {
		p.Accent = normalizeHex(green)
	}
	if red != "" {
		p.Error = normalizeHex(red)
	}
	return p, true
}

func parseFootINI(path string) (Palette, bool) {
	cfg, err := ini.Load(path)
	if err != nil {
		return Palette{}, false
	}

	colors := cfg.Section("colors")
	bg := colors.Key("background").String()
	fg := colors.Key("foreground").String()
	if bg == "" || fg == "" {
		return Palette{}, false
	}

	p := fromBase(bg, fg, colors.Key("selection-background").String())
	if green := colors.Key("regular2").String(); green != "" {
		p.Accent = normalizeHex(green)
	}
	if red := colors.Key("regular1").String(); red != "" {
		p.Error = normalizeHex(red)
	}
	return p, true
}

// fromBase builds a palette from background, foreground and an optional
// selection color. Muted is the foreground at half brightness.
func fromBase(bg, fg, sel string) Palette {
	p := DefaultPalette()
	p.BG = normalizeHex(bg)
	p.FG = normalizeHex(fg)
	p.Muted = dimColor(p.FG, 0.5)
	if sel != "" {
		p.AccentBg = normalizeHex(sel)
	} else {
		p.AccentBg = MixColors(p.BG, p.FG, 0.15)
	}
	return p
}

func applyEnvOverrides(p Palette, getenv func(string) string) Palette {
	for name, field := range map[string]*string{
		"BG":     &p.BG,
		"FG":     &p.FG,
		"MUTED":  &p.Muted,
		"ACCENT": &p.Accent,
		"ERROR":  &p.Error,
	} {
		if v := getenv(EnvPrefix + name); v != "" {
			*field = normalizeHex(v)
		}
	}
	return p
}

// normalizeHex ensures color is in #RRGGBB format
func normalizeHex(color string) string {
	color = strings.TrimSpace(color)
	if strings.HasPrefix(color, "0x") || strings.HasPrefix(color, "0X") {
		color = "#" + color[2:]
	}
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}

	switch {
	case longHex.MatchString(color):
		return strings.ToLower(color)
	case shortHex.MatchString(color):
		r, g, b := color[1:2], color[2:3], color[3:4]
		return strings.ToLower("#" + r + r + g + g + b + b)
	}
	return color
}

// dimColor reduces the brightness of a hex color
func dimColor(hex string, factor float64) string {
	return MixColors("#000000", hex, factor)
}

// MixColors blends hex1 towards hex2 by t (0 keeps hex1, 1 gives hex2).
func MixColors(hex1, hex2 string, t float64) string {
	hex1, hex2 = normalizeHex(hex1), normalizeHex(hex2)
	if len(hex1) != 7 || len(hex2) != 7 {
		return hex1
	}

	out := []byte{'#'}
	for i := 1; i < 7; i += 2 {
		a, b := float64(hexToByte(hex1[i:i+2])), float64(hexToByte(hex2[i:i+2]))
		out = append(out, byteToHex(byte(a*(1-t)+b*t))...)
	}
	return string(out)
}

func hexToByte(s string) byte {
	var v byte
	for _, c := range strings.ToLower(s) {
		v *= 16
		switch {
		case c >= '0' && c <= '9':
			v += byte(c - '0')
		case c >= 'a' && c <= 'f':
			v += byte(c - 'a' + 10)
		}
	}
	return v
}

func byteToHex(b byte) string {
	const hex = "0123456789abcdef"
	return string([]byte{hex[b>>4], hex[b&0x0f]})
}
