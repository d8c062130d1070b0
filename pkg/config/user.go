package config

import "time"

// --- Config Structs ---

type RollConfig struct {
	Min int `ini:"min,omitempty"`
	Max int `ini:"max,omitempty"`
}

// RangeConfig is one [range.<name>] section. Message may contain {n}.
type RangeConfig struct {
	Lo      int    `ini:"lo"`
	Hi      int    `ini:"hi"`
	Video   string `ini:"video,omitempty"`
	Message string `ini:"message,omitempty"`
}

type PlayerConfig struct {
	Binary string   `ini:"binary,omitempty"`
	Args   []string `ini:"args,omitempty" delim:" "`
}

type DisplayConfig struct {
	Hold float64 `ini:"hold,omitempty"`
}

type ServerConfig struct {
	Listen      string   `ini:"listen,omitempty"`
	AssetsDir   string   `ini:"assets_dir,omitempty"`
	StaticDir   string   `ini:"static_dir,omitempty"`
	Play        bool     `ini:"play,omitempty"`
	Mdns        bool     `ini:"mdns,omitempty"`
	CorsOrigins []string `ini:"cors_origins,omitempty" delim:","`
}

type HistoryConfig struct {
	Enabled bool   `ini:"enabled,omitempty"`
	Path    string `ini:"path,omitempty"`
}

type LogConfig struct {
	File       string `ini:"file,omitempty"`
	MaxSizeMB  int    `ini:"max_size_mb,omitempty"`
	MaxBackups int    `ini:"max_backups,omitempty"`
	MaxAgeDays int    `ini:"max_age_days,omitempty"`
	Debug      bool   `ini:"debug,omitempty"`
}

// UserConfig: root config struct for ROLL
type UserConfig struct {
	AppPath string
	IniPath string
	Roll    RollConfig             `ini:"roll,omitempty"`
	Player  PlayerConfig           `ini:"player,omitempty"`
	Display DisplayConfig          `ini:"display,omitempty"`
	Server  ServerConfig           `ini:"server,omitempty"`
	History HistoryConfig          `ini:"history,omitempty"`
	Log     LogConfig              `ini:"log,omitempty"`
	Ranges  map[string]RangeConfig `ini:"-"`
}

// HoldDuration returns the display hold as a time.Duration.
func (c *UserConfig) HoldDuration() time.Duration {
	if c.Display.Hold <= 0 {
		return DefaultHold
	}
	return time.Duration(c.Display.Hold * float64(time.Second))
}

// --- Default Config Constructor ---

func NewDefaultConfig() *UserConfig {
	return &UserConfig{
		Roll: RollConfig{
			Min: 1,
			Max: 11,
		},
		Player: PlayerConfig{
			Binary: DefaultPlayer,
			Args:   append([]string(nil), DefaultPlayerArgs...),
		},
		Display: DisplayConfig{
			Hold: DefaultHold.Seconds(),
		},
		Server: ServerConfig{
			Listen:    DefaultListen,
			AssetsDir: "assets",
			StaticDir: "static",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    HistoryDbFile,
		},
		Log: LogConfig{
			MaxSizeMB:  5,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Ranges: make(map[string]RangeConfig),
	}
}
