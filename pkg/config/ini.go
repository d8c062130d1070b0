package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/synrais/ROLL-GO/pkg/assets"
)

// IniPath returns the ini location: $ROLL_CONFIG, else <name>.ini next to the
// executable (or $ROLL_APP_PATH).
func IniPath(name string) (iniPath string, appPath string, err error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", "", err
	}
	if p := os.Getenv(UserAppPathEnv); p != "" {
		exePath = p
	}
	iniPath = os.Getenv(UserConfigEnv)
	if iniPath == "" {
		iniPath = filepath.Join(filepath.Dir(exePath), name+".ini")
	}
	return iniPath, exePath, nil
}

// EnsureIni writes the embedded default ini to path if nothing is there yet.
// It reports whether a new file was created.
func EnsureIni(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, assets.DefaultIni, 0644); err != nil {
		return false, err
	}
	return true, nil
}

// LoadEnvFiles loads .env from the working directory and from next to the
// executable. Variables already set in the environment win.
func LoadEnvFiles(appPath string) {
	candidates := []string{EnvFileName}
	if appPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(appPath), EnvFileName))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// LoadUserConfig loads ROLL.ini into a UserConfig, applying defaults.
func LoadUserConfig(name string, defaultConfig *UserConfig) (*UserConfig, error) {
	// .env may set ROLL_CONFIG, so resolve the path again afterwards
	if _, appPath, err := IniPath(name); err == nil {
		LoadEnvFiles(appPath)
	}

	iniPath, appPath, err := IniPath(name)
	if err != nil {
		return defaultConfig, err
	}
	defaultConfig.AppPath = appPath
	defaultConfig.IniPath = iniPath

	return LoadFile(iniPath, defaultConfig)
}

// LoadFile parses the ini at path on top of defaultConfig.
func LoadFile(path string, defaultConfig *UserConfig) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultConfig, err
	}
	return Parse(data, defaultConfig)
}

// Parse maps ini source bytes on top of defaultConfig. Section and key names
// are case-insensitive.
func Parse(data []byte, defaultConfig *UserConfig) (*UserConfig, error) {
	if defaultConfig.Ranges == nil {
		defaultConfig.Ranges = make(map[string]RangeConfig)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:  true,
		AllowShadows: true,
	}, data)
	if err != nil {
		return defaultConfig, err
	}

	if err := cfg.MapTo(defaultConfig); err != nil {
		return defaultConfig, err
	}

	var trimmed []string
	for _, a := range defaultConfig.Player.Args {
		if a = strings.TrimSpace(a); a != "" {
			trimmed = append(trimmed, a)
		}
	}
	defaultConfig.Player.Args = trimmed

	var origins []string
	for _, o := range defaultConfig.Server.CorsOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	defaultConfig.Server.CorsOrigins = origins

	// [range.<name>] sections
	for _, section := range cfg.Sections() {
		secName := section.Name()
		if !strings.HasPrefix(secName, "range.") {
			continue
		}
		key := strings.TrimPrefix(secName, "range.")
		if !section.HasKey("lo") || !section.HasKey("hi") {
			return defaultConfig, fmt.Errorf("section [%s]: lo and hi are required", secName)
		}
		var rc RangeConfig
		if err := section.MapTo(&rc); err != nil {
			return defaultConfig, fmt.Errorf("section [%s]: %w", secName, err)
		}
		defaultConfig.Ranges[key] = rc
	}

	if defaultConfig.Roll.Max < defaultConfig.Roll.Min {
		return defaultConfig, errors.New("[roll] max must not be less than min")
	}

	return defaultConfig, nil
}
