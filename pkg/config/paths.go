package config

import "time"

const UserConfigEnv = "ROLL_CONFIG"
const UserAppPathEnv = "ROLL_APP_PATH"

const IniFileName = "ROLL.ini"
const EnvFileName = ".env"

const TempFolder = "/tmp"

const HistoryDbFile = TempFolder + "/ROLL_history.db"
const NowPlayingFile = TempFolder + "/Now_Playing.txt"

const DefaultListen = "127.0.0.1:8080"
const DefaultHold = 2 * time.Second

const MdnsService = "_roll._tcp"

const DefaultPlayer = "mpv"

// DefaultPlayerArgs are passed before the media path.
var DefaultPlayerArgs = []string{
	"--fullscreen",
	"--no-terminal",

	"--vo=gpu-next",
	"--gpu-context=x11egl",
	"--hwdec=vaapi",

	"--audio-device=auto",
	"--audio-channels=stereo",
	"--volume-max=200",
}
