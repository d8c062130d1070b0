package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/synrais/ROLL-GO/pkg/config"
	"github.com/synrais/ROLL-GO/pkg/history"
	"github.com/synrais/ROLL-GO/pkg/logging"
	"github.com/synrais/ROLL-GO/pkg/player"
	"github.com/synrais/ROLL-GO/pkg/rng"
	"github.com/synrais/ROLL-GO/pkg/run"
	"github.com/synrais/ROLL-GO/pkg/table"
)

var log = logging.New("MAIN")

const usage = `Usage: ROLL <command> [args]

  -roll [N]              draw a number (or use N) and play its video
  -show [N]              show the number full screen, then play
  -serve                 serve /generate over HTTP
  -history [-csv] [max]  list recorded draws
  -table                 print the range table
  -config                print the loaded configuration

A bare number is the same as -roll N.`

// dumpConfig shows the loaded config as JSON.
func dumpConfig(cfg *config.UserConfig) {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		log.Errorf("Failed to dump config: %v", err)
		return
	}
	fmt.Println(string(out))
}

func ensureIni() string {
	iniPath, _, err := config.IniPath("ROLL")
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN] Failed to locate INI:", err)
		os.Exit(1)
	}

	created, err := config.EnsureIni(iniPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN] Failed to create default INI:", err)
		os.Exit(1)
	}
	if created {
		log.Printf("Generated default INI at %s", iniPath)
	} else {
		log.Debugf("Found INI at %s", iniPath)
	}
	return iniPath
}

// normalizeArgs maps the bare "ROLL" and "ROLL N" forms onto -roll.
func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"-roll"}
	}
	if _, err := strconv.Atoi(args[0]); err == nil {
		return append([]string{"-roll"}, args...)
	}
	return args
}

// generatorFor returns a Fixed generator when args carries an override.
func generatorFor(args []string) (rng.Generator, error) {
	if len(args) == 0 {
		return rng.New(), nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", args[0])
	}
	return rng.Fixed(n), nil
}

func openHistory(cfg *config.UserConfig) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Errorf("history unavailable: %v", err)
		return nil
	}
	return store
}

func newRunner(cfg *config.UserConfig, store *history.Store) *run.Runner {
	r := &run.Runner{
		Player:         player.New(cfg.Player),
		NowPlayingFile: config.NowPlayingFile,
	}
	if store != nil {
		r.History = store
	}
	return r
}

func main() {
	args := normalizeArgs(os.Args[1:])
	if args[0] == "-h" || args[0] == "--help" || args[0] == "-help" {
		fmt.Println(usage)
		return
	}

	// Ensure INI exists or create one from embedded defaults
	ensureIni()

	cfg, err := config.LoadUserConfig("ROLL", config.NewDefaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN] Config load error:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)
	defer logging.Close()
	log.Debugf("Loaded config from %s", cfg.IniPath)

	tbl, err := table.FromConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN] Range table error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := args[0]
	args = args[1:]

	code := 0
	switch cmd {
	case "-roll":
		code = cmdRoll(ctx, cfg, tbl, args)
	case "-show":
		code = cmdShow(ctx, cfg, tbl, args)
	case "-serve":
		code = cmdServe(ctx, cfg, tbl)
	case "-history":
		code = cmdHistory(cfg, args)
	case "-table":
		fmt.Print(tbl.String())
	case "-config":
		dumpConfig(cfg)
	default:
		fmt.Printf("Unknown command: %s\n\n%s\n", cmd, usage)
		code = 1
	}

	if code != 0 {
		stop()
		logging.Close()
		os.Exit(code)
	}
}
