package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/synrais/ROLL-GO/pkg/config"
	"github.com/synrais/ROLL-GO/pkg/display"
	"github.com/synrais/ROLL-GO/pkg/history"
	"github.com/synrais/ROLL-GO/pkg/rng"
	"github.com/synrais/ROLL-GO/pkg/server"
	"github.com/synrais/ROLL-GO/pkg/table"
)

// cmdRoll prints the draw and plays it. Playback failures are logged only.
func cmdRoll(ctx context.Context, cfg *config.UserConfig, tbl table.Table, args []string) int {
	gen, err := generatorFor(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN]", err)
		return 1
	}

	sel := tbl.Roll(gen)
	fmt.Println(sel.Message)

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}
	newRunner(cfg, store).Play(ctx, sel, history.SourceCLI)
	return 0
}

// cmdShow holds the number on screen, then plays unless the user cancels.
func cmdShow(ctx context.Context, cfg *config.UserConfig, tbl table.Table, args []string) int {
	gen, err := generatorFor(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN]", err)
		return 1
	}

	sel := tbl.Roll(gen)
	outcome, err := display.Show(ctx, sel, cfg.HoldDuration())
	if err != nil {
		log.Errorf("display: %v", err)
	}

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}
	runner := newRunner(cfg, store)

	if outcome != display.Done {
		log.Printf("Cancelled, not playing")
		runner.Record(sel, history.SourceDisplay, false)
		return 0
	}
	runner.Play(ctx, sel, history.SourceDisplay)
	return 0
}

func cmdServe(ctx context.Context, cfg *config.UserConfig, tbl table.Table) int {
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	srv := server.New(cfg, tbl, rng.New(), newRunner(cfg, store), store)
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN] Serve failed:", err)
		return 1
	}
	return 0
}

func cmdHistory(cfg *config.UserConfig, args []string) int {
	asCSV := false
	limit := 20
	for _, a := range args {
		if a == "-csv" || a == "--csv" {
			asCSV = true
			continue
		}
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "[MAIN] invalid limit %q\n", a)
			return 1
		}
		limit = n
	}

	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "[MAIN]", history.ErrDisabled)
		return 1
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN]", err)
		return 1
	}
	defer store.Close()

	recs, err := store.Recent(limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[MAIN]", err)
		return 1
	}

	if asCSV {
		if err := history.WriteCSV(os.Stdout, recs); err != nil {
			fmt.Fprintln(os.Stderr, "[MAIN]", err)
			return 1
		}
		return 0
	}

	for _, r := range recs {
		played := " "
		if r.Played {
			played = "*"
		}
		fmt.Printf("%4d %s %s %3d %-6s %-24s %s\n", r.ID, r.Time.Format("2006-01-02 15:04:05"),
			played, r.Number, r.Source, r.VideoPath, r.Message)
	}

	st, err := store.Stats()
	if err == nil {
		fmt.Println()
		fmt.Print(st.String())
	}
	return 0
}
