package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/zeusync/carview/internal/config"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/injector"
	"github.com/zeusync/carview/internal/sim"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	scriptPath := flag.String("script", "-", "drive script, - for stdin")
	flag.Parse()

	if err := run(*configPath, *scriptPath, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "drive:", err)
		os.Exit(1)
	}
}

func run(configPath, scriptPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	script, err := readScript(scriptPath)
	if err != nil {
		return err
	}

	h, cleanup, err := injector.InitializeHeadless(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sess := h.Sessions.Create(script.Car)
	defer func() { _ = h.Sessions.Remove(sess.ID()) }()

	h.Logger.Info("Driving",
		log.String("session", sess.ID().String()),
		log.Int("ticks", script.Ticks()),
		log.Float64("dt", script.DeltaTime),
	)

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	ctx := context.Background()
	err = script.Play(sess, func(f sim.Frame) error {
		if err := h.Sink.Record(ctx, sess.ID().String(), f); err != nil {
			h.Logger.Warn("Failed to record frame", log.Uint64("seq", f.Seq), log.Error(err))
		}
		return enc.Encode(f)
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

func readScript(path string) (*Script, error) {
	if path == "-" {
		return ParseScript(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseScript(f)
}
