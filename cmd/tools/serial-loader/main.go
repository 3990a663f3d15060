// cmd/tools/serial-loader/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"policy-monitor/internal/common/config"
	"policy-monitor/internal/common/database"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/serial"
)

// serial-loader pre-provisions serial pool rows. Serials come either
// from a file (one per line) or from a generated prefix/start/count
// range. Existing serials are skipped, so re-running a load is safe.
func main() {
	pool := flag.String("pool", "General", "Target pool bucket (e.g. General, \"Allianz Well\")")
	file := flag.String("file", "", "File with one serial number per line")
	prefix := flag.String("prefix", "", "Generate serials with this prefix instead of reading a file")
	start := flag.Int("start", 1, "First sequence number when generating")
	count := flag.Int("count", 0, "How many serials to generate")
	configPath := flag.String("config", "", "Explicit config file (default: configs/config.yaml discovery)")
	flag.Parse()

	log := logger.NewStructured("info", "console")

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	serials, err := collectSerials(*file, *prefix, *start, *count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(serials) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to load: provide -file or -prefix with -count")
		flag.Usage()
		os.Exit(1)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres connection failed: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	registry := serial.NewRegistry(pg.DB, cfg.Serials, log)
	inserted, err := registry.Load(ctx, *pool, serials)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed after %d inserts: %v\n", inserted, err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d new serials into pool %q (%d supplied, %d already present)\n",
		inserted, *pool, len(serials), len(serials)-inserted)
}

func collectSerials(file, prefix string, start, count int) ([]string, error) {
	if file != "" {
		return readSerialFile(file)
	}
	if prefix != "" && count > 0 {
		serials := make([]string, 0, count)
		for i := 0; i < count; i++ {
			serials = append(serials, fmt.Sprintf("%s%06d", prefix, start+i))
		}
		return serials, nil
	}
	return nil, nil
}

func readSerialFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open serial file: %w", err)
	}
	defer f.Close()

	var serials []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		serials = append(serials, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading serial file: %w", err)
	}
	return serials, nil
}
