// Copyright 2025 The Autocomplete Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main runs the ranked prefix autocomplete engine as an IPC server, an
HTTP service, an interactive CLI or a one-shot file filter.

The vocabulary is assembled at startup from, in order: a msgpack snapshot, a
single dictionary file, a directory of dict_NNNN.bin chunks, a Postgres table
and a Redis sorted set. Each is optional. While running, terms may be added
or removed through IPC, HTTP or a Kafka topic.

# Usage

Serve msgpack completions on stdin/stdout:

	autocomplete -dict words.txt

Serve HTTP only, with debug logging:

	autocomplete -http :8080 -dict words.yaml -d

Interactive prompt for trying a vocabulary:

	autocomplete -c -dict words.txt -limit 5

Complete the prefix in input.txt into output.txt and exit:

	autocomplete -dict dictionary.txt -in input.txt -out output.txt

Split a vocabulary into chunk files for lazy loading:

	autocomplete -dict words.txt -build data/ -chunk 10000

# Configuration

Settings live in a TOML file created with defaults on first run, under the
user config dir unless -config names another file. Flags override it.

	[server]
	default_limit = 10
	max_limit = 64

	[http]
	enabled = true
	addr = ":8080"

	[feed]
	brokers = ["localhost:9092"]
	topic = "autocomplete-terms"

# Command Line Flags

	-config string   config file path
	-data string     directory with dict_NNNN.bin chunks
	-dict string     vocabulary file (.txt, .csv, .yaml, .msgpack)
	-d               debug logging
	-c               interactive CLI
	-http string     serve HTTP on this address, without IPC
	-in, -out        one-shot file mode
	-build string    write chunk files of -dict into this directory and exit
	-limit int       suggestions per query
	-prmin, -prmax   prefix length bounds
	-no-filter       disable input filtering in the CLI
	-words int       maximum words to load from chunks (0 for all)
	-chunk int       words per chunk file
	-diag            print path diagnostics and exit
	-version         print the version and exit
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/bastiangx/autocomplete/internal/cli"
	"github.com/bastiangx/autocomplete/internal/utils"
	"github.com/bastiangx/autocomplete/pkg/config"
	"github.com/bastiangx/autocomplete/pkg/dictionary"
	"github.com/bastiangx/autocomplete/pkg/feed"
	"github.com/bastiangx/autocomplete/pkg/httpapi"
	"github.com/bastiangx/autocomplete/pkg/metrics"
	"github.com/bastiangx/autocomplete/pkg/server"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	Version = "0.1.0"
	AppName = "autocomplete"
	gh      = "https://github.com/bastiangx/autocomplete"
)

const shutdownTimeout = 5 * time.Second

func main() {
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to the TOML config file")
	binaryDir := flag.String("data", "", "Directory containing dict_NNNN.bin chunk files")
	dictPath := flag.String("dict", "", "Vocabulary file (.txt, .csv, .yaml, .msgpack)")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	httpAddr := flag.String("http", "", "Serve HTTP on this address instead of IPC")
	inPath := flag.String("in", "", "One-shot mode: read the prefix from this file")
	outPath := flag.String("out", "output.txt", "One-shot mode: write completions to this file")
	buildDir := flag.String("build", "", "Write -dict as chunk files into this directory and exit")
	limit := flag.Int("limit", 0, "Number of suggestions to return (default from config)")
	minPrefix := flag.Int("prmin", -1, "Minimum prefix length for suggestions (default from config)")
	maxPrefix := flag.Int("prmax", -1, "Maximum prefix length for suggestions (default from config)")
	noFilter := flag.Bool("no-filter", defaultConfig.CLI.DefaultNoFilter, "Disable input filtering in the CLI")
	wordLimit := flag.Int("words", -1, "Maximum number of words to load from chunks (use 0 for all words)")
	chunkSize := flag.Int("chunk", 0, "Number of words per chunk file (default from config)")
	diagnose := flag.Bool("diag", false, "Print path diagnostics and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	if *diagnose {
		diag := pathResolver.DiagnosePathIssues(*binaryDir)
		for _, k := range slices.Sorted(maps.Keys(diag)) {
			fmt.Printf("%-24s %v\n", k, diag[k])
		}
		return
	}
	log.Debug("Runtime info", "info", pathResolver.GetRuntimeInfo())

	cfg, usedConfigPath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if usedConfigPath == "" {
		// The user config dir was unusable; try the resolver's fallbacks.
		if fallback, err := pathResolver.GetConfigPath("config.toml"); err == nil {
			if fcfg, err := config.InitConfig(fallback); err == nil {
				cfg, usedConfigPath = fcfg, fallback
			}
		}
	}
	log.Debugf("Using config file: (%s)", usedConfigPath)
	applyFlags(cfg, *dictPath, *binaryDir, *wordLimit, *chunkSize, *minPrefix, *maxPrefix, *limit, *cliMode)

	if *buildDir != "" {
		if err := buildChunks(cfg.Dict.Path, *buildDir, cfg.Dict.ChunkSize); err != nil {
			log.Fatalf("Failed to build chunks: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer := suggest.NewCompleterWithOptions(cfg.EngineOptions())
	m := metrics.New()

	oneShot := *inPath != "" || *cliMode
	chunkLoader := loadVocabulary(ctx, completer, cfg, pathResolver, !oneShot)
	if chunkLoader != nil {
		defer chunkLoader.Stop()
	}
	m.SetTerms(completer.Len())
	log.Debugf("Vocabulary ready: %d terms", completer.Len())

	if *inPath != "" {
		if err := cli.RunOnce(completer, *inPath, *outPath, cfg.CLI.DefaultLimit); err != nil {
			log.Fatalf("One-shot completion failed: %v", err)
		}
		return
	}

	if *cliMode {
		log.SetReportTimestamp(false)
		inputHandler := cli.NewInputHandler(completer, os.Stdin, os.Stdout,
			cfg.CLI.DefaultMinLen, cfg.CLI.DefaultMaxLen, cfg.CLI.DefaultLimit, *noFilter)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	if *httpAddr != "" {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Addr = *httpAddr
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		runHTTP(gctx, g, completer, cfg, m)
	}
	if cfg.Feed.Topic != "" && len(cfg.Feed.Brokers) > 0 {
		consumer := feed.NewConsumer(cfg.Feed, feed.HandleEvent(completer, m))
		g.Go(func() error { return consumer.Start(gctx) })
	}

	if *httpAddr == "" {
		srv := server.NewServer(completer, cfg, usedConfigPath)
		srv.SetMetrics(m)
		if chunkLoader != nil {
			srv.SetRuntimeLoader(dictionary.NewRuntimeLoader(chunkLoader))
		}
		showStartupInfo(cfg, completer.Len())

		// Start blocks on stdin, so it runs outside the group: end of input
		// stops everything, but a signal does not wait for the next read.
		ipcDone := make(chan error, 1)
		go func() { ipcDone <- srv.Start() }()
		select {
		case err := <-ipcDone:
			if err != nil {
				log.Errorf("IPC server stopped: %v", err)
			}
			stop()
		case <-gctx.Done():
		}
	} else {
		showStartupInfo(cfg, completer.Len())
		<-gctx.Done()
	}

	if err := g.Wait(); err != nil {
		log.Errorf("Shutdown with error: %v", err)
	}
	saveSnapshot(completer, cfg.Dict.SnapshotPath)
}

// applyFlags lets command line flags override the config file. Negative or
// zero values mean the flag was not given.
func applyFlags(cfg *config.Config, dictPath, dataDir string, words, chunk, prmin, prmax, limit int, cliMode bool) {
	if dictPath != "" {
		cfg.Dict.Path = dictPath
	}
	if dataDir != "" {
		cfg.Dict.DataDir = dataDir
	}
	if words >= 0 {
		cfg.Dict.MaxWords = words
	}
	if chunk > 0 {
		cfg.Dict.ChunkSize = chunk
	}
	if limit > 0 {
		cfg.CLI.DefaultLimit = limit
		if !cliMode {
			cfg.Server.DefaultLimit = limit
		}
	}
	if prmin >= 0 {
		cfg.CLI.DefaultMinLen = prmin
		cfg.Server.MinPrefix = prmin
	}
	if prmax >= 0 {
		cfg.CLI.DefaultMaxLen = prmax
		cfg.Server.MaxPrefix = prmax
	}
}

// loadVocabulary fills the completer from every configured source. It returns
// the chunk loader when a chunk directory was found. Chunks load in the
// background for long-running modes and up front otherwise.
func loadVocabulary(ctx context.Context, completer *suggest.Completer, cfg *config.Config, pr *utils.PathResolver, background bool) *dictionary.ChunkLoader {
	if path := cfg.Dict.SnapshotPath; path != "" && utils.FileExists(path) {
		dictionary.LoadSources(ctx, completer, dictionary.FileSource{Path: path})
	}
	if cfg.Dict.Path != "" {
		dictionary.LoadSources(ctx, completer, dictionary.FileSource{Path: cfg.Dict.Path})
	}

	var chunkLoader *dictionary.ChunkLoader
	if cfg.Dict.DataDir != "" {
		dataDir, err := pr.GetDataDir(cfg.Dict.DataDir)
		if err == nil && utils.FileExists(dataDir) {
			chunkLoader = dictionary.NewChunkLoader(dataDir, cfg.Dict.MaxWords, completer)
			if err := startChunks(chunkLoader, cfg.Dict.MaxWords, background); err != nil {
				log.Debugf("No chunks loaded from %s: %v", dataDir, err)
				chunkLoader.Stop()
				chunkLoader = nil
			}
		}
	}

	var sources []dictionary.Source
	if dsn := cfg.Sources.PostgresDSN; dsn != "" {
		db, err := dictionary.OpenPostgres(dsn)
		if err != nil {
			log.Errorf("Postgres source unavailable: %v", err)
		} else {
			defer db.Close()
			sources = append(sources, dictionary.PostgresSource{DB: db, Query: cfg.Sources.PostgresQuery})
		}
	}
	if addr := cfg.Sources.RedisAddr; addr != "" {
		client, err := dictionary.OpenRedis(addr)
		if err != nil {
			log.Errorf("Redis source unavailable: %v", err)
		} else {
			defer client.Close()
			sources = append(sources, dictionary.RedisSource{Client: client, Key: cfg.Sources.RedisKey})
		}
	}
	dictionary.LoadSources(ctx, completer, sources...)
	return chunkLoader
}

// startChunks loads chunk files up to maxWords, 0 meaning all of them.
func startChunks(cl *dictionary.ChunkLoader, maxWords int, background bool) error {
	if background {
		return cl.StartLazyLoading()
	}
	rl := dictionary.NewRuntimeLoader(cl)
	options, err := rl.GetDictionarySizeOptions()
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return errors.New("no chunk files found")
	}
	target := 1
	for _, opt := range options {
		if maxWords == 0 || opt.WordCount <= maxWords {
			target = opt.ChunkCount
		}
	}
	return rl.SetDictionarySize(target)
}

// runHTTP starts the HTTP API in g and shuts it down when ctx ends.
func runHTTP(ctx context.Context, g *errgroup.Group, completer *suggest.Completer, cfg *config.Config, m *metrics.Metrics) {
	if log.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	api := httpapi.NewAPI(completer, cfg.Server, m)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Infof("HTTP listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// buildChunks ranks the vocabulary at dictPath and writes it as chunk files.
func buildChunks(dictPath, dir string, chunkSize int) error {
	if dictPath == "" {
		return errors.New("-build needs a vocabulary file, set -dict")
	}
	vocab, err := dictionary.Open(dictPath)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	n, err := dictionary.WriteChunkFiles(dir, vocab.Entries, chunkSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d chunk files with %d terms to %s\n", n, len(vocab.Entries), dir)
	return nil
}

func saveSnapshot(completer *suggest.Completer, path string) {
	if path == "" {
		return
	}
	if err := dictionary.SaveSnapshot(path, completer.Snapshot()); err != nil {
		log.Errorf("Failed to save snapshot: %v", err)
		return
	}
	log.Debugf("Snapshot saved to %s", path)
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ " + AppName + " ] ranked prefix completions")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// showStartupInfo prints basic process info to stderr.
func showStartupInfo(cfg *config.Config, terms int) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(currentLevel)

	log.Infof("%s %s", AppName, Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("terms: %d", terms)
	if cfg.HTTP.Enabled {
		log.Infof("http: %s", cfg.HTTP.Addr)
	}
	if cfg.Feed.Topic != "" {
		log.Infof("feed: %s", cfg.Feed.Topic)
	}
	log.Info("status: ready")
}
