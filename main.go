package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/negroni"

	"github.com/yukimura/storypost/composer"
	"github.com/yukimura/storypost/config"
	"github.com/yukimura/storypost/ledger"
	"github.com/yukimura/storypost/logging"
	"github.com/yukimura/storypost/notify"
	"github.com/yukimura/storypost/platform"
	"github.com/yukimura/storypost/server"
	"github.com/yukimura/storypost/session"
	"github.com/yukimura/storypost/story"
	"github.com/yukimura/storypost/submission"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	config.KnownTemplate = story.KnownTemplate

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "generate":
		os.Exit(runGenerate(os.Args[2:]))
	case "post":
		os.Exit(runPost(os.Args[2:]))
	case "serve":
		os.Exit(runServe(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  storypost generate --config <path>
  storypost post --config <path> --lang <tag|all> [--headless <true|false>]
  storypost serve --config <path>`)
}

func runGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "config.yml", "path to run configuration")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logging.New(cfg.StateDir)
	gen := story.NewGenerator(logger)

	for _, lang := range cfg.Languages {
		doc, md, err := gen.Generate(lang.Tag, lang.Template, lang.Vars)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		path, err := story.WriteArtifact(cfg.OutputDir, lang.Tag, md)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("%s\t%s\t%s\n", lang.Tag, doc.Fingerprint(), path)
	}
	return 0
}

func runPost(args []string) int {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	configPath := fs.String("config", "config.yml", "path to run configuration")
	lang := fs.String("lang", "", "language tag of the generated document, or 'all'")
	headless := fs.String("headless", "", "override headless mode (true|false)")
	fs.Parse(args)

	if *lang == "" {
		fmt.Fprintln(os.Stderr, "--lang is required")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	switch *headless {
	case "true":
		cfg.Headless = true
	case "false":
		cfg.Headless = false
	case "":
	default:
		fmt.Fprintln(os.Stderr, "--headless must be true or false")
		return 2
	}

	logger := logging.New(cfg.StateDir)

	var tags []string
	if *lang == "all" {
		for _, l := range cfg.Languages {
			tags = append(tags, l.Tag)
		}
	} else {
		if _, ok := cfg.Language(*lang); !ok {
			fmt.Fprintf(os.Stderr, "language %q is not configured\n", *lang)
			return 1
		}
		tags = []string{*lang}
	}

	ctrl, cleanup, err := buildController(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Languages run as independent pipelines; same-account runs
	// serialize inside the session manager.
	results := make([]*submission.Result, len(tags))
	errs := make([]error, len(tags))
	var wg sync.WaitGroup
	for i, tag := range tags {
		wg.Add(1)
		go func(i int, tag string) {
			defer wg.Done()
			doc, err := story.ReadArtifact(cfg.OutputDir, tag)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = ctrl.Submit(ctx, cfg.Platform, cfg.CredentialRef, doc)
		}(i, tag)
	}
	wg.Wait()

	exit := 0
	for i, tag := range tags {
		if errs[i] != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", tag, errs[i])
			exit = 1
			continue
		}
		res := results[i]
		fmt.Printf("%s\t%s\t%s\t%s\n", tag, res.Fingerprint, res.FinalState, res.ExternalID)
		if !res.Succeeded() {
			exit = 1
		}
	}
	return exit
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yml", "path to run configuration")
	addr := fs.String("addr", "", "http listen address (overrides HTTP_PORT)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logging.New(cfg.StateDir)

	led, err := ledger.OpenSQLite(filepath.Join(cfg.StateDir, "ledger.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	runs := submission.NewRunStore(0)

	r := server.SetupRoutes(runs, led, logger)
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, server.Config{
			Domains:      cfg.Domains,
			CertCacheDir: cfg.CertCacheDir,
			HTTPPort:     cfg.HTTPPort,
			HTTPSPort:    cfg.HTTPSPort,
		})
		return 0
	}

	listen := ":" + cfg.HTTPPort
	if *addr != "" {
		listen = *addr
	}
	logger.Info("status API listening", slog.String("addr", listen))
	srv := &http.Server{
		Addr:         listen,
		Handler:      n,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	server.ServeDevelopment(srv)
	return 0
}

func buildController(cfg config.Config, logger *slog.Logger) (*submission.Controller, func(), error) {
	led, err := ledger.OpenSQLite(filepath.Join(cfg.StateDir, "ledger.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}

	registry := platform.DefaultRegistry()
	if !registry.Known(cfg.Platform) {
		return nil, nil, fmt.Errorf("platform %q has no driver", cfg.Platform)
	}
	sessions := session.NewManager(
		registry,
		session.NewFileStore(cfg.StateDir),
		session.EnvCredentials,
		platform.Options{Headless: cfg.Headless, StateDir: cfg.StateDir, Logger: logger},
		logger,
	)

	var notifier submission.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewSMS(cfg.Notify.FromNumber, cfg.Notify.ToNumber, logger)
	}

	ctrl := submission.NewController(
		sessions,
		composer.New(logger),
		led,
		submission.NewRunStore(0),
		notifier,
		logger,
		submission.Options{RetryLimit: cfg.RetryLimit, Budget: cfg.Budget()},
	)
	return ctrl, func() {}, nil
}
