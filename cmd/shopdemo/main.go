// Command shopdemo fires concurrent authenticated requests at a shop API
// whose access token has expired, and reports how the session recovered.
//
// By default it runs against an embedded fake backend:
//
//	shopdemo --requests 3 --refresh-delay 50ms
//	shopdemo --fail-refresh
//	shopdemo --min-version 9.0.0
//
// With --embedded=false it signs in to the base_url from config.yml using
// --user and --password.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/shopkit/client"
	"github.com/kbukum/shopkit/config"
	"github.com/kbukum/shopkit/events"
	"github.com/kbukum/shopkit/internal/fakeapi"
	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/pipeline"
	"github.com/kbukum/shopkit/session"
	"github.com/kbukum/shopkit/version"
)

type options struct {
	configFile   string
	requests     int
	embedded     bool
	failRefresh  bool
	refreshDelay time.Duration
	minVersion   string
	user         string
	password     string
	showVersion  bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configFile, "config", "c", "", "path to config.yml")
	pflag.IntVarP(&opts.requests, "requests", "n", 3, "number of concurrent authenticated requests")
	pflag.BoolVar(&opts.embedded, "embedded", true, "run against an in-process fake backend")
	pflag.BoolVar(&opts.failRefresh, "fail-refresh", false, "make the embedded backend reject the refresh")
	pflag.DurationVar(&opts.refreshDelay, "refresh-delay", 50*time.Millisecond, "how long the embedded backend holds the refresh")
	pflag.StringVar(&opts.minVersion, "min-version", "", "oldest app version the embedded backend serves")
	pflag.StringVarP(&opts.user, "user", "u", "ada", "username for --embedded=false")
	pflag.StringVarP(&opts.password, "password", "p", "", "password for --embedded=false")
	pflag.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	pflag.Parse()

	if opts.showVersion {
		fmt.Println(version.GetShortVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "shopdemo: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	var loaderOpts []config.LoaderOption
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.configFile))
	}
	cfg, err := client.Load("shopdemo", loaderOpts...)
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)

	var api *fakeapi.Server
	if opts.embedded {
		api, err = fakeapi.New(fakeapi.Config{
			RefreshDelay:  opts.refreshDelay,
			FailRefresh:   opts.failRefresh,
			MinAppVersion: opts.minVersion,
		}, fakeapi.WithLogger(log))
		if err != nil {
			return err
		}
		baseURL, shutdown, err := serve(api.Handler())
		if err != nil {
			return err
		}
		defer shutdown()
		cfg.HTTP.BaseURL = baseURL
	}

	c, err := client.New(*cfg, client.WithLogger(log))
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.Stop(stopCtx); err != nil {
			log.Warn("shutdown incomplete", logger.ErrorFields("stop", err))
		}
	}()
	go watch(ctx, c.Events(), log)

	if api != nil {
		// Start from an expired access token so every request needs a refresh.
		pair, err := api.Issue(opts.user, 0)
		if err != nil {
			return err
		}
		if err := c.Resume(ctx, session.NewTokens(pair.AccessToken, pair.RefreshToken)); err != nil {
			return err
		}
	} else if err := c.Login(ctx, opts.user, opts.password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	reqs := make([]*pipeline.Request, opts.requests)
	for i := range reqs {
		reqs[i] = pipeline.Get(fmt.Sprintf("/api/products/%d", i+1)).WithSession()
	}

	start := time.Now()
	failed := 0
	for i, o := range c.DoAll(ctx, reqs) {
		fields := logger.Fields(logger.FieldPath, reqs[i].Path, logger.FieldRequestID, reqs[i].ID)
		if o.Response != nil {
			fields[logger.FieldStatusCode] = o.Response.StatusCode
			fields[logger.FieldAttempt] = o.Response.Attempt
		}
		if o.Err != nil {
			failed++
			log.Error("request failed", logger.MergeWithError(fields, o.Err))
			continue
		}
		log.Info("request succeeded", fields)
	}

	summary := logger.Fields(
		"requests", len(reqs),
		"failed", failed,
		logger.FieldPhase, c.Phase().String(),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if api != nil {
		summary["refresh_calls"] = api.RefreshCalls()
		summary["logout_calls"] = len(api.LogoutCalls())
	}
	log.Info("demo finished", summary)
	return nil
}

// serve runs h on a loopback port and returns its base URL.
func serve(h http.Handler) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), shutdown, nil
}

// watch logs session and force-update events until ctx ends or the bus
// closes.
func watch(ctx context.Context, bus *events.Bus, log *logger.Logger) {
	ch := bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			switch ev := v.(type) {
			case events.SessionClosed:
				log.Warn("session closed", logger.MergeWithError(logger.Fields("reason", ev.Reason), ev.Err))
			case events.ForceUpdateRequired:
				log.Warn("app update required", logger.Fields(logger.FieldPath, ev.Path, logger.FieldStatusCode, ev.StatusCode))
			}
		}
	}
}
