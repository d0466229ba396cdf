package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wikipulse/wikipulse/monitor/internal/alerts"
	"github.com/wikipulse/wikipulse/monitor/internal/api"
	"github.com/wikipulse/wikipulse/monitor/internal/auth"
	"github.com/wikipulse/wikipulse/monitor/internal/config"
	"github.com/wikipulse/wikipulse/monitor/internal/decode"
	"github.com/wikipulse/wikipulse/monitor/internal/display"
	"github.com/wikipulse/wikipulse/monitor/internal/feed"
	"github.com/wikipulse/wikipulse/monitor/internal/metrics"
	"github.com/wikipulse/wikipulse/monitor/internal/pipeline"
	"github.com/wikipulse/wikipulse/monitor/internal/publish"
	"github.com/wikipulse/wikipulse/monitor/internal/security"
	"github.com/wikipulse/wikipulse/monitor/internal/store"
	"github.com/wikipulse/wikipulse/monitor/internal/stream"
	"github.com/wikipulse/wikipulse/monitor/internal/ws"
)

const (
	shutdownTimeout = 10 * time.Second
	userAgent       = "wikipulse-monitor"
)

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults are used when empty")
	uiDir := flag.String("ui-dir", "", "serve the display UI static files from this directory; leave empty to disable")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("wikipulse-monitor starting", "config", *configPath)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	mc := cfg.Monitor
	level.Set(mc.Level())

	slog.Info("config loaded",
		"feed_url", mc.FeedURL,
		"window", mc.Window,
		"ticker_kind", mc.TickerKind,
		"annotation_kind", mc.AnnotationKind,
		"http_port", mc.HTTPPort,
		"auth_mode", mc.Auth.Mode,
		"nats", mc.NATS.Enabled(),
	)

	policy, err := decode.ParsePolicy(mc.TimestampPolicy)
	if err != nil {
		slog.Error("invalid timestamp policy", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Display targets. Each one implements some of the pipeline sinks.
	st := store.New(mc.Retention, mc.MaxAnnotations)
	hub := ws.New(st)
	met := metrics.New()
	if err := met.WatchClients(hub.Count); err != nil {
		slog.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}

	alertEngine, err := alerts.New(mc.Alerts)
	if err != nil {
		slog.Error("failed to build alert rules", "err", err)
		os.Exit(1)
	}

	var pub publish.Publisher = publish.NoopPublisher{}
	if mc.NATS.Enabled() {
		np, err := publish.NewNATSPublisher(mc.NATS.URL)
		if err != nil {
			slog.Warn("NATS unavailable, display updates will not be published", "err", err)
		} else {
			pub = np
			slog.Info("publishing display updates", "url", mc.NATS.URL, "prefix", mc.NATS.SubjectPrefix)
		}
	}

	disp := display.New(st, hub)
	disp.AddChart(met)
	disp.AddChart(alertEngine)
	disp.Add(publish.NewSink(pub, mc.NATS.SubjectPrefix))

	// Feed connection.
	topts := []feed.TransportOption{
		feed.WithHeader(http.Header{"User-Agent": {userAgent}}),
	}
	if mc.FeedTLS.InsecureSkipVerify {
		slog.Warn("feed TLS verification disabled")
		topts = append(topts, feed.WithDialer(&websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}))
	}
	dec := decode.New(decode.WithTimestampPolicy(policy))
	conn := feed.NewConnection(
		feed.NewWebSocketTransport(mc.FeedURL, topts...),
		dec,
		feed.WithRecorder(met),
	)
	certs := security.NewMonitor(mc.FeedURL, mc.FeedTLS.InsecureSkipVerify)

	// Pipelines share one presentation queue so display targets see calls
	// one at a time.
	presentation := stream.NewSerialQueue("presentation")
	events := conn.Events()
	rate := pipeline.NewRateAggregator(events, disp,
		pipeline.WithWindow(mc.Window), pipeline.WithPresentation(presentation))
	ticker := pipeline.NewContentTicker(events, disp,
		pipeline.WithKind(mc.TickerKind), pipeline.WithPresentation(presentation))
	marks := pipeline.NewAnnotationTracker(events, disp,
		pipeline.WithKind(mc.AnnotationKind), pipeline.WithPresentation(presentation))
	rate.Start()
	ticker.Start()
	marks.Start()
	slog.Info("pipelines started",
		"window", rate.Window(),
		"presentation", presentation.Name(),
		"timestamp_policy", dec.Policy().String(),
	)

	if err := conn.Start(ctx); err != nil {
		slog.Error("failed to start feed", "err", err)
		os.Exit(1)
	}

	// Combined HTTP server: REST API, WebSocket hub and /metrics on HTTPPort.
	apiHandler := api.New(st,
		api.WithFeedState(func() string { return conn.State().String() }),
		api.WithStats(func() api.Stats {
			c, err := met.Snapshot()
			if err != nil {
				slog.Warn("metrics snapshot failed", "err", err)
			}
			return api.Stats{
				MessagesReceived: c.MessagesReceived,
				EventsEmitted:    c.EventsEmitted,
				DecodeFailures:   c.DecodeFailures,
			}
		}),
		api.WithAlerts(alertEngine),
		api.WithCertStatus(certs.Latest),
	)
	requireKey := auth.APIKey(mc.Auth.Mode, mc.Auth.EffectiveHeader(), mc.Auth.Key())

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(apiHandler))
	httpMux.Handle("/ws/stream", requireKey(hub))
	httpMux.Handle("/metrics", met.Handler())
	if *uiDir != "" {
		httpMux.HandleFunc("/", spaHandler(*uiDir))
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", mc.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { st.Run(gctx); return nil })
	g.Go(func() error { hub.Run(gctx); return nil })
	g.Go(func() error { certs.Run(gctx, security.CheckInterval); return nil })
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", mc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return httpSrv.Shutdown(sctx)
	})
	if *configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, *configPath, func(updated *config.Config) {
				level.Set(updated.Monitor.Level())
				if err := alertEngine.SetRules(updated.Monitor.Alerts.Rules); err != nil {
					slog.Warn("alert rules not reloaded", "err", err)
				}
				slog.Info("config hot-reloaded",
					"log_level", updated.Monitor.Level().String(),
					"rules", len(updated.Monitor.Alerts.Rules))
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("wikipulse-monitor stopped", "err", err)
	}

	slog.Info("wikipulse-monitor shutting down")
	conn.Stop() //nolint:errcheck
	rate.Stop()
	ticker.Stop()
	marks.Stop()
	presentation.Close()
	alertEngine.Wait()
	if err := pub.Close(); err != nil {
		slog.Warn("publisher close failed", "err", err)
	}
}

// spaHandler serves files from dir and falls back to index.html for unknown
// paths so client-side routing works.
func spaHandler(dir string) http.HandlerFunc {
	fs := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		path := dir + r.URL.Path
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, dir+"/index.html")
			return
		}
		fs.ServeHTTP(w, r)
	}
}
