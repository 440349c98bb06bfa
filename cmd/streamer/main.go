package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"tickerwatch/config"
	"tickerwatch/internal/analysis"
	"tickerwatch/internal/api"
	"tickerwatch/internal/history"
	"tickerwatch/internal/indicator"
	"tickerwatch/internal/logger"
	"tickerwatch/internal/marketdata/bus"
	"tickerwatch/internal/marketdata/decode"
	"tickerwatch/internal/marketdata/stream"
	"tickerwatch/internal/markethours"
	"tickerwatch/internal/metrics"
	"tickerwatch/internal/model"
	"tickerwatch/internal/notification"
	"tickerwatch/internal/scheduler"
	redisstore "tickerwatch/internal/store/redis"
)

func main() {
	configPath := flag.String("config", "tickerwatch.yaml", "path to the YAML config file (optional)")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment (optional)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[streamer] starting...")

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("[streamer] WARNING: %s not loaded: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[streamer] config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[streamer] invalid config: %v", err)
	}

	slogger := logger.Init("streamer", logger.ParseLevel(cfg.LogLevel))

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, nil)
	metricsSrv.Start()

	// ---- Snapshot distributor ----
	dist := bus.NewDistributor(cfg.Stream.ChannelBuffer, slogger)
	dist.OnPublish = func(string) { prom.SnapshotsPublished.Inc() }
	dist.OnPanic = func(string) { prom.ObserverPanics.Inc() }
	dist.OnDrop(func(subscriber string) {
		prom.FanoutDropsTotal.WithLabelValues(subscriber).Inc()
	})

	// ---- Live websocket push ----
	live := api.NewLive(dist, slogger)
	live.OnPush = func(lag time.Duration) { prom.LiveLag.Observe(lag.Seconds()) }
	live.OnClients = func(n int) { prom.LiveClients.Set(float64(n)) }
	dist.Observe("live", live.Publish)

	// ---- Redis snapshot store (optional) ----
	var redisWriter *redisstore.SnapshotWriter
	if cfg.Redis.Addr != "" {
		redisWriter, err = redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, slogger)
		if err != nil {
			log.Printf("[streamer] WARNING: redis init failed: %v (continuing without redis)", err)
		}
	}
	if redisWriter != nil {
		cb := redisWriter.Breaker()
		prev := cb.OnStateChange
		cb.OnStateChange = func(from, to redisstore.State) {
			if prev != nil {
				prev(from, to)
			}
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		redisWriter.OnError = func(error) { prom.RedisWriteErrors.Inc() }

		go redisWriter.Run(ctx, dist.Subscribe("redis"))
		health.StartLivenessChecker(ctx, redisWriter, 10*time.Second)
		log.Println("[streamer] redis snapshot writer ready")
	}

	// ---- Channel saturation + market phase ----
	go func() {
		phases := make([]string, len(markethours.Phases))
		for i, p := range markethours.Phases {
			phases[i] = string(p)
		}
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range dist.ChannelStats() {
					prom.SetChannelSaturation(s.Name, s.Len, s.Cap)
				}
				prom.SetMarketPhase(string(markethours.Phase(time.Now())), phases)
			}
		}
	}()

	// ---- Analysis ----
	var provider history.Provider
	switch cfg.History.Provider {
	case config.ProviderYahoo:
		provider = history.NewYahoo(cfg.History.YahooBaseURL, cfg.History.Timeout)
	case config.ProviderAlpaca:
		provider = history.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
	}
	if provider != nil {
		provider = history.NewGuarded(provider, history.DefaultBreakerConfig(), slogger, func(state int) {
			prom.HistoryState.Set(float64(state))
		})
		log.Printf("[streamer] history provider: %s", provider.Name())
	} else {
		log.Println("[streamer] no history provider, analyses will use synthetic indicators")
	}

	notifiers := notification.Multi{notification.NewLogNotifier(slogger)}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL, slogger))
	}
	if cfg.Notify.Telegram.BotToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, slogger))
	}

	analyzer := analysis.New(analysis.Config{
		Days:     cfg.History.Days,
		Criteria: cfg.Criteria,
	}, provider, indicator.NewEngine(indicator.DefaultPeriods(), nil), notifiers, slogger)
	analyzer.OnAnalysis = prom.ObserveAnalysis
	analyzer.OnAlert = func(result string) { prom.AlertsTotal.WithLabelValues(result).Inc() }

	// ---- Stream connector ----
	conn := stream.New(stream.Config{
		URL:            cfg.Stream.URL,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		DialTimeout:    cfg.Stream.DialTimeout,
		FrameLog:       cfg.Stream.FrameLog,
	}, decode.Logged(decode.New(), slogger), dist, slogger)
	conn.OnReconnect = func() { prom.WSReconnects.Inc() }
	conn.OnFrame = func(tag model.Classification) {
		prom.FramesTotal.WithLabelValues(string(tag)).Inc()
		health.SetLastFrameTime(time.Now())
	}
	conn.OnState = func(connected bool) {
		health.SetWSConnected(connected)
		if connected {
			prom.WSConnected.Set(1)
		} else {
			prom.WSConnected.Set(0)
		}
	}

	if cfg.Stream.URL == "" {
		log.Println("[streamer] no stream url configured, waiting for PUT /api/v1/stream/endpoint")
		conn.Subscribe(cfg.Stream.Symbols)
	} else {
		dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Stream.DialTimeout)
		if err := conn.Connect(dialCtx, cfg.Stream.Symbols); err != nil {
			log.Printf("[streamer] initial connect failed: %v (retrying every %v)", err, cfg.Stream.ReconnectDelay)
		}
		dialCancel()
	}

	// ---- Scheduler ----
	var sched *scheduler.Scheduler
	if cfg.Schedule.AnalysisCron != "" {
		sched = scheduler.New(analyzer, dist, conn.Symbols, slogger)
		if err := sched.Register(ctx, cfg.Schedule.AnalysisCron); err != nil {
			log.Fatalf("[streamer] scheduler: %v", err)
		}
		sched.Start()
	}

	// ---- HTTP API ----
	handler := api.NewHandler(dist, conn, analyzer, slogger)
	if redisWriter != nil {
		handler.WithStore(redisWriter)
	}
	apiSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewRouter(handler, live),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[api] listening on %s", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()

	log.Printf("[streamer] ready: %d symbols on %s, %s",
		len(cfg.Stream.Symbols), cfg.Stream.URL, markethours.StatusString(time.Now()))

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[streamer] shutdown signal received, cleaning up...")

	conn.Disconnect()
	if sched != nil {
		sched.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	dist.Close()

	if redisWriter != nil {
		redisWriter.Close()
	}

	log.Println("[streamer] shutdown complete.")
}
