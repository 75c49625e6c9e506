// Binary producer runs the signal side of the bridge: it consumes market
// data, turns strategy advice into sized trade signals, and serves them to
// trading terminals over the socket protocol.
package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradebridge-go/internal/config"
	"tradebridge-go/internal/feed"
	"tradebridge-go/internal/metrics"
	"tradebridge-go/internal/queue"
	"tradebridge-go/internal/risk"
	"tradebridge-go/internal/server"
	sig "tradebridge-go/internal/signal"
	"tradebridge-go/internal/strategy"
	"tradebridge-go/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return defaultConfigPath
}

func main() {
	_ = godotenv.Load() // best-effort

	bootLog := util.NewLogger("info")
	cfg, err := config.Load(configPath())
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	q := queue.NewManager(cfg.Producer.MaxQueueSize, cfg.Producer.MaxHistorySize)
	srv := server.New(server.Config{
		Host:             cfg.Bridge.Host,
		Port:             cfg.Bridge.Port,
		HeartbeatTimeout: secs(cfg.Producer.HeartbeatTimeoutSecs),
	}, q, log)
	go func() {
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("bridge server stopped")
			cancel()
		}
	}()

	ticks := make(chan sig.Tick, 1024)
	marketFeed := feed.New(cfg.Feed.Provider, cfg.Feed.Symbols, log)
	go func() {
		if err := marketFeed.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	strat := strategy.Build(cfg.Strategy.Mode, strategy.Params{
		Threshold:    cfg.Strategy.Params.Threshold,
		WindowSecs:   cfg.Strategy.Params.WindowSecs,
		MinVolumeUSD: cfg.Strategy.Params.MinVolumeUSD,
	})
	assessor := risk.New(risk.Config{
		MinConfidence:   cfg.Risk.MinConfidence,
		MaxRiskPerTrade: cfg.Risk.MaxRiskPerTrade,
		StopLossPips:    cfg.Risk.StopLossPips,
		TakeProfitPips:  cfg.Risk.TakeProfitPips,
		PipSize:         cfg.Risk.PipSize,
		Limits: risk.Limits{
			MaxLotSize:          cfg.Risk.MaxLotSize,
			MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade,
		},
	})
	balance := cfg.Risk.AccountBalance
	if balance <= 0 {
		balance = 10000
	}

	log.Info().Str("strategy", strat.Name()).Strs("symbols", marketFeed.Symbols()).Msg("producer started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case tk := <-ticks:
			adv := strat.OnTick(tk)
			if adv == nil {
				continue
			}
			trade, ok := assessor.Assess(*adv, tk.Price, balance, cfg.Broker.Name)
			if !ok {
				continue
			}
			if err := q.Add(trade); err != nil {
				log.Warn().Err(err).Str("symbol", trade.Symbol).Msg("signal dropped")
				continue
			}
			metrics.SignalsEnqueuedTotal.WithLabelValues(trade.Symbol).Inc()
			log.Info().
				Str("signal_id", trade.ID).
				Str("symbol", trade.Symbol).
				Str("action", string(trade.Action)).
				Float64("lots", trade.LotSize).
				Msg("signal queued")
		}
	}
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
