// Binary terminal runs the execution side of the bridge: it polls the
// producer for trade signals, executes them against a paper account, and
// reports results back.
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradebridge-go/internal/bridge"
	"tradebridge-go/internal/broker"
	"tradebridge-go/internal/config"
	"tradebridge-go/internal/transport"
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

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	account := broker.NewPaper(broker.Config{
		Name:            cfg.Broker.Name,
		Currency:        cfg.Broker.Currency,
		StartingBalance: cfg.Broker.StartingBalance,
	})

	var journal *broker.Journal
	if cfg.Broker.JournalPath != "" {
		journal, err = broker.NewJournal(cfg.Broker.JournalPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Broker.JournalPath).Msg("open journal")
		}
		defer journal.Close()
	}

	sess := bridge.NewSession(bridge.Config{
		Host:           cfg.Bridge.Host,
		Port:           cfg.Bridge.Port,
		DialTimeout:    millis(cfg.Bridge.DialTimeoutMs),
		RequestTimeout: millis(cfg.Bridge.RequestTimeoutMs),
	}, transport.NewTCP(), log)
	defer sess.Close()

	heartbeatEvery := time.Duration(cfg.Bridge.HeartbeatSecs) * time.Second
	if heartbeatEvery <= 0 {
		heartbeatEvery = 30 * time.Second
	}
	pollEvery := millis(cfg.Bridge.PollIntervalMs)
	if pollEvery <= 0 {
		pollEvery = time.Second
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	poll := time.NewTicker(pollEvery)
	defer poll.Stop()

	log.Info().Str("broker", account.Name()).Msg("terminal started")
	for {
		select {
		case <-ctx.Done():
			info := account.AccountInfo()
			log.Info().Float64("balance", info.Balance).Float64("equity", info.Equity).Msg("shutting down")
			return
		case <-heartbeat.C:
			sess.SendHeartbeat()
		case <-poll.C:
			if sess.State() != bridge.StateConnected {
				if !sess.Initialize() {
					log.Debug().Msg("producer unreachable, will retry")
					continue
				}
			}
			signals, err := sess.GetSignals()
			if err != nil {
				log.Warn().Err(err).Msg("poll failed")
				continue
			}
			for _, trade := range signals {
				result := account.Apply(trade, 0)
				if journal != nil {
					journal.Record(trade, result)
				}
				if result.Success {
					log.Info().
						Str("signal_id", trade.ID).
						Str("symbol", trade.Symbol).
						Str("action", string(trade.Action)).
						Str("order_id", result.OrderID).
						Msg("signal executed")
					sess.SendStatus("EXECUTED", fmt.Sprintf("%s %s order %s", trade.Action, trade.Symbol, result.OrderID))
				} else {
					log.Warn().
						Str("signal_id", trade.ID).
						Str("symbol", trade.Symbol).
						Str("reason", result.Message).
						Msg("signal rejected")
					sess.SendStatus("REJECTED", result.Message)
				}
			}
		}
	}
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
