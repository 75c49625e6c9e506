// Binary tui is an interactive control panel for editing the bridge
// configuration and launching the producer or terminal processes.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tradebridge-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== TradeBridge Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit bridge endpoint")
		fmt.Println("3) Edit risk knobs")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch producer")
		fmt.Println("6) Launch terminal")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editBridge(reader, cfg)
		case "3":
			editRisk(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launch(reader, "./cmd/producer")
		case "6":
			launch(reader, "./cmd/terminal")
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Bridge endpoint: %s:%d\n", cfg.Bridge.Host, cfg.Bridge.Port)
	fmt.Printf("Heartbeat: every %ds, producer timeout %ds\n", cfg.Bridge.HeartbeatSecs, cfg.Producer.HeartbeatTimeoutSecs)
	fmt.Printf("Feed: %s (%s)\n", cfg.Feed.Provider, strings.Join(cfg.Feed.Symbols, ", "))
	fmt.Printf("Strategy: %s (threshold %.4f, window %ds)\n", cfg.Strategy.Mode, cfg.Strategy.Params.Threshold, cfg.Strategy.Params.WindowSecs)
	fmt.Printf("Risk per trade: %.2f%% | SL %.0f pips | TP %.0f pips\n", cfg.Risk.MaxRiskPerTrade, cfg.Risk.StopLossPips, cfg.Risk.TakeProfitPips)
	fmt.Printf("Max lot size: %.2f | max notional: $%.0f\n", cfg.Risk.MaxLotSize, cfg.Risk.MaxNotionalPerTrade)
	fmt.Printf("Broker: %s starting at %s %.2f\n", cfg.Broker.Name, cfg.Broker.Currency, cfg.Broker.StartingBalance)
}

func editBridge(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Bridge Endpoint ---")
	fmt.Printf("Host [%s]: ", cfg.Bridge.Host)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Bridge.Host = strings.TrimSpace(line)
	}
	cfg.Bridge.Port = int(promptFloat(reader, "Port", float64(cfg.Bridge.Port)))
	cfg.Bridge.HeartbeatSecs = int(promptFloat(reader, "Heartbeat interval (secs)", float64(cfg.Bridge.HeartbeatSecs)))
	cfg.Bridge.PollIntervalMs = int(promptFloat(reader, "Poll interval (ms)", float64(cfg.Bridge.PollIntervalMs)))
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk ---")
	cfg.Risk.MinConfidence = promptFloat(reader, "Min confidence", cfg.Risk.MinConfidence)
	cfg.Risk.MaxRiskPerTrade = promptFloat(reader, "Risk per trade (%)", cfg.Risk.MaxRiskPerTrade)
	cfg.Risk.StopLossPips = promptFloat(reader, "Stop loss (pips)", cfg.Risk.StopLossPips)
	cfg.Risk.TakeProfitPips = promptFloat(reader, "Take profit (pips)", cfg.Risk.TakeProfitPips)
	cfg.Risk.MaxLotSize = promptFloat(reader, "Max lot size", cfg.Risk.MaxLotSize)
	cfg.Risk.MaxNotionalPerTrade = promptFloat(reader, "Max notional per trade (USD)", cfg.Risk.MaxNotionalPerTrade)
	cfg.Risk.AccountBalance = promptFloat(reader, "Sizing account balance (USD)", cfg.Risk.AccountBalance)
}

func launch(reader *bufio.Reader, pkg string) {
	fmt.Printf("Launching %s (Ctrl+C to stop)...\n", pkg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", pkg)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Clean(defaultConfigPath)
}
