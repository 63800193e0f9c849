package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/contactkeval/roll-monitor/internal/cache"
	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/display"
	"github.com/contactkeval/roll-monitor/internal/journal"
	"github.com/contactkeval/roll-monitor/internal/logger"
	"github.com/contactkeval/roll-monitor/internal/market"
	"github.com/contactkeval/roll-monitor/internal/notify"
	"github.com/contactkeval/roll-monitor/internal/position"
	"github.com/contactkeval/roll-monitor/internal/roll"
	"github.com/contactkeval/roll-monitor/internal/server"
)

// appConfig is the JSON config file. Flags override file values.
type appConfig struct {
	Roll            roll.Config `json:"roll"`
	GatewayURL      string      `json:"gateway_url,omitempty"`
	IntervalSeconds int         `json:"interval_seconds,omitempty"`
	JournalPath     string      `json:"journal_path,omitempty"`
	PositionsPath   string      `json:"positions_path,omitempty"`
	DiscordToken    string      `json:"discord_token,omitempty"`
	DiscordChannel  string      `json:"discord_channel,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "path to JSON config")
	gatewayURL := flag.String("gateway", "", "IBKR Client Portal Gateway base URL")
	targetDelta := flag.Float64("target-delta", 0, "target delta for new strikes (overrides config)")
	dteThreshold := flag.Int("dte-threshold", 0, "scan positions with DTE <= this (overrides config)")
	interval := flag.Int("interval", 0, "check interval in seconds (overrides config)")
	once := flag.Bool("once", false, "run a single scan and exit")
	skipMarketCheck := flag.Bool("skip-market-check", false, "scan even when the market is closed")
	synthetic := flag.Bool("synthetic", false, "use the deterministic synthetic provider")
	synthSpot := flag.Float64("synthetic-spot", 430, "spot price for the synthetic provider")
	positionsPath := flag.String("positions", "", "JSON positions file instead of the portfolio API")
	rest := flag.Bool("rest", false, "serve the read API alongside the loop")
	port := flag.String("port", ":8081", "read API listen address")
	journalPath := flag.String("journal", "", "path to the zstd scan journal")
	verbosity := flag.Int("v", 1, "verbosity: 0=errors 1=info 2=debug 3=trace")
	flag.Parse()

	logger.SetVerbosity(*verbosity)

	var cfg appConfig
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("reading config: %v", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}

	// Flag overrides.
	if *gatewayURL != "" {
		cfg.GatewayURL = *gatewayURL
	}
	if *targetDelta != 0 {
		cfg.Roll.TargetDelta = *targetDelta
	}
	if *dteThreshold != 0 {
		cfg.Roll.DTEAlert = *dteThreshold
	}
	if *interval != 0 {
		cfg.IntervalSeconds = *interval
	}
	if *positionsPath != "" {
		cfg.PositionsPath = *positionsPath
	}
	if *journalPath != "" {
		cfg.JournalPath = *journalPath
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 300
	}

	// Provider selection.
	var prov data.Provider
	if *synthetic {
		prov = data.NewSyntheticProvider(*synthSpot, 0.25)
		logger.Infof("synthetic provider enabled spot=%.2f", *synthSpot)
	} else {
		prov = data.NewIBKRProvider(cfg.GatewayURL, data.DefaultRetryPolicy())
	}
	if cfg.PositionsPath != "" {
		prov = &position.FileProvider{Provider: prov, Path: cfg.PositionsPath}
		logger.Infof("positions file enabled path=%s", cfg.PositionsPath)
	}

	quotes := cache.New()
	source := cache.NewFetcher(quotes, prov)

	monitor, err := roll.NewMonitor(cfg.Roll, prov, source)
	if err != nil {
		log.Fatalf("monitor setup: %v", err)
	}

	var jw *journal.Writer
	if cfg.JournalPath != "" {
		jw, err = journal.NewWriter(cfg.JournalPath)
		if err != nil {
			log.Fatalf("journal setup: %v", err)
		}
	}

	notifier := notify.NewDiscordNotifier(cfg.DiscordToken, cfg.DiscordChannel)

	api := server.New(quotes)
	if *rest {
		go func() {
			if err := api.ListenAndServe(*port); err != nil {
				log.Fatalf("read API: %v", err)
			}
		}()
	}

	eff := monitor.Config()
	fmt.Printf("Roll Options Monitor\n")
	fmt.Printf("  target delta: %.2f (tolerance %.2f)\n", eff.TargetDelta, eff.DeltaTolerance)
	fmt.Printf("  alert when DTE <= %d, roll window %d-%d DTE\n", eff.DTEAlert, eff.MinDTE, eff.MaxDTE)
	fmt.Printf("  check interval: %ds\n\n", cfg.IntervalSeconds)

	iteration := 0
	for {
		iteration++
		now := time.Now()
		fmt.Printf("[%s] Check #%d\n", now.UTC().Format("2006-01-02 15:04:05 UTC"), iteration)

		if !*skipMarketCheck && !market.IsOpen(now) {
			status := market.GetStatus(now)
			fmt.Printf("market closed: %s (%s %s)\n", status.Reason, status.Weekday, status.Local)
			if *once {
				break
			}
			time.Sleep(time.Duration(cfg.IntervalSeconds) * time.Second)
			continue
		}

		runScan(monitor, prov, quotes, jw, notifier, api, now)

		if *once {
			break
		}
		fmt.Printf("\nnext check in %ds (Ctrl+C to stop)\n\n", cfg.IntervalSeconds)
		time.Sleep(time.Duration(cfg.IntervalSeconds) * time.Second)
	}
}

// runScan performs one full pass: scan, render, journal, publish, notify.
func runScan(monitor *roll.Monitor, prov data.Provider, quotes *cache.QuoteCache, jw *journal.Writer, notifier *notify.DiscordNotifier, api *server.Server, now time.Time) {
	// One portfolio fetch serves both the summary table and the scan.
	positions, err := prov.Positions()
	if err != nil {
		logger.Errorf("fetching positions: %v", err)
		return
	}
	display.PositionsSummary(os.Stdout, positions, now)

	reports := monitor.ScanPositions(positions)

	fmt.Println()
	found, skipped, warned := 0, 0, 0
	for _, r := range reports {
		display.Report(os.Stdout, r)
		switch r.Outcome {
		case roll.OutcomeRolls:
			found++
		case roll.OutcomeExpiringSkip:
			skipped++
		case roll.OutcomeDataGap, roll.OutcomeNoExpiry:
			warned++
		}

		if monitor.ShouldAlert(r) {
			if err := notifier.SendMessage(notify.FormatRollAlert(r)); err != nil {
				logger.Errorf("notify failed: %v", err)
			}
		}
	}
	fmt.Printf("\nsummary: %d roll option(s), %d expiring skipped, %d warning(s)\n", found, skipped, warned)

	quotes.ClearExpired()
	display.CacheStats(os.Stdout, quotes.Stats())

	scanID := ""
	if jw != nil {
		scanID, err = jw.Append(reports, quotes.Stats())
		if err != nil {
			logger.Errorf("journal append failed: %v", err)
		} else {
			logger.Debugf("journaled scan id=%s", scanID)
		}
	}
	api.Publish(scanID, reports)
}
