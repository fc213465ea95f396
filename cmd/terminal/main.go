package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/wms-platform/picker-terminal/internal/api"
	"github.com/wms-platform/picker-terminal/internal/auth"
	"github.com/wms-platform/picker-terminal/internal/config"
	"github.com/wms-platform/picker-terminal/internal/diag"
	"github.com/wms-platform/picker-terminal/internal/domain"
	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
	"github.com/wms-platform/picker-terminal/internal/picking"
	"github.com/wms-platform/picker-terminal/internal/routing"
	"github.com/wms-platform/picker-terminal/internal/scan"
	"github.com/wms-platform/picker-terminal/internal/session"
)

// phase tracks which flow owns incoming scans
type phase int

const (
	phaseIdle phase = iota
	phasePicking
	phaseRouting
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(cfg.Service.Name)
	logConfig.Level = logging.LogLevel(cfg.Logging.Level)
	logConfig.Environment = cfg.Service.Environment
	logConfig.Version = cfg.Service.Version
	logConfig.AddSource = cfg.Logging.AddSource
	logger := logging.New(logConfig)
	logger.SetDefault()

	m := metrics.New(metrics.DefaultConfig(cfg.Service.Name))
	sink := metrics.LogSink{Logger: logger.WithComponent("events")}

	sess := auth.NewSession()
	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout(),
	}, sess, logger)
	authManager := auth.NewManager(client, sess, logger)

	store := session.New(logger)
	recon := picking.NewReconciler(store, client, m, sink, logger)
	coordinator := picking.NewCoordinator(store, recon, client, m, logger)
	resolver := routing.NewResolver(store, client, m, sink, logger)

	normalizer := scan.NewNormalizer(scan.SystemClock(), logger,
		scan.WithDebounceWindow(cfg.Scanner.Debounce()),
		scan.WithMetrics(m),
	)

	var diagServer *diag.Server
	if cfg.Diag.Enabled {
		diagServer = diag.New(cfg.Diag.Addr, cfg.Service.Version, store, m, logger)
		go diagServer.Run()
	}

	term := &terminal{
		client:      client,
		auth:        authManager,
		store:       store,
		coordinator: coordinator,
		resolver:    resolver,
		logger:      logger.WithComponent("terminal"),
		phase:       phaseIdle,
	}

	unsubscribe := normalizer.Subscribe(term.onScan)
	defer unsubscribe()

	wedge := scan.NewWedge(scan.SystemClock(), cfg.Scanner.WedgeTimeout(), func(barcode string) {
		normalizer.Emit(barcode, scan.SourceKeyboard)
	})

	logger.Info("Picker terminal started",
		"environment", cfg.Service.Environment,
		"version", cfg.Service.Version,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		term.commandLoop(normalizer, wedge)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("Shutting down on signal")
	case <-done:
		logger.Info("Shutting down")
	}

	recon.Wait()
	if diagServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := diagServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Diagnostics server shutdown failed")
		}
	}
}

// terminal is the interactive command surface wired over the picking core
type terminal struct {
	client      *api.Client
	auth        *auth.Manager
	store       *session.Store
	coordinator *picking.Coordinator
	resolver    *routing.Resolver
	logger      *logging.Logger
	phase       phase
}

// onScan dispatches a normalized scan to whichever flow is active
func (t *terminal) onScan(event scan.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch t.phase {
	case phasePicking:
		result, err := t.coordinator.HandleScan(ctx, event.Barcode, t.settled)
		if err != nil {
			fmt.Println("!", err)
			return
		}
		t.report(result)

	case phaseRouting:
		result, err := t.resolver.HandleInput(ctx, event.Barcode)
		if err != nil {
			fmt.Println("!", err)
			return
		}
		t.reportRoute(result)

	default:
		fmt.Println("! no batch in progress; scan ignored")
	}
}

// settled prints the reconciled outcome of a background confirmation
func (t *terminal) settled(outcome picking.Outcome) {
	if outcome.Err != nil {
		fmt.Printf("! pick not confirmed, reverted: %v\n", outcome.Err)
		return
	}
	fmt.Printf("  confirmed %s %d/%d\n", outcome.Item.SKU, outcome.Item.Picked, outcome.Item.Required)
}

func (t *terminal) report(result picking.ScanResult) {
	if result.ToteVerified {
		fmt.Println("  tote verified:", result.Tote)
		return
	}
	if result.Pick != nil {
		item := result.Pick.Item
		fmt.Printf("  picked %s %d/%d\n", item.SKU, item.Picked, item.Required)
	}
	switch result.Progress {
	case picking.ProgressNextOrder:
		fmt.Println("  order complete, next order")
	case picking.ProgressNextLocation:
		t.printLocation()
	case picking.ProgressPickingDone:
		t.enterRouting()
	}
	if result.NeedTote {
		fmt.Println("  scan the tote for the next order")
	}
}

func (t *terminal) reportRoute(result routing.RouteResult) {
	if result.Active != nil {
		fmt.Printf("  tote %s for order %s: take to %s, scan the drop location\n",
			result.Active.Barcode, result.Active.OrderNumber, result.Active.Destination)
	}
	if result.Routed != nil {
		fmt.Printf("  routed %s to %s (%d remaining)\n",
			result.Routed.Barcode, result.Routed.Location, result.Remaining)
	}
	if result.BatchComplete {
		fmt.Println("  batch complete")
		t.phase = phaseIdle
	}
}

func (t *terminal) enterRouting() {
	t.resolver.Rebuild()
	t.phase = phaseRouting
	fmt.Printf("  picking done, %d totes to route; scan a tote\n", t.resolver.Remaining())
	for _, tote := range t.resolver.Totes() {
		fmt.Printf("    %s order %s -> %s\n", tote.Barcode, tote.OrderNumber, tote.Destination)
	}
}

func (t *terminal) printLocation() {
	loc, ok := t.store.CurrentLocation()
	if !ok {
		return
	}
	fmt.Printf("  location %s: %s x%d (%d orders)\n", loc.Code, loc.SKU, loc.TotalQuantity, len(loc.Orders))
}

// commandLoop reads operator commands from stdin until EOF or quit
func (t *terminal) commandLoop(normalizer *scan.Normalizer, wedge *scan.Wedge) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		switch cmd {
		case "login":
			if len(args) != 2 {
				fmt.Println("usage: login <pickerId> <pin>")
				break
			}
			user, err := t.auth.Login(ctx, args[0], args[1])
			if err != nil {
				fmt.Println("!", err)
				break
			}
			fmt.Println("  logged in as", user.Name)

		case "batches":
			t.listBatches(ctx)

		case "start":
			if len(args) != 1 {
				fmt.Println("usage: start <batchId>")
				break
			}
			if err := t.coordinator.StartBatch(ctx, args[0]); err != nil {
				fmt.Println("!", err)
				break
			}
			t.phase = phasePicking
			t.printLocation()
			if t.coordinator.NeedTote() {
				fmt.Println("  scan the tote for the first order")
			}

		case "scan":
			if len(args) != 1 {
				fmt.Println("usage: scan <code>")
				break
			}
			normalizer.Emit(args[0], scan.SourceIntent)

		case "key":
			// Raw keyboard-wedge events, one key name per invocation
			if len(args) != 1 {
				fmt.Println("usage: key <key>")
				break
			}
			wedge.HandleKey(args[0])

		case "pick":
			t.manualPick(args)

		case "oversized":
			if len(args) != 1 {
				fmt.Println("usage: oversized <lineItemId>")
				break
			}
			result, err := t.coordinator.MarkOversized(args[0], t.settled)
			if err != nil {
				fmt.Println("!", err)
				break
			}
			t.report(result)

		case "none":
			if len(args) < 1 {
				fmt.Println("usage: none <lineItemId> [notes]")
				break
			}
			result, err := t.coordinator.MarkNoneRemaining(args[0], strings.Join(args[1:], " "), t.settled)
			if err != nil {
				fmt.Println("!", err)
				break
			}
			t.report(result)

		case "next":
			t.report(t.coordinator.SkipLocation())

		case "refresh":
			if err := t.coordinator.Refresh(ctx); err != nil {
				fmt.Println("!", err)
				break
			}
			t.printLocation()

		case "totes":
			for _, tote := range t.resolver.Totes() {
				state := "pending"
				if tote.Routed {
					state = "routed to " + tote.Location
				}
				fmt.Printf("  %s order %s -> %s (%s)\n", tote.Barcode, tote.OrderNumber, tote.Destination, state)
			}

		case "logout":
			if err := t.auth.Logout(ctx); err != nil {
				fmt.Println("!", err)
			}

		case "quit", "exit":
			cancel()
			return

		default:
			fmt.Println("commands: login batches start scan key pick oversized none next refresh totes logout quit")
		}
		cancel()
	}
}

func (t *terminal) listBatches(ctx context.Context) {
	batches, err := t.client.MyBatches(ctx)
	if err != nil {
		fmt.Println("!", err)
		return
	}
	for _, b := range domain.SortBatches(batches, domain.SortByPriority) {
		fmt.Printf("  %s %s [%s] %s, %d orders, %d items\n",
			b.ID, b.Number, b.Status, b.Priority, b.OrderCount, b.ItemCount)
	}
}

func (t *terminal) manualPick(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("usage: pick <lineItemId> [quantity]")
		return
	}
	quantity := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			fmt.Println("! quantity must be a positive integer")
			return
		}
		quantity = n
	}
	result, err := t.coordinator.ManualPick(args[0], quantity, t.settled)
	if err != nil {
		fmt.Println("!", err)
		return
	}
	t.report(result)
}
