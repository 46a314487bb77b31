package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/dragtree/internal/api"
	"github.com/banshee-data/dragtree/internal/board"
	"github.com/banshee-data/dragtree/internal/config"
	"github.com/banshee-data/dragtree/internal/db"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/race"
	"github.com/banshee-data/dragtree/internal/results"
	"github.com/banshee-data/dragtree/internal/serialmux"
	"github.com/banshee-data/dragtree/internal/timeutil"
	"github.com/banshee-data/dragtree/internal/version"
)

var (
	configPath  = flag.String("config", "", "Race config JSON file (defaults apply when empty)")
	listen      = flag.String("listen", ":8080", "Listen address")
	port        = flag.String("port", "/dev/ttyACM0", "IO board serial port (ignored in dev mode)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "IO board baud rate")
	devMode     = flag.Bool("dev", false, "Run without an IO board; every lane is simulated")
	dbPath      = flag.String("db", "dragtree.db", "Race history database; empty disables history")
	debugMode   = flag.Bool("debug", false, "Log sensor-level debug output")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// recorderQueue holds completed races waiting for the database.
const recorderQueue = 16

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if flag.NArg() > 0 {
		if err := runSubcommand(flag.Arg(0), flag.Args()[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*debugMode)
	log.Print(version.String())

	settings, err := loadSettings(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var boardSerial serialmux.SerialMuxInterface
	var brd *board.Board
	if *devMode {
		boardSerial = serialmux.NewDisabledSerialMux()
	} else {
		if *port == "" {
			log.Fatal("Serial port is required")
		}
		boardSerial, err = serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("failed to open IO board: %v", err)
		}
		brd = board.New(boardSerial)
	}
	defer boardSerial.Close()

	if err := boardSerial.Initialize(); err != nil {
		log.Fatalf("failed to initialize IO board: %v", err)
	}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer database.Close()
	}

	r := buildRig(settings, brd, *debugMode)
	completed := make(chan results.Race, recorderQueue)
	manager := race.NewManager(timeutil.RealClock{}, r.bus, r.lanes, settings.Race,
		race.WithOnComplete(func(res results.Race) {
			select {
			case completed <- res:
			default:
				monitoring.Logf("recorder queue full, dropping race %s", res.ID)
			}
		}))
	runner := race.NewRunner(manager, settings.LoopInterval, r.startBtn, r.resetBtn)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := boardSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if brd != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := brd.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("board routine failed: %v", err)
			}
			log.Print("board routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("race loop failed: %v", err)
		}
		log.Print("race loop terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(ctx, database, completed)
		log.Print("recorder routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		var store api.RaceStore
		if database != nil {
			store = database
		}
		mux := api.NewServer(runner, store).ServeMux()
		boardSerial.AttachAdminRoutes(mux)
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func loadSettings(path string) (config.Settings, error) {
	cfg := config.EmptyRaceConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadRaceConfig(path); err != nil {
			return config.Settings{}, err
		}
	}
	return cfg.Resolve()
}

// record writes completed races to the database, or drains them when
// history is disabled.
func record(ctx context.Context, database *db.DB, completed <-chan results.Race) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-completed:
			if database == nil {
				continue
			}
			if err := database.RecordRace(res); err != nil {
				log.Printf("failed to record race %s: %v", res.ID, err)
			} else {
				monitoring.Debugf("recorded race %s", res.ID)
			}
		}
	}
}

func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), `dragtree - drag race light tree controller

Usage:
  dragtree [flags]                 run the controller
  dragtree [flags] migrate <action> manage the race history schema
  dragtree ctl <command> [--addr]  drive a running controller

Flags:
`)
	flag.PrintDefaults()
}
