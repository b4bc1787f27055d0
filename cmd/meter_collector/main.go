// Responsible for storing the latest datapoints collected from the meter.
// Depends on the interpreter API being online.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/teleinfo/pkg/config"
	"github.com/NotCoffee418/teleinfo/pkg/interpreter"
	"github.com/NotCoffee418/teleinfo/pkg/meterdb"
	"github.com/NotCoffee418/teleinfo/pkg/pathing"
	"github.com/NotCoffee418/teleinfo/pkg/types"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	var configPath, dbPath string
	flagSet := pflag.NewFlagSet("meter_collector", pflag.ExitOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to meter_collector.toml (default: config dir)")
	flagSet.StringVar(&dbPath, "db", pathing.GetMeterDbPath(), "path to the meter database")
	flagSet.Parse(os.Args[1:])

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadMeterCollectorConfig(configPath); err != nil {
		log.Fatalf("Failed to load meter collector config: %v", err)
	}
	cfg := config.ActiveMeterCollectorConfig
	config.ConfigureLogging(cfg.LogLevel)

	// Initialize database
	store, err := meterdb.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open meter database: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Subscribe to websocket with revive
	err = interpreter.StartListener(ctx, cfg.InterpreterAPIHost, cfg.TLSEnabled, func(msg *types.DatapointMessage) {
		if err := store.UpsertDatapoint(meterdb.NewMeterDbDatapoint(msg)); err != nil {
			log.WithField("key", msg.Key).Errorf("Failed to store datapoint: %v", err)
		}
	})
	if err != nil {
		log.Errorf("Listener stopped: %v", err)
		store.Close()
		os.Exit(1)
	}
}
