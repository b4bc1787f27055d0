// Interpreter API is responsible for reading the TIC port and broadcasting the datapoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/api"
	"github.com/NotCoffee418/teleinfo/pkg/config"
	"github.com/NotCoffee418/teleinfo/pkg/decoder"
	"github.com/NotCoffee418/teleinfo/pkg/mqttbridge"
	"github.com/NotCoffee418/teleinfo/pkg/pathing"
	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	"github.com/NotCoffee418/teleinfo/pkg/tic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	flagSet := pflag.NewFlagSet("interpreter_api", pflag.ExitOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to interpreter_api.toml (default: config dir)")
	flagSet.Parse(os.Args[1:])

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	// Load config
	if err := config.LoadInterpreterAPIConfig(configPath); err != nil {
		log.Fatalf("Failed to load interpreter API config: %v", err)
	}
	cfg := config.ActiveInterpreterAPIConfig
	config.ConfigureLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub := publisher.New(cfg.EffectiveTotalEnergyKey())

	sensors, err := cfg.BuildSensors()
	if err != nil {
		log.Fatalf("Invalid sensors: %v", err)
	}
	sensors.Attach(pub)

	server := api.NewServer(pub, sensors)

	if cfg.MQTT.Broker != "" {
		_, client, err := mqttbridge.Dial(cfg.MQTT, pub)
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		defer client.Disconnect(250)
	}

	dec, err := newDecoder(cfg, pub)
	if err != nil {
		log.Fatalf("Invalid decoder settings: %v", err)
	}

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	httpServer := &http.Server{Addr: listener, Handler: server.Handler()}

	log.Printf("Starting Teleinfo Interpreter API on %s", listener)
	if err := serve(ctx, dec, cfg.PollInterval(), httpServer); err != nil {
		log.Fatal(err)
	}
	log.Info("Interpreter API stopped")
}

type poller interface {
	Run(ctx context.Context, interval time.Duration) error
}

// serve polls the TIC port and serves HTTP until ctx is done. It returns only
// once polling has stopped, so the cycle in flight has closed the port.
func serve(ctx context.Context, dec poller, interval time.Duration, httpServer *http.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollErr := make(chan error, 1)
	go func() {
		err := dec.Run(ctx, interval)
		if errors.Is(err, context.Canceled) {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("TIC polling stopped: %w", err)
		}
		// Stop serving when polling ends for any reason.
		cancel()
		pollErr <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		httpServer.Shutdown(shutdownCtx)
	}()

	serveErr := httpServer.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	cancel()

	return errors.Join(serveErr, <-pollErr)
}

func newDecoder(cfg *config.InterpreterAPIConfig, pub *publisher.Publisher) (*decoder.Decoder, error) {
	serialOpts, err := cfg.SerialOptions()
	if err != nil {
		return nil, err
	}
	sep, err := cfg.SeparatorByte()
	if err != nil {
		return nil, err
	}
	return decoder.New(decoder.Options{
		Device: cfg.SerialDevice,
		Serial: serialOpts,
		Parser: tic.Parser{Separator: sep},
	}, pub), nil
}
