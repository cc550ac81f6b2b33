// cmd/couplerio/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tamzrod/coupler-io/internal/api"
	"github.com/tamzrod/coupler-io/internal/config"
	"github.com/tamzrod/coupler-io/internal/engine"
	"github.com/tamzrod/coupler-io/internal/logging"
	"github.com/tamzrod/coupler-io/internal/publish"
)

func main() {
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		boot.Fatal().Msg("usage: couplerio <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}

	if err := config.Validate(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		boot.Fatal().Err(err).Msg("logging setup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Sinks
	// --------------------

	var opts []engine.Option
	var pub *publish.Publisher

	if cfg.MQTT.Broker != "" {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "couplerio-" + uuid.NewString()[:8]
		}
		pub = publish.New(publish.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: clientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Prefix:   cfg.MQTT.Prefix,
			QoS:      cfg.MQTT.QoS,
			Retain:   cfg.MQTT.Retain,
		}, logging.Component(log, "mqtt"))

		if err := pub.Connect(); err != nil {
			log.Fatal().Err(err).Msg("mqtt connect failed")
		}
		defer pub.Close()
		opts = append(opts, engine.WithSink(pub))
	}

	// --------------------
	// Engine
	// --------------------

	eng, err := engine.New(cfg, logging.Component(log, "engine"), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("engine build failed")
	}
	defer eng.Close()

	if pub != nil {
		if err := pub.Subscribe(ctx, eng.Write); err != nil {
			log.Fatal().Err(err).Msg("mqtt subscribe failed")
		}
	}

	var wg sync.WaitGroup

	if cfg.HTTP.Listen != "" {
		router := api.NewRouter(eng, logging.Component(log, "http"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, cfg.HTTP.Listen, router, log); err != nil {
				log.Error().Err(err).Msg("http server failed")
				stop()
			}
		}()
	}

	log.Info().Str("config", cfgPath).Str("instance", eng.ID()).Msg("couplerio started")

	if err := eng.Run(ctx); err != nil {
		log.Error().Err(err).Msg("engine stopped")
	}

	wg.Wait()
	log.Info().Msg("couplerio stopped")
}
