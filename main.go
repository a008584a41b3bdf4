package main

import (
	"context"
	"errors"
	"evcp/chargepoint"
	"evcp/internal"
	"evcp/internal/config"
	"evcp/metrics"
	"evcp/ocpp/core"
	"evcp/pusher"
	"evcp/signature"
	"evcp/telegram"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	conf, err := config.GetConfig(*configPath)
	if err != nil {
		log.Println("configuration failed", err)
		return
	}

	logger := internal.NewLogger(conf.ChargePoint.Id, time.Local)
	logger.SetDebugMode(conf.IsDebug)
	defer logger.Close()

	database, err := openStore(conf)
	if err != nil {
		logger.Error("opening store", err)
		return
	}
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				log.Println("closing store", err)
			}
		}()
		logger.SetDatabase(database)
	}

	signatures, err := signaturePolicies(conf)
	if err != nil {
		logger.Error("signature policy", err)
		return
	}

	client := chargepoint.NewClient(conf, logger)
	cp, err := chargepoint.NewChargePoint(conf, client, signatures, logger)
	if err != nil {
		logger.Error("charge point initialization failed", err)
		return
	}
	if database != nil {
		if err = cp.SetDatabase(database); err != nil {
			logger.Error("restoring state", err)
			return
		}
	}
	cp.OnReset(func(resetType core.ResetType) {
		logger.Warn("reset requested: " + string(resetType))
	})

	if conf.Telegram.Enabled {
		bot, err := telegram.NewBot(conf.Telegram.ApiKey, logger)
		if err != nil {
			logger.Error("telegram bot", err)
		} else {
			bot.SetDatabase(database)
			bot.SetStatusProvider(cp)
			bot.Start()
			defer bot.Stop()
			cp.AddEventHandler(bot)
		}
	}

	messagePusher, err := pusher.NewPusher(conf, logger)
	if err != nil {
		logger.Error("pusher", err)
	} else if messagePusher != nil {
		messagePusher.Start()
		defer messagePusher.Stop()
		cp.AddEventHandler(messagePusher)
	}

	server := metrics.NewServer(conf, func() (bool, string) {
		status := cp.Registration().Status()
		return client.IsConnected() && cp.Registration().HeartbeatsEnabled(), string(status)
	}, cp.WriteStatus)
	if server != nil {
		go func() {
			logger.FeatureEvent("Metrics", conf.ChargePoint.Id, "listening on "+server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cp.Start(ctx)
	<-ctx.Done()

	logger.Warn("shutting down")
	cp.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// openStore nil for the in-memory default
func openStore(conf *config.Config) (internal.Database, error) {
	switch conf.Store.Type {
	case "badger":
		return internal.NewBadgerStore(conf.Store.Path, conf.ChargePoint.Id)
	case "mongo":
		return internal.NewMongoClient(conf)
	default:
		return nil, nil
	}
}

func signaturePolicies(conf *config.Config) (*signature.Set, error) {
	options := signature.Options{
		KeyId:             conf.Signature.KeyId,
		VerifyRequests:    conf.Signature.VerifyRequests,
		VerifyResponses:   conf.Signature.VerifyResponses,
		RequireSignatures: conf.Signature.RequireSignatures,
	}
	var policy signature.Policy
	var err error
	switch conf.Signature.Policy {
	case "hmac":
		policy, err = signature.NewHMAC(conf.Signature.Secret, options)
	case "ed25519":
		policy, err = signature.NewEd25519(conf.Signature.PrivateKey, conf.Signature.PeerPublicKey, options)
	default:
		policy = signature.NoSignature{}
	}
	if err != nil {
		return nil, err
	}
	return signature.NewSet(policy), nil
}
