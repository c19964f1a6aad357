package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"svcdesk/internal/api"
	"svcdesk/internal/complaint"
	"svcdesk/internal/config"
	"svcdesk/internal/desk"
	"svcdesk/internal/events"
	"svcdesk/internal/evidence"
	"svcdesk/internal/health"
	"svcdesk/internal/parser"
	"svcdesk/internal/server"
	"svcdesk/internal/storage"
	"svcdesk/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("🚀 Starting service desk...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Println("⚠️  Unknown LOG_LEVEL, using info:", cfg.LogLevel)
	}
	api.Configure(cfg.HTTPTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("📋 Opening complaint storage...")
	slot, closeSlot, err := openSlot(ctx, cfg)
	if err != nil {
		log.Fatal("❌ Failed to open storage: ", err)
	}
	defer closeSlot()

	store := complaint.NewStore(slot)
	if _, err := store.Load(ctx); err != nil {
		log.Fatal("❌ Failed to load complaints: ", err)
	}

	log.Println("📨 Initializing Telegram...")
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal("❌ Failed to create data directory: ", err)
	}
	messages := storage.NewMessageLog(filepath.Join(cfg.DataDir, "telegram_messages.csv"))
	bot := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID, messages,
		telegram.WithDebugMode(cfg.DebugMode),
		telegram.WithCurrency(cfg.Currency),
	)

	var publishers []events.Publisher
	if bot != nil {
		publishers = append(publishers, bot)
	}
	if cfg.MQTTBroker != "" {
		mqttPub, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			log.Println("⚠️  MQTT disabled:", err)
		} else {
			defer mqttPub.Close()
			publishers = append(publishers, mqttPub)
		}
	}
	dispatcher := events.NewDispatcher(cfg.EventWorkers, publishers...)

	monitor := health.NewMonitor(cfg.StorageBackend)
	monitor.SetEventStats(dispatcher.Stats)

	uploader, evidenceDir, err := openUploader(ctx, cfg)
	if err != nil {
		log.Fatal("❌ Failed to set up evidence storage: ", err)
	}

	opts := []desk.Option{
		desk.WithEvents(dispatcher),
		desk.WithMonitor(monitor),
		desk.WithUploader(uploader),
		desk.WithCurrency(cfg.Currency),
	}
	if bot != nil {
		opts = append(opts, desk.WithAlerter(bot))
	}
	if p := parser.NewParser(cfg.GeminiAPIKey, cfg.GeminiModel, parser.WithTimeout(cfg.ParseTimeout)); p != nil {
		opts = append(opts, desk.WithExtractor(p))
	}
	svc := desk.New(store, opts...)

	if bot != nil {
		go bot.HandleUpdates(ctx, svc)
		go svc.RunReportTicker(ctx, cfg.ReportInterval, bot)
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.NewHandler(svc), monitor, evidenceDir)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("🌐 HTTP API listening on :%s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ HTTP server failed: ", err)
		}
	}()

	log.Println("✅ Service desk ready")
	log.Println("═══════════════════════════════════════════════════════════")

	<-ctx.Done()
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️  HTTP shutdown:", err)
	}

	dispatcher.Close()
	svc.Wait()
	log.Println("👋 Bye")
}

// openSlot returns the persistence slot for the configured backend and a
// function releasing it.
func openSlot(ctx context.Context, cfg *config.Config) (complaint.Slot, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath, cfg.DebugMode)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLiteSlot(db, cfg.StorageKey), func() { storage.CloseSQLite(db) }, nil

	case config.BackendMongo:
		client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		slot := &storage.MongoSlot{
			Collection: client.Database(cfg.MongoDB).Collection(cfg.MongoCollection),
			Key:        cfg.StorageKey,
		}
		release := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				log.Println("⚠️  Mongo disconnect:", err)
			}
		}
		return slot, release, nil

	default:
		slot, err := storage.NewFileSlot(cfg.DataDir, cfg.StorageKey)
		if err != nil {
			return nil, nil, err
		}
		log.Println("✓ Using file storage at", slot.Path())
		return slot, func() {}, nil
	}
}

// openUploader returns the evidence store and, for local storage, the
// directory the HTTP server should expose.
func openUploader(ctx context.Context, cfg *config.Config) (evidence.Uploader, string, error) {
	if cfg.R2Enabled() {
		u, err := evidence.NewR2Uploader(ctx, cfg.R2Bucket, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2Endpoint, cfg.R2PublicURL)
		if err != nil {
			return nil, "", err
		}
		return u, "", nil
	}

	u, err := evidence.NewLocalUploader(cfg.EvidenceDir, "/evidence")
	if err != nil {
		return nil, "", err
	}
	log.Println("✓ Storing evidence locally in", cfg.EvidenceDir)
	return u, cfg.EvidenceDir, nil
}
