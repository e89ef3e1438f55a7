package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"whatsapp-commerce-gateway/internal/config"
	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/catalog"
	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/convstore"
	"whatsapp-commerce-gateway/internal/core/delivery"
	"whatsapp-commerce-gateway/internal/core/dispatcher"
	"whatsapp-commerce-gateway/internal/core/fsm"
	"whatsapp-commerce-gateway/internal/core/intent"
	"whatsapp-commerce-gateway/internal/core/phrase"
	"whatsapp-commerce-gateway/internal/core/remote"
	"whatsapp-commerce-gateway/internal/core/tenant"
	"whatsapp-commerce-gateway/internal/core/transport"
	"whatsapp-commerce-gateway/internal/platform/logging"
)

// catalogTTL bounds how long a fetched menu tree is trusted before the
// next lookup refetches it from the remote backend.
const catalogTTL = time.Minute

func main() {
	cfg := config.LoadConfig()
	logging.Init(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting whatsapp-commerce-gateway")

	client := remote.New(remote.Config{
		BaseURL:               cfg.RemoteBaseURL,
		APIKey:                cfg.RemoteAPIKey,
		RequestTimeout:        cfg.RequestTimeout,
		MaxRetries:            cfg.MaxRetries,
		RetryDelay:            cfg.RetryDelay,
		RateLimitMode:         cfg.RateLimitMode,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
	})

	menuCatalog := catalog.New(client, catalogTTL)
	menuLookup := fsm.NewMenuLookup(menuCatalog, cfg.ExtrasPriceTable)
	cartEngine := cart.NewEngine(menuLookup)
	pricer := delivery.NewPricer(client)
	classifier := intent.NewClassifier(intent.DefaultKeywordSets())
	composer := compose.NewComposer()

	var phraseGen phrase.Generator
	if cfg.OpenAIKey != "" {
		phraseGen = phrase.NewOpenAIGenerator(cfg.OpenAIKey, "gpt-4o-mini", 0.8, 60)
	}

	var store convstore.Store
	if cfg.ConvSyncEnabled {
		store = convstore.New(client, cfg.RequestTimeout)
	} else {
		log.Warn().Msg("CONV_SYNC_ENABLED=false, conversation snapshots will not be persisted")
		store = convstore.NewNoop()
	}

	tenants := tenant.NewStaticLookup()
	tenants.Register(tenant.Config{
		TenantID:      stringEnv("TENANT_ID", "default"),
		SubDomain:     stringEnv("SUB_DOMAIN", "default"),
		LocalID:       stringEnv("LOCAL_ID", "main"),
		RestaurantLat: cfg.RestaurantLat,
		RestaurantLng: cfg.RestaurantLng,
		TaxRate:       cfg.TaxRate,
		PhraseEnabled: phraseGen != nil,
	}, os.Getenv("ROUTED_PHONE"))

	engine := fsm.New(fsm.Capabilities{
		Remote:        client,
		Catalog:       menuCatalog,
		CartEngine:    cartEngine,
		Pricer:        pricer,
		Classifier:    classifier,
		Composer:      composer,
		PhraseGen:     phraseGen,
		PhraseTimeout: cfg.PhraseTimeout,
	})

	whatsapp, err := transport.NewCloudAPIProvider(transport.CloudAPIConfig{
		PhoneID:     os.Getenv("WHATSAPP_PHONE_ID"),
		AccessToken: os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		APIVersion:  stringEnv("WHATSAPP_API_VERSION", "v20.0"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build WhatsApp Cloud API transport")
	}

	disp := dispatcher.New(dispatcher.Config{
		Engine:      engine,
		Store:       store,
		Transport:   whatsapp,
		Tenants:     tenants,
		ExtrasPrice: cfg.ExtrasPriceTable,
		IdleTTL:     cfg.SessionIdleTTL,
	})
	if err := disp.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start dispatcher")
	}
	defer disp.Stop()

	app := fiber.New()
	verifyToken := os.Getenv("WEBHOOK_VERIFY_TOKEN")

	// GET /webhook/:tenant is the Cloud API subscription handshake: Meta
	// calls this once when the webhook URL is registered. Actual signature
	// verification of inbound deliveries is out of scope here — this is
	// only the one-time handshake, not a security boundary.
	app.Get("/webhook/:tenant", func(c *fiber.Ctx) error {
		if c.Query("hub.mode") == "subscribe" && c.Query("hub.verify_token") == verifyToken {
			return c.SendString(c.Query("hub.challenge"))
		}
		return c.SendStatus(fiber.StatusForbidden)
	})

	app.Post("/webhook/:tenant", func(c *fiber.Ctx) error {
		tenantID := c.Params("tenant")
		evs, err := transport.ParseWebhook(tenantID, c.Body())
		if err != nil {
			log.Warn().Err(err).Str("tenant", tenantID).Msg("failed to parse inbound webhook")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
		for _, ev := range evs {
			if err := disp.Handle(c.Context(), ev); err != nil {
				log.Error().Err(err).Str("tenant", tenantID).Msg("dispatcher rejected event")
			}
		}
		return c.JSON(fiber.Map{"status": "received"})
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(client.GetMetrics())
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("fiber server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("fiber server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
