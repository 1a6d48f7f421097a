// wg-gesucht-easyfinder: listing ingestion and saved-search matching
//
// Scrapes rental listings from wg-gesucht.de into the offer store, runs every
// user's finders against the active offers using travel times from Google
// Maps, and delivers new matches over Redis and Telegram.
// Maintenance jobs keep the stores and caches tidy. A small ops API exposes
// health, counts and manual job triggers.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/api"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/config"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/db"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/matcher"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/notify"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/page"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/scheduler"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/scraper"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/store"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/travel"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[easyfinder] Config error: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Document store ──────────────────────────────────────────────────────
	log.Printf("[easyfinder] Opening %s document store…", cfg.StoreDriver)
	colls, err := db.Open(ctx, db.Options{
		Driver:        cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		SQLitePath:    cfg.SQLitePath,
		Timeout:       cfg.StoreTimeout,
	})
	if err != nil {
		log.Fatalf("[easyfinder] Document store: %v", err)
	}
	defer func() {
		if err := colls.Close(context.Background()); err != nil {
			log.Printf("[easyfinder] Document store close: %v", err)
		}
	}()
	log.Println("[easyfinder] Document store ready ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[easyfinder] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[easyfinder] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[easyfinder] Redis connected ✓")

	// ── Stores ───────────────────────────────────────────────────────────────
	opts := []store.Option{store.WithTTL(cfg.CacheTTL)}
	finders := store.NewFinderStore(colls.Finders, cfg.FinderLife, opts...)
	offers := store.NewOfferStore(colls.Offers, cfg.OfferLife, opts...)
	users := store.NewUserStore(colls.Users, finders, opts...)

	// ── Travel and delivery ──────────────────────────────────────────────────
	maps, err := travel.NewGoogleMaps(cfg.GoogleMapsAPIKey, cfg.SiteCity, cfg.TravelTimeout)
	if err != nil {
		log.Fatalf("[easyfinder] Google Maps: %v", err)
	}
	addresses := travel.NewCachedValidator(maps, rdb, travel.DefaultAddressTTL)

	notifiers := notify.Multi{notify.NewRedisPublisher(rdb)}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("[easyfinder] Telegram: %v", err)
		}
		notifiers = append(notifiers, tg)
		log.Println("[easyfinder] Telegram delivery enabled ✓")
	}

	engine := matcher.NewEngine(offers, finders, users, maps, notifiers, matcher.Options{
		LookupTimeout:     cfg.TravelTimeout,
		MaxLookupFailures: cfg.TravelMaxRetries,
	})

	// ── Parser ───────────────────────────────────────────────────────────────
	browser, err := page.NewCollyBrowser(cfg.ScrapeRequestDelay)
	if err != nil {
		log.Fatalf("[easyfinder] Browser: %v", err)
	}
	parser := scraper.New(browser, offers, scraper.Config{
		BaseURL:      cfg.SiteBaseURL,
		City:         cfg.SiteCity,
		CityID:       cfg.SiteCityID,
		OfferType:    cfg.SiteOfferType,
		MaxPages:     cfg.ScrapeMaxPages,
		ExcludeTerms: cfg.ScrapeExcludeTerms,
	})

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Jobs(scheduler.Deps{
		Caches:     []scheduler.CacheCleaner{offers, users, finders},
		Offers:     offers,
		Finders:    finders,
		Parser:     parser,
		Matcher:    engine,
		ParseEvery: time.Duration(cfg.ScrapeIntervalHours) * time.Hour,
		MatchEvery: time.Duration(cfg.MatchIntervalMinutes) * time.Minute,
	})...)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[easyfinder] Scheduler: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	h := api.NewHandler(ctx, api.Deps{
		Offers:  offers,
		Users:   users,
		Finders: finders,
		Jobs:    sched,
		Matches: func(ctx context.Context, chatID int64) ([]*model.Offer, error) {
			return finders.MatchedOffers(ctx, chatID, offers)
		},
		SetAddress: func(ctx context.Context, chatID int64, address string) (*model.User, error) {
			return users.SetAddress(ctx, chatID, address, addresses)
		},
		Version: version,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.OpsPort),
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[easyfinder] v%s ops API listening on :%s", version, cfg.OpsPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[easyfinder] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[easyfinder] Shutting down…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[easyfinder] Shutdown error: %v", err)
	}
	sched.Stop()
	log.Println("[easyfinder] Stopped.")
}
