package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonfrank/campsite-pipeline/browser"
	"github.com/jonfrank/campsite-pipeline/config"
	"github.com/jonfrank/campsite-pipeline/images"
	"github.com/jonfrank/campsite-pipeline/models"
	"github.com/jonfrank/campsite-pipeline/pipeline"
	"github.com/jonfrank/campsite-pipeline/scraper"
	"github.com/jonfrank/campsite-pipeline/store"
)

func main() {
	// Store credentials live in .env rather than flags; absence is fine
	// when the environment supplies them directly or local mode is used.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	keywordDefault := defaultCfg.Keyword
	if value, ok := config.EnvString("SCRAPER_KEYWORD"); ok {
		keywordDefault = value
	}
	categoriesDefault := "tent,caravan"
	if value, ok := config.EnvString("SCRAPER_CATEGORIES"); ok {
		categoriesDefault = value
	}
	maxItemsDefault := defaultCfg.MaxItems
	if value, ok, err := config.EnvInt("SCRAPER_MAX_ITEMS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_MAX_ITEMS: %v\n", err)
		os.Exit(1)
	} else if ok {
		maxItemsDefault = value
	}
	modeDefault := defaultCfg.Mode
	if value, ok := config.EnvString("SCRAPER_MODE"); ok {
		modeDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Booking site base URL")
	keyword := flag.String("keyword", keywordDefault, "Search keyword (empty searches the whole region)")
	categories := flag.String("categories", categoriesDefault, "Comma-separated accommodation categories to tick")
	maxItems := flag.Int("max-items", maxItemsDefault, "Maximum items to collect (0 means no ceiling)")
	testMode := flag.Bool("test-mode", false, "Stop after the first results page")
	mode := flag.String("mode", modeDefault, "Persistence mode: cloud or local")
	localRoot := flag.String("local-root", defaultCfg.LocalRoot, "Output folder for local mode")
	stagingDir := flag.String("staging", defaultCfg.StagingDir, "Transient folder for image downloads")
	headless := flag.Bool("headless", defaultCfg.Headless, "Run the browser headless")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := buildConfigFromFlags(*baseURL, *keyword, *categories, *maxItems, *testMode, *mode, *localRoot, *stagingDir, *headless, *metricsAddr, *verbose)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.String("keyword", cfg.Keyword),
		slog.String("mode", cfg.Mode),
		slog.Int("max_items", cfg.MaxItems),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current item")
	}()

	rows, blobs, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("opening stores", slog.Any("error", err))
		os.Exit(1)
	}
	defer rows.Close()

	driver, err := browser.NewChrome(ctx, browser.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		slog.Error("starting browser", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			slog.Error("close browser", slog.Any("error", err))
		}
	}()

	uploader := images.NewUploader(blobs, cfg.StagingDir, cfg.ImageDelay, cfg.UserAgent)
	p := pipeline.New(rows, blobs, uploader)

	s, err := scraper.New(cfg, driver)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg)
}

func buildConfigFromFlags(baseURL, keyword, categories string, maxItems int, testMode bool, mode, localRoot, stagingDir string, headless bool, metricsAddr string, verbose bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Keyword = keyword
	cfg.Categories = config.ParseCategories(categories)
	cfg.MaxItems = maxItems
	cfg.TestMode = testMode
	cfg.Mode = mode
	cfg.LocalRoot = localRoot
	cfg.StagingDir = stagingDir
	cfg.Headless = headless
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose

	if value, ok := config.EnvString("ROW_STORE_DSN"); ok {
		cfg.RowStoreDSN = value
	}
	if value, ok := config.EnvString("BLOB_ENDPOINT"); ok {
		cfg.BlobEndpoint = value
	}
	if value, ok := config.EnvString("BLOB_ACCESS_KEY"); ok {
		cfg.BlobAccessKey = value
	}
	if value, ok := config.EnvString("BLOB_SECRET_KEY"); ok {
		cfg.BlobSecretKey = value
	}
	if value, ok := config.EnvString("BLOB_BUCKET"); ok {
		cfg.BlobBucket = value
	}
	if value, ok, err := config.EnvBool("BLOB_USE_SSL"); err != nil {
		return nil, fmt.Errorf("invalid BLOB_USE_SSL: %w", err)
	} else if ok {
		cfg.BlobUseSSL = value
	}

	return cfg, nil
}

// openStores wires the row and blob stores for the configured mode. In
// local mode one filesystem store backs both interfaces.
func openStores(ctx context.Context, cfg *config.Config) (store.RowStore, store.BlobStore, error) {
	switch cfg.Mode {
	case config.ModeLocal:
		local, err := store.OpenLocal(cfg.LocalRoot)
		if err != nil {
			return nil, nil, err
		}
		return local, local.Blobs(), nil
	default:
		rows, err := store.OpenSQLite(ctx, cfg.RowStoreDSN)
		if err != nil {
			return nil, nil, err
		}
		blobs, err := store.OpenS3(ctx, store.S3Options{
			Endpoint:  cfg.BlobEndpoint,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
			Bucket:    cfg.BlobBucket,
			UseSSL:    cfg.BlobUseSSL,
		})
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		return rows, blobs, nil
	}
}

func printSummary(result *models.RunResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Pages walked:     %d\n", result.PageCount)
	fmt.Printf("  Items found:      %d\n", result.TotalFound)
	fmt.Printf("  New:              %d\n", result.NewCount)
	fmt.Printf("  Already known:    %d\n", result.DuplicateCount)
	fmt.Printf("  Skipped:          %d\n", result.SkippedCount)
	fmt.Printf("  Rows flushed:     %d\n", result.RowsFlushed)
	fmt.Printf("  Images uploaded:  %d\n", result.ImagesUploaded)
	if result.ImageFailures > 0 {
		fmt.Printf("  Image failures:   %d\n", result.ImageFailures)
	}
	if cfg.Mode == config.ModeLocal {
		fmt.Printf("  Output folder:    %s\n", cfg.LocalRoot)
	} else {
		fmt.Printf("  Row store:        %s\n", cfg.RowStoreDSN)
		fmt.Printf("  Blob bucket:      %s\n", cfg.BlobBucket)
	}
	fmt.Printf("  Duration:         %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
