package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/oracleconf/internal/config"
	"github.com/rewired-gh/oracleconf/internal/loader"
	"github.com/rewired-gh/oracleconf/internal/logger"
	"github.com/rewired-gh/oracleconf/internal/models"
	"github.com/rewired-gh/oracleconf/internal/pipeline"
	"github.com/rewired-gh/oracleconf/internal/storage"
	"github.com/rewired-gh/oracleconf/internal/telegram"
)

var (
	configPath = flag.String("config", "", "Path to configuration file (defaults and ORACLE_CONF_* env when empty)")
	inputPath  = flag.String("input", "", "CSV or XLSX input file, overrides input.path")
	feedName   = flag.String("feed", "", "Feed name in the series store, overrides storage.feed")
	importOnly = flag.Bool("import", false, "Store the loaded series under the feed name")
	chartOut   = flag.String("chart-out", "", "Write chart data of the reduced series to this CSV file")
	listFeeds  = flag.Bool("list-feeds", false, "List feeds in the series store and exit")
	deleteFeed = flag.String("delete-feed", "", "Delete a feed from the series store and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *inputPath != "" {
		cfg.Input.Path = *inputPath
	}
	if *feedName != "" {
		cfg.Storage.Feed = *feedName
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}

	if *listFeeds || *deleteFeed != "" {
		if err := manageFeeds(cfg.Storage.DBPath, *listFeeds, *deleteFeed, os.Stdout); err != nil {
			logger.Fatal("Series store operation failed: %v", err)
		}
		return
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping analysis...")
		cancel()
	}()

	if err := run(ctx, cfg, telegramClient); err != nil {
		if telegramClient != nil && !errors.Is(err, context.Canceled) {
			if sendErr := telegramClient.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		logger.Fatal("Analysis failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, telegramClient *telegram.Client) error {
	series, err := obtainSeries(cfg)
	if err != nil {
		return err
	}
	if *importOnly {
		return nil
	}

	p, err := pipeline.New(pipeline.Config{
		ThresholdBps: cfg.Analysis.ThresholdBps,
		Lookback:     cfg.Analysis.LookbackPeriods,
		Method:       cfg.Analysis.CorrelationMethod,
		TargetSize:   cfg.Sampling.TargetSize,
		WindowSize:   cfg.Sampling.WindowSize,
	})
	if err != nil {
		return fmt.Errorf("invalid analysis settings: %w", err)
	}

	result, err := p.Run(ctx, series)
	if err != nil {
		return err
	}

	if *chartOut != "" {
		if err := writeChart(*chartOut, result.Sampled, cfg.Analysis.ThresholdBps); err != nil {
			return err
		}
		logger.Info("Chart data written to %s (%d points)", *chartOut, len(result.Sampled))
	}

	if telegramClient != nil {
		report := telegram.Report{
			RunID:        result.RunID,
			Feed:         cfg.Storage.Feed,
			Method:       result.Method,
			Lookback:     cfg.Analysis.LookbackPeriods,
			InputSize:    result.Input,
			SampledSize:  len(result.Sampled),
			Summary:      result.Summary,
			Records:      len(result.Records),
			Correlations: result.Correlations,
		}
		if err := telegramClient.SendReport(report); err != nil {
			logger.Error("Failed to send Telegram report: %v", err)
		} else {
			logger.Info("Sent Telegram report for run %s", result.RunID)
		}
	}

	return nil
}

// obtainSeries reads the input file, or the series store when only a feed is named.
// With -import the file's series replaces the stored feed.
func obtainSeries(cfg *config.Config) (models.Series, error) {
	fromStore := *inputPath == "" && *feedName != "" && !*importOnly
	if !fromStore && !*importOnly {
		return loadInput(cfg)
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if fromStore {
		series, err := store.LoadSeries(cfg.Storage.Feed)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded %d observations for feed %s from storage", len(series), cfg.Storage.Feed)
		return series, nil
	}

	series, err := loadInput(cfg)
	if err != nil {
		return nil, err
	}
	id, err := store.SaveSeries(cfg.Storage.Feed, cfg.Input.Path, series)
	if err != nil {
		return nil, fmt.Errorf("failed to store series: %w", err)
	}
	logger.Info("Imported %d observations as feed %s (import %s)", len(series), cfg.Storage.Feed, id)
	return series, nil
}

// manageFeeds deletes deleteFeed when set, then prints the stored feeds when list is set.
func manageFeeds(dbPath string, list bool, deleteFeed string, w io.Writer) error {
	store, err := storage.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if deleteFeed != "" {
		if err := store.DeleteFeed(deleteFeed); err != nil {
			return err
		}
		logger.Info("Deleted feed %s", deleteFeed)
	}
	if !list {
		return nil
	}

	imports, err := store.ListImports()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEED\tROWS\tIMPORTED\tSOURCE\tID")
	for _, r := range imports {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			r.Feed, r.Rows, r.ImportedAt.UTC().Format(time.RFC3339), r.Source, r.ID)
	}
	return tw.Flush()
}

func loadInput(cfg *config.Config) (models.Series, error) {
	loc, err := time.LoadLocation(cfg.Input.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	opts := loader.Options{
		Columns: loader.Columns{
			Timestamp:  cfg.Input.TimestampColumn,
			Price:      cfg.Input.PriceColumn,
			Confidence: cfg.Input.ConfidenceColumn,
		},
		Sheet:           cfg.Input.Sheet,
		ConfidenceScale: cfg.Input.ConfidenceScale,
		Location:        loc,
	}
	return loader.Load(cfg.Input.Path, opts)
}

func writeChart(path string, series models.Series, threshold float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := loader.WriteChartCSV(f, series, &threshold); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write chart data: %w", err)
	}
	return f.Close()
}
