// MarketMind is an AI-driven sentiment intelligence service for Indian financial news.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sasidharan-s/marketmind/api"
	"github.com/sasidharan-s/marketmind/internal/analytics"
	"github.com/sasidharan-s/marketmind/internal/config"
	"github.com/sasidharan-s/marketmind/internal/gateway"
	"github.com/sasidharan-s/marketmind/internal/llm"
	"github.com/sasidharan-s/marketmind/internal/logger"
	"github.com/sasidharan-s/marketmind/internal/marketdata"
	"github.com/sasidharan-s/marketmind/internal/pipeline"
	"github.com/sasidharan-s/marketmind/internal/research"
	"github.com/sasidharan-s/marketmind/internal/schedule"
	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
	"github.com/sasidharan-s/marketmind/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketmind",
	Short: "MarketMind - AI sentiment intelligence for Indian markets",
	Long: `MarketMind continuously ingests Indian financial news through an AI
provider, scores market sentiment, aggregates daily sector breakdowns, and
serves the results plus cached market data over a REST API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger.Init(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Service wiring ---

type services struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	rolling  *analytics.Rolling
	daily    *analytics.Daily
	market   *marketdata.Service
	gateway  *gateway.Service
	research *research.Service // nil without an AI key
}

// buildServices wires the whole service graph from config. Persistence falls
// back to the in-memory store when no database URL is configured.
func buildServices(ctx context.Context) (*services, error) {
	var st store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgres(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		st = pg
		slog.Info("using postgres store")
	} else {
		st = store.NewMemory()
		slog.Warn("no database configured, using in-memory store")
	}

	var researchSvc *research.Service
	if cfg.LLM.GeminiKey != "" {
		provider, err := llm.NewGemini(cfg.LLM.GeminiKey,
			llm.WithGeminiModel(cfg.LLM.Model),
			llm.WithGeminiTimeout(time.Duration(cfg.LLM.TimeoutSec)*time.Second))
		if err != nil {
			return nil, err
		}
		researchSvc = research.NewService(provider, slog.Default(),
			research.WithTemperature(cfg.LLM.Temperature),
			research.WithMaxTokens(cfg.LLM.MaxTokens))
	} else {
		slog.Warn("no Gemini key configured, pipeline and research disabled")
	}

	var cache marketdata.CacheStore
	if cfg.MarketData.RedisAddr != "" {
		rc, err := marketdata.NewRedisCache(ctx, cfg.MarketData.RedisAddr,
			cfg.MarketData.RedisPassword, cfg.MarketData.RedisDB, cfg.MarketData.CacheTTL())
		if err != nil {
			slog.Warn("redis cache unavailable, continuing without persistence", "error", err)
		} else {
			cache = rc
		}
	}

	var avOpts []marketdata.AlphaVantageOption
	if cfg.MarketData.BaseURL != "" {
		avOpts = append(avOpts, marketdata.WithBaseURL(cfg.MarketData.BaseURL))
	}
	upstream := marketdata.NewAlphaVantage(cfg.MarketData.APIKey, cfg.MarketData.UpstreamTimeout(), avOpts...)
	market := marketdata.NewService(upstream, cache, cfg.MarketData.CacheTTL(), slog.Default())

	rolling := analytics.NewRolling(st, slog.Default())
	daily := analytics.NewDaily(st, cfg.Analytics.BatchSize, slog.Default())

	var fetcher pipeline.Fetcher
	if researchSvc != nil {
		fetcher = researchSvc
	} else {
		fetcher = unconfiguredFetcher{}
	}
	pipe := pipeline.New(fetcher, st, rolling, pipeline.Options{
		DedupWindow: cfg.Pipeline.DedupWindow(),
		RunTimeout:  cfg.Pipeline.RunTimeout(),
	}, slog.Default())

	return &services{
		store:    st,
		pipeline: pipe,
		rolling:  rolling,
		daily:    daily,
		market:   market,
		gateway:  gateway.NewService(st, cfg.Gateway.SubmitWindow(), slog.Default()),
		research: researchSvc,
	}, nil
}

// unconfiguredFetcher surfaces the missing-key condition as a pipeline
// failure instead of a nil dereference.
type unconfiguredFetcher struct{}

func (unconfiguredFetcher) FetchArticles(context.Context, int) ([]models.RawArticle, error) {
	return nil, llm.ErrNoAPIKey
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketMind %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server + Scheduler) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and background schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svcs, err := buildServices(ctx)
		if err != nil {
			return err
		}
		defer svcs.store.Close()

		noSchedule, _ := cmd.Flags().GetBool("no-schedule")
		if !noSchedule {
			sched := schedule.New(svcs.pipeline, svcs.daily, cfg.Pipeline.Interval(), slog.Default())
			if cfg.Analytics.DailyRunUTC != "" {
				if err := sched.SetDailyRun(cfg.Analytics.DailyRunUTC); err != nil {
					return err
				}
			}
			go sched.Start(ctx)
		}

		api.Version = version
		srv := api.NewServer(cfg, api.Deps{
			Store:    svcs.store,
			Pipeline: svcs.pipeline,
			Daily:    svcs.daily,
			Market:   svcs.market,
			Gateway:  svcs.gateway,
			Research: svcs.research,
		}, slog.Default())

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting MarketMind API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().Bool("no-schedule", false, "disable the background pipeline and analytics timers")
}

// --- Pipeline Command ---

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run one news ingestion cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svcs.store.Close()

		stats, err := svcs.pipeline.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pipeline finished: found=%d duplicates=%d rejected=%d saved=%d (%dms)\n",
			stats.Found, stats.Duplicates, stats.Rejected, stats.Saved, stats.DurationMs)
		return nil
	},
}

// --- Analytics Command ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Run the daily sentiment aggregation and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svcs.store.Close()

		date, _ := cmd.Flags().GetString("date")
		if date == "" {
			date = utils.FormatDateUTC(utils.NowIST().UTC())
		}

		rec, err := svcs.daily.Run(cmd.Context(), date)
		if err != nil {
			return err
		}
		fmt.Printf("Daily aggregation for %s: articles=%d overall=%.3f\n",
			rec.Date, rec.ArticlesAnalyzed, rec.OverallSentimentScore)
		return nil
	},
}

func init() {
	analyticsCmd.Flags().String("date", "", "UTC day to aggregate (YYYY-MM-DD, default today)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  MarketMind - System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    AI Model:       %s\n", cfg.LLM.Model)
		fmt.Printf("    Pipeline:       every %s\n", cfg.Pipeline.Interval())
		fmt.Printf("    Cache TTL:      %s\n", cfg.MarketData.CacheTTL())
		storeKind := "in-memory"
		if cfg.Database.URL != "" {
			storeKind = "postgres"
		}
		fmt.Printf("    Store:          %s\n", storeKind)
		fmt.Printf("    API Server:     %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
