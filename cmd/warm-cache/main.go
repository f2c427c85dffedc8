// Command warm-cache researches a keyword list at low priority so later
// interactive requests are served from the cache.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/conf"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/injector"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

var (
	configFile   = flag.String("config", "configs/config.yaml", "config file path")
	keywordsFile = flag.String("keywords", "", "file with one keyword per line, '-' for stdin")
	country      = flag.String("country", "", "country code, defaults to normalization.default_country")
	language     = flag.String("language", "", "language tag, defaults to normalization.default_language")
	categories   = flag.String("categories", "", "comma separated categories, empty for all")
	batchSize    = flag.Int("batch", 100, "keywords per warming pass")
)

func main() {
	flag.Parse()
	if *keywordsFile == "" {
		fmt.Fprintln(os.Stderr, "usage: warm-cache -keywords <file> [-country us] [-language en] [-categories serp,keyword_metrics]")
		os.Exit(2)
	}

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitGlobal(&config.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.L().Named("warm-cache")
	defer log.Sync()

	keywords, err := readKeywords(*keywordsFile)
	if err != nil {
		log.Fatal("failed to read keywords", zap.Error(err))
	}
	cats, err := parseCategories(*categories)
	if err != nil {
		log.Fatal("invalid categories", zap.Error(err))
	}

	app, cleanup, err := injector.InitializeApp(config, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	size := *batchSize
	if size <= 0 || size > config.Orchestrator.MaxKeywords {
		size = config.Orchestrator.MaxKeywords
	}

	start := time.Now()
	var total orchestrator.WarmReport
	for i := 0; i < len(keywords) && ctx.Err() == nil; i += size {
		batch := keywords[i:min(i+size, len(keywords))]
		report, err := app.Orchestrator.Warm(ctx, orchestrator.ResearchRequest{
			Keywords:   batch,
			Country:    *country,
			Language:   *language,
			Categories: cats,
		})
		if err != nil {
			log.Error("warming batch failed", zap.Int("offset", i), zap.Error(err))
			continue
		}
		total.Keywords += report.Keywords
		total.Pairs += report.Pairs
		total.Fetched += report.Fetched
		total.CacheHits += report.CacheHits
		total.Failed += report.Failed
		total.TimedOut = total.TimedOut || report.TimedOut

		log.Info("batch warmed",
			zap.Int("offset", i),
			zap.Int("keywords", report.Keywords),
			zap.Int("fetched", report.Fetched),
			zap.Int("cache_hits", report.CacheHits),
			zap.Int("failed", report.Failed),
			zap.Duration("duration", report.Duration))
	}
	total.Duration = time.Since(start)

	log.Info("cache warming finished",
		zap.Int("keywords", total.Keywords),
		zap.Int("pairs", total.Pairs),
		zap.Int("fetched", total.Fetched),
		zap.Int("cache_hits", total.CacheHits),
		zap.Int("failed", total.Failed),
		zap.Bool("timed_out", total.TimedOut),
		zap.Duration("duration", total.Duration))
}

func readKeywords(path string) ([]string, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
		defer f.Close()
	}

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	return keywords, scanner.Err()
}

func parseCategories(raw string) ([]types.Category, error) {
	if raw == "" {
		return nil, nil
	}
	var cats []types.Category
	for _, part := range strings.Split(raw, ",") {
		c, err := types.ParseCategory(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}
