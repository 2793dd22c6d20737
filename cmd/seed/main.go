// Command seed generates a deterministic apparel catalog and writes it either
// as a JSON fixture for the in-memory backend or into the Elasticsearch index.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/fixture"
	esrepo "github.com/utafrali/apparel-discovery/internal/repository/elasticsearch"
	pkgconfig "github.com/utafrali/apparel-discovery/pkg/config"
	"github.com/utafrali/apparel-discovery/pkg/logger"
)

type seedConfig struct {
	Count              int    `env:"SEED_COUNT" envDefault:"10000"`
	Seed               uint64 `env:"SEED_RANDOM_SEED" envDefault:"42"`
	Target             string `env:"SEED_TARGET" envDefault:"json"`
	Output             string `env:"SEED_OUTPUT"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"apparel_products"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("discovery-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	products := fixture.Generate(fixture.Options{Count: cfg.Count, Seed: cfg.Seed})
	log.Info("generated catalog", slog.Int("count", len(products)), slog.Uint64("seed", cfg.Seed))

	var err error
	switch cfg.Target {
	case "json":
		err = writeJSON(cfg.Output, products)
	case "elasticsearch":
		err = indexProducts(ctx, cfg, products, log)
	default:
		err = fmt.Errorf("unknown SEED_TARGET %q (want json or elasticsearch)", cfg.Target)
	}
	if err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete", slog.String("target", cfg.Target))
}

func writeJSON(path string, products []domain.Product) (err error) {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create fixture file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close fixture file: %w", cerr)
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return nil
}

func indexProducts(ctx context.Context, cfg seedConfig, products []domain.Product, log *slog.Logger) error {
	catalog, err := esrepo.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, log)
	if err != nil {
		return fmt.Errorf("init elasticsearch catalog: %w", err)
	}

	for i, p := range products {
		if err := catalog.Upsert(ctx, p); err != nil {
			return fmt.Errorf("index product %s: %w", p.Slug, err)
		}
		if (i+1)%1000 == 0 || i+1 == len(products) {
			log.Info("indexed products", slog.Int("done", i+1), slog.Int("total", len(products)))
		}
	}
	return nil
}
