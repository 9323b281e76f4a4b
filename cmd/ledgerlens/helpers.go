package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/dictionary"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/pairing"
	"github.com/ledgerlens/ledgerlens/internal/rowparser"
	"github.com/ledgerlens/ledgerlens/internal/sniff"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}
	return storage.NewSQLiteStorage(dbPath)
}

// modelClient builds the model client from config, or returns nil when the
// endpoint is not configured; classification then runs history-only.
func modelClient() llm.Client {
	cfg := llm.Config{
		Provider:    viper.GetString("model.provider"),
		APIKey:      viper.GetString("model.api_key"),
		BaseURL:     viper.GetString("model.base_url"),
		Model:       viper.GetString("model.name"),
		Timeout:     viper.GetDuration("model.timeout") * time.Second,
		RateLimit:   viper.GetInt("model.rate_limit"),
		Temperature: viper.GetFloat64("model.temperature"),
		MaxTokens:   viper.GetInt("model.max_tokens"),
	}
	if !cfg.Configured() {
		return nil
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil
	}
	return client
}

// dictionaryMatcher loads the category dictionary, or returns nil when no
// dictionary file exists.
func dictionaryMatcher() *dictionary.Matcher {
	path := viper.GetString("dictionary.path")
	if path == "" {
		path = config.DefaultDictionaryPath()
	} else {
		path = config.ExpandPath(path)
	}
	matcher, err := dictionary.NewMatcher(path)
	if err != nil {
		return nil
	}
	return matcher
}

// loadSpreadsheet reads a CSV export into raw rows. Payment-app exports vary
// in column count row to row, so per-record field counting is disabled.
func loadSpreadsheet(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

// importFile runs the ingest half of the pipeline: sniff, parse, pair.
func importFile(path string) ([]model.Transaction, []rowparser.RowError, *pairing.Result, error) {
	rows, err := loadSpreadsheet(path)
	if err != nil {
		return nil, nil, nil, err
	}

	det := sniff.Detect(rows)
	txns, rowErrs := rowparser.Parse(rows, det)
	result := pairing.Resolve(txns)
	return txns, rowErrs, &result, nil
}
