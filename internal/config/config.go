// Package config loads the engine's YAML configuration file and
// reconciles it against the persisted settings row described in
// spec.md §6.1, generalizing the teacher's bare config.Config struct
// (index/config/config.go) into a file-backed, index-critical-vs-runtime
// split (SPEC_FULL.md §4.8).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wiser-go/wiser/internal/postings"
)

// ScoringMethod selects the query-time relevance formula of spec.md §4.6.
type ScoringMethod int

const (
	// TFIDF is the log-TF·IDF formula.
	TFIDF ScoringMethod = iota
	// BM25 is the default scoring method.
	BM25
)

// StoreKind selects which Store backend Environment.Open constructs.
type StoreKind string

const (
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
)

// IndexConfig holds the settings that determine the on-disk byte layout
// of postings. They may only be set before any document exists; spec.md
// §9's open question on compress_method is resolved here as "refuse the
// change" (SPEC_FULL.md §9).
type IndexConfig struct {
	TokenLen       int                     `yaml:"token_len"`
	CompressMethod postings.CompressMethod `yaml:"-"`
}

// RuntimeConfig holds settings that may be changed freely between runs,
// per spec.md §6.1's "Recognized setting keys".
type RuntimeConfig struct {
	EnablePhraseSearch    bool          `yaml:"enable_phrase_search"`
	BufferUpdateThreshold int           `yaml:"buffer_update_threshold"`
	MaxIndexCount         int           `yaml:"max_index_count"`
	ScoringMethod         ScoringMethod `yaml:"-"`
	BM25K1                float64       `yaml:"bm25_k1"`
	BM25B                 float64       `yaml:"bm25_b"`
	PostingsCacheSize     int           `yaml:"postings_cache_size"`
}

// FileConfig is the raw shape of the YAML configuration file.
type FileConfig struct {
	DBPath                string `yaml:"db_path"`
	StoreKind             string `yaml:"store_kind"`
	TokenLen              int    `yaml:"token_len"`
	CompressMethod        string `yaml:"compress_method"`
	EnablePhraseSearch    bool   `yaml:"enable_phrase_search"`
	BufferUpdateThreshold int    `yaml:"buffer_update_threshold"`
	MaxIndexCount         int    `yaml:"max_index_count"`
	ScoringMethod         string `yaml:"scoring_method"`
	BM25K1                float64 `yaml:"bm25_k1"`
	BM25B                 float64 `yaml:"bm25_b"`
	PostingsCacheSize     int    `yaml:"postings_cache_size"`

	Redis struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Backup struct {
		Bucket string `yaml:"bucket"`
		Key    string `yaml:"key"`
	} `yaml:"backup"`
}

// Default returns a FileConfig matching spec.md §4.1/§6.1's documented
// defaults (N=2, NONE compression, buffer_update_threshold=2048,
// max_index_count unlimited, BM25 with k1=1.2, b=0.75).
func Default() FileConfig {
	return FileConfig{
		StoreKind:             string(StoreSQLite),
		TokenLen:              2,
		CompressMethod:        "none",
		EnablePhraseSearch:    false,
		BufferUpdateThreshold: 2048,
		MaxIndexCount:         -1,
		ScoringMethod:         "bm25",
		BM25K1:                1.2,
		BM25B:                 0.75,
		PostingsCacheSize:     4096,
	}
}

// Load reads and parses a YAML config file at path, filling in defaults
// for any field the file omits.
func Load(path string) (FileConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("wiser: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("wiser: parse config: %w", err)
	}
	return cfg, nil
}

// Split validates fc and separates it into IndexConfig and RuntimeConfig.
func (fc FileConfig) Split() (IndexConfig, RuntimeConfig, error) {
	if fc.TokenLen < 1 {
		return IndexConfig{}, RuntimeConfig{}, fmt.Errorf("wiser: token_len must be >= 1, got %d", fc.TokenLen)
	}

	var method postings.CompressMethod
	switch fc.CompressMethod {
	case "", "none", "NONE":
		method = postings.None
	case "golomb", "GOLOMB":
		method = postings.Golomb
	default:
		return IndexConfig{}, RuntimeConfig{}, fmt.Errorf("wiser: unknown compress_method %q", fc.CompressMethod)
	}

	var scoring ScoringMethod
	switch fc.ScoringMethod {
	case "", "bm25", "BM25":
		scoring = BM25
	case "tfidf", "tf_idf", "TFIDF":
		scoring = TFIDF
	default:
		return IndexConfig{}, RuntimeConfig{}, fmt.Errorf("wiser: unknown scoring_method %q", fc.ScoringMethod)
	}

	ic := IndexConfig{TokenLen: fc.TokenLen, CompressMethod: method}
	rc := RuntimeConfig{
		EnablePhraseSearch:    fc.EnablePhraseSearch,
		BufferUpdateThreshold: fc.BufferUpdateThreshold,
		MaxIndexCount:         fc.MaxIndexCount,
		ScoringMethod:         scoring,
		BM25K1:                fc.BM25K1,
		BM25B:                 fc.BM25B,
		PostingsCacheSize:     fc.PostingsCacheSize,
	}
	return ic, rc, nil
}

// CompressMethodSettingValue encodes an IndexConfig's compress method for
// persistence in settings["compress_method"] per spec.md §6.1.
func CompressMethodSettingValue(m postings.CompressMethod) string {
	if m == postings.Golomb {
		return "1"
	}
	return "0"
}

// ParseCompressMethodSetting is the inverse of CompressMethodSettingValue.
func ParseCompressMethodSetting(v string) postings.CompressMethod {
	if v == "1" {
		return postings.Golomb
	}
	return postings.None
}
