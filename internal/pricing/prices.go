package pricing

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/llmwire/llmwire/internal/universal"
)

// Price is the per-million-token cost of a model in USD.
type Price struct {
	InputPerMTok  float64 `json:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok"`
}

// Cost is an estimated request cost.
type Cost struct {
	PromptTokens int     `json:"prompt_tokens"`
	USD          float64 `json:"usd"`
	Known        bool    `json:"known"` // false when the model had no price entry
}

// PriceTable looks up model prices. Implementations own their refresh policy;
// callers never mutate shared pricing state directly.
type PriceTable interface {
	Lookup(model string) (Price, bool)
	Refresh(ctx context.Context) error
}

// StaticTable is a fixed in-memory price table. Refresh is a no-op.
type StaticTable struct {
	prices map[string]Price
}

// NewStaticTable creates a table over a fixed price map.
func NewStaticTable(prices map[string]Price) *StaticTable {
	return &StaticTable{prices: prices}
}

// Lookup returns the price entry for a model.
func (t *StaticTable) Lookup(model string) (Price, bool) {
	p, ok := t.prices[model]
	return p, ok
}

// Refresh is a no-op for a static table.
func (t *StaticTable) Refresh(context.Context) error { return nil }

// FetchFunc retrieves the remote price table.
type FetchFunc func(ctx context.Context) (map[string]Price, error)

// CachedTable memoizes a remote price table into a sqlite file with an
// explicit TTL. Lookups are served from memory; a stale cache triggers a
// refresh on the next Refresh call, never implicitly during Lookup.
type CachedTable struct {
	db    *sql.DB
	fetch FetchFunc
	ttl   time.Duration

	mu        sync.RWMutex
	prices    map[string]Price
	fetchedAt time.Time
}

// NewCachedTable opens (or creates) the sqlite cache at path and loads any
// persisted prices into memory.
func NewCachedTable(path string, ttl time.Duration, fetch FetchFunc) (*CachedTable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open price cache: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS prices (
		model      TEXT PRIMARY KEY,
		input_mtok REAL NOT NULL,
		output_mtok REAL NOT NULL,
		fetched_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init price cache: %w", err)
	}

	t := &CachedTable{db: db, fetch: fetch, ttl: ttl, prices: map[string]Price{}}
	if err := t.loadPersisted(); err != nil {
		log.Warn().Err(err).Msg("price cache load failed, starting empty")
	}
	return t, nil
}

func (t *CachedTable) loadPersisted() error {
	rows, err := t.db.Query(`SELECT model, input_mtok, output_mtok, fetched_at FROM prices`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var p Price
		var fetchedAt int64
		if err := rows.Scan(&model, &p.InputPerMTok, &p.OutputPerMTok, &fetchedAt); err != nil {
			return err
		}
		t.prices[model] = p
		if ts := time.Unix(fetchedAt, 0); ts.After(t.fetchedAt) {
			t.fetchedAt = ts
		}
	}
	return rows.Err()
}

// Lookup returns the cached price entry for a model.
func (t *CachedTable) Lookup(model string) (Price, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.prices[model]
	return p, ok
}

// Stale reports whether the cache is older than its TTL.
func (t *CachedTable) Stale() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Since(t.fetchedAt) > t.ttl
}

// Refresh fetches the remote table when the cache is stale and persists it.
func (t *CachedTable) Refresh(ctx context.Context) error {
	if !t.Stale() {
		return nil
	}
	fresh, err := t.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch price table: %w", err)
	}

	now := time.Now()
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist price table: %w", err)
	}
	for model, p := range fresh {
		if _, err := tx.Exec(
			`INSERT INTO prices (model, input_mtok, output_mtok, fetched_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(model) DO UPDATE SET input_mtok=excluded.input_mtok,
			   output_mtok=excluded.output_mtok, fetched_at=excluded.fetched_at`,
			model, p.InputPerMTok, p.OutputPerMTok, now.Unix(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("persist price table: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist price table: %w", err)
	}

	t.mu.Lock()
	t.prices = fresh
	t.fetchedAt = now
	t.mu.Unlock()

	log.Debug().Int("models", len(fresh)).Msg("price table refreshed")
	return nil
}

// Close releases the sqlite handle.
func (t *CachedTable) Close() error { return t.db.Close() }

// EstimateCost estimates the prompt cost of a body against a price table.
func EstimateCost(e *Estimator, b *universal.Body, table PriceTable) Cost {
	tokens := e.CountBody(b)
	cost := Cost{PromptTokens: tokens}
	if b == nil || table == nil {
		return cost
	}
	if p, ok := table.Lookup(b.Model); ok {
		cost.USD = float64(tokens) / 1e6 * p.InputPerMTok
		cost.Known = true
	}
	return cost
}
