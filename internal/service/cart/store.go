package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// CloudStore persists one cart per account.
type CloudStore interface {
	Load(ctx context.Context, uid string) ([]Item, error)
	Save(ctx context.Context, uid string, items []Item) error
}

// LocalCloudStore keeps account carts in the shared key/value store. It is
// used when no Supabase project is configured.
type LocalCloudStore struct {
	store *local.Adapter
}

// NewLocalCloudStore creates a LocalCloudStore.
func NewLocalCloudStore(store *local.Adapter) *LocalCloudStore {
	return &LocalCloudStore{store: store}
}

func (s *LocalCloudStore) Load(ctx context.Context, uid string) ([]Item, error) {
	return Normalize(local.ReadList[Item](ctx, s.store, local.KeyCloudCart(uid))), nil
}

func (s *LocalCloudStore) Save(ctx context.Context, uid string, items []Item) error {
	return local.WriteList(ctx, s.store, local.KeyCloudCart(uid), Normalize(items))
}

// SupabaseConfig holds connection settings for the carts table.
type SupabaseConfig struct {
	URL    string
	APIKey string
	Table  string
}

// SupabaseStore keeps carts in a Supabase table with columns uid, items
// (jsonb) and updated_at.
type SupabaseStore struct {
	client *supabase.Client
	table  string
	clock  clock.Clock
}

type cartRow struct {
	UID       string          `json:"uid"`
	Items     json.RawMessage `json:"items"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// NewSupabaseStore connects to the Supabase project in cfg.
func NewSupabaseStore(cfg SupabaseConfig, c clock.Clock) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.Table == "" {
		cfg.Table = "carts"
	}
	if c == nil {
		c = clock.Real()
	}
	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: cfg.Table, clock: c}, nil
}

func (s *SupabaseStore) Load(ctx context.Context, uid string) ([]Item, error) {
	var rows []cartRow
	_, err := s.client.From(s.table).
		Select("uid,items", "", false).
		Eq("uid", uid).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(rows) == 0 || len(rows[0].Items) == 0 {
		return []Item{}, nil
	}
	var items []Item
	if err := json.Unmarshal(rows[0].Items, &items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return Normalize(items), nil
}

func (s *SupabaseStore) Save(ctx context.Context, uid string, items []Item) error {
	raw, err := json.Marshal(Normalize(items))
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	row := cartRow{UID: uid, Items: raw, UpdatedAt: s.clock.Now().UTC().Format(time.RFC3339)}
	_, _, err = s.client.From(s.table).
		Upsert(row, "uid", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}
