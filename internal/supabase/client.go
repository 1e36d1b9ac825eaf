package supabase

import (
	"github.com/supabase-community/supabase-go"
	"webmarcas-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

// NewClient builds the PostgREST client. The service role key is preferred so
// that server-side inserts are not subject to row level security.
func NewClient(cfg *config.Config) (*Client, error) {
	key := cfg.SupabaseServiceRoleKey
	if key == "" {
		key = cfg.SupabasePublishableKey
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, key, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}
