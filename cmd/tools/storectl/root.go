package main

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custompc-tech/storefront/backend/internal/config"
	"github.com/custompc-tech/storefront/backend/internal/storage"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
)

type options struct {
	driver    string
	path      string
	redisAddr string
	prefix    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "storectl",
		Short: "Inspect the CustomPC.tech local store",
		Long: `storectl reads the key/value store the backend falls back to when the
realtime database is unreachable. Flags override the STORE_* environment.`,
		SilenceUsage: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "store driver: memory, pebble, redis or sqlite")
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "store path for pebble and sqlite")
	cmd.PersistentFlags().StringVar(&opts.redisAddr, "redis", "", "redis address for the redis driver")
	cmd.PersistentFlags().StringVar(&opts.prefix, "prefix", "", "redis key prefix")

	cmd.AddCommand(
		newChatsCmd(opts),
		newPresenceCmd(opts),
		newVisitorsCmd(opts),
		newReviewsCmd(opts),
		newSubmissionsCmd(opts),
		newKeysCmd(opts),
	)
	return cmd
}

// open resolves the store from the environment and flags.
func (o *options) open() (kv.Store, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	sc := cfg.Store
	if o.driver != "" {
		sc.Driver = kv.StoreType(strings.ToLower(o.driver))
	}
	if o.path != "" {
		sc.Path = o.path
	}
	if o.redisAddr != "" {
		sc.RedisAddr = o.redisAddr
	}
	if o.prefix != "" {
		sc.KeyPrefix = o.prefix
	}
	return storage.Open(sc)
}
