package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/kallitechnia/pkg/config"
	"github.com/rubiojr/kallitechnia/pkg/storage"
)

// CacheCommand creates the cache command
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local CMS snapshot store",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored CMS snapshots",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSnapshotStore(c.String("config"), func(store *storage.SnapshotStore) error {
						snapshots, err := store.List(ctx)
						if err != nil {
							return err
						}
						formatSnapshots(os.Stdout, snapshots)
						return nil
					})
				},
			},
			{
				Name:  "purge",
				Usage: "Delete stored CMS snapshots",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only delete snapshots not refreshed within this duration (0 deletes all)",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSnapshotStore(c.String("config"), func(store *storage.SnapshotStore) error {
						var cutoff time.Time
						if d := c.Duration("older-than"); d > 0 {
							cutoff = time.Now().Add(-d)
						}
						n, err := store.Purge(ctx, cutoff)
						if err != nil {
							return err
						}
						fmt.Printf("Purged %d snapshots\n", n)
						return nil
					})
				},
			},
		},
	}
}

// withSnapshotStore opens the store configured in configPath for fn.
func withSnapshotStore(configPath string, fn func(*storage.SnapshotStore) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.OpenDir(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close snapshot store: %v\n", err)
		}
	}()

	return fn(store)
}
