// Package cli wires the shopper commands to a basket state.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/andrewbyteforge/pricecomparison/pkg/database"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/api"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/basketsync"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/cache"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/config"
)

// session holds what one command invocation needs.
type session struct {
	cfg    *config.Config
	logger *slog.Logger

	state *basketsync.BasketState
	redis *redis.Client
}

// Execute runs the shopper command line with args, writing output to out
// and diagnostics to errOut.
func Execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, out, errOut io.Writer) error {
	s := &session{cfg: cfg, logger: logger}
	defer s.close()

	root := s.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func (s *session) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "shopper",
		Short: "Compare a grocery basket across Tesco, Asda and Sainsburys",
		Long: `shopper keeps a local copy of your basket in step with the basket server.

Each store has its own table and running total. Totals are summed from the
local rows; use "verify" to check them against the server.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.open,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&s.cfg.ServerURL, "server", s.cfg.ServerURL, "basket server URL")
	flags.StringVar(&s.cfg.UserID, "user", s.cfg.UserID, "basket user ID")
	flags.StringVar(&s.cfg.Profile, "profile", s.cfg.Profile, "profile name")
	flags.StringVar(&s.cfg.ProfileDir, "profile-dir", s.cfg.ProfileDir, "directory for the file cache")
	flags.StringVar(&s.cfg.Cache, "cache", s.cfg.Cache, "cache driver: file or redis")

	root.AddCommand(
		s.addCommand(),
		s.removeCommand(),
		s.showCommand(),
		s.totalCommand(),
		s.verifyCommand(),
		s.syncCommand(),
		s.emptyCommand(),
	)
	return root
}

// open builds the basket state and restores the cache. A corrupt cache is
// reported and the basket starts empty so that sync can rebuild it.
func (s *session) open(cmd *cobra.Command, _ []string) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	clientCfg := api.DefaultConfig()
	clientCfg.BaseURL = s.cfg.ServerURL
	clientCfg.UserID = s.cfg.UserID
	clientCfg.Timeout = s.cfg.HTTPTimeout()
	clientCfg.Breaker = s.cfg.CircuitBreaker()
	client, err := api.NewClient(clientCfg, s.logger)
	if err != nil {
		return err
	}

	store, err := s.openCache(ctx)
	if err != nil {
		return err
	}

	s.state = basketsync.New(client, store, s.logger)
	if err := s.state.Load(ctx); err != nil {
		if !errors.Is(err, cache.ErrCorrupt) {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), `warning: basket cache is corrupt; run "shopper sync" to rebuild it`)
	}
	return nil
}

func (s *session) openCache(ctx context.Context) (cache.Store, error) {
	switch s.cfg.Cache {
	case config.CacheRedis:
		client, err := database.NewRedisClient(ctx, s.cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		s.redis = client
		return cache.NewRedisStore(client, s.cfg.Profile), nil
	default:
		dir, err := s.cfg.CacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileStore(dir)
	}
}

func (s *session) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close redis", slog.String("error", err.Error()))
		}
	}
}
