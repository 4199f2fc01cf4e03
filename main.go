package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lastgraph/internal/crawler"
	"lastgraph/internal/lastfm"
	"lastgraph/internal/storage"
)

const apiKeyEnv = "LASTFM_API_KEY"

var flags struct {
	key        string
	seed       string
	limit      int
	dateFormat string
	dateMatch  string
	connect    bool
	maxFriends int
	maxErrors  int
	randSeed   int64
	debug      bool
	quiet      bool
}

var rootCmd = &cobra.Command{
	Use:   "lastgraph [flags] <database>",
	Short: "Crawl the Last.fm social graph into a local SQLite database",
	Long: `lastgraph walks the Last.fm friendship graph starting from a seed user
and stores profiles, friendship edges and weekly artist charts in a local
SQLite database. Restarting against the same database resumes the crawl:
missing weeks from interrupted runs are backfilled before discovery
continues.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.key, "key", "k", "", "Last.fm API key (or $"+apiKeyEnv+")")
	f.StringVar(&flags.seed, "seed", "RJ", "username the walk starts from")
	f.IntVar(&flags.limit, "limit", 100, "stop after this many users")
	f.StringVar(&flags.dateFormat, "date-format", "2006-01", "Go time layout applied to week starts")
	f.StringVar(&flags.dateMatch, "date-match", "", "collect weeks whose formatted start equals this")
	f.BoolVar(&flags.connect, "connect", false, "record friendship edges")
	f.IntVar(&flags.maxFriends, "max-friends", 500, "friends requested per user")
	f.IntVar(&flags.maxErrors, "max-errors", 100, "remote failures tolerated before aborting")
	f.Int64Var(&flags.randSeed, "rand-seed", 666, "seed for the random walk")
	f.BoolVar(&flags.debug, "debug", false, "log debug information")
	f.BoolVar(&flags.quiet, "quiet", false, "log warnings and errors only")
	_ = rootCmd.MarkFlagRequired("date-match")
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch {
	case flags.debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case flags.quiet:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// A .env file is optional; explicit flags and real env vars win.
	_ = godotenv.Load()
	setupLogging()

	key := flags.key
	if key == "" {
		key = os.Getenv(apiKeyEnv)
	}
	if key == "" {
		return fmt.Errorf("no API key: pass --key or set $%s", apiKeyEnv)
	}

	store, err := storage.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := crawler.New(lastfm.NewHTTPClient(key), store, crawler.Config{
		Seed:       flags.seed,
		Limit:      flags.limit,
		DateFormat: flags.dateFormat,
		DateMatch:  flags.dateMatch,
		Connect:    flags.connect,
		MaxFriends: flags.maxFriends,
		MaxErrors:  flags.maxErrors,
		RandSeed:   flags.randSeed,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("crawl interrupted")
		}
		return err
	}
	log.Info().Str("database", args[0]).Msg("Crawl complete")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Crawl failed")
		os.Exit(1)
	}
}
