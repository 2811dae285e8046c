// Package main is the travel log command-line client. It keeps the place
// collection in local storage while signed out and in the API while signed in.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pkordes/travel-log/internal/client"
	"github.com/pkordes/travel-log/internal/config"
	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/geo"
	"github.com/pkordes/travel-log/internal/localstore"
	"github.com/pkordes/travel-log/internal/logging"
	"github.com/pkordes/travel-log/internal/tracker"
)

const usage = `usage: tracker <command> [flags]

places:
  list    [-q query] [-status all|visited|wishlist]
  add     -name NAME [-country C] [-code CC] [-city C] [-lat N] [-lng N]
          [-status visited|wishlist] [-date YYYY-MM-DD] [-rating 0-5] [-notes T] [-tags a,b]
  edit    -id ID [same flags as add]
  rm      -id ID
  toggle  -id ID
  stats
  import  FILE
  export  [-csv] [FILE]   (default travel-log.json, "-" for stdout)
  search  QUERY | -i      (-i reads queries from stdin, search-as-you-type)

account:
  signup  -email E -password P
  signin  -email E -password P
  signout
  confirm URL             (link from the confirmation email)
  resend  -email E [-redirect URL]
  recover -email E [-redirect URL]
  reset-password -password P URL
`

// app holds everything a command may need.
type app struct {
	cfg     config.ClientConfig
	log     *slog.Logger
	store   localstore.Store
	api     *client.Client
	tracker *tracker.Tracker
	out     io.Writer
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	api := client.New(cfg.APIURL,
		client.WithLogger(log),
		client.WithSessionStore(store, cfg.StorageKey+":session"),
	)
	if err := api.Restore(ctx); err != nil {
		log.WarnContext(ctx, "stored session unreadable", "error", err)
	}

	deps := tracker.Deps{
		Local:    store,
		Remote:   api,
		Identity: api,
		Logger:   log,
		Notify: func(n tracker.Notice) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Kind(), n)
		},
	}
	// The boundary dataset is large; only the commands that attribute
	// countries fetch it.
	if cmd == "stats" {
		deps.Boundaries = geo.NewLoader(cfg.BoundariesURL, nil, log)
	}
	tr := tracker.New(tracker.Config{StorageKey: cfg.StorageKey}, deps)
	api.OnIdentityChange(func(id *domain.Identity) { tr.HandleIdentityChange(ctx, id) })

	a := &app{cfg: cfg, log: log, store: store, api: api, tracker: tr, out: os.Stdout}

	h, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	if h.needsTracker {
		// Start failures are already reported through Notify.
		_ = tr.Start(ctx)
	}
	return h.run(ctx, a, args)
}

// openStore picks redis when configured, else the file store under StateDir.
func openStore(ctx context.Context, cfg config.ClientConfig) (localstore.Store, func(), error) {
	if cfg.RedisURL != "" {
		rdb, err := localstore.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return localstore.NewRedisStore(rdb, "travel-log:"), func() { _ = rdb.Close() }, nil
	}
	fs, err := localstore.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
