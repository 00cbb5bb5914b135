// Meetsync keeps a local meeting store synchronized bidirectionally with a
// Google Calendar.
//
// Usage:
//
//	meetsync auth [--config <path>]        # link a Google account
//	meetsync daemon [--config <path>]      # periodic sync at the configured interval
//	meetsync sync-once [--config <path>]   # single reconciliation pass then exit
//	meetsync status                        # show config, auth, and sync state
//	meetsync conflicts [--resolve <policy>] # list or resolve conflicting pairs
//	meetsync cleanup                       # remove orphaned ID mappings
//	meetsync version                       # print version
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"meetsync/internal/auth"
	"meetsync/internal/config"
	"meetsync/internal/google"
	"meetsync/internal/mapping"
	"meetsync/internal/model"
	"meetsync/internal/settings"
	"meetsync/internal/store"
	syncp "meetsync/internal/sync"
	"meetsync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "auth":
		return runAuth(os.Args[2:])
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "status":
		return runStatus()
	case "conflicts":
		return runConflicts(os.Args[2:])
	case "cleanup":
		return runCleanup(os.Args[2:])
	case "version":
		fmt.Println("meetsync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'meetsync' for usage", cmd)
	}
}

func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "Meetsync: keep local meetings and Google Calendar in sync")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  meetsync auth [--config ...]          Link a Google account")
	fmt.Fprintln(os.Stderr, "  meetsync daemon [--config ...]        Periodic sync at the configured interval")
	fmt.Fprintln(os.Stderr, "  meetsync sync-once [--config ...]     Single reconciliation pass then exit")
	fmt.Fprintln(os.Stderr, "  meetsync status                       Show config, auth, and sync state")
	fmt.Fprintln(os.Stderr, "  meetsync conflicts [--resolve <p>]    List or resolve conflicting pairs")
	fmt.Fprintln(os.Stderr, "  meetsync cleanup                      Remove orphaned ID mappings")
	fmt.Fprintln(os.Stderr, "  meetsync version                      Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "No config file found at %s.\n", cfgPath)
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Common flags and wiring -------------------------------------------------

func commonFlags(name string, args []string) (cfgPath string, verbose bool, err error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	path := fs.String("config", defaultCfg, "path to config.yaml")
	v := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	return *path, *v, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func oauthConfig(cfg *config.Config) *oauth2.Config {
	redirect := cfg.Google.RedirectURL
	if redirect == "" {
		redirect = "urn:ietf:wg:oauth:2.0:oob"
	}
	return &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  redirect,
		Scopes:       []string{calendar.CalendarScope},
	}
}

// app bundles the wired components a sync-related subcommand needs.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	db       *store.Store
	tokens   *auth.Store
	mappings *mapping.Table
	settings *settings.Store
	engine   *syncp.Engine
	linker   *syncp.Linker
	loc      *time.Location
	close    func()
}

func buildApp(ctx context.Context, cfgPath string, verbose bool) (*app, error) {
	logger := newLogger(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", "calendar", cfg.Google.CalendarID, "window_days", cfg.WindowDays)

	var closers []func()

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(ctx, telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			closers = append(closers, func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			})
		}
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database at %q: %w", dbPath, err)
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	})
	logger.Info("database opened", "path", dbPath)

	tokens := auth.NewStore(db, oauthConfig(cfg), logger)
	client, err := google.NewClient(ctx, tokens, cfg.Google.CalendarID, logger)
	if err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	maps := mapping.NewTable(db)
	cfgStore := settings.NewStore(db)
	engine := syncp.NewEngine(db, client, maps, cfgStore, db, &logListener{log: logger}, loc, logger)
	linker := syncp.NewLinker(db, client, maps, loc, logger)

	return &app{
		cfg:      cfg,
		log:      logger,
		db:       db,
		tokens:   tokens,
		mappings: maps,
		settings: cfgStore,
		engine:   engine,
		linker:   linker,
		loc:      loc,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// window builds the reconciliation window from the configured span.
func (a *app) window(now time.Time) syncp.Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	return syncp.Window{From: start, To: start.AddDate(0, 0, a.cfg.WindowDays)}
}

// logListener surfaces engine lifecycle events in the log. A host
// application would register reminder scheduling here instead.
type logListener struct {
	log *slog.Logger
}

func (l *logListener) MeetingCreated(m *model.Meeting) {
	l.log.Info("meeting created by sync", "id", m.ID, "title", m.Title, "date", m.Date)
}

func (l *logListener) MeetingUpdated(m *model.Meeting) {
	l.log.Info("meeting updated by sync", "id", m.ID, "title", m.Title)
}

func (l *logListener) MeetingDeleted(id string) {
	l.log.Info("meeting deleted", "id", id)
}

// --- Subcommands -------------------------------------------------------------

// runAuth walks through the OAuth code flow and stores the token.
func runAuth(args []string) error {
	cfgPath, verbose, err := commonFlags("auth", args)
	if err != nil {
		return err
	}
	logger := newLogger(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database at %q: %w", dbPath, err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	oa := oauthConfig(cfg)
	url := oa.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Println("Open this URL in a browser and authorize meetsync:")
	fmt.Println()
	fmt.Println("  " + url)
	fmt.Println()
	fmt.Print("Paste the authorization code here: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return fmt.Errorf("reading authorization code: %w", scanner.Err())
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return fmt.Errorf("no authorization code entered")
	}

	tok, err := oa.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	tokens := auth.NewStore(db, oa, logger)
	if err := tokens.Save(ctx, tok); err != nil {
		return err
	}
	fmt.Println("Google account linked.")
	return nil
}

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	name := "sync-once"
	if daemon {
		name = "daemon"
	}
	cfgPath, verbose, err := commonFlags(name, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := buildApp(ctx, cfgPath, verbose)
	if err != nil {
		return err
	}
	defer a.close()

	// Link pre-existing pairs before the first pass so nothing is duplicated.
	if linked, err := a.linker.Run(ctx, a.window(time.Now())); err != nil {
		return fmt.Errorf("first-sync linkage: %w", err)
	} else if linked > 0 {
		a.log.Info("linked existing meetings to calendar events", "count", linked)
	}

	res, err := a.engine.Sync(ctx, a.window(time.Now()))
	if err != nil {
		return fmt.Errorf("sync pass: %w", err)
	}
	if res != nil {
		printResult(res)
	}
	if !daemon {
		return nil
	}

	scheduler := syncp.NewScheduler(a.engine, a.settings, a.log)
	scheduler.WindowFn = a.window
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	a.log.Info("daemon running")
	<-ctx.Done()
	a.log.Info("shutdown complete")
	return nil
}

func printResult(res *syncp.Result) {
	fmt.Printf("Sync complete: %d created, %d updated, %d deleted, %d errors\n",
		res.Created, res.Updated, res.Deleted, len(res.Errors))
	for _, ie := range res.Errors {
		fmt.Printf("  ! %s %s: %s\n", ie.Direction, ie.EntityID, ie.Message)
	}
}

// runStatus prints config, auth, and sync state without touching the calendar.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()

	fmt.Println("Meetsync Status")
	fmt.Println("---------------")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config:    %s (%v)\n", cfgPath, err)
		return nil
	}
	fmt.Printf("  Config:    %s\n", cfgPath)
	fmt.Printf("  Calendar:  %s\n", cfg.Google.CalendarID)

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return err
		}
	}
	info, statErr := os.Stat(dbPath)
	if statErr != nil {
		fmt.Printf("  Database:  not found (%s)\n", dbPath)
		return nil
	}
	fmt.Printf("  Database:  %s (%s)\n", dbPath, humanSize(info.Size()))

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tokens := auth.NewStore(db, oauthConfig(cfg), logger)
	if tok, err := tokens.AccessToken(ctx); err == nil && tok != "" {
		fmt.Println("  Google:    linked")
	} else {
		fmt.Println("  Google:    not linked (run 'meetsync auth')")
	}

	meetings, err := db.ListMeetings(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Meetings:  %d\n", len(meetings))

	pairs, err := mapping.NewTable(db).All(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Mappings:  %d\n", len(pairs))

	s, err := settings.NewStore(db).Load(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Direction: %s\n", s.SyncDirection)
	fmt.Printf("  Interval:  %s (auto-sync %s)\n", s.Interval(), onOff(s.AutoSync))
	if s.LastSyncTime != nil {
		fmt.Printf("  Last sync: %s\n", s.LastSyncTime.Local().Format(time.RFC1123))
	} else {
		fmt.Println("  Last sync: never")
	}
	return nil
}

// runConflicts lists conflicting pairs, optionally resolving all of them
// with one policy.
func runConflicts(args []string) error {
	fs := flag.NewFlagSet("conflicts", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	resolve := fs.String("resolve", "", "resolve all conflicts with a policy: keepLocal, keepRemote, or merge")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := buildApp(ctx, *cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer a.close()

	conflicts, err := a.engine.Conflicts(ctx)
	if err != nil {
		return fmt.Errorf("detecting conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		fmt.Println("No conflicts.")
		return nil
	}

	for i, c := range conflicts {
		fmt.Printf("%d. %q (%s %s) <-> %q\n", i+1, c.Local.Title, c.Local.Date, c.Local.Time, c.Remote.Summary)
	}

	if *resolve == "" {
		fmt.Println()
		fmt.Println("Re-run with --resolve keepLocal|keepRemote|merge to resolve.")
		return nil
	}

	policy := syncp.Policy(*resolve)
	for _, c := range conflicts {
		if err := a.engine.Resolve(ctx, c, policy); err != nil {
			return fmt.Errorf("resolving %q: %w", c.Local.Title, err)
		}
	}
	fmt.Printf("Resolved %d conflict(s) with %s.\n", len(conflicts), policy)
	return nil
}

// runCleanup removes mappings whose local or remote side is gone.
func runCleanup(args []string) error {
	cfgPath, verbose, err := commonFlags("cleanup", args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := buildApp(ctx, cfgPath, verbose)
	if err != nil {
		return err
	}
	defer a.close()

	removed, err := a.engine.CleanupOrphanMappings(ctx)
	if err != nil {
		return fmt.Errorf("orphan cleanup: %w", err)
	}
	fmt.Printf("Removed %d orphaned mapping(s).\n", removed)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
