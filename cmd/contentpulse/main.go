package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"contentpulse/internal/analytics"
	"contentpulse/internal/api"
	"contentpulse/internal/archive"
	"contentpulse/internal/cmdlog"
	"contentpulse/internal/config"
	"contentpulse/internal/contentid"
	"contentpulse/internal/jobs"
	"contentpulse/internal/logging"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
	"contentpulse/internal/theme"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	commands := map[string]func([]string) error{
		"init":     cmdInit,
		"add":      cmdAdd,
		"list":     cmdList,
		"delete":   cmdDelete,
		"dupcheck": cmdDupCheck,
		"refresh":  cmdRefresh,
		"import":   cmdImport,
		"export":   cmdExport,
		"stats":    cmdStats,
		"monitor":  cmdMonitor,
		"serve":    cmdServe,
		"config":   cmdConfig,
	}
	run, ok := commands[cmd]
	if !ok {
		printHelp()
		return
	}
	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: contentpulse <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./contentpulse.yaml")
	fmt.Println("  add         Track a published URL")
	fmt.Println("  list        List tracked content with latest metrics")
	fmt.Println("  delete      Stop tracking an item and drop its history")
	fmt.Println("  dupcheck    Check whether a URL is already tracked")
	fmt.Println("  refresh     Fetch fresh metrics from the platforms")
	fmt.Println("  import      Import an exported library file")
	fmt.Println("  export      Export the library to a file")
	fmt.Println("  stats       Show dashboard totals and top content")
	fmt.Println("  monitor     Show hourly capture activity")
	fmt.Println("  serve       Run the JSON API")
	fmt.Println("  config      Show, set or test platform API credentials")
}

// withApp loads the app, runs f under cmdlog and releases the store.
func withApp(name, cfgPath string, f func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := setup(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.close()
	return cmdlog.Run(a.log, name, func() error { return f(ctx, a) })
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", config.DefaultPath, "path to write config")
	_ = fs.Parse(args)
	cfg := config.Default()
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	return cmdlog.Run(log, "init", func() error {
		if err := config.Save(*path, cfg); err != nil {
			return err
		}
		abs, _ := filepath.Abs(*path)
		theme.PrintBanner()
		fmt.Println("Config written to:", abs)
		return nil
	})
}

func cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	rawURL := fs.String("url", "", "content URL")
	name := fs.String("name", "", "content name")
	platform := fs.String("platform", "", "youtube|servicenow|linkedin|reddit|twitter|slack")
	desc := fs.String("desc", "", "description")
	published := fs.String("published", "", "publish date (YYYY-MM-DD)")
	duration := fs.String("duration", "", "video duration (m:ss)")
	info := fs.Bool("info", false, "look up missing name, date and duration on the platform")
	_ = fs.Parse(args)

	p, err := model.ParsePlatform(*platform)
	if err != nil {
		return fmt.Errorf("%w: %q", err, *platform)
	}
	item := model.ContentItem{Name: *name, Description: *desc, Platform: p, URL: *rawURL, Duration: *duration}
	if *published != "" {
		t, err := time.Parse(time.DateOnly, *published)
		if err != nil {
			return fmt.Errorf("invalid -published %q: %w", *published, err)
		}
		item.PublishedAt = t
	}

	return withApp("add", *cfgPath, func(ctx context.Context, a *app) error {
		if *info {
			lookupInfo(ctx, a, &item)
		}
		saved, err := a.rec.AddContent(ctx, item)
		var dup *reconcile.DuplicateError
		if errors.As(err, &dup) {
			return fmt.Errorf("already tracked as %s", dup.ExistingID)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s %s)\n", saved.ID, saved.Platform, saved.PlatformContentID)
		return nil
	})
}

func lookupInfo(ctx context.Context, a *app, item *model.ContentItem) {
	id := contentid.Extract(item.URL, item.Platform)
	if contentid.IsFallback(id) {
		fmt.Println("warning: no platform id in URL; skipping info lookup")
		return
	}
	info, err := a.registry.Info(ctx, item.Platform, id)
	if err != nil {
		fmt.Println("warning: info lookup failed:", err)
		return
	}
	if item.Name == "" {
		item.Name = info.Title
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = info.PublishedAt
	}
	if item.Duration == "" {
		item.Duration = info.Duration
	}
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	_ = fs.Parse(args)
	return withApp("list", *cfgPath, func(ctx context.Context, a *app) error {
		lib := a.rec.Library()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPLATFORM\tNAME\tVIEWS\tLIKES\tCAPTURED")
		for _, it := range jobs.SelectRecent(lib.Content(), 0) {
			views, likes, at := "-", "-", "-"
			if s, ok := lib.LatestFor(it.ID); ok {
				views = fmt.Sprint(s.Views)
				likes = fmt.Sprint(s.Likes)
				at = s.CapturedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", it.ID, it.Platform, it.Name, views, likes, at)
		}
		return tw.Flush()
	})
}

func cmdDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	id := fs.String("id", "", "content id")
	_ = fs.Parse(args)
	if *id == "" {
		return errors.New("-id is required")
	}
	return withApp("delete", *cfgPath, func(ctx context.Context, a *app) error {
		if err := a.rec.DeleteContent(ctx, *id); err != nil {
			return err
		}
		fmt.Println("Deleted", *id)
		return nil
	})
}

func cmdDupCheck(args []string) error {
	fs := flag.NewFlagSet("dupcheck", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	rawURL := fs.String("url", "", "URL to check")
	_ = fs.Parse(args)
	return withApp("dupcheck", *cfgPath, func(ctx context.Context, a *app) error {
		if it, ok := a.rec.CheckDuplicate(*rawURL); ok {
			fmt.Printf("Already tracked: %s %q (%s)\n", it.ID, it.Name, it.URL)
			return nil
		}
		fmt.Println("Not tracked")
		return nil
	})
}

func cmdRefresh(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	all := fs.Bool("all", false, "refresh every item instead of the most recent")
	loop := fs.Bool("loop", false, "keep refreshing on the configured interval")
	_ = fs.Parse(args)
	return withApp("refresh", *cfgPath, func(ctx context.Context, a *app) error {
		limit := a.cfg.Refresh.Limit
		if *all {
			limit = 0
		}
		if *loop {
			err := jobs.RunRefreshLoop(ctx, a.rec, a.registry, limit, a.cfg.Refresh.Interval, nil)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		res, err := jobs.RunRefreshOnce(ctx, a.rec, a.registry, limit)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %d snapshots, %d already captured this minute\n", len(res.Added), res.Duplicates)
		for _, f := range res.Failures {
			fmt.Printf("  %s %s: %s\n", f.Kind, f.ID, f.Message)
		}
		return nil
	})
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	file := fs.String("file", "", "exported library file")
	policyFlag := fs.String("policy", "merge", "merge|replace")
	yes := fs.Bool("yes", false, "confirm replace without prompting")
	_ = fs.Parse(args)
	policy, err := reconcile.ParsePolicy(*policyFlag)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	return withApp("import", *cfgPath, func(ctx context.Context, a *app) error {
		sess := a.rec.NewImportSession()
		if err := sess.Validate(data); err != nil {
			return err
		}
		p, err := sess.Preview()
		if err != nil {
			return err
		}
		fmt.Printf("File v%s exported %s by %s: %d items (%d already tracked), %d snapshots\n",
			p.Version, p.ExportedAt.Format(time.DateOnly), p.User.Name, p.Content, p.Duplicates, p.Engagement)
		if policy == reconcile.PolicyReplace && !*yes {
			n := len(a.rec.Library().Content())
			if !confirm(fmt.Sprintf("Replace deletes all %d tracked items. Type yes to continue: ", n)) {
				_ = sess.Cancel()
				fmt.Println("Import cancelled")
				return nil
			}
		}
		if err := sess.Confirm(policy); err != nil {
			return err
		}
		res, err := sess.Run(ctx)
		printImportResult(res)
		return err
	})
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

func printImportResult(res reconcile.ImportResult) {
	if len(res.Deleted) > 0 {
		fmt.Printf("Deleted %d existing items\n", len(res.Deleted))
	}
	fmt.Printf("Content: %d added, %d skipped, %d failed\n", res.ContentAdded, res.ContentSkipped, res.ContentFailed)
	fmt.Printf("Engagement: %d added, %d skipped, %d failed\n", res.EngagementAdded, res.EngagementSkipped, res.EngagementFailed)
	if len(res.CredentialsUpdated) > 0 {
		fmt.Printf("Credentials updated for %v\n", res.CredentialsUpdated)
	}
	for _, f := range res.Failures {
		fmt.Printf("  %s %s: %s\n", f.Kind, f.ID, f.Message)
	}
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	out := fs.String("out", "", "output file (default contentpulse-export-<date>.json, - for stdout)")
	_ = fs.Parse(args)
	return withApp("export", *cfgPath, func(ctx context.Context, a *app) error {
		lib := a.rec.Library()
		creds, err := a.store.LoadCredentials(ctx, lib.Owner().ID)
		if err != nil {
			return err
		}
		now := time.Now()
		body, err := archive.Encode(archive.Export(lib, creds, now))
		if err != nil {
			return err
		}
		if *out == "-" {
			_, err := os.Stdout.Write(append(body, '\n'))
			return err
		}
		path := *out
		if path == "" {
			path = archive.FileName(now)
		}
		if err := os.WriteFile(path, body, 0o600); err != nil {
			return err
		}
		fmt.Printf("Exported %d items and %d snapshots to %s\n", len(lib.Content()), len(lib.Engagement()), path)
		return nil
	})
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	top := fs.Int("top", 5, "number of top items to show")
	_ = fs.Parse(args)
	return withApp("stats", *cfgPath, func(ctx context.Context, a *app) error {
		content := a.rec.Library().Content()
		snapshots := a.rec.Library().Engagement()
		sum := analytics.Summarize(content, snapshots)
		var watch float64
		for _, s := range analytics.Latest(snapshots) {
			watch += s.WatchTime
		}
		fmt.Printf("Content: %d  Views: %d  Watch time: %s\n", sum.TotalContent, sum.TotalViews, analytics.FormatWatchTime(watch))
		if sum.TopPlatform != "" {
			fmt.Println("Top platform:", sum.TopPlatform)
		}
		for _, p := range model.Platforms() {
			if n := sum.ContentByPlatform[p]; n > 0 {
				fmt.Printf("  %-11s %3d items %10d views\n", p, n, sum.ViewsByPlatform[p])
			}
		}
		for i, cv := range analytics.TopContent(content, snapshots, *top) {
			fmt.Printf("%d. %s (%s) %d views\n", i+1, cv.Item.Name, cv.Item.Platform, cv.Latest.Views)
		}
		return nil
	})
}

func cmdMonitor(args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	_ = fs.Parse(args)
	return withApp("monitor", *cfgPath, func(ctx context.Context, a *app) error {
		b := analytics.HourlyCaptures(a.rec.Library().Content(), a.rec.Library().Engagement())
		for _, k := range analytics.SortedBucketKeys(b) {
			fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), b[k])
		}
		return nil
	})
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	addr := fs.String("addr", "", "listen address (default from config)")
	noRefresh := fs.Bool("no-refresh", false, "disable the background refresh loop")
	_ = fs.Parse(args)
	return withApp("serve", *cfgPath, func(ctx context.Context, a *app) error {
		listen := *addr
		if listen == "" {
			listen = a.cfg.API.Addr
		}
		var mu sync.Mutex
		h := api.NewHandler(api.Options{
			Reconciler:       a.rec,
			Credentials:      a.store,
			Collectors:       a.registry,
			ReloadCollectors: a.reloadCollectors,
			RefreshLimit:     a.cfg.Refresh.Limit,
			Logger:           a.log,
			Mu:               &mu,
		})
		srv := &http.Server{
			Addr:              listen,
			Handler:           api.Routes(h),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if !*noRefresh && a.cfg.Refresh.Interval > 0 {
			go func() {
				_ = jobs.RunRefreshLoop(ctx, a.rec, a.registry, a.cfg.Refresh.Limit, a.cfg.Refresh.Interval, &mu)
			}()
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		a.log.Info("api_listen", logging.String("addr", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

func cmdConfig(args []string) error {
	sub := ""
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("config "+sub, flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath, "config path")
	platform := fs.String("platform", "", "youtube|servicenow|linkedin|reddit|twitter|slack")
	_ = fs.Parse(args)

	switch sub {
	case "show":
		return withApp("config show", *cfgPath, func(ctx context.Context, a *app) error {
			creds, err := a.store.LoadCredentials(ctx, a.rec.Library().Owner().ID)
			if err != nil {
				return err
			}
			for _, p := range model.Platforms() {
				keys := make([]string, 0, len(creds[p]))
				for k := range creds[p] {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Printf("%-11s %s\n", p, strings.Join(keys, " "))
			}
			return nil
		})
	case "set":
		p, err := model.ParsePlatform(*platform)
		if err != nil {
			return fmt.Errorf("%w: %q", err, *platform)
		}
		blob, err := parseKeyValues(fs.Args())
		if err != nil {
			return err
		}
		return withApp("config set", *cfgPath, func(ctx context.Context, a *app) error {
			changed, err := a.rec.SaveCredentials(ctx, p, blob)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("No change for", p)
				return nil
			}
			fmt.Println("Saved credentials for", p)
			return nil
		})
	case "test":
		p, err := model.ParsePlatform(*platform)
		if err != nil {
			return fmt.Errorf("%w: %q", err, *platform)
		}
		return withApp("config test", *cfgPath, func(ctx context.Context, a *app) error {
			if err := a.registry.Test(ctx, p); err != nil {
				return fmt.Errorf("connection to %s failed: %w", p, err)
			}
			fmt.Printf("Connection to %s OK\n", p)
			return nil
		})
	default:
		return errors.New("usage: contentpulse config show|set|test -platform <p> [key=value ...]")
	}
}

// parseKeyValues turns key=value arguments into a credential blob.
func parseKeyValues(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, errors.New("no key=value pairs given")
	}
	blob := make(map[string]string, len(args))
	for _, kv := range args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid credential %q: want key=value", kv)
		}
		blob[strings.TrimSpace(k)] = v
	}
	return blob, nil
}
