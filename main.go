// Reads conversations from a StatusNet server, or serves them as a caching proxy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/tkrehbiel/statuslace/loader"
	"github.com/tkrehbiel/statuslace/server"
	"github.com/tkrehbiel/statuslace/statusnet"
	"github.com/tkrehbiel/statuslace/storage"
	"github.com/tkrehbiel/statuslace/telemetry"
	"github.com/tkrehbiel/statuslace/watch"
	"github.com/urfave/cli/v2"
)

func readConfig(filename string) server.Config {
	var cfg server.Config
	b, err := os.ReadFile(filename)
	if err != nil {
		telemetry.Error(err, "opening config [%s]", filename)
	} else {
		c, err := server.ReadConfig(b)
		if err != nil {
			telemetry.Error(err, "parsing config [%s]", filename)
		}
		cfg = c
	}

	return cfg
}

// setup reads the config file and applies the global flags over it
func setup(c *cli.Context) server.Config {
	cfg := readConfig(c.String("config"))
	if c.IsSet("api") {
		cfg.API.Root = c.String("api")
	}
	if c.IsSet("database") {
		cfg.Database = c.String("database")
	}
	if c.Bool("trace") {
		cfg.Trace = true
	}
	telemetry.SetJSON(cfg.JSONLogs)
	telemetry.SetTrace(cfg.Trace)
	return cfg
}

func newClient(cfg server.Config) (*statusnet.Client, error) {
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	return statusnet.NewClient(opts)
}

// openStore returns nil when no database is configured
func openStore(cfg server.Config) (storage.Database, error) {
	if cfg.Database == "" {
		return nil, nil
	}
	db := storage.NewDatabase(cfg.Database)
	if err := db.Open(); err != nil {
		return nil, err
	}
	return db, nil
}

func pagingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "count", Usage: "statuses per page"},
		&cli.IntFlag{Name: "page", Usage: "page number, starting at 1"},
		&cli.StringFlag{Name: "since-id", Usage: "only statuses newer than this id"},
		&cli.StringFlag{Name: "max-id", Usage: "only statuses at or older than this id"},
	}
}

func paging(c *cli.Context) statusnet.Paging {
	return statusnet.Paging{
		Count:   c.Int("count"),
		Page:    c.Int("page"),
		SinceID: c.String("since-id"),
		MaxID:   c.String("max-id"),
	}
}

func printStatus(s statusnet.Status) {
	fmt.Printf("%s [%s] %s: %s\n", s.ID, s.Timestamp().Format(time.RFC3339), s.ScreenName(), s.Text)
}

func configCommand(c *cli.Context) error {
	client, err := newClient(setup(c))
	if err != nil {
		return err
	}
	cfg, err := client.GetConfig(c.Context)
	if err != nil {
		return err
	}
	fmt.Println(string(cfg.JSON()))
	return nil
}

func conversationCommand(c *cli.Context) error {
	id := c.Args().First()
	client, err := newClient(setup(c))
	if err != nil {
		return err
	}
	var statuses []statusnet.Status
	if c.Bool("atom") {
		statuses, err = client.GetConversationFeed(c.Context, id, paging(c))
	} else {
		statuses, err = client.GetConversation(c.Context, id, paging(c))
	}
	if err != nil {
		return err
	}
	for _, s := range statuses {
		printStatus(s)
	}
	return nil
}

func threadCommand(c *cli.Context) error {
	cfg := setup(c)
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	l := loader.New(client, nil)
	if store != nil {
		defer store.Close()
		l.Store = store
	}

	result, err := l.Thread(c.Context, c.Args().First(), paging(c))
	if err != nil {
		return err
	}
	for _, s := range result.Statuses {
		printStatus(s)
	}
	return nil
}

// printer reports new statuses as they're found
type printer struct {
	store storage.Statuses
}

func (p printer) Checked(n int) {
	telemetry.Trace("checked, %d statuses returned", n)
}

func (p printer) NewStatus(s statusnet.Status) {
	printStatus(s)
	if p.store == nil {
		return
	}
	row := storage.FromStatus(s)
	if err := p.store.SaveStatus(&row); err != nil {
		telemetry.Error(err, "saving status [%s]", s.ID)
	}
}

func watchCommand(c *cli.Context) error {
	id := c.Args().First()
	if c.Duration("interval") <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Duration("interval"))
	}
	cfg := setup(c)
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	p := printer{}
	if store != nil {
		defer store.Close()
		p.store = store
	}
	watcher := watch.NewConversationWatcher(id, client, p)
	watcher.Count = c.Int("count")
	if store != nil {
		known, err := store.GetConversation(id, 0)
		if err != nil {
			return err
		}
		for _, row := range known {
			if s, err := row.ToStatus(); err == nil {
				watcher.AddKnown(s)
			}
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	telemetry.Log("watching conversation %s every %s", id, c.Duration("interval"))
	watcher.Watch(ctx, c.Duration("interval"))
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg := setup(c)
	if c.IsSet("host") {
		cfg.Server.HostName = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	telemetry.Log("starting statuslace for %s", client.Host())
	svc := server.NewService(cfg, client, store)

	// Startup the service to listen for http requests
	svc.Start()

	// Wait for ^C
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)

	<-ch
	telemetry.Log("stopping statuslace")

	// Shut down the service
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()
	svc.Stop(ctx)
	telemetry.Log("stopped statuslace cleanly")
	return nil
}

func requireID(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("%s needs exactly one id", c.Command.Name)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "statuslace",
		Usage: "read conversations from a StatusNet server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.json", Usage: "config json file"},
			&cli.StringFlag{Name: "api", Usage: "api root, e.g. https://example.net/api"},
			&cli.StringFlag{Name: "database", Usage: "sqlite file for fetched statuses"},
			&cli.BoolFlag{Name: "trace", Usage: "verbose logging"},
		},
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "print the server config",
				Action: configCommand,
			},
			{
				Name:      "conversation",
				Usage:     "print one page of a conversation",
				ArgsUsage: "<conversation-id>",
				Flags:     append(pagingFlags(), &cli.BoolFlag{Name: "atom", Usage: "read the atom feed instead of json"}),
				Before:    requireID,
				Action:    conversationCommand,
			},
			{
				Name:      "thread",
				Usage:     "print the thread a status belongs to",
				ArgsUsage: "<status-id>",
				Flags:     pagingFlags(),
				Before:    requireID,
				Action:    threadCommand,
			},
			{
				Name:      "watch",
				Usage:     "print new statuses in a conversation as they appear",
				ArgsUsage: "<conversation-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Usage: "statuses per poll"},
					&cli.DurationFlag{Name: "interval", Value: time.Minute, Usage: "time between polls"},
				},
				Before: requireID,
				Action: watchCommand,
			},
			{
				Name:  "serve",
				Usage: "run a caching proxy for the read endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "host", Usage: "listen host"},
					&cli.IntFlag{Name: "port", Usage: "listen port"},
				},
				Action: serveCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		telemetry.Error(err, "statuslace failed")
		os.Exit(1)
	}
}
