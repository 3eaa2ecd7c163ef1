// abb searches AudiobookBay from the terminal and serves results over an
// HTTP API and a Torznab endpoint, handing picked postings to a download
// client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/scraper"
	"github.com/litescript/ls-abb/internal/vpn"
	log "github.com/sirupsen/logrus"
)

const usage = `Usage: abb [-config path] <command> [args]

Commands:
  serve                   run the HTTP API and Torznab endpoint
  search [-pages N] QUERY search AudiobookBay
  magnet URL              print the magnet link for a details page
  send URL TITLE          add a posting to the download client
  status                  list torrents in the download category
  tui                     start the terminal UI
  version [-check]        print the version, optionally checking for updates
`

// app is what every command runs against.
type app struct {
	cfgPath string
	cfg     config.Config
	scraper *scraper.Scraper
	out     io.Writer
}

func main() {
	fs := flag.NewFlagSet("abb", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	cfgPath := fs.String("config", config.ConfigPath(), "path to config.toml")
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *cfgPath, fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, cmd string, args []string) error {
	if cmd == "version" {
		return runVersion(ctx, os.Stdout, args)
	}

	if err := config.LoadDotEnv(); err != nil {
		log.WithField("err", err).Warn("Could not load .env")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return err
	}

	a := &app{
		cfgPath: cfgPath,
		cfg:     cfg,
		scraper: scraper.New(scraperOptions(cfg.Site)),
		out:     os.Stdout,
	}

	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "search":
		return a.search(ctx, args)
	case "magnet":
		return a.magnet(ctx, args)
	case "send":
		return a.send(ctx, args)
	case "status":
		return a.status(ctx)
	case "tui":
		return a.tui()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func scraperOptions(s config.SiteConfig) scraper.Options {
	return scraper.Options{
		Hostname:          s.Hostname,
		Mirrors:           s.Mirrors,
		PageLimit:         s.PageLimit,
		Timeout:           s.Timeout.Duration,
		Incognito:         s.Incognito,
		RotateUserAgent:   s.RotateUserAgent,
		RequestsPerSecond: s.RequestsPerSecond,
	}
}

func (a *app) vpnChecker() *vpn.Checker {
	if a.cfg.VPN.StatusScript == "" {
		return nil
	}
	return vpn.NewChecker(a.cfg.VPN.StatusScript)
}

// requireVPN fails when the VPN guard is on and the VPN is down.
func (a *app) requireVPN(ctx context.Context) error {
	if !a.cfg.VPN.Required {
		return nil
	}
	c := a.vpnChecker()
	if c == nil {
		return errors.New("vpn.required is set but no vpn.status_script is configured")
	}
	if st := c.Check(ctx); !st.Connected {
		return errors.New("VPN is not connected; refusing to start download")
	}
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	pages := fs.Int("pages", 0, "number of result pages to fetch (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.ToLower(strings.TrimSpace(strings.Join(fs.Args(), " ")))
	if query == "" {
		return errors.New("search needs a query")
	}

	records, err := a.scraper.Search(ctx, query, *pages)
	if err != nil {
		if len(records) == 0 {
			return err
		}
		log.WithField("err", err).Warn("Search incomplete, showing partial results")
	}
	renderRecords(a.out, records)
	return nil
}

func (a *app) magnet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("magnet needs exactly one details page URL")
	}
	m, err := a.scraper.Magnet(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, m)
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("send needs a details page URL and a title")
	}
	link := args[0]
	title := strings.Join(args[1:], " ")
	if !a.scraper.ValidateDetailsURL(link) {
		return fmt.Errorf("%s is not on a known AudiobookBay mirror", link)
	}

	client, err := download.New(a.cfg.Download)
	if err != nil {
		return err
	}
	if err := a.requireVPN(ctx); err != nil {
		return err
	}

	m, err := a.scraper.Magnet(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to extract magnet link from page: %w", err)
	}
	if err := download.Submit(ctx, client, m, title, a.cfg.Download); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sent to %s: %s\n", client.Name(), download.SavePath(a.cfg.Download.SavePathBase, title))
	return nil
}

func (a *app) status(ctx context.Context) error {
	client, err := download.New(a.cfg.Download)
	if err != nil {
		return err
	}
	torrents, err := client.Torrents(ctx, a.cfg.Download.Category)
	if err != nil {
		return err
	}
	renderStatus(a.out, torrents)
	return nil
}
