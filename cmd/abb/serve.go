package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/litescript/ls-abb/internal/config"
	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/httpapi"
	"github.com/litescript/ls-abb/internal/torznab"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func (a *app) serve(ctx context.Context) error {
	tz := torznab.New(a.scraper, a.cfg.Torznab)

	client, clientErr := download.New(a.cfg.Download)
	if clientErr != nil {
		log.WithField("err", clientErr).Warn("Download client unavailable, sends will fail")
	}

	deps := httpapi.Deps{
		Source:      a.scraper,
		Mirrors:     a.scraper.Resolver(),
		Torznab:     tz,
		Stats:       a.scraper.Stats,
		Download:    a.cfg.Download,
		Client:      client,
		ClientErr:   clientErr,
		VPNRequired: a.cfg.VPN.Required,
	}
	if c := a.vpnChecker(); c != nil {
		deps.VPN = c
	}
	api := httpapi.New(deps)

	if w, err := config.Watch(a.cfgPath, a.reloader(tz, api)); err != nil {
		log.WithFields(log.Fields{
			"path": a.cfgPath,
			"err":  err,
		}).Warn("Config hot reload disabled")
	} else {
		defer w.Stop()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fields := log.Fields{}
	for k, v := range a.scraper.Stats() {
		fields[k] = v
	}
	log.WithFields(fields).Info("Scraper ready")

	errc := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":   srv.Addr,
			"mirror": a.cfg.Site.Hostname,
		}).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shCtx)
}

// reloader applies a changed config to the running services. Hostname,
// mirror list, rate and listen address changes need a restart.
func (a *app) reloader(tz *torznab.Handler, api *httpapi.Server) func(config.Config) {
	return func(next config.Config) {
		prev := a.cfg

		if err := config.SetupLogging(next.Log); err != nil {
			log.WithField("err", err).Warn("Ignoring invalid log settings")
		}

		s := next.Site
		a.scraper.Tune(s.PageLimit, s.Timeout.Duration, s.Incognito, s.RotateUserAgent)
		tz.Update(next.Torznab)

		if next.Download != prev.Download {
			client, err := download.New(next.Download)
			if err != nil {
				log.WithField("err", err).Warn("Download client unavailable after reload")
			}
			api.SetDownload(next.Download, client, err)
		}
		api.SetVPNRequired(next.VPN.Required)

		if needsRestart(prev, next) {
			log.Warn("Hostname, mirrors, rate limit, listen address or VPN script changed; restart to apply")
		}

		a.cfg = next
		log.WithField("path", a.cfgPath).Info("Config reloaded")
	}
}

func needsRestart(prev, next config.Config) bool {
	return prev.Site.Hostname != next.Site.Hostname ||
		!slices.Equal(prev.Site.Mirrors, next.Site.Mirrors) ||
		prev.Site.RequestsPerSecond != next.Site.RequestsPerSecond ||
		prev.Server.Listen != next.Server.Listen ||
		prev.VPN.StatusScript != next.VPN.StatusScript
}
