package scraper

import (
	"context"
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"
)

// searchURL builds the results URL for one page of a query.
func searchURL(host, query string, page int) string {
	return fmt.Sprintf("https://%s/page/%d/?s=%s&cat=undefined%%2Cundefined", host, page, url.QueryEscape(query))
}

// Search walks result pages 1..maxPages, stopping early at the first failed
// page or the first page without postings. maxPages <= 0 uses the configured
// limit.
func (s *Scraper) Search(ctx context.Context, query string, maxPages int) ([]PostingRecord, error) {
	if maxPages <= 0 {
		maxPages = s.settings().PageLimit
	}

	var records []PostingRecord
	for page := 1; page <= maxPages; page++ {
		found, err := WithMirror(ctx, s.resolver, func(ctx context.Context, host string) ([]PostingRecord, error) {
			return s.searchPage(ctx, host, query, page)
		})
		if err != nil {
			log.WithFields(log.Fields{
				"query": query,
				"page":  page,
				"err":   err,
			}).Warn("Search stopped early")
			return records, fmt.Errorf("search page %d: %w", page, err)
		}
		if len(found) == 0 {
			log.WithFields(log.Fields{
				"query": query,
				"page":  page,
			}).Debug("No postings on page, stopping")
			break
		}
		records = append(records, found...)
	}

	log.WithFields(log.Fields{
		"query":   query,
		"results": len(records),
	}).Info("Search finished")

	return records, nil
}

func (s *Scraper) searchPage(ctx context.Context, host, query string, page int) ([]PostingRecord, error) {
	rawURL := s.headers.CacheBust(searchURL(host, query, page))

	resp, err := s.fetcher.Get(ctx, rawURL, s.resolver.requestTimeout())
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	return ExtractPostings(resp.Reader(), "https://"+host)
}
