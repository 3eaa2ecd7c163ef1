package scraper

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// obfuscatedClass flags postings whose markup is shipped base64-encoded.
const obfuscatedClass = "re-ab"

var (
	// Items in the info block are separated by &nbsp; runs or wide spacing.
	itemSplitRe   = regexp.MustCompile(`\s*\x{00a0}[\s\x{00a0}]*|\s{2,}`)
	memberPathRe  = regexp.MustCompile(`(?i)(^|/)(members?|users?)(/|$)`)
	titleSelector = []string{".postTitle > h2 > a", ".postTitle a", `a[rel="bookmark"]`, "h2 a"}
)

// ExtractPostings parses one search results page. base is the scheme+host the
// page was served from and is used to make links absolute. Postings without a
// title or link are skipped; they never fail the page.
func ExtractPostings(r io.Reader, base string) ([]PostingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not load html response into goquery: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", base, err)
	}

	var records []PostingRecord
	doc.Find(".post").Each(func(i int, post *goquery.Selection) {
		rec, err := extractPosting(post, baseURL)
		if err != nil {
			log.WithFields(log.Fields{
				"index": i,
				"err":   err,
			}).Debug("Skipping posting")
			return
		}
		records = append(records, rec)
	})

	return records, nil
}

// extractPosting turns one posting container into a record, or returns the
// reason it was skipped.
func extractPosting(post *goquery.Selection, base *url.URL) (PostingRecord, error) {
	frag := postingFragment(post)
	// <br> carries no text; keep the line break so adjacent labels don't fuse.
	frag.Find("br").ReplaceWithHtml("\n")

	var rec PostingRecord

	anchor := firstMatch(frag, titleSelector...)
	rec.Title = collapseSpace(anchor.Text())
	if rec.Title == "" {
		return rec, ErrMissingTitle
	}
	href, _ := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return rec, ErrMissingLink
	}
	link, err := base.Parse(href)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMissingLink, err)
	}
	rec.DetailsURL = link.String()

	content := frag.Find(".postContent").First()
	if content.Length() == 0 {
		content = frag
	}

	rec.CoverURL = coverURL(content, base)

	if info := frag.Find(".postInfo").First(); info.Length() > 0 {
		rec.Categories, rec.Language, rec.Keywords = parseInfoBlock(info)
	}

	rec.Uploader = uploader(frag)

	if text, ok := postedText(frag, content); ok {
		posted := ParsePostedBlock(text)
		rec.PostedDate = posted.Date
		rec.Format = posted.Format
		rec.BitrateKbps = posted.BitrateKbps
		rec.FileSizeBytes = posted.FileSizeBytes
		if rec.FileSizeBytes != nil {
			rec.FileSizeDisplay = FormatSize(*rec.FileSizeBytes)
		}
	}

	return rec, nil
}

// postingFragment returns the markup to parse for a posting, decoding the
// obfuscated variant. A payload that won't decode is used as is.
func postingFragment(post *goquery.Selection) *goquery.Selection {
	if !post.HasClass(obfuscatedClass) {
		return post
	}

	payload := strings.Join(strings.Fields(post.Text()), "")
	decoded, err := decodeBase64(payload)
	if err != nil {
		log.WithField("err", err).Warn("Could not decode obfuscated posting, using raw content")
		return post
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(decoded)))
	if err != nil {
		log.WithField("err", err).Warn("Could not parse decoded posting, using raw content")
		return post
	}
	return doc.Selection
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 payload: %w", err)
	}
	return b, nil
}

func firstMatch(sel *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, s := range selectors {
		if m := sel.Find(s).First(); m.Length() > 0 {
			return m
		}
	}
	return sel.Slice(0, 0)
}

func coverURL(content *goquery.Selection, base *url.URL) string {
	img := content.Find("img").First()
	src, _ := img.Attr("src")
	if strings.TrimSpace(src) == "" {
		src, _ = img.Attr("data-src")
	}
	src = strings.TrimSpace(src)

	switch {
	case src == "":
		return PlaceholderCover
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return base.Scheme + "://" + base.Host + src
	default:
		return src
	}
}

// parseInfoBlock reads "Category: ... Language: xx Keywords: ..." text.
func parseInfoBlock(info *goquery.Selection) (categories []string, language string, keywords []string) {
	text := info.Text()

	if i := strings.Index(text, "Category:"); i >= 0 {
		rest := text[i+len("Category:"):]
		if j := strings.Index(rest, "Language:"); j >= 0 {
			rest = rest[:j]
		} else if j := strings.Index(rest, "Keywords:"); j >= 0 {
			rest = rest[:j]
		}
		categories = splitItems(rest)
	}

	// The keywords span follows the language with no separator.
	if i := strings.Index(text, "Language:"); i >= 0 {
		rest := text[i+len("Language:"):]
		if j := strings.Index(rest, "Keywords:"); j >= 0 {
			rest = rest[:j]
		}
		if items := splitItems(rest); len(items) > 0 {
			language = items[0]
		}
	}

	kwText := ""
	info.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		t := span.Text()
		if i := strings.Index(t, "Keywords:"); i >= 0 {
			kwText = t[i+len("Keywords:"):]
			return false
		}
		return true
	})
	if kwText == "" {
		if i := strings.Index(text, "Keywords:"); i >= 0 {
			kwText = text[i+len("Keywords:"):]
		}
	}
	keywords = splitItems(kwText)

	return categories, language, keywords
}

func splitItems(s string) []string {
	var out []string
	for _, part := range itemSplitRe.Split(s, -1) {
		if item := cleanItem(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isJunk(r rune) bool {
	switch r {
	case ',', '\u00a0', '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return unicode.IsSpace(r)
}

func cleanItem(s string) string {
	return strings.TrimLeftFunc(strings.TrimRightFunc(s, isJunk), func(r rune) bool {
		return r != ',' && isJunk(r)
	})
}

func uploader(frag *goquery.Selection) string {
	name := ""
	frag.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || !memberPathRe.MatchString(u.Path) {
			return true
		}
		if t := collapseSpace(a.Text()); t != "" {
			name = t
			return false
		}
		return true
	})
	return name
}

// postedText finds the element holding both "Posted:" and "File Size:",
// looking at the content paragraphs first, then any element of the posting,
// then the posting text as a whole.
func postedText(frag, content *goquery.Selection) (string, bool) {
	hasBoth := func(t string) bool {
		l := strings.ToLower(t)
		return strings.Contains(l, "posted:") && strings.Contains(l, "file size:")
	}

	find := func(sel *goquery.Selection, selector string) (string, bool) {
		found := ""
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := s.Text(); hasBoth(t) {
				found = t
				return false
			}
			return true
		})
		return found, found != ""
	}

	if t, ok := find(content, "p"); ok {
		return t, true
	}
	if t, ok := find(frag, "p, div, span, td"); ok {
		return t, true
	}

	if all := frag.Text(); hasBoth(all) {
		return all, true
	}
	return "", false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
