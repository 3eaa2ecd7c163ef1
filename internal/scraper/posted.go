package scraper

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sizes on the site are binary multiples even though they are labelled GB/MB.
const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

var (
	postedRe  = regexp.MustCompile(`Posted:\s*(\d{1,2}\s+[A-Za-z]{3}\s+\d{4})`)
	formatRe  = regexp.MustCompile(`Format:\s*([A-Za-z0-9]+)`)
	bitrateRe = regexp.MustCompile(`(?i)Bitrate:\s*(\d+|\?)\s*Kbps`)
	sizeRe    = regexp.MustCompile(`(?i)File Size:\s*(\d+(?:\.\d+)?)\s*([GM])Bs?`)
)

// PostedDate is the posting date. Time is zero when the text didn't parse,
// in which case Raw keeps what was found.
type PostedDate struct {
	Time time.Time
	Raw  string
}

// IsZero reports that no date was found at all.
func (d PostedDate) IsZero() bool {
	return d.Time.IsZero() && d.Raw == ""
}

// String returns the ISO date, or the raw text when it didn't parse.
func (d PostedDate) String() string {
	if !d.Time.IsZero() {
		return d.Time.Format("2006-01-02")
	}
	return d.Raw
}

// MarshalJSON encodes the date as its String form.
func (d PostedDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// PostedInfo is what the "posted info" paragraph of a posting carries.
type PostedInfo struct {
	Date          PostedDate
	Format        string
	BitrateKbps   *int
	FileSizeBytes *int64
}

// ParsePostedBlock pulls the date, format, bitrate and size out of a posting's
// info text. Each field is optional and independent of the others.
func ParsePostedBlock(text string) PostedInfo {
	var info PostedInfo

	if m := postedRe.FindStringSubmatch(text); m != nil {
		raw := strings.Join(strings.Fields(m[1]), " ")
		if t, err := time.Parse("2 Jan 2006", raw); err == nil {
			info.Date = PostedDate{Time: t}
		} else {
			info.Date = PostedDate{Raw: raw}
		}
	}

	if m := formatRe.FindStringSubmatch(text); m != nil {
		info.Format = m[1]
	}

	if m := bitrateRe.FindStringSubmatch(text); m != nil && m[1] != "?" {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			info.BitrateKbps = &n
		}
	}

	if m := sizeRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			unit := float64(mib)
			if strings.EqualFold(m[2], "G") {
				unit = gib
			}
			n := int64(math.Round(v * unit))
			info.FileSizeBytes = &n
		}
	}

	return info
}

// FormatSize renders bytes with one decimal in the largest of GB/MB/KB that
// keeps the value at or above 1.
func FormatSize(bytes int64) string {
	b := float64(bytes)
	switch {
	case b >= gib:
		return fmt.Sprintf("%.1f GB", b/gib)
	case b >= mib:
		return fmt.Sprintf("%.1f MB", b/mib)
	default:
		return fmt.Sprintf("%.1f KB", b/kib)
	}
}
