package torznab

import "encoding/xml"

const (
	namespace = "http://torznab.com/schemas/2015/feed"
	atomNS    = "http://www.w3.org/2005/Atom"

	// AudiobookCategory is the Newznab category id for audiobooks.
	AudiobookCategory = 3030
)

// Error codes from the Newznab API.
const (
	CodeBadAPIKey      = 100
	CodeMissingParam   = 200
	CodeNoSuchItem     = 201
	CodeUnknownFunc    = 202
	CodeInternalFailed = 300
)

type errorDoc struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

type capsDoc struct {
	XMLName    xml.Name     `xml:"caps"`
	Server     capsServer   `xml:"server"`
	Limits     capsLimits   `xml:"limits"`
	Searching  capsSearches `xml:"searching"`
	Categories []capsCat    `xml:"categories>category"`
}

type capsServer struct {
	Version   string `xml:"version,attr"`
	Title     string `xml:"title,attr"`
	Strapline string `xml:"strapline,attr"`
	Email     string `xml:"email,attr"`
	URL       string `xml:"url,attr"`
	Image     string `xml:"image,attr"`
}

type capsLimits struct {
	Max     int `xml:"max,attr"`
	Default int `xml:"default,attr"`
}

type capsSearches struct {
	Search     capsSearch `xml:"search"`
	BookSearch capsSearch `xml:"book-search"`
}

type capsSearch struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCat struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type rssDoc struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	AtomNS    string     `xml:"xmlns:atom,attr"`
	TorznabNS string     `xml:"xmlns:torznab,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	GUID        string       `xml:"guid"`
	Link        string       `xml:"link"`
	Comments    string       `xml:"comments"`
	PubDate     string       `xml:"pubDate"`
	Category    string       `xml:"category"`
	Description string       `xml:"description"`
	Size        int64        `xml:"size"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	Attrs       []torznabAttr
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type torznabAttr struct {
	XMLName xml.Name `xml:"torznab:attr"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}
