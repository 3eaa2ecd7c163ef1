package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/litescript/ls-abb/internal/download"
	"github.com/litescript/ls-abb/internal/scraper"
	"github.com/olekukonko/tablewriter"
)

func renderRecords(w io.Writer, records []scraper.PostingRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	rows := make([][]string, 0, len(records))
	for i, r := range records {
		bitrate := ""
		if r.BitrateKbps != nil {
			bitrate = strconv.Itoa(*r.BitrateKbps)
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			r.Title,
			r.Format,
			bitrate,
			r.FileSizeDisplay,
			r.PostedDate.String(),
			r.DetailsURL,
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Title", "Format", "Kbps", "Size", "Posted", "Link"})
	table.SetAutoWrapText(false)
	table.SetColumnColor(
		tablewriter.Colors{tablewriter.Normal},
		tablewriter.Colors{tablewriter.Bold},
		tablewriter.Colors{tablewriter.FgHiGreenColor},
		tablewriter.Colors{tablewriter.Normal},
		tablewriter.Colors{tablewriter.Normal},
		tablewriter.Colors{tablewriter.Normal},
		tablewriter.Colors{tablewriter.FgHiBlackColor},
	)
	table.AppendBulk(rows)
	table.Render()
}

func renderStatus(w io.Writer, torrents []download.Status) {
	if len(torrents) == 0 {
		fmt.Fprintln(w, "No torrents in category.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Progress", "State", "Size"})
	table.SetAutoWrapText(false)
	for _, t := range torrents {
		table.Append([]string{
			t.Name,
			fmt.Sprintf("%.2f%%", t.Progress),
			t.State,
			t.Size,
		})
	}
	table.Render()
}
