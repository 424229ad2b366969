package pipeline

import (
	"io"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/terracol/terracol/internal/model"
)

// PrintSummary writes the human-readable end-of-run summary: counts, row
// totals, and one line per failed tile sorted by identifier.
func PrintSummary(w io.Writer, report *model.Report) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "region %s: %d tiles\n", report.Region, report.Tiles)
	if n := report.Downloaded(); n > 0 {
		p.Fprintf(w, "  downloaded: %d\n", n)
	}
	if n := report.Converted(); n > 0 {
		p.Fprintf(w, "  converted:  %d (%d rows)\n", n, report.Rows())
	}

	failures := report.Failures()
	if len(failures) == 0 {
		return
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Tile < failures[j].Tile })

	p.Fprintf(w, "  failed:     %d\n", len(failures))
	for _, f := range failures {
		p.Fprintf(w, "    %s  %s  %s\n", f.Tile, f.ErrKind, f.ErrMsg)
	}
}
