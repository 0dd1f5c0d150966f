package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/encoding/json"

	"github.com/vegasq/dataview/distribution"
)

// barWidth is the width of the longest bar in a distribution table.
const barWidth = 30

// FormatDistributions writes a distribution summary. The "table" format
// prints one table per column with a proportional bar; every other format
// writes the summary as a single JSON document.
func FormatDistributions(w io.Writer, format string, s distribution.Summary) error {
	if !strings.EqualFold(format, "table") {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode distributions: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	for _, column := range s.Columns() {
		d, _ := s.Get(column)
		if _, err := fmt.Fprintf(w, "\n%s (%s, %d values)\n", column, d.Type, d.Total()); err != nil {
			return err
		}

		peak := 0
		for _, c := range d.Counts {
			if c > peak {
				peak = c
			}
		}

		tw := newTableWriter(w)
		tw.SetHeader([]string{"label", "count", ""})
		tw.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
		for i, label := range d.Labels {
			tw.Append([]string{cellText(label), fmt.Sprint(d.Counts[i]), bar(d.Counts[i], peak)})
		}
		tw.Render()
	}
	return nil
}

func bar(count, peak int) string {
	if peak == 0 {
		return ""
	}
	n := count * barWidth / peak
	if n == 0 && count > 0 {
		n = 1
	}
	return strings.Repeat("#", n)
}
