package render

import (
	"strings"

	"ai-opportunities/report-portal/report-portal-backend/pkg/textlayout"
)

type styleRun struct {
	text  string
	bold  bool
	width float64
}

// styleRuns merges the words of a line into runs of equal weight
func styleRuns(line textlayout.Line, space float64) []styleRun {
	var runs []styleRun
	var words []string
	var cur styleRun

	flush := func() {
		if len(words) > 0 {
			cur.text = strings.Join(words, " ")
			runs = append(runs, cur)
		}
		words = nil
	}

	for _, w := range line.Words {
		if len(words) > 0 && w.Bold != cur.bold {
			flush()
		}
		if len(words) == 0 {
			cur = styleRun{bold: w.Bold, width: w.Width}
		} else {
			cur.width += space + w.Width
		}
		words = append(words, w.Text)
	}
	flush()
	return runs
}
