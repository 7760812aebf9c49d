package section

import (
	"fmt"
	"strings"
)

// Section titles produced by FromOpportunities
const (
	TitleExecutiveSummary    = "Executive Summary"
	TitleQuickWins           = "Quick Wins"
	TitleCompetitiveAnalysis = "Competitive Analysis"
	TitleNextSteps           = "Next Steps"
	TitleSources             = "Sources"
)

// FromOpportunities maps an LLM report onto ordered report sections.
// Empty parts are skipped and duplicate titles are suffixed.
func FromOpportunities(o *Opportunities) []ReportSection {
	sections, _ := transform(o, "")
	return sections
}

// ImagePrompts returns a banner prompt for every section FromOpportunities
// produces, keyed by section title. Recommendations use their own prompt
// when the report supplies one.
func ImagePrompts(o *Opportunities, businessName string) map[string]string {
	_, prompts := transform(o, businessName)
	return prompts
}

func transform(o *Opportunities, businessName string) ([]ReportSection, map[string]string) {
	prompts := make(map[string]string)
	if o == nil {
		return nil, prompts
	}

	var sections []ReportSection
	titles := make(map[string]int)
	add := func(s ReportSection, prompt string) {
		key := strings.ToLower(strings.TrimSpace(s.Title))
		titles[key]++
		if n := titles[key]; n > 1 {
			s.Title = fmt.Sprintf("%s (%d)", s.Title, n)
		}
		if prompt == "" {
			prompt = defaultPrompt(s.Title, businessName)
		}
		prompts[s.Title] = prompt
		sections = append(sections, s)
	}

	if strings.TrimSpace(o.ExecutiveSummary) != "" {
		add(ReportSection{Title: TitleExecutiveSummary, MainContent: o.ExecutiveSummary}, "")
	}

	if len(o.QuickWins) > 0 {
		var b strings.Builder
		for i, qw := range o.QuickWins {
			fmt.Fprintf(&b, "%d. **%s**: %s", i+1, strings.TrimSpace(qw.Title), strings.TrimSpace(qw.Description))
			if qw.Timeframe != "" {
				fmt.Fprintf(&b, " (%s)", strings.TrimSpace(qw.Timeframe))
			}
			b.WriteString("\n")
		}
		add(ReportSection{Title: TitleQuickWins, MainContent: strings.TrimRight(b.String(), "\n")}, "")
	}

	for _, rec := range o.Recommendations {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			title = "Recommendation"
		}
		add(ReportSection{
			Title:        title,
			MainContent:  rec.Description,
			PullQuote:    rec.PullQuote,
			Statistic:    rec.Statistic,
			KeyTakeaways: rec.KeyTakeaways,
		}, rec.ImagePrompt)
	}

	if strings.TrimSpace(o.CompetitiveAnalysis) != "" {
		add(ReportSection{Title: TitleCompetitiveAnalysis, MainContent: o.CompetitiveAnalysis}, "")
	}

	if len(o.NextSteps) > 0 {
		lines := make([]string, 0, len(o.NextSteps))
		for _, step := range o.NextSteps {
			lines = append(lines, "• "+strings.TrimSpace(step))
		}
		add(ReportSection{Title: TitleNextSteps, MainContent: strings.Join(lines, "\n")}, "")
	}

	if len(o.Sources) > 0 {
		lines := make([]string, 0, len(o.Sources))
		for i, src := range o.Sources {
			line := fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(src.Title))
			if src.URL != "" {
				line += " - " + src.URL
			}
			lines = append(lines, line)
		}
		add(ReportSection{Title: TitleSources, MainContent: strings.Join(lines, "\n")}, "")
	}

	return sections, prompts
}

func defaultPrompt(title, businessName string) string {
	if businessName == "" {
		return fmt.Sprintf("Abstract professional illustration of %s, soft gradients, no text", title)
	}
	return fmt.Sprintf("Abstract professional illustration of %s for %s, soft gradients, no text", title, businessName)
}
