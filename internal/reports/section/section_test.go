package section

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	names := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		names = append(names, fe.Field)
	}
	return names
}

func TestParseSections_Valid(t *testing.T) {
	data := []byte(`[
		{"title": "Intro", "mainContent": "Hello", "imageUrl": "http://x/y.png"},
		{"title": "Growth", "mainContent": "", "statistic": {"value": "287%", "description": "Average ROI"},
		 "keyTakeaways": ["one", "two"], "pullQuote": null}
	]`)

	sections, err := ParseSections(data)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "http://x/y.png", sections[0].ImageURL)
	assert.False(t, sections[0].HasSidebar())
	require.NotNil(t, sections[1].Statistic)
	assert.Equal(t, "287%", sections[1].Statistic.Value)
	assert.Equal(t, []string{"one", "two"}, sections[1].KeyTakeaways)
	assert.True(t, sections[1].HasSidebar())
}

func TestParseSections_TypeErrorsNamePaths(t *testing.T) {
	data := []byte(`[
		{"title": "Ok"},
		{"title": 5},
		{"title": "Stat", "statistic": {"value": 287, "description": "ROI"}},
		{"title": "Takeaways", "keyTakeaways": ["a", 3]},
		"not an object"
	]`)

	_, err := ParseSections(data)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.ElementsMatch(t, []string{
		"sections[1].title",
		"sections[2].statistic.value",
		"sections[3].keyTakeaways[1]",
		"sections[4]",
	}, fieldNames(t, err))
}

func TestParseSections_NotAnArray(t *testing.T) {
	_, err := ParseSections([]byte(`{"title": "x"}`))
	assert.Equal(t, []string{"sections"}, fieldNames(t, err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		sections []ReportSection
		fields   []string
	}{
		{
			name:     "empty document is valid",
			sections: nil,
		},
		{
			name:     "missing title",
			sections: []ReportSection{{Title: "  "}},
			fields:   []string{"sections[0].title"},
		},
		{
			name:     "duplicate title ignores case",
			sections: []ReportSection{{Title: "Growth"}, {Title: "growth "}},
			fields:   []string{"sections[1].title"},
		},
		{
			name:     "malformed statistic",
			sections: []ReportSection{{Title: "A", Statistic: &Statistic{Value: "287%"}}},
			fields:   []string{"sections[0].statistic.description"},
		},
		{
			name:     "empty takeaway",
			sections: []ReportSection{{Title: "A", KeyTakeaways: []string{"fine", ""}}},
			fields:   []string{"sections[0].keyTakeaways[1]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sections)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.fields, fieldNames(t, err))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &ResourceError{Resource: "chromium", Essential: true, Err: errors.New("not found")})
	assert.True(t, IsEssentialResource(wrapped))
	assert.False(t, IsEssentialResource(&ResourceError{Resource: "banner", Err: errors.New("404")}))

	ut := &UpstreamTimeout{Service: "llm", Attempts: 3, Err: errors.New("deadline")}
	assert.True(t, IsUpstreamTimeout(ut))
	assert.True(t, ut.Retryable())
	assert.Contains(t, ut.Error(), "3 attempts")

	re := &RenderError{Backend: "vector", Op: "finish"}
	assert.Equal(t, "render vector: finish failed", re.Error())
}

const sampleReport = `{
	"executiveSummary": "Acme can save **20 hours** a week.",
	"quickWins": [
		{"title": "Chat triage", "description": "Answer common questions.", "timeframe": "2 weeks"},
		{"title": "Invoice OCR", "description": "Stop retyping invoices."}
	],
	"recommendations": [
		{"title": "Forecasting", "description": "Predict demand.", "pullQuote": "Stock what sells.",
		 "statistic": {"value": "287%", "description": "Average ROI"}, "keyTakeaways": ["Less waste"],
		 "imagePrompt": "warehouse shelves"},
		{"title": "Forecasting", "description": "Predict staffing.", "statistic": null}
	],
	"competitiveAnalysis": "Competitors already automate scheduling.",
	"nextSteps": ["Book a call", "Export sales data"],
	"sources": [{"title": "McKinsey 2024", "url": "https://example.com/report"}, {"title": "Internal survey"}]
}`

func TestParseOpportunities(t *testing.T) {
	o, err := ParseOpportunities([]byte(sampleReport))
	require.NoError(t, err)

	assert.Len(t, o.QuickWins, 2)
	assert.Equal(t, "2 weeks", o.QuickWins[0].Timeframe)
	require.Len(t, o.Recommendations, 2)
	require.NotNil(t, o.Recommendations[0].Statistic)
	assert.Nil(t, o.Recommendations[1].Statistic)
	assert.Equal(t, []string{"Book a call", "Export sales data"}, o.NextSteps)
	assert.Equal(t, "", o.Sources[1].URL)
}

func TestParseOpportunities_Structural(t *testing.T) {
	data := []byte(`{
		"executiveSummary": 12,
		"quickWins": [{"title": "x"}],
		"recommendations": {},
		"nextSteps": ["a", false],
		"sources": []
	}`)

	_, err := ParseOpportunities(data)
	assert.ElementsMatch(t, []string{
		"report.executiveSummary",
		"report.competitiveAnalysis",
		"report.quickWins[0].description",
		"report.recommendations",
		"report.nextSteps[1]",
	}, fieldNames(t, err))

	_, err = ParseOpportunities([]byte(`[]`))
	assert.Equal(t, []string{"report"}, fieldNames(t, err))
}

func TestFromOpportunities(t *testing.T) {
	o, err := ParseOpportunities([]byte(sampleReport))
	require.NoError(t, err)

	sections := FromOpportunities(o)
	titles := make([]string, len(sections))
	for i, s := range sections {
		titles[i] = s.Title
	}
	assert.Equal(t, []string{
		TitleExecutiveSummary,
		TitleQuickWins,
		"Forecasting",
		"Forecasting (2)",
		TitleCompetitiveAnalysis,
		TitleNextSteps,
		TitleSources,
	}, titles)

	assert.Equal(t, "1. **Chat triage**: Answer common questions. (2 weeks)\n2. **Invoice OCR**: Stop retyping invoices.",
		sections[1].MainContent)
	assert.Equal(t, "Stock what sells.", sections[2].PullQuote)
	assert.Equal(t, "287%", sections[2].Statistic.Value)
	assert.Equal(t, "• Book a call\n• Export sales data", sections[5].MainContent)
	assert.Equal(t, "1. McKinsey 2024 - https://example.com/report\n2. Internal survey", sections[6].MainContent)

	assert.NoError(t, Validate(sections))
}

func TestFromOpportunities_SkipsEmptyParts(t *testing.T) {
	sections := FromOpportunities(&Opportunities{CompetitiveAnalysis: "Only this."})
	require.Len(t, sections, 1)
	assert.Equal(t, TitleCompetitiveAnalysis, sections[0].Title)

	assert.Nil(t, FromOpportunities(nil))
}

func TestImagePrompts(t *testing.T) {
	o, err := ParseOpportunities([]byte(sampleReport))
	require.NoError(t, err)

	prompts := ImagePrompts(o, "Acme")
	assert.Len(t, prompts, 7)
	assert.Equal(t, "warehouse shelves", prompts["Forecasting"])
	assert.Contains(t, prompts["Forecasting (2)"], "for Acme")
}
