package section

import (
	"encoding/json"
	"fmt"
)

// Opportunities is the structured report returned by the LLM
type Opportunities struct {
	ExecutiveSummary    string           `json:"executiveSummary"`
	QuickWins           []QuickWin       `json:"quickWins"`
	Recommendations     []Recommendation `json:"recommendations"`
	CompetitiveAnalysis string           `json:"competitiveAnalysis"`
	NextSteps           []string         `json:"nextSteps"`
	Sources             []Source         `json:"sources"`
}

// QuickWin is a low-effort improvement the prospect can start with
type QuickWin struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timeframe   string `json:"timeframe,omitempty"`
}

// Recommendation is a larger opportunity; each one becomes its own section
type Recommendation struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	PullQuote    string     `json:"pullQuote,omitempty"`
	Statistic    *Statistic `json:"statistic,omitempty"`
	KeyTakeaways []string   `json:"keyTakeaways,omitempty"`
	ImagePrompt  string     `json:"imagePrompt,omitempty"`
}

// Source is a reference cited by the report
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ParseOpportunities checks the structural shape of an LLM report and
// decodes it. Semantic correctness of the content is not checked.
func ParseOpportunities(data []byte) (*Opportunities, error) {
	result := NewValidationResult()

	var fields map[string]json.RawMessage
	if jsonKind(data) != '{' || json.Unmarshal(data, &fields) != nil {
		result.AddError("report", "type", "Report must be a JSON object")
		return nil, result.Err()
	}

	var out Opportunities
	out.ExecutiveSummary = stringField(fields, "executiveSummary", "report", true, result)
	out.CompetitiveAnalysis = stringField(fields, "competitiveAnalysis", "report", true, result)

	for i, raw := range arrayField(fields, "quickWins", "report", result) {
		path := fmt.Sprintf("report.quickWins[%d]", i)
		obj, ok := objectValue(raw, path, result)
		if !ok {
			continue
		}
		out.QuickWins = append(out.QuickWins, QuickWin{
			Title:       stringField(obj, "title", path, true, result),
			Description: stringField(obj, "description", path, true, result),
			Timeframe:   stringField(obj, "timeframe", path, false, result),
		})
	}

	for i, raw := range arrayField(fields, "recommendations", "report", result) {
		path := fmt.Sprintf("report.recommendations[%d]", i)
		obj, ok := objectValue(raw, path, result)
		if !ok {
			continue
		}
		rec := Recommendation{
			Title:       stringField(obj, "title", path, true, result),
			Description: stringField(obj, "description", path, true, result),
			PullQuote:   stringField(obj, "pullQuote", path, false, result),
			ImagePrompt: stringField(obj, "imagePrompt", path, false, result),
		}
		if raw, ok := obj["statistic"]; ok && jsonKind(raw) != 'n' {
			if stat, ok := objectValue(raw, path+".statistic", result); ok {
				rec.Statistic = &Statistic{
					Value:       stringField(stat, "value", path+".statistic", true, result),
					Description: stringField(stat, "description", path+".statistic", true, result),
				}
			}
		}
		if raw, ok := obj["keyTakeaways"]; ok && jsonKind(raw) != 'n' {
			rec.KeyTakeaways = stringArray(obj, "keyTakeaways", path, result)
		}
		out.Recommendations = append(out.Recommendations, rec)
	}

	out.NextSteps = stringArray(fields, "nextSteps", "report", result)

	for i, raw := range arrayField(fields, "sources", "report", result) {
		path := fmt.Sprintf("report.sources[%d]", i)
		obj, ok := objectValue(raw, path, result)
		if !ok {
			continue
		}
		out.Sources = append(out.Sources, Source{
			Title: stringField(obj, "title", path, true, result),
			URL:   stringField(obj, "url", path, false, result),
		})
	}

	if err := result.Err(); err != nil {
		return nil, err
	}
	return &out, nil
}

func arrayField(fields map[string]json.RawMessage, name, prefix string, result *ValidationResult) []json.RawMessage {
	path := prefix + "." + name
	raw, ok := fields[name]
	if !ok || jsonKind(raw) == 'n' {
		result.AddError(path, "required", fmt.Sprintf("%s is required", name))
		return nil
	}
	var items []json.RawMessage
	if jsonKind(raw) != '[' || json.Unmarshal(raw, &items) != nil {
		result.AddError(path, "type", fmt.Sprintf("%s must be an array", name))
		return nil
	}
	return items
}

func objectValue(raw json.RawMessage, path string, result *ValidationResult) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if jsonKind(raw) != '{' || json.Unmarshal(raw, &obj) != nil {
		result.AddError(path, "type", "must be an object")
		return nil, false
	}
	return obj, true
}

func stringArray(fields map[string]json.RawMessage, name, prefix string, result *ValidationResult) []string {
	var out []string
	for i, raw := range arrayField(fields, name, prefix, result) {
		var v string
		if jsonKind(raw) != '"' || json.Unmarshal(raw, &v) != nil {
			result.AddError(fmt.Sprintf("%s.%s[%d]", prefix, name, i), "type", "must be a string")
			continue
		}
		out = append(out, v)
	}
	return out
}
