package section

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Statistic is a highlighted numeric callout
type Statistic struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// ReportSection is the unit of rendering
type ReportSection struct {
	Title        string     `json:"title"`
	MainContent  string     `json:"mainContent"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	PullQuote    string     `json:"pullQuote,omitempty"`
	Statistic    *Statistic `json:"statistic,omitempty"`
	KeyTakeaways []string   `json:"keyTakeaways,omitempty"`
}

// HasSidebar reports whether the section carries sidebar metadata
func (s ReportSection) HasSidebar() bool {
	return s.Statistic != nil || len(s.KeyTakeaways) > 0
}

// Cover describes the first page of a report
type Cover struct {
	BusinessName string    `json:"businessName"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	PreparedFor  string    `json:"preparedFor,omitempty"`
	PreparedBy   string    `json:"preparedBy,omitempty"`
	Date         time.Time `json:"date"`
}

// Footer describes the closing page of a report
type Footer struct {
	Heading      string `json:"heading"`
	Text         string `json:"text"`
	ContactEmail string `json:"contactEmail,omitempty"`
	Website      string `json:"website,omitempty"`
}

// DefaultCover returns the cover used when the caller only supplies a business name
func DefaultCover(businessName string, date time.Time) Cover {
	return Cover{
		BusinessName: businessName,
		Title:        "AI Opportunities Report",
		Subtitle:     "Personalized recommendations for your business",
		PreparedFor:  businessName,
		Date:         date,
	}
}

// DefaultFooter returns the standard closing page
func DefaultFooter() Footer {
	return Footer{
		Heading: "Ready to take the next step?",
		Text: "This report was generated from your survey answers. " +
			"Book a discovery call and we will walk through these opportunities together.",
	}
}

// Validate checks a document's sections before any rendering begins
func Validate(sections []ReportSection) error {
	result := NewValidationResult()
	seen := make(map[string]int, len(sections))

	for i, s := range sections {
		prefix := fmt.Sprintf("sections[%d]", i)
		title := strings.TrimSpace(s.Title)
		if title == "" {
			result.AddError(prefix+".title", "required", "Section title is required")
		} else {
			key := strings.ToLower(title)
			if first, dup := seen[key]; dup {
				result.AddError(prefix+".title", "duplicate",
					fmt.Sprintf("Section title %q already used by sections[%d]", title, first))
			} else {
				seen[key] = i
			}
		}

		if s.Statistic != nil {
			if strings.TrimSpace(s.Statistic.Value) == "" {
				result.AddError(prefix+".statistic.value", "required", "Statistic value is required")
			}
			if strings.TrimSpace(s.Statistic.Description) == "" {
				result.AddError(prefix+".statistic.description", "required", "Statistic description is required")
			}
		}

		for j, kt := range s.KeyTakeaways {
			if strings.TrimSpace(kt) == "" {
				result.AddError(fmt.Sprintf("%s.keyTakeaways[%d]", prefix, j), "empty", "Key takeaway must not be empty")
			}
		}
	}

	return result.Err()
}

// ParseSections decodes a JSON array of sections with per-field type checks.
// Any structural problem is reported as a *ValidationError naming the path.
func ParseSections(data []byte) ([]ReportSection, error) {
	result := NewValidationResult()

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		result.AddError("sections", "type", "Sections must be a JSON array")
		return nil, result.Err()
	}

	sections := make([]ReportSection, 0, len(raws))
	for i, raw := range raws {
		s, ok := parseSection(raw, fmt.Sprintf("sections[%d]", i), result)
		if ok {
			sections = append(sections, s)
		}
	}

	if err := result.Err(); err != nil {
		return nil, err
	}
	if err := Validate(sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func parseSection(raw json.RawMessage, prefix string, result *ValidationResult) (ReportSection, bool) {
	var fields map[string]json.RawMessage
	if jsonKind(raw) != '{' || json.Unmarshal(raw, &fields) != nil {
		result.AddError(prefix, "type", "Section must be an object")
		return ReportSection{}, false
	}

	before := len(result.Errors)
	var s ReportSection

	s.Title = stringField(fields, "title", prefix, true, result)
	s.MainContent = stringField(fields, "mainContent", prefix, false, result)
	s.ImageURL = stringField(fields, "imageUrl", prefix, false, result)
	s.PullQuote = stringField(fields, "pullQuote", prefix, false, result)

	if raw, ok := fields["statistic"]; ok && jsonKind(raw) != 'n' {
		var stat map[string]json.RawMessage
		if jsonKind(raw) != '{' || json.Unmarshal(raw, &stat) != nil {
			result.AddError(prefix+".statistic", "type", "Statistic must be an object with value and description")
		} else {
			s.Statistic = &Statistic{
				Value:       stringField(stat, "value", prefix+".statistic", true, result),
				Description: stringField(stat, "description", prefix+".statistic", true, result),
			}
		}
	}

	if raw, ok := fields["keyTakeaways"]; ok && jsonKind(raw) != 'n' {
		var items []json.RawMessage
		if jsonKind(raw) != '[' || json.Unmarshal(raw, &items) != nil {
			result.AddError(prefix+".keyTakeaways", "type", "Key takeaways must be an array of strings")
		} else {
			for j, item := range items {
				var v string
				if jsonKind(item) != '"' || json.Unmarshal(item, &v) != nil {
					result.AddError(fmt.Sprintf("%s.keyTakeaways[%d]", prefix, j), "type", "Key takeaway must be a string")
					continue
				}
				s.KeyTakeaways = append(s.KeyTakeaways, v)
			}
		}
	}

	return s, len(result.Errors) == before
}

// stringField reads an optional or required string member of a JSON object
func stringField(fields map[string]json.RawMessage, name, prefix string, required bool, result *ValidationResult) string {
	path := prefix + "." + name
	raw, ok := fields[name]
	if !ok || jsonKind(raw) == 'n' {
		if required {
			result.AddError(path, "required", fmt.Sprintf("%s is required", name))
		}
		return ""
	}
	var v string
	if jsonKind(raw) != '"' || json.Unmarshal(raw, &v) != nil {
		result.AddError(path, "type", fmt.Sprintf("%s must be a string", name))
		return ""
	}
	return v
}

// jsonKind returns the first significant byte of a JSON value:
// '{', '[', '"', 'n' (null), 't'/'f' (bool), or a digit/'-' for numbers
func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
