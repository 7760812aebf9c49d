package render

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

// Backend selects how a document is drawn
type Backend string

const (
	BackendVector  Backend = "vector"
	BackendRaster  Backend = "raster"
	BackendBrowser Backend = "browser"
)

// ParseBackend maps a request value onto a Backend. Empty means vector.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendVector:
		return BackendVector, nil
	case BackendRaster:
		return BackendRaster, nil
	case BackendBrowser:
		return BackendBrowser, nil
	}
	return "", &section.ValidationError{Errors: []section.FieldError{{
		Field:   "backend",
		Code:    "invalid",
		Message: fmt.Sprintf("unknown backend %q, expected vector, raster or browser", s),
	}}}
}

// PreparedSection is a sanitized section with its classified body and
// decoded banner. A nil Banner renders as a placeholder.
type PreparedSection struct {
	Section section.ReportSection
	Blocks  []content.Block
	Banner  image.Image
}

// Document is everything one render needs
type Document struct {
	Cover    section.Cover
	Sections []PreparedSection
	Footer   section.Footer
}

// Renderer draws one document. Instances are never shared between renders;
// Close must be called on every path once Begin has been attempted.
type Renderer interface {
	Backend() Backend
	Begin(ctx context.Context, cover section.Cover) error
	Section(ctx context.Context, s PreparedSection) error
	Footer(ctx context.Context, f section.Footer) error
	Finish(ctx context.Context) ([]byte, error)
	Close() error
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins in millimetres
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Options configures page geometry and theme for every backend
type Options struct {
	PageSize        string     `json:"page_size"` // A4, Letter
	Margins         PDFMargins `json:"margins"`
	FontFamily      string     `json:"font_family"`
	FontFile        string     `json:"font_file,omitempty"`      // optional UTF-8 TTF, regular
	BoldFontFile    string     `json:"bold_font_file,omitempty"` // optional UTF-8 TTF, bold
	FontSize        float64    `json:"font_size"`
	HeadingFontSize float64    `json:"heading_font_size"`
	TitleFontSize   float64    `json:"title_font_size"`
	LineSpacing     float64    `json:"line_spacing"`
	BannerHeight    float64    `json:"banner_height"`
	SidebarWidth    float64    `json:"sidebar_width"`
	Gutter          float64    `json:"gutter"`
	PrimaryColor    PDFColor   `json:"primary_color"`
	AccentColor     PDFColor   `json:"accent_color"`
	TextColor       PDFColor   `json:"text_color"`
	MutedColor      PDFColor   `json:"muted_color"`
	PanelColor      PDFColor   `json:"panel_color"`
	RasterDPI       float64    `json:"raster_dpi"`
	JPEGQuality     int        `json:"jpeg_quality"`
	Compress        bool       `json:"compress"`
	IncludePageNum  bool       `json:"include_page_num"`
	Author          string     `json:"author,omitempty"`
	DateFormat      string     `json:"date_format"`
}

// DefaultOptions returns the house style
func DefaultOptions() Options {
	return Options{
		PageSize:        "A4",
		Margins:         PDFMargins{Left: 18, Right: 18, Top: 20, Bottom: 20},
		FontFamily:      "Go",
		FontSize:        10.5,
		HeadingFontSize: 13,
		TitleFontSize:   26,
		LineSpacing:     1.45,
		BannerHeight:    62,
		SidebarWidth:    58,
		Gutter:          8,
		PrimaryColor:    PDFColor{R: 31, G: 41, B: 84},
		AccentColor:     PDFColor{R: 99, G: 102, B: 241},
		TextColor:       PDFColor{R: 33, G: 37, B: 41},
		MutedColor:      PDFColor{R: 108, G: 117, B: 125},
		PanelColor:      PDFColor{R: 238, G: 240, B: 253},
		RasterDPI:       110,
		JPEGQuality:     88,
		Compress:        true,
		IncludePageNum:  true,
		DateFormat:      "January 2, 2006",
	}
}

// withDefaults fills zero fields from DefaultOptions
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PageSize == "" {
		o.PageSize = d.PageSize
	}
	if o.Margins == (PDFMargins{}) {
		o.Margins = d.Margins
	}
	if o.FontFamily == "" {
		o.FontFamily = d.FontFamily
	}
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	if o.HeadingFontSize <= 0 {
		o.HeadingFontSize = d.HeadingFontSize
	}
	if o.TitleFontSize <= 0 {
		o.TitleFontSize = d.TitleFontSize
	}
	if o.LineSpacing <= 0 {
		o.LineSpacing = d.LineSpacing
	}
	if o.BannerHeight <= 0 {
		o.BannerHeight = d.BannerHeight
	}
	if o.SidebarWidth <= 0 {
		o.SidebarWidth = d.SidebarWidth
	}
	if o.Gutter <= 0 {
		o.Gutter = d.Gutter
	}
	if o.PrimaryColor == (PDFColor{}) {
		o.PrimaryColor = d.PrimaryColor
	}
	if o.AccentColor == (PDFColor{}) {
		o.AccentColor = d.AccentColor
	}
	if o.TextColor == (PDFColor{}) {
		o.TextColor = d.TextColor
	}
	if o.MutedColor == (PDFColor{}) {
		o.MutedColor = d.MutedColor
	}
	if o.PanelColor == (PDFColor{}) {
		o.PanelColor = d.PanelColor
	}
	if o.RasterDPI <= 0 {
		o.RasterDPI = d.RasterDPI
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = d.JPEGQuality
	}
	if o.DateFormat == "" {
		o.DateFormat = d.DateFormat
	}
	return o
}

// pageSizeMM returns the page width and height in millimetres
func (o Options) pageSizeMM() (float64, float64) {
	switch strings.ToLower(o.PageSize) {
	case "letter":
		return 215.9, 279.4
	case "legal":
		return 215.9, 355.6
	default:
		return 210, 297
	}
}

const ptToMM = 25.4 / 72

// lineHeight is the baseline-to-baseline distance in mm for a font size in points
func (o Options) lineHeight(size float64) float64 {
	return size * ptToMM * o.LineSpacing
}

const bulletGlyph = "•"

// quoteText strips quote marks the author already put around a pull quote;
// every backend adds its own
func quoteText(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"“”`))
}

// fontSources returns the regular and bold TTF data for the vector backend:
// the configured files when set, otherwise the Go fonts the raster backend
// draws with
func (o Options) fontSources() (regular, bold []byte, err error) {
	if o.FontFile == "" {
		return goregular.TTF, gobold.TTF, nil
	}
	if regular, err = os.ReadFile(o.FontFile); err != nil {
		return nil, nil, &section.ResourceError{Resource: "font " + o.FontFile, Essential: true, Err: err}
	}
	if o.BoldFontFile == "" {
		return regular, regular, nil
	}
	if bold, err = os.ReadFile(o.BoldFontFile); err != nil {
		return nil, nil, &section.ResourceError{Resource: "font " + o.BoldFontFile, Essential: true, Err: err}
	}
	return regular, bold, nil
}
