package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/textlayout"
)

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Cover.Title}} - {{.Cover.BusinessName}}</title>
<style>
@page { size: {{.PageSize}}; margin: 0; }
* { box-sizing: border-box; }
body { margin: 0; font-family: Helvetica, Arial, sans-serif; font-size: {{.FontSize}}pt; line-height: {{.LineSpacing}}; color: {{.Text}}; }
.group { break-before: page; page-break-before: always; min-height: 100vh; }
.group:first-child { break-before: auto; page-break-before: auto; }
.cover { background: linear-gradient(135deg, {{.Primary}}, {{.Accent}}); color: #fff; padding: 20mm {{.MarginRight}}mm 20mm {{.MarginLeft}}mm; height: 100vh; }
.cover .business { font-weight: bold; letter-spacing: .08em; text-transform: uppercase; }
.cover h1 { margin: 38vh 0 4mm; font-size: {{.TitleSize}}pt; line-height: 1.15; }
.cover .rule { width: 40mm; border-top: 0.6mm solid #fff; margin: 8mm 0; }
.banner { position: relative; height: {{.BannerHeight}}mm; background: linear-gradient(135deg, {{.Primary}}, {{.Accent}}); background-size: cover; background-position: center; }
.banner img { width: 100%; height: 100%; object-fit: cover; display: block; }
.banner h2 { position: absolute; left: 0; right: 0; bottom: 0; margin: 0; padding: 5mm {{.MarginRight}}mm 5mm {{.MarginLeft}}mm; background: rgba(0,0,0,.55); color: #fff; font-size: {{.BannerTitleSize}}pt; }
.body { display: flex; gap: {{.Gutter}}mm; padding: 8mm {{.MarginRight}}mm {{.MarginBottom}}mm {{.MarginLeft}}mm; }
.main { flex: 1; }
aside { width: {{.SidebarWidth}}mm; flex: none; }
h3 { color: {{.Primary}}; font-size: {{.HeadingSize}}pt; margin: 3mm 0 1.5mm; break-after: avoid; }
p { margin: 0 0 3mm; }
li::marker { color: {{.Accent}}; }
blockquote { margin: 0 0 3mm; padding-left: 5mm; border-left: 1.2mm solid {{.Accent}}; color: {{.Accent}}; }
.pull-quote { background: {{.Panel}}; border-left: 2mm solid {{.Accent}}; color: {{.Primary}}; padding: 3mm 6mm; font-size: 1.25em; }
.statistic { background: {{.Panel}}; border-left: 1.8mm solid {{.Accent}}; padding: 5mm 6mm; margin-bottom: 6mm; }
.statistic .value { display: block; font-size: 24pt; font-weight: bold; color: {{.Accent}}; }
.statistic .description { color: {{.Muted}}; }
.takeaways h4 { color: {{.Primary}}; margin: 0 0 1mm; }
.closing { background: {{.Panel}}; padding: 30vh {{.MarginRight}}mm 0 {{.MarginLeft}}mm; height: 100vh; }
.closing h2 { color: {{.Primary}}; font-size: {{.ClosingSize}}pt; }
.closing .contact { color: {{.Accent}}; font-weight: bold; }
</style>
</head>
<body>
<section class="group cover">
{{- with .Cover}}
<div class="business">{{.BusinessName}}</div>
<h1>{{.Title}}</h1>
{{if .Subtitle}}<div class="subtitle">{{.Subtitle}}</div>{{end}}
<div class="rule"></div>
{{if .PreparedFor}}<div>Prepared for: {{.PreparedFor}}</div>{{end}}
{{if .PreparedBy}}<div>Prepared by: {{.PreparedBy}}</div>{{end}}
{{if .Date}}<div class="date">{{.Date}}</div>{{end}}
{{end -}}
</section>
{{range .Sections}}
<section class="group report-section">
<div class="banner">{{if .Banner}}<img src="{{.Banner}}" alt="">{{end}}<h2>{{.Title}}</h2></div>
<div class="body">
<div class="main">
{{range .Blocks}}{{template "block" .}}{{end}}
{{if and .PullQuote (not .PullQuoteShown)}}<blockquote class="pull-quote">&ldquo;{{.PullQuote}}&rdquo;</blockquote>{{end}}
</div>
{{if or .Statistic .KeyTakeaways}}<aside>
{{with .Statistic}}<div class="statistic"><span class="value">{{.Value}}</span><span class="description">{{.Description}}</span></div>{{end}}
{{if .KeyTakeaways}}<div class="takeaways"><h4>Key Takeaways</h4><ul>{{range .KeyTakeaways}}<li>{{template "spans" .}}</li>{{end}}</ul></div>{{end}}
</aside>{{end}}
</div>
</section>
{{end}}
<section class="group closing">
{{- with .Footer}}
<h2>{{.Heading}}</h2>
<p>{{template "spans" .Text}}</p>
{{if .ContactEmail}}<div class="contact">{{.ContactEmail}}</div>{{end}}
{{if .Website}}<div class="contact">{{.Website}}</div>{{end}}
{{end -}}
</section>
</body>
</html>
{{define "spans"}}{{range .}}{{if .Bold}}<strong>{{.Text}}</strong>{{else}}{{.Text}}{{end}}{{end}}{{end}}
{{define "block"}}
{{- if eq .Kind "heading"}}<h3>{{template "spans" .Spans}}</h3>
{{- else if eq .Kind "paragraph"}}<p>{{template "spans" .Spans}}</p>{{if .PullQuote}}<blockquote class="pull-quote">&ldquo;{{.PullQuote}}&rdquo;</blockquote>{{end}}
{{- else if eq .Kind "quote"}}<blockquote>{{template "spans" .Spans}}</blockquote>
{{- else if eq .Kind "bullet"}}<ul>{{range .Items}}<li>{{template "spans" .Spans}}</li>{{end}}</ul>
{{- else if eq .Kind "numbered"}}<ol class="numbered">{{range .Items}}<li value="{{.Value}}">{{template "spans" .Spans}}</li>{{end}}</ol>
{{- end}}
{{- end}}`

var docTemplate = template.Must(template.New("report").Parse(documentTemplate))

type htmlView struct {
	PageSize        string
	FontSize        float64
	LineSpacing     float64
	TitleSize       float64
	HeadingSize     float64
	BannerTitleSize float64
	ClosingSize     float64
	BannerHeight    float64
	SidebarWidth    float64
	Gutter          float64
	MarginLeft      float64
	MarginRight     float64
	MarginBottom    float64
	Primary         string
	Accent          string
	Text            string
	Muted           string
	Panel           string

	Cover    htmlCover
	Sections []htmlSection
	Footer   htmlFooter
}

type htmlCover struct {
	section.Cover
	Date string
}

type htmlFooter struct {
	Heading      string
	ContactEmail string
	Website      string
	Text         []spanView
}

type htmlSection struct {
	Title          string
	Banner         template.URL
	Blocks         []htmlBlock
	PullQuote      string
	PullQuoteShown bool
	Statistic      *section.Statistic
	KeyTakeaways   [][]spanView
}

type htmlBlock struct {
	Kind      string
	Spans     []spanView
	Items     []htmlItem
	PullQuote string
}

type htmlItem struct {
	Value string
	Spans []spanView
}

type spanView struct {
	Text string
	Bold bool
}

// BuildHTML renders the document as one self-contained HTML page with a
// page break before every page group. Banners are embedded as data URIs.
func BuildHTML(doc Document, opts Options) (string, error) {
	opts = opts.withDefaults()
	view := htmlView{
		PageSize:        cssPageSize(opts.PageSize),
		FontSize:        opts.FontSize,
		LineSpacing:     opts.LineSpacing,
		TitleSize:       opts.TitleFontSize,
		HeadingSize:     opts.HeadingFontSize,
		BannerTitleSize: opts.HeadingFontSize + 8,
		ClosingSize:     opts.TitleFontSize - 4,
		BannerHeight:    opts.BannerHeight,
		SidebarWidth:    opts.SidebarWidth,
		Gutter:          opts.Gutter,
		MarginLeft:      opts.Margins.Left,
		MarginRight:     opts.Margins.Right,
		MarginBottom:    opts.Margins.Bottom,
		Primary:         cssColor(opts.PrimaryColor),
		Accent:          cssColor(opts.AccentColor),
		Text:            cssColor(opts.TextColor),
		Muted:           cssColor(opts.MutedColor),
		Panel:           cssColor(opts.PanelColor),
		Cover:           htmlCover{Cover: doc.Cover},
		Footer: htmlFooter{
			Heading:      doc.Footer.Heading,
			ContactEmail: doc.Footer.ContactEmail,
			Website:      doc.Footer.Website,
			Text:         spanViews(content.ParseInline(doc.Footer.Text)),
		},
	}
	if !doc.Cover.Date.IsZero() {
		view.Cover.Date = doc.Cover.Date.Format(opts.DateFormat)
	}

	for _, ps := range doc.Sections {
		hs := htmlSection{
			Title:     ps.Section.Title,
			PullQuote: quoteText(ps.Section.PullQuote),
			Statistic: ps.Section.Statistic,
		}
		if ps.Banner != nil {
			uri, err := dataURI(ps.Banner, opts.JPEGQuality)
			if err != nil {
				return "", &section.RenderError{Backend: string(BackendBrowser), Op: "encode banner", Err: err}
			}
			hs.Banner = uri
		}
		for _, b := range ps.Blocks {
			hb := htmlBlock{Kind: string(b.Kind), Spans: spanViews(b.Spans)}
			for _, it := range b.Items {
				hb.Items = append(hb.Items, htmlItem{Value: strings.TrimSuffix(it.Label, "."), Spans: spanViews(it.Spans)})
			}
			if !hs.PullQuoteShown && hs.PullQuote != "" && b.Kind == content.KindParagraph {
				hb.PullQuote = hs.PullQuote
				hs.PullQuoteShown = true
			}
			hs.Blocks = append(hs.Blocks, hb)
		}
		for _, kt := range ps.Section.KeyTakeaways {
			hs.KeyTakeaways = append(hs.KeyTakeaways, spanViews(content.ParseInline(kt)))
		}
		view.Sections = append(view.Sections, hs)
	}

	var buf bytes.Buffer
	if err := docTemplate.Execute(&buf, view); err != nil {
		return "", &section.RenderError{Backend: string(BackendBrowser), Op: "template", Err: err}
	}
	return buf.String(), nil
}

// ImageSources lists the src of every img element in an HTML document
func ImageSources(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var srcs []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			srcs = append(srcs, src)
		}
	})
	return srcs, nil
}

func spanViews(spans []textlayout.Span) []spanView {
	out := make([]spanView, len(spans))
	for i, s := range spans {
		out[i] = spanView{Text: s.Text, Bold: s.Bold}
	}
	return out
}

func dataURI(img image.Image, quality int) (template.URL, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

func cssColor(c PDFColor) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func cssPageSize(size string) string {
	switch strings.ToLower(size) {
	case "letter":
		return "letter"
	case "legal":
		return "legal"
	default:
		return "A4"
	}
}
