package report

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shotcheck/internal/artifact"
	"shotcheck/internal/index"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
        table, td { border: 1px solid #333; border-collapse: collapse; }
        thead { background-color: #333; color: #fff; }
        td { vertical-align: top; padding: 4px; }
        img { width: {{.ThumbWidth}}px; height: {{.ThumbHeight}}px; }
        .violations { background: #fff3cd; padding: 15px; margin: 15px 0; font-family: 'Courier New', monospace; white-space: pre; }
        .pass { color: #28a745; }
        .fail { color: #dc3545; }
    </style>
</head>
<body>
    <h1>{{.Title}}: {{if .Violations}}<span class="fail">FAIL</span>{{else}}<span class="pass">PASS</span>{{end}}</h1>
    <table>
        <thead>
            <tr><th>model</th>{{range .Browsers}}<th>{{.}}</th>{{end}}</tr>
        </thead>
        <tbody>
            {{range .Rows}}
            <tr>
                <td>{{.Model}}</td>
                {{range .Cells}}<td>{{range .}}<a href="{{.Href}}" target="_blank" title="{{.Title}}"><img src="{{.Src}}"></a>{{end}}</td>
                {{end}}
            </tr>
            {{end}}
        </tbody>
    </table>
    {{if .Violations}}
    <h2>Violations ({{len .Violations}})</h2>
    <div class="violations">{{range .Violations}}{{.Line}}
{{end}}</div>
    {{end}}
</body>
</html>
`

var pageTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// Thumbnailer produces a small image for a representative render and returns
// its path.
type Thumbnailer interface {
	Thumbnail(src, hash string) (string, error)
}

// HTMLOptions configures an HTMLSink.
type HTMLOptions struct {
	Title       string
	ThumbWidth  int
	ThumbHeight int
	// Thumbnailer is optional. When nil, or when a thumbnail cannot be
	// made, img tags point at the full render.
	Thumbnailer Thumbnailer
	Logger      *slog.Logger
}

// DefaultHTMLOptions returns the options used when none are given.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		Title:       "shotcheck",
		ThumbWidth:  160,
		ThumbHeight: 120,
	}
}

type thumbLink struct {
	Href  string
	Src   string
	Title string
}

type row struct {
	Model string
	Cells [][]thumbLink
}

// HTMLSink writes the comparison grid to a single HTML file. Every link is
// relative to the file's directory so the report can be moved together with
// the screenshot tree.
type HTMLSink struct {
	path      string
	outputDir string
	opts      HTMLOptions

	browsers   []string
	rows       []row
	violations []Violation
}

// NewHTMLSink returns a sink that writes to path when Done is called.
func NewHTMLSink(path string, opts HTMLOptions) (*HTMLSink, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve report path: %w", err)
	}
	def := DefaultHTMLOptions()
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.ThumbWidth <= 0 {
		opts.ThumbWidth = def.ThumbWidth
	}
	if opts.ThumbHeight <= 0 {
		opts.ThumbHeight = def.ThumbHeight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HTMLSink{
		path:      abs,
		outputDir: filepath.Dir(abs),
		opts:      opts,
	}, nil
}

// Path returns the absolute path of the report file.
func (s *HTMLSink) Path() string {
	return s.path
}

// Init implements Sink.
func (s *HTMLSink) Init(models, browsers []string) {
	s.browsers = browsers
	s.rows = make([]row, len(models))
	for i, m := range models {
		s.rows[i] = row{Model: m, Cells: make([][]thumbLink, len(browsers))}
	}
}

// Entry implements Sink.
func (s *HTMLSink) Entry(model, browser int, groups []index.HashGroup) {
	links := make([]thumbLink, 0, len(groups))
	for _, g := range groups {
		rep := g.Paths[0]
		href := s.relative(rep)
		src := href

		if s.opts.Thumbnailer != nil {
			thumb, err := s.opts.Thumbnailer.Thumbnail(rep, g.Hash)
			if err != nil {
				s.opts.Logger.Warn("thumbnail failed, linking full render",
					slog.String("path", rep),
					slog.String("error", err.Error()),
				)
			} else {
				src = s.relative(thumb)
			}
		}

		links = append(links, thumbLink{
			Href:  href,
			Src:   src,
			Title: tags(g.Paths),
		})
	}
	s.rows[model].Cells[browser] = links
}

// Violation implements Sink.
func (s *HTMLSink) Violation(v Violation) {
	s.violations = append(s.violations, v)
}

// Done renders and writes the file.
func (s *HTMLSink) Done() error {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		HTMLOptions
		Browsers   []string
		Rows       []row
		Violations []Violation
	}{
		HTMLOptions: s.opts,
		Browsers:    s.browsers,
		Rows:        s.rows,
		Violations:  s.violations,
	})
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// relative returns p relative to the report directory, with forward
// slashes. Paths that cannot be made relative are returned absolute.
func (s *HTMLSink) relative(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(s.outputDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// tags lists engine/variant for every path sharing a hash, one per line.
func tags(paths []string) string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key, ok, err := artifact.ExtractKey(p)
		if err != nil || !ok {
			continue
		}
		out = append(out, key.Tag())
	}
	return strings.Join(out, "\n")
}
