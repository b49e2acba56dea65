package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// LineFormatter writes one attempt per line, suitable for fzf or fuzzel.
type LineFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewLineFormatter creates a new line formatter.
func NewLineFormatter(opts FormatterOptions) *LineFormatter {
	f := &LineFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("line").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes attempts one per line.
func (f *LineFormatter) Format(w io.Writer, attempts []model.Attempt) error {
	for i := range attempts {
		if _, err := fmt.Fprintln(w, f.formatLine(i+1, &attempts[i])); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single attempt line.
func (f *LineFormatter) formatLine(index int, a *model.Attempt) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(index, a)); err == nil {
			return buf.String()
		}
	}

	// Default format: index | time | kind | campaign: reason (detail)
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	var parts []string
	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, relativeTime(a.CreatedAt))
	}
	if f.opts.ShowKind && a.Kind != "" {
		parts = append(parts, string(a.Kind))
	}

	content := a.CampaignID + ": " + string(a.Reason)
	if detail := sanitize(a.Detail); detail != "" {
		content += " (" + detail + ")"
	}
	parts = append(parts, content)

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Attempt      *model.Attempt
	RelativeTime string
}

func newTemplateData(index int, a *model.Attempt) templateData {
	return templateData{Index: index, Attempt: a, RelativeTime: relativeTime(a.CreatedAt)}
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"reltime": relativeTime,
		"humantime": func(t time.Time) string {
			return humanize.Time(t)
		},
		"reasonIcon": func(r model.Reason) string {
			switch r {
			case model.ReasonDisplayed:
				return "+"
			case model.ReasonRejected, model.ReasonIneligible, model.ReasonSkipped:
				return "-"
			default:
				return "!"
			}
		},
	}
}

// relativeTime returns a compact relative time such as 5m or 2d.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}

// sanitize flattens text for single-line display.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.Join(strings.Fields(s), " ")
}
