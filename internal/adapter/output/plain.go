package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// PlainFormatter formats attempts as readable multi-line text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes attempts as plain text.
func (f *PlainFormatter) Format(w io.Writer, attempts []model.Attempt) error {
	for i := range attempts {
		if err := f.formatAttempt(w, i+1, &attempts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatAttempt(w io.Writer, index int, a *model.Attempt) error {
	if f.template != nil {
		return f.template.Execute(w, newTemplateData(index, a))
	}

	var sb strings.Builder
	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}
	if f.opts.ShowKind && a.Kind != "" {
		sb.WriteString(fmt.Sprintf("<%s> ", a.Kind))
	}
	sb.WriteString(a.CampaignID + " " + string(a.Reason))
	if f.opts.ShowTime && !a.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf(" (%s)", humanize.Time(a.CreatedAt)))
	}
	sb.WriteString("\n")

	if a.Detail != "" {
		sb.WriteString("    " + sanitize(a.Detail) + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatField outputs a specific field from an attempt.
func FormatField(a *model.Attempt, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return a.ID
	case "campaign", "campaign_id":
		return a.CampaignID
	case "kind":
		return string(a.Kind)
	case "reason", "outcome":
		return string(a.Reason)
	case "detail":
		return a.Detail
	case "time", "created_at":
		return a.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	default:
		return a.CampaignID + " " + string(a.Reason)
	}
}
