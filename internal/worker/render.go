package worker

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/reachlabs/reach-be/internal/job"
)

// messageData is the personalization context available to message templates.
type messageData struct {
	FirstName   string
	LastName    string
	Subject     string
	ScheduledAt string
	Step        int
	Amount      string
	DaysOverdue int
}

// Default message bodies used when the payload does not carry a template.
const (
	defaultReminderTemplate = "Hi {{.FirstName}}, this is a reminder about your upcoming appointment{{if .ScheduledAt}} on {{.ScheduledAt}}{{end}}." +
		"{{if .Subject}} {{.Subject}}{{end}}"

	defaultNurtureTemplate = "Hi {{.FirstName}}, just checking in. Reply to this message and we can pick things back up."

	defaultDunningTemplate = "Hi {{.FirstName}}, your balance of {{.Amount}} is {{.DaysOverdue}} days overdue. " +
		"Please update your payment details to avoid any interruption."
)

// renderMessage renders the message content for one job. The payload
// template wins when present; otherwise the kind's default body is used. A
// template that does not parse or execute is a terminal payload error.
func renderMessage(kind job.Kind, tmpl string, data messageData) (string, error) {
	if tmpl == "" {
		switch kind {
		case job.KindReminder:
			tmpl = defaultReminderTemplate
		case job.KindNurture:
			tmpl = defaultNurtureTemplate
		case job.KindDunning:
			tmpl = defaultDunningTemplate
		default:
			return "", fmt.Errorf("%w: no template for kind %q", job.ErrInvalidPayload, kind)
		}
	}

	t, err := template.New(string(kind)).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: template parse failed: %v", job.ErrInvalidPayload, err)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: template execute failed: %v", job.ErrInvalidPayload, err)
	}

	return sb.String(), nil
}

// formatCents renders a minor-currency-unit amount as dollars, e.g. 5000
// becomes "$50.00".
func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
