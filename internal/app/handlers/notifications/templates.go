package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/money"
)

var mailTemplates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"amount": formatAmount,
	"dates":  formatRange,
}).Parse(`
{{define "confirmed"}}<p>Your booking <b>{{.BookingID}}</b> with {{.GuideName}} for {{dates .Range}} is confirmed.</p>
<p>Advance paid: {{amount .Advance}}. Balance due before the tour: {{amount .Remaining}}.</p>{{end}}

{{define "guide_assigned"}}<p>You have a new booking <b>{{.BookingID}}</b> for {{dates .Range}}.</p>{{end}}

{{define "fully_paid"}}<p>We received the balance of {{amount .Amount}} for booking <b>{{.BookingID}}</b>. You are all set.</p>{{end}}

{{define "cancelled"}}<p>Booking <b>{{.BookingID}}</b> for {{dates .Range}} was cancelled by the {{.CancelledBy}}.</p>
{{if .Refunded.IsPositive}}<p>A refund of {{amount .Refunded}} is on its way.</p>{{end}}{{end}}

{{define "guide_released"}}<p>Booking <b>{{.BookingID}}</b> for {{dates .Range}} has been cancelled and the dates are free again.</p>{{end}}

{{define "withdrew"}}<p>Your guide can no longer lead booking <b>{{.BookingID}}</b> for {{dates .Range}}.
We are finding a substitute and will write again shortly. Your payment is safe.</p>{{end}}

{{define "substitute"}}<p>{{.GuideName}} will now guide booking <b>{{.BookingID}}</b> for {{dates .Range}}.</p>{{end}}

{{define "completed"}}<p>Thanks for touring with us. Booking <b>{{.BookingID}}</b> is complete.</p>{{end}}

{{define "reminder"}}<p>Your tour <b>{{.BookingID}}</b> starts {{dates .Range}}.</p>
<p>Please pay the remaining {{amount .AmountDue}}{{if .GuideName}} before you meet {{.GuideName}}{{end}}.</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notifications: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatAmount(m money.Money) string {
	return fmt.Sprintf("%s %d.%02d", m.Currency, m.Amount/100, m.Amount%100)
}

func formatRange(r daterange.DateRange) string {
	if r.Start.Equal(r.End) {
		return r.Start.Format("Jan 2, 2006")
	}
	return r.Start.Format("Jan 2") + " to " + r.End.Format("Jan 2, 2006")
}
