package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/vinylverse/storefront/internal/model"
)

var orderTmpl = template.Must(template.New("order").Funcs(template.FuncMap{
	"money": FormatMoney,
}).Parse(`<h2>Thanks for your order!</h2>
<p>Order #{{.Order.ID}} is {{.Order.Status}}.</p>
<ul>
{{- range .Order.Items}}
  <li>{{.Title}} by {{.Artist}}: {{money .Price}}</li>
{{- end}}
</ul>
<p><strong>Total: {{money .Order.TotalPrice}}</strong></p>
{{- if .Order.ShippingAddress}}
<p>Shipping to: {{.Order.ShippingAddress}}</p>
{{- end}}
`))

var contactTmpl = template.Must(template.New("contact").Parse(`<p>New message from {{.From}} (user #{{.UserID}}):</p>
<div>{{.Body}}</div>
`))

// FormatMoney renders whole currency units as "$25.00".
func FormatMoney(units int64) string {
	return fmt.Sprintf("$%d.00", units)
}

// OrderConfirmation renders the receipt sent after an order is placed.
func OrderConfirmation(to string, order model.Order) (Message, error) {
	var buf bytes.Buffer
	if err := orderTmpl.Execute(&buf, struct{ Order model.Order }{order}); err != nil {
		return Message{}, err
	}
	lines := make([]string, 0, len(order.Items)+1)
	for _, it := range order.Items {
		lines = append(lines, fmt.Sprintf("%s by %s: %s", it.Title, it.Artist, FormatMoney(it.Price)))
	}
	lines = append(lines, "Total: "+FormatMoney(order.TotalPrice))
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your Vinylverse order #%d", order.ID),
		HTML:    buf.String(),
		Text:    strings.Join(lines, "\n"),
	}, nil
}

// ContactMessage renders a contact form submission for the support inbox.
// body must already be sanitized; it is inserted as trusted HTML.
func ContactMessage(supportInbox, from string, userID uint64, body string) (Message, error) {
	var buf bytes.Buffer
	err := contactTmpl.Execute(&buf, struct {
		From   string
		UserID uint64
		Body   template.HTML
	}{from, userID, template.HTML(body)})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      supportInbox,
		ReplyTo: from,
		Subject: "Contact form message from " + from,
		HTML:    buf.String(),
		Text:    body,
	}, nil
}
