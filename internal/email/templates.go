// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// OrderInfo carries the fields the order email templates render.
type OrderInfo struct {
	OrderID        string
	CustomerName   string
	CustomerEmail  string
	Currency       string
	Total          string
	Items          []LineItem
	Status         string
	PreviousStatus string
}

type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice string
}

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`Hi {{.CustomerName}},

Thanks for your order {{.OrderID}}.

{{range .Items}}  {{.Quantity}} x {{.Name}} @ {{.UnitPrice}}
{{end}}
Total: {{.Total}} {{.Currency}}

We'll email you again once your payment is confirmed.
`))

var statusChangedTmpl = template.Must(template.New("status_changed").Parse(`Hi {{.CustomerName}},

Your order {{.OrderID}} changed from {{.PreviousStatus}} to {{.Status}}.

Total: {{.Total}} {{.Currency}}
`))

func SendOrderConfirmation(ctx context.Context, provider Provider, info OrderInfo) error {
	body, err := render(orderConfirmationTmpl, info)
	if err != nil {
		return err
	}
	return provider.SendEmail(ctx, &Email{
		To:      info.CustomerEmail,
		Subject: fmt.Sprintf("Order %s received", info.OrderID),
		Text:    body,
	})
}

func SendOrderStatusChanged(ctx context.Context, provider Provider, info OrderInfo) error {
	body, err := render(statusChangedTmpl, info)
	if err != nil {
		return err
	}
	return provider.SendEmail(ctx, &Email{
		To:      info.CustomerEmail,
		Subject: fmt.Sprintf("Order %s is now %s", info.OrderID, info.Status),
		Text:    body,
	})
}

func render(tmpl *template.Template, info OrderInfo) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}
