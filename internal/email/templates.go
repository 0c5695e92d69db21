// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// OrderInfo contains all the information needed for order email templates.
type OrderInfo struct {
	OrderNumber       string
	CustomerName      string
	CustomerEmail     string
	StoreName         string
	Status            string
	StatusMessage     string
	TrackingNumber    string
	EstimatedDelivery string
	OrderDate         string
	Items             []OrderItem
	Subtotal          string
	Shipping          string
	Tax               string
	Discount          string
	Total             string
}

// OrderItem represents a single line in an order email.
type OrderItem struct {
	Title     string
	Quantity  int
	Color     string
	UnitPrice string
	LineTotal string
}

// EmailTemplate defines a named email template.
type EmailTemplate struct {
	Name string
	HTML string
	Text string
}

// Renderer provides methods to render email templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer creates a new email template renderer with built-in templates.
func NewRenderer() (*Renderer, error) {
	templates := map[string]EmailTemplate{
		"order_confirmation": {
			Name: "Order Confirmation",
			HTML: orderConfirmationHTML,
			Text: orderConfirmationText,
		},
		"order_shipped": {
			Name: "Order Shipped",
			HTML: orderShippedHTML,
			Text: orderShippedText,
		},
		"order_delivered": {
			Name: "Order Delivered",
			HTML: orderDeliveredHTML,
			Text: orderDeliveredText,
		},
		"order_status_update": {
			Name: "Order Status Update",
			HTML: orderStatusUpdateHTML,
			Text: orderStatusUpdateText,
		},
	}

	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
	}

	tmpl := template.New("email").Funcs(funcMap)

	for key, t := range templates {
		if _, err := tmpl.New(key + "_html").Parse(t.HTML); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", key, err)
		}
		if _, err := tmpl.New(key + "_text").Parse(t.Text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", key, err)
		}
	}

	return &Renderer{templates: tmpl}, nil
}

// Render renders an email template with the given data.
func (r *Renderer) Render(templateName string, data *OrderInfo) (*Email, error) {
	var htmlBuf, textBuf bytes.Buffer

	if err := r.templates.ExecuteTemplate(&htmlBuf, templateName+"_html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.templates.ExecuteTemplate(&textBuf, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	subject := ""
	switch templateName {
	case "order_confirmation":
		subject = fmt.Sprintf("Order Confirmed - %s - %s", data.OrderNumber, data.StoreName)
	case "order_shipped":
		subject = fmt.Sprintf("Your Order Has Shipped - %s - %s", data.OrderNumber, data.StoreName)
	case "order_delivered":
		subject = fmt.Sprintf("Your Order Has Been Delivered - %s", data.OrderNumber)
	case "order_status_update":
		subject = fmt.Sprintf("Order Update - %s - %s", data.OrderNumber, data.StoreName)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

// SendOrderConfirmation sends an order confirmation email.
func SendOrderConfirmation(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_confirmation", orderInfo)
}

// SendOrderShipped sends an order shipped email.
func SendOrderShipped(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_shipped", orderInfo)
}

// SendOrderDelivered sends an order delivered email.
func SendOrderDelivered(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_delivered", orderInfo)
}

// SendOrderStatusUpdate sends a generic status-change email.
func SendOrderStatusUpdate(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_status_update", orderInfo)
}

func send(ctx context.Context, p Provider, templateName string, orderInfo *OrderInfo) error {
	if p == nil {
		return nil
	}

	renderer, err := NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	email, err := renderer.Render(templateName, orderInfo)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

const orderConfirmationText = `Thank you for your order, {{.CustomerName}}!

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}
- {{.Title}}{{if .Color}} ({{.Color}}){{end}} x{{.Quantity}} - {{.LineTotal}}
{{end}}

Subtotal: {{.Subtotal}}
Shipping: {{.Shipping}}
Tax: {{.Tax}}{{if .Discount}}
Discount: -{{.Discount}}{{end}}
Total: {{.Total}}

Track your order any time with your order number.

We'll send you another email when your order ships.

Thank you for shopping with {{.StoreName}}!
`

const orderConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order Confirmation</title>
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <div style="background: #2563eb; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0;">Order Confirmed</h1>
  </div>
  <div style="background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb;">
    <p>Thank you for your order, {{.CustomerName}}!</p>
    <p><strong>Order Number:</strong> {{.OrderNumber}}<br>
       <strong>Order Date:</strong> {{.OrderDate}}</p>
    <table style="width: 100%; border-collapse: collapse;">
      <tr>
        <th style="text-align: left; padding: 8px; background: #f3f4f6;">Item</th>
        <th style="text-align: right; padding: 8px; background: #f3f4f6;">Qty</th>
        <th style="text-align: right; padding: 8px; background: #f3f4f6;">Price</th>
      </tr>
      {{range .Items}}
      <tr>
        <td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">{{.Title}}{{if .Color}} ({{.Color}}){{end}}</td>
        <td style="text-align: right; padding: 8px; border-bottom: 1px solid #e5e7eb;">{{.Quantity}}</td>
        <td style="text-align: right; padding: 8px; border-bottom: 1px solid #e5e7eb;">{{.LineTotal}}</td>
      </tr>
      {{end}}
    </table>
    <p style="text-align: right;">
      Subtotal: {{.Subtotal}}<br>
      Shipping: {{.Shipping}}<br>
      Tax: {{.Tax}}<br>
      {{if .Discount}}Discount: -{{.Discount}}<br>{{end}}
      <strong>Total: {{.Total}}</strong>
    </p>
    <p>We'll send you another email when your order ships.</p>
  </div>
  <div style="text-align: center; padding: 20px; color: #6b7280; font-size: 14px;">
    Thank you for shopping with {{.StoreName}}!
  </div>
</body>
</html>`

const orderShippedText = `Good news, {{.CustomerName}} - your order is on its way!

Order Number: {{.OrderNumber}}
Tracking Number: {{.TrackingNumber}}
{{if .EstimatedDelivery}}Estimated Delivery: {{.EstimatedDelivery}}{{end}}

Items:
{{range .Items}}
- {{.Title}}{{if .Color}} ({{.Color}}){{end}} x{{.Quantity}}
{{end}}

Thank you for shopping with {{.StoreName}}!
`

const orderShippedHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order Shipped</title>
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <div style="background: #059669; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0;">Your Order Has Shipped</h1>
  </div>
  <div style="background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb;">
    <p>Good news, {{.CustomerName}} - your order is on its way!</p>
    <p><strong>Order Number:</strong> {{.OrderNumber}}<br>
       <strong>Tracking Number:</strong> {{.TrackingNumber}}<br>
       {{if .EstimatedDelivery}}<strong>Estimated Delivery:</strong> {{.EstimatedDelivery}}{{end}}</p>
    <ul>
      {{range .Items}}<li>{{.Title}}{{if .Color}} ({{.Color}}){{end}} x{{.Quantity}}</li>{{end}}
    </ul>
  </div>
  <div style="text-align: center; padding: 20px; color: #6b7280; font-size: 14px;">
    Thank you for shopping with {{.StoreName}}!
  </div>
</body>
</html>`

const orderDeliveredText = `Hi {{.CustomerName}},

Your order {{.OrderNumber}} has been delivered.

We hope you love it. If anything is wrong, just reply to this email.

Thank you for shopping with {{.StoreName}}!
`

const orderDeliveredHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order Delivered</title>
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <div style="background: #059669; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0;">Order Delivered</h1>
  </div>
  <div style="background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb;">
    <p>Hi {{.CustomerName}},</p>
    <p>Your order <strong>{{.OrderNumber}}</strong> has been delivered.</p>
    <p>We hope you love it. If anything is wrong, just reply to this email.</p>
  </div>
  <div style="text-align: center; padding: 20px; color: #6b7280; font-size: 14px;">
    Thank you for shopping with {{.StoreName}}!
  </div>
</body>
</html>`

const orderStatusUpdateText = `Hi {{.CustomerName}},

Your order {{.OrderNumber}} has been updated.

Status: {{.Status}}
{{if .StatusMessage}}{{.StatusMessage}}{{end}}

Thank you for shopping with {{.StoreName}}!
`

const orderStatusUpdateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order Update</title>
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <div style="background: #2563eb; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0;">Order Update</h1>
  </div>
  <div style="background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb;">
    <p>Hi {{.CustomerName}},</p>
    <p>Your order <strong>{{.OrderNumber}}</strong> has been updated.</p>
    <p><strong>Status:</strong> {{.Status}}</p>
    {{if .StatusMessage}}<p>{{.StatusMessage}}</p>{{end}}
  </div>
  <div style="text-align: center; padding: 20px; color: #6b7280; font-size: 14px;">
    Thank you for shopping with {{.StoreName}}!
  </div>
</body>
</html>`
