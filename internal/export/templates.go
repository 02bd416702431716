package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"opsdesk/api/internal/store"
)

var orderTemplate = template.Must(template.New("order").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	},
	"money": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
}).Parse(orderTemplateHTML))

// OrderTotal sums the line totals.
func OrderTotal(o store.Order) float64 {
	var total float64
	for _, line := range o.Lines {
		total += line.TotalCost
	}
	return total
}

type orderTemplateData struct {
	Order store.Order
	Total float64
}

// RenderOrderHTML renders the printable order document.
func RenderOrderHTML(o store.Order) (string, error) {
	var buf bytes.Buffer
	err := orderTemplate.Execute(&buf, orderTemplateData{Order: o, Total: OrderTotal(o)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

const orderTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Order #{{.Order.PartyID}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    th, td { border: 1px solid #999; padding: 6px 10px; text-align: left; }
    th { background: #f0f0f0; }
    td.num, th.num { text-align: right; }
    .total td { font-weight: bold; }
  </style>
</head>
<body>
  <h1>Order #{{.Order.PartyID}}</h1>
  <div class="meta">
    <p><strong>{{.Order.Customer}}</strong><br>
    {{.Order.Address}}<br>
    {{.Order.Phone}}</p>
    {{with .Order.OrderDate}}<p>Order date: {{formatDate .}}</p>{{end}}
  </div>
  <table>
    <tr>
      <th>#</th><th>Item</th><th class="num">Qty</th><th class="num">Unit</th><th class="num">Total</th><th>Status</th>
    </tr>
    {{range $i, $line := .Order.Lines}}
    <tr>
      <td>{{$line.ID}}</td>
      <td>{{$line.Item}}</td>
      <td class="num">{{$line.Quantity}}</td>
      <td class="num">{{money $line.UnitCost}}</td>
      <td class="num">{{money $line.TotalCost}}</td>
      <td>{{$line.Status}}</td>
    </tr>
    {{end}}
    <tr class="total">
      <td colspan="4">Grand total</td>
      <td class="num">{{money .Total}}</td>
      <td></td>
    </tr>
  </table>
</body>
</html>`
