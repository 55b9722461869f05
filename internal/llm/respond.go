package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/metrics"
	"github.com/nkch1k/REAssistant/internal/query"
)

// Responder turns a completed dispatch outcome into user-facing text. The
// data context handed to the model is already sign-normalized: expenses
// appear as positive magnitudes labeled "expenses". When the LLM call fails
// the deterministic context rendering itself is returned, so a response is
// always produced.
type Responder struct {
	client *Client
	reg    *metrics.Registry
}

// NewResponder wires the chat client.
func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

// WithMetrics attaches the collector registry and returns the responder.
func (r *Responder) WithMetrics(reg *metrics.Registry) *Responder {
	r.reg = reg
	return r
}

func (r *Responder) count(result string) {
	if r.reg != nil {
		r.reg.LLMRequests.WithLabelValues("respond", result).Inc()
	}
}

// Respond produces the final response text for the outcome.
func (r *Responder) Respond(ctx context.Context, out dispatch.Outcome, userQuery string) string {
	if out.State == dispatch.StateFailed {
		return failureText(out)
	}

	rendered := renderContext(out)
	text, err := r.client.Chat(ctx, responderSystemPrompt,
		fmt.Sprintf(responderUserTemplate, rendered, userQuery))
	if err != nil {
		r.count("error")
		log.Warn().Err(err).Msg("response generation failed, returning plain rendering")
		return rendered
	}
	r.count("ok")
	return text
}

// failureText maps designed terminal failures to user-facing messages.
func failureText(out dispatch.Outcome) string {
	switch out.Failure {
	case dispatch.FailPropertyNotFound:
		return fmt.Sprintf("Property %q was not found in the dataset.", out.Fragment)
	case dispatch.FailTenantNotFound:
		return fmt.Sprintf("Tenant %q was not found in the dataset.", out.Fragment)
	case dispatch.FailNoData:
		return fmt.Sprintf("No data available for %q with the specified criteria.", out.Fragment)
	case dispatch.FailMalformedEntities:
		return "I need a bit more detail to answer that - for example, which property or tenant, or both names for a comparison."
	default:
		return "I can answer questions about portfolio P&L, properties, and tenants. Try asking about a property's performance, a tenant's revenue, or the total P&L for a year."
	}
}

// renderContext builds the sign-normalized data block for the generator.
// Doubling as the fallback response, it must stand alone as readable text.
func renderContext(out dispatch.Outcome) string {
	switch data := out.Data.(type) {
	case decimal.Decimal:
		return fmt.Sprintf("Total P&L for %s: %s", out.Period.Label(), money(data))

	case query.Breakdown:
		return renderBreakdown(data, out.Period.Label())

	case query.PropertySummary:
		var b strings.Builder
		fmt.Fprintf(&b, "Property: %s\n", data.Name)
		fmt.Fprintf(&b, "Total P&L: %s\n", money(data.TotalPnL))
		fmt.Fprintf(&b, "Total Revenue: %s\n", money(data.TotalRevenue))
		fmt.Fprintf(&b, "Total Expenses: %s\n", money(query.ExpenseMagnitude(data.TotalExpenses)))
		fmt.Fprintf(&b, "Tenants (%d): %s", data.TenantCount, strings.Join(data.TenantNames, ", "))
		return b.String()

	case query.PropertyPeriodPnL:
		var b strings.Builder
		fmt.Fprintf(&b, "Property: %s (%s)\n", data.Name, data.Period)
		fmt.Fprintf(&b, "Revenue: %s\n", money(data.Revenue))
		fmt.Fprintf(&b, "Expenses: %s\n", money(query.ExpenseMagnitude(data.Expenses)))
		fmt.Fprintf(&b, "Net Profit: %s\n", money(data.NetProfit))
		b.WriteString(renderGroups("Revenue breakdown", data.RevenueBreakdown, false))
		b.WriteString(renderGroups("Expense breakdown", data.ExpenseBreakdown, true))
		return strings.TrimRight(b.String(), "\n")

	case query.TenantRevenue:
		return fmt.Sprintf("Tenant: %s\nRevenue for %s: %s", data.Name, data.Period, money(data.Revenue))

	case []query.RankedEntry:
		var b strings.Builder
		b.WriteString("Ranking by net value:\n")
		for _, entry := range data {
			fmt.Fprintf(&b, "%d. %s: %s\n", entry.Rank, entry.Name, money(entry.Metric))
		}
		return strings.TrimRight(b.String(), "\n")

	case query.ComparisonResult:
		var b strings.Builder
		fmt.Fprintf(&b, "Comparison of %s vs %s:\n", data.A.Name, data.B.Name)
		fmt.Fprintf(&b, "%s: P&L %s, revenue %s, expenses %s\n",
			data.A.Name, money(data.A.TotalPnL), money(data.A.TotalRevenue), money(query.ExpenseMagnitude(data.A.TotalExpenses)))
		fmt.Fprintf(&b, "%s: P&L %s, revenue %s, expenses %s\n",
			data.B.Name, money(data.B.TotalPnL), money(data.B.TotalRevenue), money(query.ExpenseMagnitude(data.B.TotalExpenses)))
		fmt.Fprintf(&b, "Delta (%s minus %s): P&L %s, revenue %s, expenses %s",
			data.A.Name, data.B.Name, money(data.Delta.PnL), money(data.Delta.Revenue), money(data.Delta.Expenses))
		return b.String()

	case query.PortfolioStats:
		var b strings.Builder
		fmt.Fprintf(&b, "Portfolio overview:\n")
		fmt.Fprintf(&b, "Properties (%d): %s\n", data.PropertyCount, strings.Join(data.Properties, ", "))
		fmt.Fprintf(&b, "Tenants (%d): %s\n", data.TenantCount, strings.Join(data.Tenants, ", "))
		fmt.Fprintf(&b, "Total Revenue: %s\n", money(data.TotalRevenue))
		fmt.Fprintf(&b, "Total Expenses: %s\n", money(query.ExpenseMagnitude(data.TotalExpenses)))
		fmt.Fprintf(&b, "Net P&L: %s\n", money(data.NetPnL))
		fmt.Fprintf(&b, "Years covered: %s", strings.Join(data.YearsCovered, ", "))
		return b.String()

	default:
		return "No data available."
	}
}

func renderBreakdown(breakdown query.Breakdown, period string) string {
	groups := make([]string, 0, len(breakdown))
	for g := range breakdown {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var revenue, expenses []string
	totalRevenue, totalExpenses := decimal.Zero, decimal.Zero
	for _, g := range groups {
		amount := breakdown[g]
		if amount.Sign() >= 0 {
			revenue = append(revenue, fmt.Sprintf("- %s: %s", groupLabel(g), money(amount)))
			totalRevenue = totalRevenue.Add(amount)
		} else {
			expenses = append(expenses, fmt.Sprintf("- %s: %s", groupLabel(g), money(query.ExpenseMagnitude(amount))))
			totalExpenses = totalExpenses.Add(query.ExpenseMagnitude(amount))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "P&L breakdown for %s:\n", period)
	if len(revenue) > 0 {
		b.WriteString("Revenue:\n" + strings.Join(revenue, "\n") + "\n")
		fmt.Fprintf(&b, "Total Revenue: %s\n", money(totalRevenue))
	}
	if len(expenses) > 0 {
		b.WriteString("Expenses:\n" + strings.Join(expenses, "\n") + "\n")
		fmt.Fprintf(&b, "Total Expenses: %s\n", money(totalExpenses))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderGroups(title string, breakdown query.Breakdown, magnitudes bool) string {
	if len(breakdown) == 0 {
		return ""
	}
	groups := make([]string, 0, len(breakdown))
	for g := range breakdown {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, g := range groups {
		amount := breakdown[g]
		if magnitudes {
			amount = query.ExpenseMagnitude(amount)
		}
		fmt.Fprintf(&b, "- %s: %s\n", groupLabel(g), money(amount))
	}
	return b.String()
}

func groupLabel(group string) string {
	words := strings.Fields(strings.ReplaceAll(group, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// money renders an amount as $1,234.56, with the sign ahead of the symbol.
func money(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var parts []string
	for len(whole) > 3 {
		parts = append([]string{whole[len(whole)-3:]}, parts...)
		whole = whole[:len(whole)-3]
	}
	parts = append([]string{whole}, parts...)
	out := "$" + strings.Join(parts, ",") + "." + frac
	if d.Sign() < 0 {
		return "-" + out
	}
	return out
}
