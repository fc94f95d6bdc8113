package cli

import (
	"fmt"
	"io"
	"strings"

	"farmrent/internal/agreement"
	"farmrent/internal/models"
	"farmrent/internal/pricing"
)

// quoteView is the deterministic shape of a quote for output.
type quoteView struct {
	MachineryID   string        `json:"machinery_id"`
	MachineryName string        `json:"machinery_name"`
	OwnerName     string        `json:"owner_name"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	Quote         pricing.Quote `json:"quote"`
}

func renderQuote(w io.Writer, v quoteView) {
	q := v.Quote
	fmt.Fprintf(w, "%-16s %s (%s)\n", "Machinery:", v.MachineryName, v.MachineryID)
	fmt.Fprintf(w, "%-16s %s\n", "Provider:", v.OwnerName)
	fmt.Fprintf(w, "%-16s %s to %s (%s)\n", "Period:", v.StartDate, v.EndDate, days(q.TotalDays))
	fmt.Fprintf(w, "%-16s %s\n", "Daily rate:", pricing.FormatAmount(q.DailyRate))
	fmt.Fprintf(w, "%-16s %s\n", "Rental total:", pricing.FormatAmount(q.TotalPrice))
	renderFuel(w, q)
}

func renderFuel(w io.Writer, q pricing.Quote) {
	if !q.FuelIncluded {
		fmt.Fprintf(w, "%-16s %s\n", "Fuel:", "not included")
		return
	}
	fmt.Fprintf(w, "%-16s included, paid by %s\n", "Fuel:", q.FuelPaidBy)
	fmt.Fprintf(w, "%-16s %s\n", "Fuel per day:", pricing.FormatAmount(q.FuelCostPerDay))
	fmt.Fprintf(w, "%-16s %s\n", "Fuel estimate:", pricing.FormatAmount(q.EstimatedFuelCost))
	fmt.Fprintf(w, "  %-14s %s\n", "farmer pays:", pricing.FormatAmount(q.FuelSplit.Farmer))
	fmt.Fprintf(w, "  %-14s %s\n", "provider pays:", pricing.FormatAmount(q.FuelSplit.Provider))
}

func renderRequest(w io.Writer, r *models.RentalRequest) {
	fmt.Fprintf(w, "%-16s %s\n", "Request:", r.ID)
	fmt.Fprintf(w, "%-16s %s\n", "Status:", statusLabel(r))
	fmt.Fprintf(w, "%-16s %s (%s)\n", "Machinery:", r.MachineryName, r.MachineryID)
	fmt.Fprintf(w, "%-16s %s <%s>\n", "Farmer:", r.FarmerName, r.FarmerEmail)
	fmt.Fprintf(w, "%-16s %s <%s>\n", "Provider:", r.ProviderName, r.ProviderEmail)
	fmt.Fprintf(w, "%-16s %s to %s (%s)\n", "Period:",
		r.StartDate.Format(models.DateLayout), r.EndDate.Format(models.DateLayout), days(r.TotalDays))
	fmt.Fprintf(w, "%-16s %s\n", "Rental total:", pricing.FormatAmount(r.TotalPrice))
	renderFuel(w, pricing.ForRequest(r))
	if r.AgreementID != "" {
		fmt.Fprintf(w, "%-16s %s\n", "Agreement:", r.AgreementID)
	}
	if r.DisputeReported {
		fmt.Fprintf(w, "%-16s %s\n", "Dispute:", r.DisputeDetails)
	}
}

func renderRequests(w io.Writer, list []*models.RentalRequest) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No rental requests.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-10s  %12s  %s\n", "ID", "MACHINERY", "START", "END", "TOTAL", "STATUS")
	for _, r := range list {
		fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-10s  %12s  %s\n",
			r.ID,
			truncate(r.MachineryName, 20),
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			pricing.FormatAmount(r.TotalPrice),
			statusLabel(r))
	}
}

func renderCertificate(w io.Writer, c *agreement.Certificate) {
	fmt.Fprintln(w, "RENTAL AGREEMENT")
	fmt.Fprintf(w, "%-16s %s\n", "Agreement ID:", c.AgreementID)
	fmt.Fprintf(w, "%-16s %s\n", "Verify at:", c.VerificationURL)
	fmt.Fprintf(w, "%-16s %s (%s)\n", "Machinery:", c.MachineryName, c.MachineryID)
	fmt.Fprintf(w, "%-16s %s <%s> %s\n", "Farmer:", c.FarmerName, c.FarmerEmail, c.FarmerPhone)
	fmt.Fprintf(w, "%-16s %s <%s>\n", "Provider:", c.ProviderName, c.ProviderEmail)
	fmt.Fprintf(w, "%-16s %s to %s (%s)\n", "Period:", c.StartDate, c.EndDate, days(c.Quote.TotalDays))
	fmt.Fprintf(w, "%-16s %s\n", "Rental total:", pricing.FormatAmount(c.Quote.TotalPrice))
	renderFuel(w, c.Quote)
	fmt.Fprintf(w, "%-16s %s\n", "Farmer signed:", c.FarmerSignedAt.Format("02 Jan 2006 15:04 MST"))
	fmt.Fprintf(w, "%-16s %s\n", "Provider signed:", c.ProviderSigned.Format("02 Jan 2006 15:04 MST"))
	if c.DisputeReported {
		fmt.Fprintf(w, "%-16s %s\n", "Note:", "a dispute has been reported")
	}
}

func statusLabel(r *models.RentalRequest) string {
	s := string(r.Status)
	if r.DisputeReported {
		s += " (disputed)"
	}
	return s
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
