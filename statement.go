package bankapp

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// writeStatementPDF renders the account summary and the month-grouped
// transaction history as a PDF document.
func writeStatementPDF(w io.Writer, acct *Account, groups []MonthGroup) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Account Statement", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Account Statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("%s %s <%s>", acct.FirstName, acct.LastName, acct.Email))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Account %s", acct.AcctID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Balance: %s", acct.Balance.StringFixed(2)))
	pdf.Ln(10)

	if len(groups) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No transactions")
	}
	for _, g := range groups {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, g.Month)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		for _, t := range g.Transactions {
			pdf.CellFormat(60, 6, t.Date.UTC().Format("2006-01-02 15:04:05"), "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, string(t.Type), "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, t.Amount.StringFixed(2), "", 0, "R", false, 0, "")
			pdf.Ln(6)
		}
		pdf.Ln(2)
	}

	return pdf.Output(w)
}
