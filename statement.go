package tapbank

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

const statementTimeLayout = "2006-01-02 15:04"

// WriteStatement renders a one-page PDF of a card's balance and loan history.
func WriteStatement(w io.Writer, acct Account, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(acct.ID.Label()+" statement", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, acct.ID.Label()+" statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Generated "+now.Format(statementTimeLayout))
	pdf.Ln(8)
	pdf.Cell(0, 6, "Balance: "+FormatAmount(acct.Balance))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Outstanding bids: "+strconv.Itoa(acct.OutstandingCount))
	pdf.Ln(6)
	if q, err := QuoteRepayment(acct); err == nil {
		pdf.Cell(0, 6, fmt.Sprintf("Due now: %s (%s interest at %s%%)",
			FormatAmount(q.Total), FormatAmount(q.Interest), q.Rate.Shift(2).String()))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	header := []string{"#", "Amount", "Taken", "Status", "Repaid"}
	widths := []float64{12, 35, 45, 25, 45}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(acct.Loans) == 0 {
		pdf.CellFormat(sum(widths), 7, "No loans", "1", 1, "C", false, 0, "")
	}
	for i, l := range acct.Loans {
		status, repaid := "unpaid", "-"
		if l.Paid {
			status = "paid"
			if l.RepaidAt != nil {
				repaid = l.RepaidAt.Format(statementTimeLayout)
			}
		}
		row := []string{
			strconv.Itoa(i + 1),
			FormatAmount(l.Amount),
			l.CreatedAt.Format(statementTimeLayout),
			status,
			repaid,
		}
		for j, c := range row {
			align := "L"
			if j == 1 {
				align = "R"
			}
			pdf.CellFormat(widths[j], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func sum(xs []float64) float64 {
	var t float64
	for _, x := range xs {
		t += x
	}
	return t
}
