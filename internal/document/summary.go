// internal/document/summary.go
package document

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"policy-monitor/internal/models"
)

// FormTypeGAE marks guaranteed-acceptance applications; everything else
// carries medical declarations.
const (
	FormTypeGAE    = "GAE"
	FormTypeNonGAE = "NON_GAE"
)

// SummaryGenerator renders the application summary artifact sent to the
// head office.
type SummaryGenerator interface {
	Render(sub *models.Submission) ([]byte, error)
}

// PDFSummary renders the summary as a PDF: client information for every
// form, plus the medical declaration block for non-guaranteed forms.
type PDFSummary struct{}

func NewPDFSummary() *PDFSummary {
	return &PDFSummary{}
}

func (g *PDFSummary) Render(sub *models.Submission) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, "Application Details", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	acceptance := "NON-GUARANTEED ACCEPTANCE"
	if sub.FormType == FormTypeGAE {
		acceptance = "GUARANTEED ACCEPTANCE"
	}
	pdf.CellFormat(0, 8, acceptance, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	d := sub.FormData
	if d == nil {
		d = map[string]interface{}{}
	}

	pdf.SetFont("Helvetica", "BU", 12)
	pdf.CellFormat(0, 7, "Client Information", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	clientName := sub.ClientName
	if clientName == "" {
		clientName = formString(d, "clientName")
	}
	line(pdf, "Serial: %s", sub.SerialNumber)
	line(pdf, "Name: %s", clientName)
	line(pdf, "Email: %s", orDash(sub.ClientEmail))
	line(pdf, "DOB: %s", orDash(formString(d, "dob")))
	line(pdf, "Gender: %s", orDash(formString(d, "gender")))
	line(pdf, "Occupation: %s", orDash(formString(d, "occupation")))
	line(pdf, "Payment Mode: %s", orDash(string(sub.ModeOfPayment)))
	line(pdf, "Policy Date: %s", orDash(sub.PolicyDate))
	pdf.Ln(4)

	if sub.FormType == FormTypeNonGAE {
		if medical, ok := d["medical"].(map[string]interface{}); ok {
			pdf.SetFont("Helvetica", "BU", 12)
			pdf.SetTextColor(192, 57, 43)
			pdf.CellFormat(0, 7, "Medical Declarations", "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(0, 0, 0)

			line(pdf, "Build: %s / %s", formString(medical, "height"), formString(medical, "weight"))
			line(pdf, "1. Critical Illness History: %s", formString(medical, "diagnosed"))
			line(pdf, "2. Hospitalization: %s", formString(medical, "hospitalized"))
			line(pdf, "3. Smoker: %s", formString(medical, "smoker"))
			line(pdf, "4. Alcohol: %s", formString(medical, "alcohol"))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func line(pdf *gofpdf.Fpdf, format string, args ...interface{}) {
	pdf.CellFormat(0, 6, fmt.Sprintf(format, args...), "", 1, "L", false, 0, "")
}

func formString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
