package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	pricing "intelliwatt/internal/pricing/domain"
)

// EstimateReport bundles one priced plan with the usage it was priced
// against, ready for export.
type EstimateReport struct {
	ESIID       string
	Meter       string
	PlanName    string
	Provider    string
	TdspCode    string
	Estimate    pricing.CostEstimate
	MonthlyUsed []MonthUsageLine
}

// MonthUsageLine is one month's total consumption in the report window.
// Intervals is the number of stored readings behind the total.
type MonthUsageLine struct {
	MonthKey  string
	TotalKwh  float64
	Intervals int
}

// BuildEstimatePDF renders a one-page PDF for an estimate report.
func BuildEstimatePDF(report EstimateReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Plan Cost Estimate")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("ESIID: %s", report.ESIID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Meter: %s", report.Meter))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Plan: %s (%s)", report.PlanName, report.Provider))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("TDSP: %s", report.TdspCode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", report.Estimate.Status))
	pdf.Ln(8)

	if report.Estimate.Status == pricing.StatusOK {
		pdf.Cell(0, 6, fmt.Sprintf("Annual Cost: $%.2f", report.Estimate.AnnualCostDollars))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Monthly Cost: $%.2f", report.Estimate.MonthlyCostDollars))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Effective Rate: %.2f cents/kWh", report.Estimate.EffectiveCentsPerKwh))
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, "Component", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Amount", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		components := report.Estimate.ComponentsV2
		for _, line := range []struct {
			label  string
			amount float64
		}{
			{"Supplier Energy", components.SupplierEnergy},
			{"TDSP Delivery", components.TdspDelivery},
			{"TDSP Fixed", components.TdspFixed},
			{"Other Fees", components.OtherFees},
		} {
			pdf.CellFormat(70, 6, line.label, "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, fmt.Sprintf("$%.2f", line.amount), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, "Total", "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("$%.2f", components.Total()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		pdf.Ln(4)
	}

	if len(report.MonthlyUsed) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Month", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Usage (kWh)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Readings", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, line := range report.MonthlyUsed {
			pdf.CellFormat(40, 6, line.MonthKey, "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 6, fmt.Sprintf("%.3f", line.TotalKwh), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", line.Intervals), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	for _, note := range report.Estimate.Notes {
		pdf.Cell(0, 6, "Note: "+note)
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildEstimateXLSX renders a two-sheet XLSX for an estimate report.
func BuildEstimateXLSX(report EstimateReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	usageSheet := "usage"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(usageSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Plan Cost Estimate")
	_ = f.SetCellValue(summarySheet, "A3", "ESIID")
	_ = f.SetCellValue(summarySheet, "B3", report.ESIID)
	_ = f.SetCellValue(summarySheet, "A4", "Meter")
	_ = f.SetCellValue(summarySheet, "B4", report.Meter)
	_ = f.SetCellValue(summarySheet, "A5", "Plan")
	_ = f.SetCellValue(summarySheet, "B5", report.PlanName)
	_ = f.SetCellValue(summarySheet, "A6", "Provider")
	_ = f.SetCellValue(summarySheet, "B6", report.Provider)
	_ = f.SetCellValue(summarySheet, "A7", "TDSP")
	_ = f.SetCellValue(summarySheet, "B7", report.TdspCode)
	_ = f.SetCellValue(summarySheet, "A8", "Status")
	_ = f.SetCellValue(summarySheet, "B8", string(report.Estimate.Status))
	_ = f.SetCellValue(summarySheet, "A9", "Annual Cost")
	_ = f.SetCellValue(summarySheet, "B9", report.Estimate.AnnualCostDollars)
	_ = f.SetCellValue(summarySheet, "A10", "Monthly Cost")
	_ = f.SetCellValue(summarySheet, "B10", report.Estimate.MonthlyCostDollars)
	_ = f.SetCellValue(summarySheet, "A11", "Effective Cents/kWh")
	_ = f.SetCellValue(summarySheet, "B11", report.Estimate.EffectiveCentsPerKwh)
	_ = f.SetCellValue(summarySheet, "A12", "Supplier Energy")
	_ = f.SetCellValue(summarySheet, "B12", report.Estimate.ComponentsV2.SupplierEnergy)
	_ = f.SetCellValue(summarySheet, "A13", "TDSP Delivery")
	_ = f.SetCellValue(summarySheet, "B13", report.Estimate.ComponentsV2.TdspDelivery)
	_ = f.SetCellValue(summarySheet, "A14", "TDSP Fixed")
	_ = f.SetCellValue(summarySheet, "B14", report.Estimate.ComponentsV2.TdspFixed)
	_ = f.SetCellValue(summarySheet, "A15", "Other Fees")
	_ = f.SetCellValue(summarySheet, "B15", report.Estimate.ComponentsV2.OtherFees)
	_ = f.SetCellValue(summarySheet, "A16", "Components Total")
	_ = f.SetCellValue(summarySheet, "B16", report.Estimate.ComponentsV2.Total())
	for i, note := range report.Estimate.Notes {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", 18+i), "Note")
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", 18+i), note)
	}

	_ = f.SetCellValue(usageSheet, "A1", "Month")
	_ = f.SetCellValue(usageSheet, "B1", "Usage (kWh)")
	_ = f.SetCellValue(usageSheet, "C1", "Readings")
	for i, line := range report.MonthlyUsed {
		row := i + 2
		_ = f.SetCellValue(usageSheet, fmt.Sprintf("A%d", row), line.MonthKey)
		_ = f.SetCellValue(usageSheet, fmt.Sprintf("B%d", row), line.TotalKwh)
		_ = f.SetCellValue(usageSheet, fmt.Sprintf("C%d", row), line.Intervals)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
