package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportFormat selects the suggestion export flavor.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	// FormatExcel is CSV with a UTF-8 BOM and CRLF line endings, which Excel
	// opens without an import wizard.
	FormatExcel ExportFormat = "excel"
)

var exportHeader = []string{
	"id", "product_code", "product_name", "supplier", "suggested_quantity",
	"estimated_cost", "urgency", "confidence_score", "reason",
	"lead_time_days", "status", "created_at", "expires_at",
}

// WriteExport streams suggestions as CSV to w.
func WriteExport(w io.Writer, suggestions []ReorderSuggestion, format ExportFormat) error {
	if format != FormatCSV && format != FormatExcel {
		return fmt.Errorf("unsupported export format %q", format)
	}

	if format == FormatExcel {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if format == FormatExcel {
		cw.UseCRLF = true
	}

	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, s := range suggestions {
		record := []string{
			s.ID,
			s.ProductCode,
			s.ProductName,
			s.SupplierName,
			strconv.Itoa(s.SuggestedQuantity),
			s.EstimatedCost.StringFixed(2),
			string(s.Urgency),
			strconv.FormatFloat(s.ConfidenceScore, 'f', 1, 64),
			s.Reason,
			strconv.Itoa(s.LeadTimeDays),
			string(s.Status),
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.ExpiresAt.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write export row for %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
