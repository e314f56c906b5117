package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"shipmatch/internal"
	"shipmatch/internal/storage"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultHeaders = []string{
	"Canonical_Customer", "Customer", "Customer_PO", "Customer_Alt_PO",
	"Style", "Pattern_ID", "Color", "Size", "ALIAS/RELATED ITEM",
	"Packed_Qty", "Shipped_Qty", "Source_Type",
	"Match_Type", "Match_Score", "Best_Match_Field", "Match_Count",
	"Style_Value", "Style_Source",
	"Best_Match_Customer_PO", "Best_Match_Customer_Alt_PO", "Best_Match_Style", "Best_Match_Color", "Best_Match_Size",
	"Ordered_Qty", "Qty_Variance", "Qty_Variance_Pct", "Data_Quality_Flag",
}

var summaryHeaders = []string{
	"Canonical_Customer", "Total_Records",
	"Exact_Matches", "Fuzzy_Matches", "No_Matches", "Exact_Match_Pct", "Fuzzy_Match_Pct", "No_Match_Pct",
	"Style_Match_Rate", "Color_Match_Rate", "Size_Match_Rate", "PO_Match_Rate",
	"GOOD", "ACCEPTABLE", "QUESTIONABLE", "POOR",
	"PO_Field_PO", "PO_Field_Alt_PO",
	"Total_Packed_Qty", "Total_Shipped_Qty", "Total_Ordered_Qty", "Avg_Fuzzy_Score",
	"Over_Shipped", "Under_Shipped", "Missing_Order", "Over_Shipped_Pct", "Under_Shipped_Pct", "Missing_Order_Pct",
}

// ExportRun writes a stored run to a workbook.
func ExportRun(db *storage.DB, runID, outputPath string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}
	results, err := db.ListResults(runID)
	if err != nil {
		return err
	}
	summaries, err := db.ListSummaries(runID)
	if err != nil {
		return err
	}
	return ExportResultsToXLSX(results, summaries, outputPath)
}

func ExportResultsToXLSX(results []internal.GradedResult, summaries []internal.CustomerSummary, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	writeRow(f, resultsSheet, 1, toAny(resultHeaders))
	for i, r := range results {
		writeRow(f, resultsSheet, i+2, resultRow(r))
	}

	writeRow(f, summarySheet, 1, toAny(summaryHeaders))
	for i, s := range summaries {
		writeRow(f, summarySheet, i+2, summaryRow(s))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func resultRow(r internal.GradedResult) []any {
	var best internal.OrderRecord
	if r.BestMatch != nil {
		best = *r.BestMatch
	}
	return []any{
		r.CanonicalCustomer, r.Customer, r.CustomerPO, r.CustomerAltPO,
		r.Style, r.PatternID, r.Color, r.Size, r.AliasRelatedItem,
		r.PackedQty, r.ShippedQty, r.SourceType,
		string(r.MatchType), r.MatchScore, string(r.BestMatchField), r.MatchCount,
		r.StyleValue, string(r.StyleSource),
		best.CustomerPO, best.CustomerAltPO, best.Style, best.Color, best.Size,
		r.OrderedQty, r.QtyVariance, r.QtyVariancePct, string(r.DataQualityFlag),
	}
}

func summaryRow(s internal.CustomerSummary) []any {
	return []any{
		s.CanonicalCustomer, s.TotalRecords,
		s.ExactMatches, s.FuzzyMatches, s.NoMatches, s.ExactMatchPct, s.FuzzyMatchPct, s.NoMatchPct,
		s.StyleMatchRate, s.ColorMatchRate, s.SizeMatchRate, s.POMatchRate,
		s.GoodCount, s.AcceptableCount, s.QuestionableCount, s.PoorCount,
		s.POFieldPO, s.POFieldAltPO,
		s.TotalPackedQty, s.TotalShippedQty, s.TotalOrderedQty, s.AvgFuzzyScore,
		s.OverShipped, s.UnderShipped, s.MissingOrder, s.OverShippedPct, s.UnderShippedPct, s.MissingOrderPct,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
