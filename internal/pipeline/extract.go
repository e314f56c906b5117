package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"shipmatch/internal"
	"shipmatch/internal/util"
)

// Table is a grid of cell text pulled from one sheet, CSV file, HTML table or PDF.
type Table struct {
	Source string
	Rows   [][]string
}

const (
	colQty    internal.Column = "__qty"
	colLineID internal.Column = "__line_id"

	headerScanRows = 5
)

var headerAliases = map[string]internal.Column{
	"CANONICAL CUSTOMER": internal.ColCanonicalCustomer,
	"CUSTOMER":           internal.ColCustomer,
	"CUSTOMER NAME":      internal.ColCustomer,
	"SOLD TO":            internal.ColCustomer,
	"ACCOUNT":            internal.ColCustomer,
	"CUSTOMER PO":        internal.ColCustomerPO,
	"CUSTOMER PO #":      internal.ColCustomerPO,
	"PO":                 internal.ColCustomerPO,
	"PO #":               internal.ColCustomerPO,
	"PO#":                internal.ColCustomerPO,
	"PO NO":              internal.ColCustomerPO,
	"PO NUMBER":          internal.ColCustomerPO,
	"PURCHASE ORDER":     internal.ColCustomerPO,
	"CUSTOMER ALT PO":    internal.ColCustomerAltPO,
	"ALT PO":             internal.ColCustomerAltPO,
	"ALT PO #":           internal.ColCustomerAltPO,
	"ALTERNATE PO":       internal.ColCustomerAltPO,
	"SECONDARY PO":       internal.ColCustomerAltPO,
	"STYLE":              internal.ColStyle,
	"STYLE #":            internal.ColStyle,
	"STYLE#":             internal.ColStyle,
	"STYLE NO":           internal.ColStyle,
	"STYLE NUMBER":       internal.ColStyle,
	"PATTERN ID":         internal.ColPatternID,
	"PATTERN":            internal.ColPatternID,
	"PATTERN #":          internal.ColPatternID,
	"COLOR":              internal.ColColor,
	"COLOUR":             internal.ColColor,
	"COLOR NAME":         internal.ColColor,
	"SIZE":               internal.ColSize,
	"ALIAS/RELATED ITEM": internal.ColAliasRelatedItem,
	"ALIAS":              internal.ColAliasRelatedItem,
	"RELATED ITEM":       internal.ColAliasRelatedItem,
	"QTY":                colQty,
	"QUANTITY":           colQty,
	"UNITS":              colQty,
	"PCS":                colQty,
	"PACKED QTY":         colQty,
	"QTY PACKED":         colQty,
	"SHIPPED QTY":        colQty,
	"QTY SHIPPED":        colQty,
	"ORDERED QTY":        colQty,
	"ORDER QTY":          colQty,
	"QTY ORDERED":        colQty,
	"LINE ID":            colLineID,
	"ORDER LINE":         colLineID,
	"LINE #":             colLineID,
}

var (
	pdfCellSplit = regexp.MustCompile(`\t|\s{2,}|\s*\|\s*`)
	errNoHeader  = errors.New("no recognizable header row")
)

// ReadTables loads every table in a report file, choosing the reader by extension.
func ReadTables(name string, content []byte) ([]Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return readXLSX(name, content)
	case ".csv", ".txt":
		return readCSV(name, content)
	case ".html", ".htm":
		return readHTMLTables(name, string(content))
	case ".pdf":
		return readPDF(name, content)
	default:
		return nil, fmt.Errorf("unsupported report format: %s", name)
	}
}

func readXLSX(name string, content []byte) ([]Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []Table{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		out = append(out, Table{Source: name + "#" + sheet, Rows: normalizeRows(rows)})
	}
	return out, nil
}

// readCSV guesses between comma and semicolon from the first line.
func readCSV(name string, content []byte) ([]Table, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	firstLine, _, _ := strings.Cut(string(content), "\n")
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		r.Comma = ';'
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", name, err)
	}
	return []Table{{Source: name, Rows: normalizeRows(rows)}}, nil
}

func readHTMLTables(name, html string) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := []Table{}
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			rows = append(rows, cells)
		})
		if len(rows) >= 2 {
			out = append(out, Table{Source: fmt.Sprintf("%s#table%d", name, i+1), Rows: rows})
		}
	})
	return out, nil
}

// readPDF treats each text line as a row, splitting cells on tabs, pipes or
// runs of spaces.
func readPDF(name string, content []byte) ([]Table, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			rows = append(rows, splitPDFLine(line))
		}
	}
	return []Table{{Source: name, Rows: rows}}, nil
}

func splitPDFLine(line string) []string {
	parts := pdfCellSplit.Split(strings.TrimSpace(line), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type columnLayout struct {
	headerRow int
	index     map[internal.Column]int
}

// inferLayout finds the first row among the leading rows that names a
// quantity column and at least one identity column.
func inferLayout(rows [][]string) (columnLayout, error) {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		index := map[internal.Column]int{}
		for j, cell := range rows[i] {
			col, ok := headerAliases[util.NormalizeHeader(cell)]
			if !ok {
				continue
			}
			if _, dup := index[col]; !dup {
				index[col] = j
			}
		}
		if _, hasQty := index[colQty]; hasQty && len(index) >= 2 {
			return columnLayout{headerRow: i, index: index}, nil
		}
	}
	return columnLayout{}, errNoHeader
}

func (l columnLayout) columns() []internal.Column {
	var out []internal.Column
	for _, col := range internal.IdentityColumns {
		if _, ok := l.index[col]; ok {
			out = append(out, col)
		}
	}
	return out
}

func (l columnLayout) cell(row []string, col internal.Column) string {
	idx, ok := l.index[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

type parsedRow struct {
	rowNo  int
	id     internal.Identity
	qty    float64
	lineID string
}

// parseTable returns the rows with a readable quantity and the identity
// columns the table carried. Rows without a quantity are skipped.
func parseTable(t Table, customer string) ([]parsedRow, []internal.Column, error) {
	layout, err := inferLayout(t.Rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t.Source, err)
	}
	cols := layout.columns()
	cols = withCustomerColumns(cols, customer)

	var out []parsedRow
	for i := layout.headerRow + 1; i < len(t.Rows); i++ {
		row := t.Rows[i]
		qty := util.ParseQty(layout.cell(row, colQty))
		if qty == nil {
			continue
		}
		var id internal.Identity
		for _, col := range internal.IdentityColumns {
			id.SetField(col, layout.cell(row, col))
		}
		resolveCustomer(&id, customer)
		out = append(out, parsedRow{rowNo: i + 1, id: id, qty: *qty, lineID: layout.cell(row, colLineID)})
	}
	return out, cols, nil
}

func withCustomerColumns(cols []internal.Column, customer string) []internal.Column {
	has := func(c internal.Column) bool {
		for _, x := range cols {
			if x == c {
				return true
			}
		}
		return false
	}
	if has(internal.ColCanonicalCustomer) {
		return cols
	}
	if has(internal.ColCustomer) || strings.TrimSpace(customer) != "" {
		return append([]internal.Column{internal.ColCanonicalCustomer}, cols...)
	}
	return cols
}

// resolveCustomer fills Canonical_Customer from the explicit override, then
// from the Customer column.
func resolveCustomer(id *internal.Identity, customer string) {
	if id.CanonicalCustomer != "" {
		return
	}
	if c := strings.TrimSpace(customer); c != "" {
		id.CanonicalCustomer = util.NormalizeKeyPart(c)
		return
	}
	id.CanonicalCustomer = util.NormalizeKeyPart(id.Customer)
}

// ShipmentSetFromTables merges tables into one packed or shipped set.
// Tables without a recognizable header are skipped; it is an error only
// when none of them had one.
func ShipmentSetFromTables(tables []Table, customer string) (internal.ShipmentSet, error) {
	var set internal.ShipmentSet
	seen := map[internal.Column]bool{}
	var lastErr error
	parsedAny := false
	for _, t := range tables {
		rows, cols, err := parseTable(t, customer)
		if err != nil {
			lastErr = err
			continue
		}
		parsedAny = true
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				set.Columns = append(set.Columns, c)
			}
		}
		for _, r := range rows {
			set.Rows = append(set.Rows, internal.ShipmentRecord{Identity: r.id, Qty: r.qty})
		}
	}
	if !parsedAny && lastErr != nil {
		return set, lastErr
	}
	return set, nil
}

// OrderLinesFromTables reads order lines. Rows without a line id column get
// one derived from their position in the source.
func OrderLinesFromTables(tables []Table, customer string) ([]internal.OrderLine, error) {
	var out []internal.OrderLine
	var lastErr error
	parsedAny := false
	for _, t := range tables {
		rows, _, err := parseTable(t, customer)
		if err != nil {
			lastErr = err
			continue
		}
		parsedAny = true
		for _, r := range rows {
			lineID := r.lineID
			if lineID == "" {
				lineID = fmt.Sprintf("%s:%d", filepath.Base(t.Source), r.rowNo)
			}
			out = append(out, internal.OrderLine{
				LineID:      lineID,
				OrderRecord: internal.OrderRecord{Identity: r.id, OrderedQty: r.qty},
			})
		}
	}
	if !parsedAny && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var spaces = regexp.MustCompile(`\s+`)

func normalizeSpaces(input string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(input, " "))
}

func normalizeRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, normalizeSpaces(c))
		}
		out = append(out, cells)
	}
	return out
}
