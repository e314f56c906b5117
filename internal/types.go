package internal

type Column string

const (
	ColCanonicalCustomer Column = "Canonical_Customer"
	ColCustomer          Column = "Customer"
	ColCustomerPO        Column = "Customer_PO"
	ColCustomerAltPO     Column = "Customer_Alt_PO"
	ColStyle             Column = "Style"
	ColPatternID         Column = "Pattern_ID"
	ColColor             Column = "Color"
	ColSize              Column = "Size"
	ColAliasRelatedItem  Column = "ALIAS/RELATED ITEM"
	ColQty               Column = "Qty"
	ColOrderedQty        Column = "Ordered_Qty"
)

// IdentityColumns are the columns an Identity carries, in grouping order.
var IdentityColumns = []Column{
	ColCanonicalCustomer, ColCustomer, ColCustomerPO, ColCustomerAltPO,
	ColStyle, ColPatternID, ColColor, ColSize, ColAliasRelatedItem,
}

// Identity holds the fields shared by warehouse and order lines.
// An empty string stands for a null value.
type Identity struct {
	CanonicalCustomer string `json:"canonicalCustomer"`
	Customer          string `json:"customer"`
	CustomerPO        string `json:"customerPO"`
	CustomerAltPO     string `json:"customerAltPO"`
	Style             string `json:"style"`
	PatternID         string `json:"patternId"`
	Color             string `json:"color"`
	Size              string `json:"size"`
	AliasRelatedItem  string `json:"aliasRelatedItem"`
}

func (id Identity) Field(col Column) string {
	switch col {
	case ColCanonicalCustomer:
		return id.CanonicalCustomer
	case ColCustomer:
		return id.Customer
	case ColCustomerPO:
		return id.CustomerPO
	case ColCustomerAltPO:
		return id.CustomerAltPO
	case ColStyle:
		return id.Style
	case ColPatternID:
		return id.PatternID
	case ColColor:
		return id.Color
	case ColSize:
		return id.Size
	case ColAliasRelatedItem:
		return id.AliasRelatedItem
	default:
		return ""
	}
}

func (id *Identity) SetField(col Column, value string) {
	switch col {
	case ColCanonicalCustomer:
		id.CanonicalCustomer = value
	case ColCustomer:
		id.Customer = value
	case ColCustomerPO:
		id.CustomerPO = value
	case ColCustomerAltPO:
		id.CustomerAltPO = value
	case ColStyle:
		id.Style = value
	case ColPatternID:
		id.PatternID = value
	case ColColor:
		id.Color = value
	case ColSize:
		id.Size = value
	case ColAliasRelatedItem:
		id.AliasRelatedItem = value
	}
}

type ShipmentKind string

const (
	KindPacked  ShipmentKind = "packed"
	KindShipped ShipmentKind = "shipped"
	KindOrders  ShipmentKind = "orders"
)

type ShipmentRecord struct {
	Identity
	Qty float64 `json:"qty"`
}

// ShipmentSet is a loaded packed or shipped report. Columns lists the
// identity columns the source carried; nil means every column is present.
type ShipmentSet struct {
	Columns []Column
	Rows    []ShipmentRecord
}

func (s ShipmentSet) Has(col Column) bool {
	if s.Columns == nil {
		return true
	}
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

type OrderRecord struct {
	Identity
	OrderedQty float64 `json:"orderedQty"`
}

// OrderLine is an order record as persisted, keyed by the feed's line id.
type OrderLine struct {
	LineID string `json:"lineId"`
	OrderRecord
	UpdatedAt string `json:"updatedAt"`
	RawJSON   string `json:"-"`
}

type CombinedRecord struct {
	Identity
	PackedQty  float64 `json:"packedQty"`
	ShippedQty float64 `json:"shippedQty"`
	SourceType string  `json:"sourceType"`
}

type MatchType string

const (
	MatchExact   MatchType = "EXACT"
	MatchFuzzy   MatchType = "FUZZY"
	MatchNoMatch MatchType = "NO_MATCH"
)

type POField string

const (
	FieldNone  POField = ""
	FieldPO    POField = "PO"
	FieldAltPO POField = "Alt_PO"
)

type StyleField string

const (
	StyleSourceNone    StyleField = ""
	StyleSourceStyle   StyleField = "Style"
	StyleSourcePattern StyleField = "Pattern_ID"
	StyleSourceAlias   StyleField = "ALIAS/RELATED ITEM"
)

type QualityFlag string

const (
	FlagGood         QualityFlag = "GOOD"
	FlagAcceptable   QualityFlag = "ACCEPTABLE"
	FlagQuestionable QualityFlag = "QUESTIONABLE"
	FlagPoor         QualityFlag = "POOR"
)

type MatchResult struct {
	CombinedRecord
	MatchType      MatchType    `json:"matchType"`
	MatchScore     float64      `json:"matchScore"`
	BestMatchField POField      `json:"bestMatchField"`
	BestMatch      *OrderRecord `json:"bestMatch"`
	OrderedQty     float64      `json:"orderedQty"`
	MatchCount     int          `json:"matchCount"`
	StyleValue     string       `json:"styleValue"`
	StyleSource    StyleField   `json:"styleSource"`
}

type GradedResult struct {
	MatchResult
	QtyVariance     float64     `json:"qtyVariance"`
	QtyVariancePct  float64     `json:"qtyVariancePct"`
	DataQualityFlag QualityFlag `json:"dataQualityFlag"`
}

type CustomerSummary struct {
	CanonicalCustomer string `json:"canonicalCustomer"`
	TotalRecords      int    `json:"totalRecords"`

	ExactMatches  int     `json:"exactMatches"`
	FuzzyMatches  int     `json:"fuzzyMatches"`
	NoMatches     int     `json:"noMatches"`
	ExactMatchPct float64 `json:"exactMatchPct"`
	FuzzyMatchPct float64 `json:"fuzzyMatchPct"`
	NoMatchPct    float64 `json:"noMatchPct"`

	StyleMatchRate float64 `json:"styleMatchRate"`
	ColorMatchRate float64 `json:"colorMatchRate"`
	SizeMatchRate  float64 `json:"sizeMatchRate"`
	POMatchRate    float64 `json:"poMatchRate"`

	GoodCount         int `json:"goodCount"`
	AcceptableCount   int `json:"acceptableCount"`
	QuestionableCount int `json:"questionableCount"`
	PoorCount         int `json:"poorCount"`

	POFieldPO    int `json:"poFieldPO"`
	POFieldAltPO int `json:"poFieldAltPO"`

	TotalPackedQty  float64 `json:"totalPackedQty"`
	TotalShippedQty float64 `json:"totalShippedQty"`
	TotalOrderedQty float64 `json:"totalOrderedQty"`
	AvgFuzzyScore   float64 `json:"avgFuzzyScore"`

	OverShipped     int     `json:"overShipped"`
	UnderShipped    int     `json:"underShipped"`
	MissingOrder    int     `json:"missingOrder"`
	OverShippedPct  float64 `json:"overShippedPct"`
	UnderShippedPct float64 `json:"underShippedPct"`
	MissingOrderPct float64 `json:"missingOrderPct"`
}

// EmailRow is a stored mailbox message. ReportKind and DetectScore are set
// once the message has been through import.
type EmailRow struct {
	ID          int
	Provider    string
	MessageID   string
	Subject     string
	Sender      string
	ReceivedAt  string
	Hash        string
	RawRef      string
	Status      string
	ReportKind  ShipmentKind
	DetectScore float64
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type RunRow struct {
	ID        string
	Threshold float64
	Timings   map[string]float64
	Counts    map[string]int
	CreatedAt string
}
