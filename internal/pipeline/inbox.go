package pipeline

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"

	"shipmatch/internal"
)

type Attachment struct {
	Name    string
	Content []byte
}

// ReportEmail is the parsed content of a warehouse report email.
type ReportEmail struct {
	Subject     string
	From        string
	Text        string
	HTML        string
	Attachments []Attachment
}

func (m ReportEmail) AttachmentNames() []string {
	out := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		out = append(out, a.Name)
	}
	return out
}

func ParseReportEmail(raw []byte) (ReportEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ReportEmail{}, err
	}

	msg := ReportEmail{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Text:    env.Text,
		HTML:    env.HTML,
	}
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		msg.Attachments = append(msg.Attachments, Attachment{Name: name, Content: att.Content})
	}
	return msg, nil
}

// Tables collects tables from readable attachments and from the HTML body.
// Attachments in unsupported formats are ignored.
func (m ReportEmail) Tables() []Table {
	var out []Table
	for _, att := range m.Attachments {
		tables, err := ReadTables(att.Name, att.Content)
		if err != nil {
			continue
		}
		out = append(out, tables...)
	}
	if m.HTML != "" {
		if tables, err := readHTMLTables("body.html", m.HTML); err == nil {
			out = append(out, tables...)
		}
	}
	return out
}

// Report is the decoded payload of one report file or email.
type Report struct {
	Kind   internal.ShipmentKind
	Source string
	Set    internal.ShipmentSet
	Orders []internal.OrderLine
}

func (r Report) Lines() int {
	if r.Kind == internal.KindOrders {
		return len(r.Orders)
	}
	return len(r.Set.Rows)
}

func BuildReport(kind internal.ShipmentKind, source string, tables []Table, customer string) (Report, error) {
	report := Report{Kind: kind, Source: source}
	var err error
	if kind == internal.KindOrders {
		report.Orders, err = OrderLinesFromTables(tables, customer)
	} else {
		report.Set, err = ShipmentSetFromTables(tables, customer)
	}
	return report, err
}
