package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"shipmatch/internal"
	"shipmatch/internal/config"
	"shipmatch/internal/connectors"
)

// Connector reads report emails over IMAP. The mailbox is opened per fetch.
type Connector struct {
	addr     string
	tls      *tls.Config
	user     string
	password string
	markSeen bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	conn := &Connector{
		addr:     net.JoinHostPort(cfg.IMAPHost, strconv.Itoa(cfg.IMAPPort)),
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}
	if cfg.IMAPSecure {
		conn.tls = &tls.Config{ServerName: cfg.IMAPHost}
	}
	return conn, nil
}

func (c *Connector) open(mailbox string) (*imapclient.Client, error) {
	var (
		cl  *imapclient.Client
		err error
	)
	if c.tls != nil {
		cl, err = imapclient.DialTLS(c.addr, c.tls)
	} else {
		cl, err = imapclient.Dial(c.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", c.addr, err)
	}
	if err := cl.Login(c.user, c.password); err != nil {
		_ = cl.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := cl.Select(mailbox, false); err != nil {
		_ = cl.Logout()
		return nil, fmt.Errorf("imap select %q: %w", mailbox, err)
	}
	return cl, nil
}

var _ connectors.MailConnector = (*Connector)(nil)

// FetchReports returns the newest unseen messages matching q. The IMAP
// client has no context support, so ctx is checked between messages.
func (c *Connector) FetchReports(ctx context.Context, q connectors.ReportQuery) ([]internal.FetchedMailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cl, err := c.open(q.Label)
	if err != nil {
		return nil, err
	}
	defer cl.Logout()

	seqNums, err := cl.Search(SearchCriteria(q))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}
	// Sequence numbers ascend with arrival; keep the newest.
	if q.Max > 0 && len(seqNums) > q.Max {
		seqNums = seqNums[len(seqNums)-q.Max:]
	}

	wanted := new(imap.SeqSet)
	wanted.AddNum(seqNums...)
	whole := &imap.BodySectionName{Peek: true}
	stream := make(chan *imap.Message, len(seqNums))
	errc := make(chan error, 1)
	go func() {
		errc <- cl.Fetch(wanted, []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, whole.FetchItem()}, stream)
	}()

	var (
		out  []internal.FetchedMailMessage
		seen []uint32
	)
	for msg := range stream {
		if msg == nil || ctx.Err() != nil {
			continue
		}
		literal := msg.GetBody(whole)
		if literal == nil {
			continue
		}
		raw, err := io.ReadAll(literal)
		if err != nil {
			return nil, err
		}
		out = append(out, toFetched(msg, raw))
		seen = append(seen, msg.SeqNum)
	}
	if err := <-errc; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.markSeen && len(seen) > 0 {
		set := new(imap.SeqSet)
		set.AddNum(seen...)
		if err := cl.Store(set, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.SeenFlag}, nil); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// SearchCriteria selects unseen messages since q.Since from any of q.Senders.
func SearchCriteria(q connectors.ReportQuery) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	if from := senderCriteria(q.Senders); from != nil {
		criteria.Header = from.Header
		criteria.Or = from.Or
	}
	return criteria
}

// senderCriteria ORs FROM matches pairwise, since IMAP OR takes two keys.
func senderCriteria(senders []string) *imap.SearchCriteria {
	var clean []string
	for _, s := range senders {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	c := imap.NewSearchCriteria()
	if len(clean) == 1 {
		c.Header.Add("From", clean[0])
		return c
	}
	head := imap.NewSearchCriteria()
	head.Header.Add("From", clean[0])
	c.Or = [][2]*imap.SearchCriteria{{head, senderCriteria(clean[1:])}}
	return c
}

func toFetched(msg *imap.Message, raw []byte) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{Provider: "imap", Raw: raw}
	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.From = formatAddresses(msg.Envelope.From)
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	out.ReceivedAt = time.Now().UTC().Format(time.RFC3339)
	if !msg.InternalDate.IsZero() {
		out.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return out
}

func formatAddresses(addrs []*imap.Address) string {
	var list []string
	for _, a := range addrs {
		if a == nil || a.MailboxName == "" {
			continue
		}
		list = append(list, (&mail.Address{Name: a.PersonalName, Address: a.Address()}).String())
	}
	return strings.Join(list, ", ")
}
