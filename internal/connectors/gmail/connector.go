package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"shipmatch/internal"
	"shipmatch/internal/config"
	"shipmatch/internal/connectors"
)

const user = "me"

type Connector struct {
	service *gmail.Service
}

var _ connectors.MailConnector = (*Connector)(nil)

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Connector{service: svc}, nil
}

func (c *Connector) FetchReports(ctx context.Context, q connectors.ReportQuery) ([]internal.FetchedMailMessage, error) {
	call := c.service.Users.Messages.List(user).Q(BuildQuery(q)).Context(ctx)
	if q.Label != "" {
		call = call.LabelIds(q.Label)
	}
	if q.Max > 0 {
		call = call.MaxResults(int64(q.Max))
	}
	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		if ref.Id == "" {
			continue
		}
		msg, err := c.fetchOne(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (c *Connector) fetchOne(ctx context.Context, id string) (*internal.FetchedMailMessage, error) {
	raw, err := c.service.Users.Messages.Get(user, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	if raw.Raw == "" {
		return nil, nil
	}
	body, err := decodeRaw(raw.Raw)
	if err != nil {
		return nil, err
	}

	meta, err := c.service.Users.Messages.Get(user, id).Format("metadata").
		MetadataHeaders("Subject", "From", "Message-ID").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", id, err)
	}
	headers := map[string]string{}
	if meta.Payload != nil {
		for _, h := range meta.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	messageID := headers["message-id"]
	if messageID == "" {
		messageID = id
	}
	return &internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  messageID,
		Subject:    headers["subject"],
		From:       headers["from"],
		ReceivedAt: receivedAt(raw.InternalDate),
		Raw:        body,
	}, nil
}

// BuildQuery renders q as a Gmail search string.
func BuildQuery(q connectors.ReportQuery) string {
	parts := []string{"has:attachment"}
	if !q.Since.IsZero() {
		parts = append(parts, "after:"+q.Since.UTC().Format("2006/01/02"))
	}
	var from []string
	for _, s := range q.Senders {
		if s = strings.TrimSpace(s); s != "" {
			from = append(from, "from:"+s)
		}
	}
	switch len(from) {
	case 0:
	case 1:
		parts = append(parts, from[0])
	default:
		parts = append(parts, "{"+strings.Join(from, " ")+"}")
	}
	return strings.Join(parts, " ")
}

// receivedAt converts Gmail's internalDate (epoch millis).
func receivedAt(ms int64) string {
	if ms <= 0 {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func decodeRaw(input string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(input); err == nil {
		return decoded, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("decode gmail raw payload: %w", err)
	}
	return decoded, nil
}
