package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/workspace-mcp/internal/google"
	"github.com/teemow/workspace-mcp/internal/instrumentation"
)

const (
	// maxSearchResults is the Gmail API page size ceiling.
	maxSearchResults = 100

	// detailLimit caps how many search hits get a follow-up metadata
	// fetch. Keeps a broad search from fanning out into dozens of
	// per-message API calls.
	detailLimit = 5
)

// Client wraps the Gmail Users service for one authenticated session.
type Client struct {
	svc *gmail.UsersService
}

// NewClient creates a Gmail client authenticated by the given token
// source. Extra options are appended last so tests can redirect the
// client at a fake API endpoint.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*Client, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if ts != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(google.HTTPClient(ctx, ts)))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc.Users}, nil
}

// Search lists messages matching a Gmail query and resolves headers for
// the first few hits. The query uses Gmail search operators verbatim.
func (c *Client) Search(ctx context.Context, query string, maxResults int64) ([]*MessageSummary, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSearch)
	defer span.End()

	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	res, err := c.svc.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	summaries := make([]*MessageSummary, 0, detailLimit)
	for i, msg := range res.Messages {
		if i >= detailLimit {
			break
		}

		full, err := c.svc.Messages.Get("me", msg.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "To", "Date").
			Context(ctx).Do()
		if err != nil {
			// A hit that vanished between list and get is skipped,
			// not fatal for the whole search.
			continue
		}

		summaries = append(summaries, &MessageSummary{
			ID:       msg.Id,
			ThreadID: msg.ThreadId,
			Subject:  headerValue(full.Payload, "Subject"),
			From:     headerValue(full.Payload, "From"),
			Date:     headerValue(full.Payload, "Date"),
		})
	}

	instrumentation.SetSpanSuccess(span)
	return summaries, nil
}

// Send sends a plain-text email. Multiple recipients go in a single
// comma-separated To value.
func (c *Client) Send(ctx context.Context, to, subject, body string) (*SendResult, error) {
	if to == "" {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend)
	defer span.End()

	var raw strings.Builder
	raw.WriteString("To: ")
	raw.WriteString(to)
	raw.WriteString("\r\n")
	raw.WriteString("Subject: ")
	raw.WriteString(subject)
	raw.WriteString("\r\n\r\n")
	raw.WriteString(body)

	sent, err := c.svc.Messages.Send("me", &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(raw.String())),
	}).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	instrumentation.SetSpanSuccess(span)
	return &SendResult{
		MessageID: sent.Id,
		ThreadID:  sent.ThreadId,
		Status:    "sent",
	}, nil
}

// Read fetches a message in full and decodes its text body. For
// multipart messages the first text/plain part wins.
func (c *Client) Read(ctx context.Context, messageID string) (*Message, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet)
	defer span.End()

	msg, err := c.svc.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	if msg.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", messageID)
	}

	instrumentation.SetSpanSuccess(span)
	return &Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  headerValue(msg.Payload, "Subject"),
		From:     headerValue(msg.Payload, "From"),
		To:       headerValue(msg.Payload, "To"),
		Date:     headerValue(msg.Payload, "Date"),
		Body:     extractBody(msg.Payload),
	}, nil
}

// headerValue returns the first header with the given name, or "".
func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// extractBody decodes the message body from the top-level payload or,
// for multipart messages, from the first text/plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	return ""
}

// decodeBody decodes base64url message data, with or without padding.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}
