// internal/workspace/gmail.go
package workspace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Email is one retrieved message: headers plus a readable body. HTML
// bodies are converted to markdown so they render sensibly in chat.
type Email struct {
	From    string
	Subject string
	Body    string
}

// ListMessages returns up to max messages matching the Gmail search
// query.
func (c *Client) ListMessages(ctx context.Context, query string, max int) ([]Email, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	q.Set("maxResults", strconv.Itoa(max))

	u := c.gmailBase + "/users/me/messages?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("parse message list: %w", err)
	}

	emails := make([]Email, 0, len(list.Messages))
	for _, msg := range list.Messages {
		email, err := c.getMessage(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *email)
	}
	return emails, nil
}

type gmailPart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

func (c *Client) getMessage(ctx context.Context, id string) (*Email, error) {
	u := c.gmailBase + "/users/me/messages/" + id + "?format=full"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var msg struct {
		Payload struct {
			Headers []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"headers"`
			gmailPart
		} `json:"payload"`
	}
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}

	email := &Email{}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			email.From = h.Value
		case "Subject":
			email.Subject = h.Value
		}
	}
	email.Body = extractBody(msg.Payload.gmailPart)
	return email, nil
}

// extractBody walks the MIME tree preferring text/plain; an HTML-only
// message is converted to markdown.
func extractBody(part gmailPart) string {
	if plain := findPart(part, "text/plain"); plain != "" {
		return strings.TrimSpace(plain)
	}
	if html := findPart(part, "text/html"); html != "" {
		md, err := htmltomarkdown.ConvertString(html)
		if err != nil {
			return strings.TrimSpace(html)
		}
		return strings.TrimSpace(md)
	}
	return ""
}

func findPart(part gmailPart, mimeType string) string {
	if part.MimeType == mimeType && part.Body.Data != "" {
		data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(data)
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != "" {
			return found
		}
	}
	return ""
}

// SendMessage assembles an RFC 2822 message with an HTML body and sends
// it from the user's account.
func (c *Client) SendMessage(ctx context.Context, to []string, subject, bodyHTML string) (string, error) {
	raw := strings.Join([]string{
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		bodyHTML,
	}, "\r\n")

	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))
	payload, err := json.Marshal(map[string]string{"raw": encoded})
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	u := c.gmailBase + "/users/me/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var sent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return "", fmt.Errorf("parse send response: %w", err)
	}
	return sent.ID, nil
}
