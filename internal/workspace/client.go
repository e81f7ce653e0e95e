// internal/workspace/client.go
//
// Hand-rolled REST clients for the Google Workspace surfaces Amana
// touches: Calendar, Gmail, Drive, and Sheets. Authentication is the
// user's OAuth refresh token; golang.org/x/oauth2 handles the token
// exchange and injects the bearer header.
package workspace

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/user/amana/internal/types"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// Credentials holds the OAuth client and refresh token for the user's
// Google account.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Client calls the Workspace REST APIs.
type Client struct {
	httpClient *http.Client

	calendarBase string
	gmailBase    string
	driveBase    string
	uploadBase   string
	sheetsBase   string
}

// New creates a Client that refreshes access tokens from creds as needed.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("google oauth credentials missing")
	}
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	return newWithHTTP(oauth2.NewClient(ctx, ts)), nil
}

// NewWithHTTP builds a Client over an arbitrary HTTP client and base URL.
// Tests point this at an httptest server.
func NewWithHTTP(httpClient *http.Client, base string) *Client {
	c := newWithHTTP(httpClient)
	c.calendarBase = base
	c.gmailBase = base
	c.driveBase = base
	c.uploadBase = base
	c.sheetsBase = base
	return c
}

func newWithHTTP(httpClient *http.Client) *Client {
	return &Client{
		httpClient:   httpClient,
		calendarBase: "https://www.googleapis.com/calendar/v3",
		gmailBase:    "https://gmail.googleapis.com/gmail/v1",
		driveBase:    "https://www.googleapis.com/drive/v3",
		uploadBase:   "https://www.googleapis.com/upload/drive/v3",
		sheetsBase:   "https://sheets.googleapis.com/v4",
	}
}

// do runs the request and classifies non-2xx statuses so the
// orchestrator can tell a retryable outage from a dead task.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindTransient, "google API unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.KindTransient, "read google API response", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := fmt.Errorf("google API status %d: %s", resp.StatusCode, truncate(body, 300))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, types.NewError(types.KindPermanent, "sem permissão no Google", apiErr)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, types.NewError(types.KindInvalid, "requisição rejeitada pelo Google", apiErr)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, types.NewError(types.KindTransient, "Google indisponível", apiErr)
	}
	return nil, types.NewError(types.KindPermanent, "erro do Google", apiErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
