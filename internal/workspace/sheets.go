// internal/workspace/sheets.go
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// AppendRow appends one row to the given range of a spreadsheet.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, sheetRange string, values []any) error {
	payload, err := json.Marshal(map[string]any{
		"values": [][]any{values},
	})
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}

	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.sheetsBase, spreadsheetID, url.PathEscape(sheetRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}
