// internal/dispatch/dispatcher.go
//
// The dispatcher is the uniform execute(command, data) façade over the
// productivity backends. It is the only place a command tag maps to a
// backend call; the tag set is closed.
package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/amana/internal/types"
	"github.com/user/amana/internal/workspace"
)

// Dispatcher validates command payloads and invokes the Workspace
// backends, returning a normalized result.
type Dispatcher struct {
	ws            *workspace.Client
	tz            *time.Location
	driveFolderID string
	spreadsheetID string
	now           func() time.Time
}

// New wires a Dispatcher over a Workspace client. driveFolderID and
// spreadsheetID name the SAVE_FILE destination folder and the SAVE_MEMORY
// spreadsheet; either may be empty when the feature is unconfigured.
func New(ws *workspace.Client, tz *time.Location, driveFolderID, spreadsheetID string) *Dispatcher {
	return &Dispatcher{
		ws:            ws,
		tz:            tz,
		driveFolderID: driveFolderID,
		spreadsheetID: spreadsheetID,
		now:           time.Now,
	}
}

// requiredKeys lists the payload keys each command refuses to run
// without.
var requiredKeys = map[types.Command][]string{
	types.CommandCreateEvent: {"summary", "start", "end"},
	types.CommandReadEmails:  {},
	types.CommandSendEmail:   {"to", "subject", "body_html"},
	types.CommandSaveMemory:  {"title", "content"},
	types.CommandShowAgenda:  {},
	types.CommandSaveFile:    {"name"},
}

// Execute runs cmd with data. Errors carry a kind (invalid, transient,
// permanent) for the orchestrator to switch on.
func (d *Dispatcher) Execute(ctx context.Context, cmd types.Command, data map[string]any) (*types.Result, error) {
	keys, ok := requiredKeys[cmd]
	if !ok {
		return nil, types.NewError(types.KindPermanent, fmt.Sprintf("comando desconhecido: %s", cmd), nil)
	}
	for _, key := range keys {
		if _, present := data[key]; !present {
			return nil, types.NewError(types.KindInvalid, fmt.Sprintf("campo obrigatório ausente: %s", key), nil)
		}
	}

	slog.Info("executing command", "command", cmd)
	switch cmd {
	case types.CommandCreateEvent:
		return d.createEvent(ctx, data)
	case types.CommandReadEmails:
		return d.readEmails(ctx, data)
	case types.CommandSendEmail:
		return d.sendEmail(ctx, data)
	case types.CommandSaveMemory:
		return d.saveMemory(ctx, data)
	case types.CommandShowAgenda:
		return d.showAgenda(ctx, data)
	case types.CommandSaveFile:
		return d.saveFile(ctx, data)
	}
	return nil, types.NewError(types.KindPermanent, fmt.Sprintf("comando desconhecido: %s", cmd), nil)
}

func (d *Dispatcher) createEvent(ctx context.Context, data map[string]any) (*types.Result, error) {
	ev := workspace.Event{
		Summary:     str(data, "summary"),
		Description: str(data, "description"),
		Location:    str(data, "location"),
		Start:       str(data, "start"),
		End:         str(data, "end"),
		Attendees:   strList(data, "attendees"),
	}
	created, err := d.ws.InsertEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	return &types.Result{
		OK: true,
		ID: created.ID,
		Payload: map[string]any{
			"summary": created.Summary,
			"link":    created.HTMLLink,
		},
	}, nil
}

func (d *Dispatcher) readEmails(ctx context.Context, data map[string]any) (*types.Result, error) {
	query := str(data, "query")
	max := intOr(data, "max_results", 3)
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}

	emails, err := d.ws.ListMessages(ctx, query, max)
	if err != nil {
		return nil, err
	}
	list := make([]map[string]any, 0, len(emails))
	for _, em := range emails {
		list = append(list, map[string]any{
			"from":    em.From,
			"subject": em.Subject,
			"body":    em.Body,
		})
	}
	return &types.Result{OK: true, Payload: map[string]any{"emails": list}}, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, data map[string]any) (*types.Result, error) {
	to := strList(data, "to")
	if len(to) == 0 {
		// The wire format allows a bare string recipient.
		if single := str(data, "to"); single != "" {
			to = []string{single}
		}
	}
	if len(to) == 0 {
		return nil, &types.Error{Kind: types.KindInvalid, Slot: "to", Msg: "destinatário ausente"}
	}

	id, err := d.ws.SendMessage(ctx, to, str(data, "subject"), str(data, "body_html"))
	if err != nil {
		return nil, err
	}
	return &types.Result{OK: true, ID: id, Payload: map[string]any{"to": to}}, nil
}

func (d *Dispatcher) saveMemory(ctx context.Context, data map[string]any) (*types.Result, error) {
	title := str(data, "title")
	content := str(data, "content")
	tags := strings.Join(strList(data, "tags"), ",")
	stamp := d.now().In(d.tz).Format("2006-01-02 15:04:05")

	if d.spreadsheetID != "" {
		if err := d.ws.AppendRow(ctx, d.spreadsheetID, "Memorias!A:D", []any{stamp, title, content, tags}); err != nil {
			return nil, err
		}
		return &types.Result{OK: true, Payload: map[string]any{"title": title}}, nil
	}

	// Without a spreadsheet the memory lands on Drive as a text file.
	name := fmt.Sprintf("MEMORIA_%s_%s.txt", d.now().In(d.tz).Format("20060102-150405"), sanitizeName(title))
	body := fmt.Sprintf("%s\n\n%s\n\ntags: %s\n", title, content, tags)
	file, err := d.ws.Upload(ctx, name, "text/plain", []byte(body), d.driveFolderID)
	if err != nil {
		return nil, err
	}
	return &types.Result{OK: true, ID: file.ID, Payload: map[string]any{"title": title, "link": file.WebViewLink}}, nil
}

func (d *Dispatcher) showAgenda(ctx context.Context, data map[string]any) (*types.Result, error) {
	max := intOr(data, "max", 5)
	from := d.now().In(d.tz)
	to := from.Add(24 * time.Hour)

	events, err := d.ws.ListUpcoming(ctx, from, to, max)
	if err != nil {
		return nil, err
	}
	list := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		list = append(list, map[string]any{
			"summary":    ev.Summary,
			"start_time": ev.StartTime,
		})
	}
	return &types.Result{OK: true, Payload: map[string]any{"events": list}}, nil
}

func (d *Dispatcher) saveFile(ctx context.Context, data map[string]any) (*types.Result, error) {
	name := str(data, "name")
	mimeType := str(data, "mime_type")

	var content []byte
	if text := str(data, "text"); text != "" {
		content = []byte(text)
	} else if b64 := str(data, "base64"); b64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, &types.Error{Kind: types.KindInvalid, Slot: "base64", Msg: "conteúdo base64 inválido", Err: err}
		}
		content = decoded
	} else {
		return nil, types.NewError(types.KindInvalid, "arquivo sem conteúdo (text ou base64)", nil)
	}

	folder := str(data, "folder")
	if folder == "" {
		folder = d.driveFolderID
	}
	file, err := d.ws.Upload(ctx, name, mimeType, content, folder)
	if err != nil {
		return nil, err
	}
	return &types.Result{
		OK: true,
		ID: file.ID,
		Payload: map[string]any{
			"name": file.Name,
			"link": file.WebViewLink,
		},
	}, nil
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func strList(data map[string]any, key string) []string {
	switch list := data[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intOr(data map[string]any, key string, fallback int) int {
	switch n := data[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return fallback
}

func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
