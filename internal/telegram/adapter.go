// Package telegram bridges Telegram updates to the gateway: webhook
// registration, voice transcription on the way in, MarkdownV2 text and
// optional spoken replies on the way out.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/amana/internal/gateway"
	"github.com/user/amana/internal/speech"
	"github.com/user/amana/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot        *tgbotapi.BotAPI
	gateway    *gateway.Gateway
	speech     *speech.Engine
	voiceReply bool
	retry      *gateway.RetryPolicy
}

// New creates a Telegram adapter. engine may be nil when voice support
// is unconfigured.
func New(token string, gw *gateway.Gateway, engine *speech.Engine, voiceReply bool) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:        bot,
		gateway:    gw,
		speech:     engine,
		voiceReply: voiceReply,
		retry:      gateway.DefaultRetryPolicy(),
	}, nil
}

// SetWebhook registers url with Telegram so updates arrive over HTTP
// instead of long polling.
func (a *Adapter) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	slog.Info("telegram webhook configured", "url", url)
	return nil
}

// HandleUpdate processes one webhook update. The HTTP layer has already
// acknowledged the delivery; errors here are logged, never returned to
// Telegram.
func (a *Adapter) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	chatID := msg.Chat.ID
	deliveryID := types.DeliveryID(strconv.Itoa(update.UpdateID))
	conversationID := types.ConversationID(strconv.FormatInt(chatID, 10))

	if msg.IsCommand() {
		a.handleCommand(msg)
		return
	}

	var text string
	wasVoice := false
	switch {
	case msg.Voice != nil:
		transcript, err := a.transcribeVoice(ctx, msg.Voice.FileID)
		if err != nil {
			slog.Error("voice transcription failed", "conversation_id", string(conversationID), "error", err)
			a.sendText(chatID, "❌ Não consegui entender o áudio. Pode tentar novamente?")
			return
		}
		text = transcript
		wasVoice = true
	case msg.Text != "":
		text = strings.TrimSpace(msg.Text)
	default:
		return
	}

	opts := []gateway.TurnOption{
		gateway.WithOnComplete(func(reply string) {
			a.sendText(chatID, reply)
			if wasVoice && a.voiceReply && a.speech != nil {
				a.sendVoice(chatID, reply)
			}
		}),
	}
	if wasVoice {
		opts = append(opts, gateway.WithVoice())
	}

	err := a.gateway.HandleInbound(deliveryID, conversationID, text, opts...)
	if errors.Is(err, gateway.ErrDuplicate) {
		return
	}
	if err != nil {
		slog.Error("enqueue turn failed", "conversation_id", string(conversationID), "error", err)
		a.sendText(chatID, "😕 Estou sobrecarregada agora. Tente de novo em instantes.")
	}
}

// Deliver pushes a message to the conversation's chat. Satisfies the
// delivery registry's handler shape.
func (a *Adapter) Deliver(conversationID types.ConversationID, message string) error {
	chatID, err := strconv.ParseInt(string(conversationID), 10, 64)
	if err != nil {
		return fmt.Errorf("not a telegram conversation: %s", conversationID)
	}
	a.sendText(chatID, message)
	return nil
}

func (a *Adapter) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		a.sendText(msg.Chat.ID, "Olá! Eu sou a Amana, sua assistente pessoal. 🌿\nPosso criar eventos, ler e enviar e-mails, salvar memórias e mostrar sua agenda. É só pedir!")
	default:
		a.sendText(msg.Chat.ID, "Comando desconhecido. Envie uma mensagem normal que eu entendo. 😉")
	}
}

// transcribeVoice downloads the voice note and runs it through whisper.
func (a *Adapter) transcribeVoice(ctx context.Context, fileID string) (string, error) {
	if a.speech == nil {
		return "", fmt.Errorf("voice support disabled")
	}
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download voice file: status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read voice file: %w", err)
	}

	text, err := a.speech.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty transcription")
	}
	slog.Info("voice transcribed", "chars", len(text))
	return text, nil
}

// sendText delivers the reply as MarkdownV2, falling back to plain text
// when Telegram rejects the formatting.
func (a *Adapter) sendText(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, escapeMarkdownV2(part))
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		if _, err := a.bot.Send(msg); err != nil {
			plain := tgbotapi.NewMessage(chatID, part)
			if err := a.retry.Execute(func() error {
				_, err := a.bot.Send(plain)
				return err
			}); err != nil {
				slog.Error("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

// sendVoice synthesizes the reply and sends it as a voice note.
func (a *Adapter) sendVoice(chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	audio, err := a.speech.Synthesize(ctx, text)
	if err != nil {
		slog.Error("voice synthesis failed", "chat_id", chatID, "error", err)
		return
	}
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "resposta.mp3", Bytes: audio})
	if _, err := a.bot.Send(voice); err != nil {
		slog.Error("send voice failed", "chat_id", chatID, "error", err)
	}
}

// markdownV2Specials is the Telegram MarkdownV2 escape set.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!"

func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitMessage(text string) []string {
	runes := []rune(text)
	if len(runes) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		end := maxTelegramMessage
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}
