// Package telegram provides Telegram bot integration for the service desk.
//
// This package handles:
//   - Posting lifecycle notifications with inline keyboards
//   - Editing the original notification as the complaint moves on
//   - Receiving callback queries (Take job / Close job / Reopen)
//   - Collecting closing remarks as replies to a prompt
//   - Sending alerts and the periodic report image
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"svcdesk/internal/api"
	"svcdesk/internal/storage"
)

const defaultBaseURL = "https://api.telegram.org"

// PendingClosure is a complaint awaiting closing remarks from one user.
type PendingClosure struct {
	ComplaintID     string
	ComplaintNumber string
	PromptMessageID int
}

// Client represents a Telegram bot client.
//
// A nil *Client is valid: every method logs and returns without error, so
// callers never need to check whether Telegram is configured.
type Client struct {
	BotToken  string
	ChatID    string
	DebugMode bool
	Currency  string

	baseURL    string
	httpClient *http.Client
	messages   *storage.MessageLog

	mu              sync.Mutex
	pendingClosures map[int64]PendingClosure
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the shared pooled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDebugMode logs outgoing calls instead of sending them.
func WithDebugMode(debug bool) Option {
	return func(c *Client) { c.DebugMode = debug }
}

// WithCurrency sets the currency label used in messages.
func WithCurrency(currency string) Option {
	return func(c *Client) { c.Currency = currency }
}

// Message represents a Telegram message for sending.
type Message struct {
	ChatID                string      `json:"chat_id"`
	Text                  string      `json:"text"`
	ParseMode             string      `json:"parse_mode"`
	DisableWebPagePreview bool        `json:"disable_web_page_preview"`
	ReplyMarkup           interface{} `json:"reply_markup,omitempty"`
	ReplyToMessageID      int         `json:"reply_to_message_id,omitempty"`
}

// InlineKeyboardMarkup represents an inline keyboard.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton represents a button in an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// ForceReply prompts user to reply to the bot's message.
type ForceReply struct {
	ForceReply            bool   `json:"force_reply"`
	Selective             bool   `json:"selective,omitempty"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
}

// Update represents a Telegram update from getUpdates.
type Update struct {
	UpdateID      int              `json:"update_id"`
	Message       *IncomingMessage `json:"message,omitempty"`
	CallbackQuery *CallbackQuery   `json:"callback_query,omitempty"`
}

// IncomingMessage represents a received Telegram message.
type IncomingMessage struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CallbackQuery represents a callback query from an inline button.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    User             `json:"from"`
	Message *IncomingMessage `json:"message"`
	Data    string           `json:"data"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// EditMessageRequest represents a request to edit a message.
type EditMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	MessageID   string                `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// NewClient creates a Telegram client.
//
// Returns nil if botToken or chatID is empty (notifications disabled).
// messages may be nil, in which case every notification is a new message.
func NewClient(botToken, chatID string, messages *storage.MessageLog, opts ...Option) *Client {
	if botToken == "" || chatID == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set. Telegram notifications disabled.")
		if botToken == "" {
			log.Println("   → Missing: TELEGRAM_BOT_TOKEN")
		}
		if chatID == "" {
			log.Println("   → Missing: TELEGRAM_CHAT_ID")
		}
		return nil
	}

	c := &Client{
		BotToken:        botToken,
		ChatID:          chatID,
		Currency:        "PKR",
		baseURL:         defaultBaseURL,
		httpClient:      api.GetHTTPClient(),
		messages:        messages,
		pendingClosures: make(map[int64]PendingClosure),
	}
	for _, opt := range opts {
		opt(c)
	}

	log.Println("✓ Telegram configured successfully")
	if c.DebugMode {
		log.Println("🐛 DEBUG MODE ENABLED - Telegram calls will be simulated")
	}
	return c
}

// Name identifies the sink in logs.
func (c *Client) Name() string {
	return "telegram"
}

// doRequest sends one JSON Bot API call and returns its result field.
func (c *Client) doRequest(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if c.DebugMode && method != "getUpdates" {
		log.Printf("🐛 [DEBUG] Telegram %s: %s", method, string(jsonData))
		return json.RawMessage(`{"message_id":0}`), nil
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req)
}

func (c *Client) send(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("Telegram API error: %s", result.Description)
	}
	return result.Result, nil
}

// sendMessage posts msg and returns the new message ID.
func (c *Client) sendMessage(ctx context.Context, msg Message) (int, error) {
	result, err := c.doRequest(ctx, "sendMessage", msg)
	if err != nil {
		return 0, err
	}
	var sent struct {
		MessageID int `json:"message_id"`
	}
	_ = json.Unmarshal(result, &sent)
	return sent.MessageID, nil
}

// SendText posts a plain HTML message to the configured chat.
func (c *Client) SendText(ctx context.Context, text string) error {
	if c == nil {
		return nil
	}
	_, err := c.sendMessage(ctx, Message{ChatID: c.ChatID, Text: text, ParseMode: "HTML", DisableWebPagePreview: true})
	return err
}

// SendCriticalAlert sends a failure alert that needs manual attention.
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string) error {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping critical alert")
		return nil
	}

	log.Println("   🚨 Sending critical alert to Telegram...")

	message := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT - SERVICE DESK</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error Message:</b> %s\n"+
			"<b>Timestamp:</b> %s\n\n"+
			"⚠️ <b>Action Required:</b> Please check the service immediately.",
		escape(errorType),
		escape(errorMsg),
		time.Now().Format("2006-01-02 15:04:05"),
	)

	if err := c.SendText(ctx, message); err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}

	log.Println("   ✓ Critical alert successfully sent to Telegram")
	return nil
}

// EditMessageText replaces the text and keyboard of an existing message.
// An empty messageID is a no-op.
func (c *Client) EditMessageText(ctx context.Context, messageID, newText string, keyboard *InlineKeyboardMarkup) error {
	if c == nil || messageID == "" {
		return nil
	}

	if keyboard == nil {
		keyboard = &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	}
	req := EditMessageRequest{
		ChatID:      c.ChatID,
		MessageID:   messageID,
		Text:        newText,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}

	if _, err := c.doRequest(ctx, "editMessageText", req); err != nil {
		return fmt.Errorf("failed to edit Telegram message: %w", err)
	}
	return nil
}

// SendPhoto uploads a PNG with a caption.
func (c *Client) SendPhoto(ctx context.Context, filename string, png []byte, caption string) error {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping photo")
		return nil
	}

	if c.DebugMode {
		log.Printf("🐛 [DEBUG] Telegram sendPhoto %s (%d bytes): %s", filename, len(png), caption)
		return nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", c.ChatID); err != nil {
		return err
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return err
	}
	if err := writer.WriteField("parse_mode", "HTML"); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("photo", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(png); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	apiURL := fmt.Sprintf("%s/bot%s/sendPhoto", c.baseURL, c.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if _, err := c.send(req); err != nil {
		return fmt.Errorf("failed to send Telegram photo: %w", err)
	}
	log.Println("   ✓ Report image sent to Telegram")
	return nil
}

// answerCallbackQuery acknowledges a button press with a short toast.
func (c *Client) answerCallbackQuery(ctx context.Context, callbackQueryID, text string) {
	payload := map[string]interface{}{
		"callback_query_id": callbackQueryID,
		"text":              text,
		"show_alert":        false,
	}
	if _, err := c.doRequest(ctx, "answerCallbackQuery", payload); err != nil {
		log.Printf("⚠️  Failed to answer callback query: %v", err)
	}
}

func (c *Client) deleteMessage(ctx context.Context, messageID int) {
	if messageID <= 0 {
		return
	}
	req := struct {
		ChatID    string `json:"chat_id"`
		MessageID int    `json:"message_id"`
	}{ChatID: c.ChatID, MessageID: messageID}
	if _, err := c.doRequest(ctx, "deleteMessage", req); err != nil {
		log.Printf("⚠️  Failed to delete message %d: %v", messageID, err)
	}
}
