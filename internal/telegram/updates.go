package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"svcdesk/internal/complaint"
	deskerrors "svcdesk/internal/errors"
)

// pollTimeout is the long-poll window of getUpdates, in seconds.
const pollTimeout = 25

// Desk is the subset of the service desk the bot acts on.
type Desk interface {
	Find(id string) (complaint.Complaint, error)
	AssignTechnician(ctx context.Context, id, name string) (complaint.Complaint, error)
	Close(ctx context.Context, id string, data complaint.ClosingData) (complaint.Complaint, error)
	Reopen(ctx context.Context, id string) (complaint.Complaint, error)
}

// getUpdates fetches new updates using long polling.
func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message", "callback_query"},
	}

	result, err := c.doRequest(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

// HandleUpdates long-polls for button presses and replies until ctx is
// cancelled.
func (c *Client) HandleUpdates(ctx context.Context, desk Desk) {
	if c == nil {
		log.Println("⚠️  Telegram not configured, callback handler disabled")
		return
	}

	log.Println("✓ Starting Telegram callback handler...")
	offset := 0

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Telegram callback handler stopped")
			return
		default:
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("⚠️  Error getting Telegram updates: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			c.HandleUpdate(ctx, desk, update)
			offset = update.UpdateID + 1
		}
	}
}

// HandleUpdate processes a single update.
func (c *Client) HandleUpdate(ctx context.Context, desk Desk, update Update) {
	switch {
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, desk, update.CallbackQuery)
	case update.Message != nil:
		c.handleMessage(ctx, desk, update.Message)
	}
}

// handleCallbackQuery dispatches "<action>:<complaint id>" button data.
func (c *Client) handleCallbackQuery(ctx context.Context, desk Desk, query *CallbackQuery) {
	log.Printf("📞 Received callback query: %s from %s", query.Data, query.From.FirstName)

	action, id, ok := strings.Cut(query.Data, ":")
	if !ok || id == "" {
		log.Println("⚠️  Invalid callback data format")
		c.answerCallbackQuery(ctx, query.ID, "Invalid action")
		return
	}

	switch action {
	case actionTake:
		updated, err := desk.AssignTechnician(ctx, id, query.From.FirstName)
		if err != nil && !deskerrors.IsPersistence(err) {
			c.answerCallbackQuery(ctx, query.ID, "Error: "+err.Error())
			return
		}
		log.Printf("👷 %s took complaint %s", query.From.FirstName, updated.ComplaintNumber)
		c.answerCallbackQuery(ctx, query.ID, "Assigned to "+query.From.FirstName)

	case actionReopen:
		updated, err := desk.Reopen(ctx, id)
		if err != nil && !deskerrors.IsPersistence(err) {
			c.answerCallbackQuery(ctx, query.ID, "Error: "+err.Error())
			return
		}
		log.Printf("🔁 %s reopened complaint %s", query.From.FirstName, updated.ComplaintNumber)
		c.answerCallbackQuery(ctx, query.ID, "Complaint reopened")

	case actionClose:
		c.promptForRemarks(ctx, desk, query, id)

	default:
		log.Println("⚠️  Unknown callback action:", action)
		c.answerCallbackQuery(ctx, query.ID, "Invalid action")
	}
}

// promptForRemarks asks the user for closing remarks. Pressing Close job a
// second time for the same complaint cancels the prompt.
func (c *Client) promptForRemarks(ctx context.Context, desk Desk, query *CallbackQuery, id string) {
	target, err := desk.Find(id)
	if err != nil {
		c.answerCallbackQuery(ctx, query.ID, "Error: complaint not found")
		return
	}

	c.mu.Lock()
	if pending, exists := c.pendingClosures[query.From.ID]; exists && pending.ComplaintID == id {
		delete(c.pendingClosures, query.From.ID)
		c.mu.Unlock()

		c.deleteMessage(ctx, pending.PromptMessageID)
		c.answerCallbackQuery(ctx, query.ID, "Closing cancelled")
		log.Printf("❌ Closing cancelled by toggle for user %s", query.From.FirstName)
		return
	}
	c.pendingClosures[query.From.ID] = PendingClosure{ComplaintID: id, ComplaintNumber: target.ComplaintNumber}
	c.mu.Unlock()

	replyTo := 0
	if query.Message != nil {
		replyTo = query.Message.MessageID
	}
	promptID, err := c.sendMessage(ctx, Message{
		ChatID: c.ChatID,
		Text: fmt.Sprintf("📝 Closing remarks for complaint <b>%s</b>\n👤 %s\n\nReply as: work done | amount | parts changed",
			escape(target.ComplaintNumber), escape(target.CustomerName)),
		ParseMode:        "HTML",
		ReplyToMessageID: replyTo,
		ReplyMarkup: &ForceReply{
			ForceReply:            true,
			InputFieldPlaceholder: "Replaced capacitor | 1500 | Capacitor",
		},
	})
	if err != nil {
		log.Printf("⚠️  Failed to send prompt message: %v", err)
		c.mu.Lock()
		delete(c.pendingClosures, query.From.ID)
		c.mu.Unlock()
		c.answerCallbackQuery(ctx, query.ID, "Error sending prompt")
		return
	}

	c.mu.Lock()
	if pending, exists := c.pendingClosures[query.From.ID]; exists {
		pending.PromptMessageID = promptID
		c.pendingClosures[query.From.ID] = pending
	}
	c.mu.Unlock()

	c.answerCallbackQuery(ctx, query.ID, "Please send your remarks")
}

// handleMessage treats text from a user with a pending closure as the
// closing remarks for that complaint.
func (c *Client) handleMessage(ctx context.Context, desk Desk, message *IncomingMessage) {
	if message.From == nil || message.Text == "" {
		return
	}

	c.mu.Lock()
	pending, exists := c.pendingClosures[message.From.ID]
	if exists {
		delete(c.pendingClosures, message.From.ID)
	}
	c.mu.Unlock()
	if !exists {
		return
	}

	c.deleteMessage(ctx, pending.PromptMessageID)

	if strings.EqualFold(strings.TrimSpace(message.Text), "cancel") {
		log.Printf("❌ Closing cancelled by keyword for user %s", message.From.FirstName)
		c.reply(ctx, "❌ Closing cancelled.")
		return
	}

	data, err := ParseRemarks(message.Text)
	if err != nil {
		c.reply(ctx, fmt.Sprintf("❌ Complaint <b>%s</b> not closed: %s", escape(pending.ComplaintNumber), escape(err.Error())))
		return
	}

	current, err := desk.Find(pending.ComplaintID)
	if err != nil {
		c.reply(ctx, fmt.Sprintf("ℹ️ Complaint <b>%s</b> no longer exists.", escape(pending.ComplaintNumber)))
		return
	}
	data.TechnicianName = current.TechnicianName
	if data.TechnicianName == "" {
		data.TechnicianName = message.From.FirstName
	}

	log.Printf("📝 Received closing remarks from %s for complaint %s", message.From.FirstName, pending.ComplaintNumber)

	_, err = desk.Close(ctx, pending.ComplaintID, data)
	var verr *deskerrors.ValidationError
	switch {
	case errors.As(err, &verr):
		c.reply(ctx, fmt.Sprintf("❌ Complaint <b>%s</b> not closed. Missing: %s",
			escape(pending.ComplaintNumber), escape(strings.Join(verr.Fields, ", "))))
	case err != nil && !deskerrors.IsPersistence(err):
		c.reply(ctx, fmt.Sprintf("❌ Failed to close complaint <b>%s</b>: %s", escape(pending.ComplaintNumber), escape(err.Error())))
	default:
		log.Printf("✓ Complaint %s closed from Telegram by %s", pending.ComplaintNumber, message.From.FirstName)
	}
}

func (c *Client) reply(ctx context.Context, text string) {
	if err := c.SendText(ctx, text); err != nil {
		log.Printf("⚠️  Failed to send reply: %v", err)
	}
}

// ParseRemarks reads "work done | amount | parts changed". Amount and parts
// are optional; a missing amount is 0.
func ParseRemarks(text string) (complaint.ClosingData, error) {
	parts := strings.Split(text, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	data := complaint.ClosingData{WorkDone: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(parts[1], ",", ""), 64)
		if err != nil {
			return complaint.ClosingData{}, fmt.Errorf("amount %q is not a number", parts[1])
		}
		data.AmountTaken = amount
	}
	if len(parts) > 2 {
		data.PartsChanged = strings.Join(parts[2:], " | ")
	}
	return data, nil
}
