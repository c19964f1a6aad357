package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"svcdesk/internal/complaint"
	"svcdesk/internal/events"
)

// Callback data prefixes of the inline buttons.
const (
	actionTake   = "take"
	actionClose  = "close"
	actionReopen = "reopen"
)

// Publish posts or updates the notification for a lifecycle event.
//
// The first notification of a complaint is a new message; later events edit
// that message in place so the chat holds one card per complaint.
func (c *Client) Publish(ctx context.Context, ev events.Event) error {
	if c == nil {
		return nil
	}

	if ev.Kind == events.KindRestored {
		return c.SendText(ctx, fmt.Sprintf("♻️ <b>Backup restored</b>\n%d complaints loaded.", ev.Count))
	}

	text := FormatComplaint(ev.Complaint, c.Currency)
	keyboard := Keyboard(ev.Complaint)

	existing := ""
	if c.messages != nil {
		existing = c.messages.Get(ev.Complaint.ID)
	}

	if existing != "" && ev.Kind != events.KindCreated {
		err := c.EditMessageText(ctx, existing, text, keyboard)
		if err == nil {
			return nil
		}
		log.Printf("⚠️  Could not edit message for %s, posting a new one: %v", ev.Complaint.ComplaintNumber, err)
		if err := c.messages.Remove(ev.Complaint.ID); err != nil {
			log.Println("⚠️  Failed to drop stale message reference:", err)
		}
	}

	msgID, err := c.sendMessage(ctx, Message{
		ChatID:                c.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           keyboard,
	})
	if err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}

	if c.messages != nil && msgID > 0 {
		if err := c.messages.Set(ev.Complaint.ID, strconv.Itoa(msgID)); err != nil {
			log.Println("⚠️  Failed to record Telegram message ID:", err)
		}
	}
	return nil
}

// FormatComplaint renders the notification card of a complaint.
func FormatComplaint(c complaint.Complaint, currency string) string {
	var b strings.Builder

	if c.IsClosed() {
		fmt.Fprintf(&b, "✅ <b>COMPLETED</b>\n\nComplaint #%s\n", escape(c.ComplaintNumber))
		fmt.Fprintf(&b, "👤 %s\n", escape(c.CustomerName))
		fmt.Fprintf(&b, "👷 %s\n", escape(c.TechnicianName))
		fmt.Fprintf(&b, "🏷️ %s · %s %s\n", c.Type, escape(currency), formatAmount(c.Amount()))
		if c.WorkDone != "" {
			fmt.Fprintf(&b, "🛠️ %s\n", escape(c.WorkDone))
		}
		if c.PartsChanged != "" {
			fmt.Fprintf(&b, "🔩 %s\n", escape(c.PartsChanged))
		}
		if c.ReopenCount > 0 {
			fmt.Fprintf(&b, "🔁 Reopened %d×\n", c.ReopenCount)
		}
		fmt.Fprintf(&b, "📅 %s", escape(c.ClosingDate))
		return b.String()
	}

	fmt.Fprintf(&b, "📋 Complaint : %s\n\n", escape(c.ComplaintNumber))
	fmt.Fprintf(&b, "👤 %s\n", escape(c.CustomerName))
	fmt.Fprintf(&b, "📞 %s\n", escape(c.PhoneNumber))
	if c.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", escape(c.Address))
	}
	fmt.Fprintf(&b, "🔧 %s", c.ProductType)
	if c.ModelNumber != "" {
		fmt.Fprintf(&b, " · %s", escape(c.ModelNumber))
	}
	if c.SerialNumber != "" {
		fmt.Fprintf(&b, " · SN %s", escape(c.SerialNumber))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "🏷️ %s · <b>%s</b>\n", c.Type, c.Status)
	if c.TechnicianName != "" {
		fmt.Fprintf(&b, "👷 %s\n", escape(c.TechnicianName))
	}
	if c.PartStatus != "" && c.PartStatus != complaint.PartNone {
		fmt.Fprintf(&b, "🔩 Part: %s", c.PartStatus)
		if c.PartName != "" {
			fmt.Fprintf(&b, " (%s)", escape(c.PartName))
		}
		b.WriteString("\n")
	}
	if c.ReopenCount > 0 {
		fmt.Fprintf(&b, "🔁 Reopened %d×\n", c.ReopenCount)
	}
	fmt.Fprintf(&b, "📅 %s", escape(c.Date))
	return b.String()
}

// Keyboard returns the inline actions for the complaint's current status.
func Keyboard(c complaint.Complaint) *InlineKeyboardMarkup {
	if c.IsClosed() {
		return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "🔁 Reopen", CallbackData: actionReopen + ":" + c.ID},
		}}}
	}
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "🙋 Take job", CallbackData: actionTake + ":" + c.ID},
		{Text: "✅ Close job", CallbackData: actionClose + ":" + c.ID},
	}}}
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
