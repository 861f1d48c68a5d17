package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/example/forgeline/internal/models"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatPrice formats price with currency and thousand separators.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	intAmount := int64(amount)
	str := fmt.Sprintf("%d", intAmount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	cents := amount - float64(intAmount)
	if cents > 0 {
		result.WriteString(fmt.Sprintf(".%02d", int(cents*100+0.5)))
	}

	return result.String() + " " + currency
}

// NotifyOrderPaid reports a confirmed payment to the admin chat.
func (s *TelegramService) NotifyOrderPaid(order *models.Order) error {
	if s.adminChatID == "" {
		return nil
	}

	hash := order.TransactionHash
	if len(hash) > 16 {
		hash = hash[:16] + "…"
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT CONFIRMED</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>💰 Amount:</b> %s
<b>🔗 Tx:</b> <code>%s</code>
<b>⛓ Network:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderID,
		order.CustomerEmail,
		FormatPrice(order.Amount, "USD"),
		hash,
		order.Network,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyOrderFailed reports a final failure or expiry to the admin chat.
func (s *TelegramService) NotifyOrderFailed(order *models.Order, detail string) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>⚠️ ORDER NOT SETTLED</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>💰 Amount:</b> %s
<b>📍 Status:</b> %s
<b>ℹ️ Detail:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderID,
		order.CustomerEmail,
		FormatPrice(order.Amount, "USD"),
		order.Status,
		detail,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
