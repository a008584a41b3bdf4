package telegram

import (
	"evcp/internal"
	"evcp/models"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// StatusProvider renders the current state of the charge point for /status
type StatusProvider interface {
	StatusSummary() string
}

// TgBot implements EventHandler
type TgBot struct {
	api           *tgbotapi.BotAPI
	database      internal.Database
	logger        internal.LogHandler
	status        StatusProvider
	mutex         sync.RWMutex
	subscriptions map[int]models.UserSubscription
	event         chan MessageContent
	send          chan MessageContent
	done          chan struct{}
}

type MessageContent struct {
	ChatID int64
	Text   string
}

func NewBot(apiKey string, logger internal.LogHandler) (*TgBot, error) {
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, err
	}
	return newBot(api, logger), nil
}

func newBot(api *tgbotapi.BotAPI, logger internal.LogHandler) *TgBot {
	return &TgBot{
		api:           api,
		logger:        logger,
		subscriptions: make(map[int]models.UserSubscription),
		event:         make(chan MessageContent, 100),
		send:          make(chan MessageContent, 100),
		done:          make(chan struct{}),
	}
}

// SetDatabase attach database service
func (b *TgBot) SetDatabase(database internal.Database) {
	b.database = database
}

func (b *TgBot) SetStatusProvider(status StatusProvider) {
	b.status = status
}

func (b *TgBot) Start() {
	if b.database != nil {
		subscriptions, err := b.database.GetSubscriptions()
		if err != nil {
			b.logger.Error("bot: getting subscriptions", err)
		} else {
			b.mutex.Lock()
			for _, subscription := range subscriptions {
				b.subscriptions[subscription.UserID] = subscription
			}
			b.mutex.Unlock()
		}
	}
	go b.sendPump()
	go b.eventPump()
	go b.updatesPump()
}

func (b *TgBot) Stop() {
	close(b.done)
	b.api.StopReceivingUpdates()
}

// Start listening for updates
func (b *TgBot) updatesPump() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		b.logger.Error("bot: getting updates", err)
		return
	}
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() || update.Message.From == nil {
			continue
		}
		b.handleCommand(update.Message)
	}
}

func (b *TgBot) handleCommand(message *tgbotapi.Message) {
	chatId := message.Chat.ID
	switch message.Command() {
	case "start":
		subscription := models.UserSubscription{
			UserID:           message.From.ID,
			ChatID:           chatId,
			User:             message.From.UserName,
			SubscriptionType: "status",
		}
		b.addSubscription(subscription)
		msg := fmt.Sprintf("Hello *%v*, you are now subscribed to updates", sanitize(message.From.UserName))
		if b.database != nil {
			if err := b.database.AddSubscription(&subscription); err != nil {
				b.logger.Error("bot: adding subscription", err)
				msg = fmt.Sprintf("Error adding subscription:\n `%v`", err)
			}
		}
		b.send <- MessageContent{ChatID: chatId, Text: msg}
	case "stop":
		b.removeSubscription(message.From.ID)
		if b.database != nil {
			if err := b.database.DeleteSubscription(&models.UserSubscription{UserID: message.From.ID}); err != nil {
				b.logger.Error("bot: deleting subscription", err)
			}
		}
		b.send <- MessageContent{ChatID: chatId, Text: "Your subscription has been removed"}
	case "status":
		b.send <- MessageContent{ChatID: chatId, Text: b.composeStatusMessage()}
	}
}

func (b *TgBot) addSubscription(subscription models.UserSubscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.subscriptions[subscription.UserID] = subscription
}

func (b *TgBot) removeSubscription(userId int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.subscriptions, userId)
}

func (b *TgBot) chats() []int64 {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	chats := make([]int64, 0, len(b.subscriptions))
	for _, subscription := range b.subscriptions {
		chatId := subscription.ChatID
		if chatId == 0 {
			chatId = int64(subscription.UserID)
		}
		chats = append(chats, chatId)
	}
	return chats
}

// eventPump sending events to all subscribers
func (b *TgBot) eventPump() {
	for {
		select {
		case event := <-b.event:
			for _, chatId := range b.chats() {
				b.sendMessage(chatId, event.Text)
			}
		case <-b.done:
			return
		}
	}
}

// sendPump sending messages to users
func (b *TgBot) sendPump() {
	for {
		select {
		case event := <-b.send:
			b.sendMessage(event.ChatID, event.Text)
		case <-b.done:
			return
		}
	}
}

// sendMessage common routine to send a message via bot API
func (b *TgBot) sendMessage(id int64, text string) {
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "MarkdownV2"
	_, err := b.api.Send(msg)
	if err != nil {
		// maybe error was while parsing, so we can send a message about this error
		msg = tgbotapi.NewMessage(id, fmt.Sprintf("Error: %v", err))
		if _, err = b.api.Send(msg); err != nil {
			b.logger.Error("bot: sending message", err)
		}
	}
}

// publish drops the event when subscribers are too slow to keep up
func (b *TgBot) publish(text string) {
	if text == "" {
		return
	}
	select {
	case b.event <- MessageContent{Text: text}:
	default:
		b.logger.Warn("bot: event queue is full, message dropped")
	}
}

func (b *TgBot) OnRegistration(event *internal.EventMessage) {
	b.publish(registrationMessage(event))
}

func (b *TgBot) OnStatusNotification(event *internal.EventMessage) {
	b.publish(statusMessage(event))
}

func (b *TgBot) OnTransactionStart(event *internal.EventMessage) {
	b.publish(transactionMessage(event, "START"))
}

func (b *TgBot) OnTransactionStop(event *internal.EventMessage) {
	b.publish(transactionMessage(event, "STOP"))
}

func registrationMessage(event *internal.EventMessage) string {
	msg := fmt.Sprintf("*%v*: registration `%v`\n", sanitize(event.ChargePointId), event.Status)
	if event.Info != "" {
		msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	}
	return msg
}

// statusMessage status updates of the charger itself are not sent, only of connectors
func statusMessage(event *internal.EventMessage) string {
	if event.ConnectorId == 0 {
		return ""
	}
	msg := fmt.Sprintf("*%v*: Connector %v: `%v`\n", sanitize(event.ChargePointId), event.ConnectorId, event.Status)
	if event.TransactionId > 0 {
		msg += fmt.Sprintf("Transaction ID: %v\n", event.TransactionId)
	}
	if event.Info != "" {
		msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	}
	return msg
}

func transactionMessage(event *internal.EventMessage, stage string) string {
	msg := fmt.Sprintf("*%v*: Connector %v\n", sanitize(event.ChargePointId), event.ConnectorId)
	msg += fmt.Sprintf("Transaction ID: %v %s\n", event.TransactionId, stage)
	msg += fmt.Sprintf("ID Tag: %v\n", sanitize(event.IdTag))
	if event.Status != "" {
		msg += fmt.Sprintf("Auth status: `%v`\n", event.Status)
	}
	if event.Info != "" {
		msg += fmt.Sprintf("Info: %v\n", sanitize(event.Info))
	}
	return msg
}

// compose status message
func (b *TgBot) composeStatusMessage() string {
	msg := "Status info:\n"
	msg += "\n"
	if b.status != nil {
		msg += fmt.Sprintf("```\n%s```\n", b.status.StatusSummary())
	}
	b.mutex.RLock()
	count := len(b.subscriptions)
	b.mutex.RUnlock()
	msg += fmt.Sprintf("Active subscriptions: %v", count)
	return msg
}

func sanitize(input string) string {
	// reserved characters of MarkdownV2
	reservedChars := "\\`*_{}[]()#+-.!|>=~"

	var sanitized strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized.WriteRune('\\')
		}
		sanitized.WriteRune(char)
	}
	return sanitized.String()
}
