package telegram

import "github.com/go-telegram/bot/models"

// Origin is where an update came from.
type Origin struct {
	Kind   string
	ChatID int64
	UserID int64
}

// OriginOf extracts the chat and sender of the updates the bot handles.
func OriginOf(update *models.Update) Origin {
	switch {
	case update.Message != nil:
		o := Origin{Kind: "message", ChatID: update.Message.Chat.ID}
		if update.Message.From != nil {
			o.UserID = update.Message.From.ID
		}
		switch {
		case len(update.Message.Photo) > 0:
			o.Kind = "photo"
		case update.Message.Document != nil:
			o.Kind = "document"
		}
		return o
	case update.CallbackQuery != nil:
		o := Origin{Kind: "callback_query", UserID: update.CallbackQuery.From.ID}
		if update.CallbackQuery.Message.Message != nil {
			o.ChatID = update.CallbackQuery.Message.Message.Chat.ID
		}
		return o
	default:
		return Origin{Kind: "unknown"}
	}
}
