package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/domain"
)

// Callback data prefixes.
const (
	CallbackRoom      = "room:"
	CallbackRoomsPage = "rooms_"
	CallbackModel     = "model:"
	CallbackNoop      = "cur"
)

// Telegram rejects callback data longer than 64 bytes.
const maxCallbackData = 64

func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// PaginationRow creates a pagination row with prev/next buttons.
func PaginationRow(currentPage, totalPages int, callbackPrefix string) []models.InlineKeyboardButton {
	var row []models.InlineKeyboardButton
	if currentPage > 0 {
		row = append(row, InlineButton("⬅️", fmt.Sprintf("%s%d", callbackPrefix, currentPage-1)))
	}
	row = append(row, InlineButton(fmt.Sprintf("%d/%d", currentPage+1, totalPages), CallbackNoop))
	if currentPage < totalPages-1 {
		row = append(row, InlineButton("➡️", fmt.Sprintf("%s%d", callbackPrefix, currentPage+1)))
	}
	return row
}

// RoomKeyboard lists one page of rooms, marking the active one. Rooms whose
// id does not fit into callback data are skipped.
func RoomKeyboard(rooms []domain.Room, active domain.ChatIdentity, page, perPage int) *models.InlineKeyboardMarkup {
	if perPage <= 0 {
		perPage = len(rooms)
	}
	totalPages := max(1, (len(rooms)+perPage-1)/perPage)
	page = min(max(page, 0), totalPages-1)

	var rows [][]models.InlineKeyboardButton
	end := min((page+1)*perPage, len(rooms))
	for _, r := range rooms[page*perPage : end] {
		data := CallbackRoom + r.ID
		if len(data) > maxCallbackData {
			continue
		}
		label := roomLabel(r)
		if domain.ChatIdentity(r.ID) == active {
			label = "✅ " + label
		}
		rows = append(rows, ButtonRow(InlineButton(label, data)))
	}
	if totalPages > 1 {
		rows = append(rows, PaginationRow(page, totalPages, CallbackRoomsPage))
	}
	return InlineKeyboard(rows...)
}

// ModelKeyboard offers the model aliases, marking the current one.
func ModelKeyboard(names []string, current string) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton
	for _, n := range names {
		label := n
		if strings.EqualFold(n, current) {
			label = "✅ " + n
		}
		row = append(row, InlineButton(label, CallbackModel+n))
	}
	return InlineKeyboard(row)
}

func roomLabel(r domain.Room) string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "Untitled"
	}
	if utf8.RuneCountInString(title) > 40 {
		title = string([]rune(title)[:39]) + "…"
	}
	if !r.UpdatedAt.IsZero() {
		title += " · " + r.UpdatedAt.Format("Jan 2")
	}
	return title
}
