package domain

import "errors"

var (
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrRequestInFlight = errors.New("a request is already in flight for this chat")
	ErrImageRequired   = errors.New("an image is required to start a reasoning session")
	ErrImageLocked     = errors.New("the reasoning session already has an image")
	ErrInvalidImage    = errors.New("file is not a supported image")
	ErrImageTooLarge   = errors.New("image exceeds the size limit")
	ErrPromptTooLong   = errors.New("prompt exceeds the token limit")
	ErrNoChat          = errors.New("no chat selected")
	ErrStaleChat       = errors.New("chat is no longer active")
	ErrClosed          = errors.New("chat orchestrator is closed")
	ErrNoCredential    = errors.New("no backend credential stored")
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrUnknownMode     = errors.New("chat mode must be \"room\" or \"session\"")
)
