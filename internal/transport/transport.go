package transport

import "context"

// Transport is the chat-side capability surface the pipeline consumes.
// The production implementation speaks to Telegram; tests substitute fakes.
type Transport interface {
	// FetchFile downloads the file identified by fileID into dest.
	FetchFile(ctx context.Context, fileID, dest string) error
	// SendMessage sends text to a chat, optionally as a reply, and returns
	// the id of the sent message.
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	// DeleteMessage removes a message. Callers treat failures as advisory:
	// the message may already be gone.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
