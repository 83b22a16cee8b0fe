package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"scribo/pkg/logger"
	"scribo/pkg/resilience"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// Telegram implements Transport over the Bot API via telebot. File downloads
// are retried with backoff; outbound sends go through a token-bucket limiter
// so bursts of chunked results stay inside Telegram's send rate.
type Telegram struct {
	bot        *tele.Bot
	httpClient *http.Client
	retry      *resilience.RetryConfig
	sendLimit  *resilience.RateLimiter
}

func NewTelegram(bot *tele.Bot) *Telegram {
	return &Telegram{
		bot: bot,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry:     resilience.DefaultRetryConfig(),
		sendLimit: resilience.NewRateLimiter(25, time.Second),
	}
}

// FetchFile downloads a Telegram file to dest.
func (t *Telegram) FetchFile(ctx context.Context, fileID, dest string) error {
	file, err := t.bot.FileByID(fileID)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	fileURL := t.bot.URL + "/file/bot" + t.bot.Token + "/" + file.FilePath

	return resilience.RetryWithExponentialBackoff(ctx, t.retry, func() error {
		return t.downloadToFile(ctx, fileURL, dest)
	})
}

func (t *Telegram) downloadToFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: status=%d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write file data: %w", err)
	}
	return nil
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	if err := t.sendLimit.Wait(ctx); err != nil {
		return 0, err
	}

	chat := &tele.Chat{ID: chatID}
	opts := &tele.SendOptions{}
	if replyTo != 0 {
		opts.ReplyTo = &tele.Message{ID: replyTo}
	}

	msg, err := t.bot.Send(chat, text, opts)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := t.sendLimit.Wait(ctx); err != nil {
		return err
	}

	_, err := t.bot.Edit(storedMessage(chatID, messageID), text)
	return err
}

func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := t.bot.Delete(storedMessage(chatID, messageID))
	if err != nil {
		logger.Debug("Failed to delete message",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
	return err
}

func storedMessage(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
}
