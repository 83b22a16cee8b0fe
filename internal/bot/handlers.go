package bot

import (
	"context"
	"fmt"
	"strings"

	"scribo/internal/job"
	"scribo/pkg/logger"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send("Hi! Send me a voice message or audio file, and I'll transcribe it for you.")
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(b.helpText())
}

// helpText reports the live worker count, not the configured one, so the
// message stays honest when some workers failed to start.
func (b *Bot) helpText() string {
	return fmt.Sprintf(
		"Send me any voice message or audio file, and I'll convert it to text. "+
			"I can process up to %d files at the same time. If the queue is full, please wait.",
		b.workers)
}

func (b *Bot) handleHistory(c tele.Context) error {
	if b.history == nil {
		return c.Send("Transcription history is not available.")
	}

	transcripts, err := b.history.RecentTranscripts(context.Background(), c.Chat().ID, 5)
	if err != nil {
		logger.Error("Failed to load transcript history",
			zap.Int64("chat_id", c.Chat().ID),
			zap.Error(err))
		return c.Send("Could not load your transcription history.")
	}
	if len(transcripts) == 0 {
		return c.Send("No transcriptions yet. Send me an audio file to get started.")
	}

	var sb strings.Builder
	sb.WriteString("Your recent transcriptions:\n")
	for _, t := range transcripts {
		preview := t.Text
		if r := []rune(preview); len(r) > 80 {
			preview = string(r[:80]) + "..."
		}
		fmt.Fprintf(&sb, "\n%s — %s\n%s\n",
			t.CreatedAt.Format("2006-01-02 15:04"), t.FileName, preview)
	}
	return c.Send(sb.String())
}

func (b *Bot) handleVoice(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Voice == nil {
		return nil
	}

	mimeType := msg.Voice.MIME
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	return b.submitAudio(c, job.AudioDescriptor{
		FileID:   msg.Voice.FileID,
		UniqueID: msg.Voice.UniqueID,
		Size:     int64(msg.Voice.FileSize),
		MIMEType: mimeType,
	})
}

func (b *Bot) handleAudio(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Audio == nil {
		return nil
	}

	return b.submitAudio(c, job.AudioDescriptor{
		FileID:   msg.Audio.FileID,
		UniqueID: msg.Audio.UniqueID,
		Size:     int64(msg.Audio.FileSize),
		MIMEType: msg.Audio.MIME,
		FileName: msg.Audio.FileName,
	})
}

// handleDocument accepts audio sent as a generic file attachment. Anything
// without an audio MIME type is ignored.
func (b *Bot) handleDocument(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Document == nil {
		return nil
	}
	if !strings.HasPrefix(msg.Document.MIME, "audio/") {
		return nil
	}

	return b.submitAudio(c, job.AudioDescriptor{
		FileID:   msg.Document.FileID,
		UniqueID: msg.Document.UniqueID,
		Size:     int64(msg.Document.FileSize),
		MIMEType: msg.Document.MIME,
		FileName: msg.Document.FileName,
	})
}

func (b *Bot) submitAudio(c tele.Context, audio job.AudioDescriptor) error {
	if err := b.admission.ValidateSize(audio); err != nil {
		return c.Reply(err.Error())
	}
	return b.queueAudioJob(context.Background(), c.Chat().ID, c.Message().ID, audio)
}

// queueAudioJob runs the admission flow for a validated descriptor: show a
// status message, check global capacity, then the per-chat ceiling, then
// enqueue. The two gates are independent and evaluated in that fixed order.
func (b *Bot) queueAudioJob(ctx context.Context, chatID int64, messageID int, audio job.AudioDescriptor) error {
	statusID, err := b.transport.SendMessage(ctx, chatID, "Queueing your audio file...", messageID)
	if err != nil {
		logger.Error("Failed to send status message",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return err
	}

	if b.queue.IsFull() {
		return b.transport.EditMessage(ctx, chatID, statusID, fmt.Sprintf(
			"Sorry, the processing queue is full (%d files). Please try again later.",
			b.queue.Capacity()))
	}

	if !b.admission.TryAdmit(chatID) {
		return b.transport.EditMessage(ctx, chatID, statusID, fmt.Sprintf(
			"You have reached the maximum limit of %d audio files in the queue. "+
				"Currently in queue: %d. Please wait for them to finish processing.",
			b.admission.MaxJobsPerUser(), b.admission.CountFor(chatID)))
	}

	j := job.New(chatID, messageID, audio, statusID)
	if err := b.queue.Put(ctx, j); err != nil {
		b.admission.Release(chatID)
		return b.transport.EditMessage(ctx, chatID, statusID,
			"Sorry, an error occurred while queueing your file. Please try again.")
	}

	logger.Info("Job added to queue",
		zap.String("job_id", j.ID),
		zap.Int64("chat_id", chatID),
		zap.String("file_name", j.FileName),
		zap.Int("queue_size", b.queue.Size()))

	return b.transport.EditMessage(ctx, chatID, statusID, fmt.Sprintf(
		"Your file has been queued for processing. Position: %d", b.queue.Size()))
}
