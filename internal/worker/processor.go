package worker

import (
	"context"
	"fmt"
	"math"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribo/internal/asr"
	"scribo/internal/job"
	"scribo/internal/storage"
	"scribo/internal/transport"
	"scribo/pkg/cache"
	"scribo/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// transcriptionHeader prefixes every delivered chunk.
	transcriptionHeader = "Transcription:\n\n"
	// messageSizeLimit is Telegram's per-message character ceiling.
	messageSizeLimit = 4096
	// minDuration is the shortest audio worth sending to the model.
	minDuration = 0.1

	transcriptCacheTTL = 7 * 24 * time.Hour
)

// Recognizer runs blocking speech-to-text inference. Implementations are
// not safe for concurrent use; each worker owns its own instance.
type Recognizer interface {
	Transcribe(samples []float32) (string, error)
}

// Decoder turns an audio file into 16 kHz mono float32 samples.
type Decoder interface {
	DecodeAndResample(ctx context.Context, path string) ([]float32, error)
}

// TranscriptStore persists completed transcriptions. Best-effort: a store
// failure never fails the job.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, t *storage.Transcript) error
}

// AudioArchiver retains the original audio after a successful run.
type AudioArchiver interface {
	ArchiveFile(ctx context.Context, key, path, contentType string) (string, error)
	GenerateKey(jobID, extension string) string
}

// Processor drives one job through the pipeline: size recheck, download,
// duration check, transcription, chunked delivery. The outcome is a bool:
// true for delivered results and the recognized empty/too-short terminal
// states, false for every classified failure.
type Processor struct {
	transport transport.Transport
	decoder   Decoder
	store     TranscriptStore
	archive   AudioArchiver
	cache     cache.Cache

	maxFileSize           int64
	secondsPerAudioMinute float64
}

// NewProcessor wires the pipeline. store, archive and transcripts may be
// nil, which disables persistence, archival and the transcript cache.
func NewProcessor(
	tp transport.Transport,
	decoder Decoder,
	store TranscriptStore,
	archive AudioArchiver,
	transcripts cache.Cache,
	maxFileSize int64,
	secondsPerAudioMinute float64,
) *Processor {
	return &Processor{
		transport:             tp,
		decoder:               decoder,
		store:                 store,
		archive:               archive,
		cache:                 transcripts,
		maxFileSize:           maxFileSize,
		secondsPerAudioMinute: secondsPerAudioMinute,
	}
}

// Process runs the pipeline for one job using the worker's own recognizer.
func (p *Processor) Process(ctx context.Context, j job.Job, rec Recognizer) bool {
	// Recheck the declared size before any network I/O. The descriptor
	// metadata may be stale or falsified.
	if j.FileSize > p.maxFileSize {
		p.editStatus(ctx, j, fmt.Sprintf("File is too large. The limit is %d MB.", p.maxFileSize/(1024*1024)))
		return false
	}

	if text, ok := p.cachedTranscript(ctx, j); ok {
		logger.Info("Serving transcription from cache",
			zap.String("job_id", j.ID),
			zap.String("file_unique_id", j.FileUniqueID))
		return p.deliverOrReport(ctx, j, text)
	}

	if err := p.editStatus(ctx, j, "Downloading your audio file..."); err != nil {
		p.reportError(ctx, j, err)
		return false
	}

	tempDir, err := os.MkdirTemp("", "scribo-")
	if err != nil {
		p.reportError(ctx, j, fmt.Errorf("failed to create scratch dir: %w", err))
		return false
	}
	defer os.RemoveAll(tempDir)

	logger.Info("Downloading file", zap.String("job_id", j.ID), zap.String("file_name", j.FileName))

	audioPath := filepath.Join(tempDir, "audio"+extensionFor(j.MIMEType))
	if err := p.transport.FetchFile(ctx, j.FileID, audioPath); err != nil {
		p.reportError(ctx, j, fmt.Errorf("failed to download file: %w", err))
		return false
	}

	logger.Info("Finished downloading", zap.String("job_id", j.ID), zap.String("file_name", j.FileName))

	if err := p.editStatus(ctx, j, "Analyzing audio duration..."); err != nil {
		p.reportError(ctx, j, err)
		return false
	}

	samples, err := p.decoder.DecodeAndResample(ctx, audioPath)
	if err != nil {
		p.reportError(ctx, j, err)
		return false
	}

	if len(samples) == 0 {
		logger.Warn("Empty audio file", zap.String("job_id", j.ID), zap.String("file_name", j.FileName))
		p.reply(ctx, j, "The audio file appears to be empty or corrupted.")
		return true
	}

	duration := float64(len(samples)) / asr.SampleRate
	if duration < minDuration {
		logger.Warn("Audio too short to transcribe",
			zap.String("job_id", j.ID),
			zap.Float64("duration", duration))
		p.reply(ctx, j, "The audio file is too short to transcribe (less than 0.1 seconds).")
		return true
	}

	estimated := math.Max(duration/60*p.secondsPerAudioMinute, 2)
	if err := p.editStatus(ctx, j, fmt.Sprintf("Processing your audio. Estimated time: %.0f seconds.", estimated)); err != nil {
		p.reportError(ctx, j, err)
		return false
	}

	logger.Info("Starting transcription",
		zap.String("job_id", j.ID),
		zap.String("file_name", j.FileName),
		zap.Float64("duration", duration))

	text, err := rec.Transcribe(samples)
	if err != nil {
		p.reportError(ctx, j, err)
		return false
	}

	logger.Info("Finished transcription",
		zap.String("job_id", j.ID),
		zap.Int("text_length", len(text)))

	p.persistResult(ctx, j, audioPath, text)
	return p.deliverOrReport(ctx, j, text)
}

func (p *Processor) cachedTranscript(ctx context.Context, j job.Job) (string, bool) {
	if p.cache == nil || j.FileUniqueID == "" {
		return "", false
	}
	var text string
	if err := p.cache.Get(ctx, cache.TranscriptKey(j.FileUniqueID), &text); err != nil {
		return "", false
	}
	return text, text != ""
}

// persistResult records the outcome in the configured sinks. All of them
// are best-effort.
func (p *Processor) persistResult(ctx context.Context, j job.Job, audioPath, text string) {
	if p.cache != nil && j.FileUniqueID != "" {
		if err := p.cache.SetWithTTL(ctx, cache.TranscriptKey(j.FileUniqueID), text, transcriptCacheTTL); err != nil {
			logger.Error("Failed to cache transcript", zap.String("job_id", j.ID), zap.Error(err))
		}
	}

	if p.store != nil {
		t := &storage.Transcript{
			ID:           uuid.New().String(),
			JobID:        j.ID,
			ChatID:       j.ChatID,
			FileUniqueID: j.FileUniqueID,
			FileName:     j.FileName,
			Text:         text,
			CreatedAt:    time.Now(),
		}
		if err := p.store.SaveTranscript(ctx, t); err != nil {
			logger.Error("Failed to save transcript", zap.String("job_id", j.ID), zap.Error(err))
		}
	}

	if p.archive != nil {
		key := p.archive.GenerateKey(j.ID, filepath.Ext(audioPath))
		if url, err := p.archive.ArchiveFile(ctx, key, audioPath, j.MIMEType); err != nil {
			logger.Error("Failed to archive audio", zap.String("job_id", j.ID), zap.Error(err))
		} else {
			logger.Debug("Audio archived", zap.String("job_id", j.ID), zap.String("url", url))
		}
	}
}

func (p *Processor) deliverOrReport(ctx context.Context, j job.Job, text string) bool {
	if err := p.deliver(ctx, j, text); err != nil {
		p.reportError(ctx, j, err)
		return false
	}
	return true
}

// deliver sends the transcription back to the submitter, splitting long
// text into messages that fit under the transport's size ceiling.
func (p *Processor) deliver(ctx context.Context, j job.Job, text string) error {
	if strings.TrimSpace(text) == "" {
		p.reply(ctx, j, "The audio contained no detectable speech.")
		return nil
	}

	for _, chunk := range SplitTranscription(text, messageSizeLimit, transcriptionHeader) {
		if _, err := p.transport.SendMessage(ctx, j.ChatID, transcriptionHeader+chunk, j.MessageID); err != nil {
			return fmt.Errorf("failed to send transcription: %w", err)
		}
	}
	return nil
}

// SplitTranscription chops text into chunks such that header plus chunk
// never exceeds limit characters. Concatenating the chunks reproduces the
// input exactly.
func SplitTranscription(text string, limit int, header string) []string {
	chunkSize := limit - len([]rune(header))
	runes := []rune(text)

	var chunks []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// reportError logs the failure and sends the classified message to the
// submitter. Notification failures are swallowed: error reporting must
// never produce a secondary failure.
func (p *Processor) reportError(ctx context.Context, j job.Job, err error) {
	logger.Error("Failed processing job",
		zap.String("job_id", j.ID),
		zap.Int64("chat_id", j.ChatID),
		zap.Error(err))

	if _, sendErr := p.transport.SendMessage(ctx, j.ChatID, ClassifyError(err), j.MessageID); sendErr != nil {
		logger.Error("Failed to notify user about error",
			zap.String("job_id", j.ID),
			zap.Int64("chat_id", j.ChatID),
			zap.Error(sendErr))
	}
}

func (p *Processor) reply(ctx context.Context, j job.Job, text string) {
	if _, err := p.transport.SendMessage(ctx, j.ChatID, text, j.MessageID); err != nil {
		logger.Error("Failed to send reply",
			zap.String("job_id", j.ID),
			zap.Int64("chat_id", j.ChatID),
			zap.Error(err))
	}
}

func (p *Processor) editStatus(ctx context.Context, j job.Job, text string) error {
	return p.transport.EditMessage(ctx, j.ChatID, j.StatusMessageID, text)
}

func extensionFor(mimeType string) string {
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".ogg"
}
