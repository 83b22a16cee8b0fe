package job

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VoiceMessageName is used for Telegram voice notes, which carry no filename.
const VoiceMessageName = "voice_message.ogg"

// AudioDescriptor describes an inbound audio file as reported by the
// transport. The size is transport metadata and is treated as an untrusted
// upper bound; the bytes themselves are fetched lazily by a worker.
type AudioDescriptor struct {
	FileID   string
	UniqueID string
	Size     int64
	MIMEType string
	FileName string
}

// ResolveFileName returns the name a job should carry for this file.
// Named uploads keep their name, voice notes get a fixed one, and
// anything else gets a synthetic name derived from the MIME subtype.
func (d AudioDescriptor) ResolveFileName() string {
	if d.FileName != "" {
		return d.FileName
	}
	if d.MIMEType == "audio/ogg" {
		return VoiceMessageName
	}
	subtype := d.MIMEType
	if i := strings.Index(d.MIMEType, "/"); i >= 0 {
		subtype = d.MIMEType[i+1:]
	}
	return "audio_file_" + d.UniqueID + "." + subtype
}

// Job is one unit of transcription work. It is immutable after construction:
// everything a worker needs is captured here at admission time.
type Job struct {
	ID              string
	ChatID          int64
	MessageID       int
	FileID          string
	FileUniqueID    string
	FileName        string
	MIMEType        string
	FileSize        int64
	StatusMessageID int
	CreatedAt       time.Time
}

// New builds a Job from an admitted descriptor.
// statusMessageID is the id of the "Queueing..." message already shown to
// the submitter; the pipeline edits it as the job moves through its phases.
func New(chatID int64, messageID int, audio AudioDescriptor, statusMessageID int) Job {
	return Job{
		ID:              uuid.New().String(),
		ChatID:          chatID,
		MessageID:       messageID,
		FileID:          audio.FileID,
		FileUniqueID:    audio.UniqueID,
		FileName:        audio.ResolveFileName(),
		MIMEType:        audio.MIMEType,
		FileSize:        audio.Size,
		StatusMessageID: statusMessageID,
		CreatedAt:       time.Now(),
	}
}
