package worker

import "strings"

// User-facing failure messages. Internal error text is never shown verbatim.
const (
	msgDownloadFailed   = "Sorry, failed to download your file. Please try again."
	msgUnprocessable    = "Sorry, this audio file cannot be processed. It may be too short, corrupted, or in an unsupported format."
	msgTranscribeFailed = "Sorry, failed to transcribe your audio. The file may be corrupted or in an unsupported format."
	msgGenericFailure   = "Sorry, an error occurred while processing your file."
)

// ClassifyError maps an arbitrary pipeline failure to one of the fixed
// user-facing messages. Matching is case-insensitive substring search over
// the error text, first match wins.
func ClassifyError(err error) string {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "download") || strings.Contains(s, "file"):
		return msgDownloadFailed
	case strings.Contains(s, "cannot reshape tensor") || strings.Contains(s, "tensor of 0 elements"):
		return msgUnprocessable
	case strings.Contains(s, "transcribe") || strings.Contains(s, "whisper"):
		return msgTranscribeFailed
	default:
		return msgGenericFailure
	}
}
