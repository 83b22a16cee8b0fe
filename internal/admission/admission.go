package admission

import (
	"fmt"
	"sync"

	"scribo/internal/job"
)

// FileTooLargeError is returned when a descriptor's declared size exceeds
// the configured ceiling. Its message is shown to the user as-is.
type FileTooLargeError struct {
	LimitMB int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("File is too large. The limit is %d MB.", e.LimitMB)
}

// Control enforces the per-request admission policy: a size ceiling per file
// and a ceiling on how many jobs a single chat may have queued or in flight
// at once. Counters live only for the lifetime of the process.
type Control struct {
	maxFileSize    int64
	maxJobsPerUser int

	mu     sync.Mutex
	counts map[int64]int
}

func NewControl(maxFileSize int64, maxJobsPerUser int) *Control {
	return &Control{
		maxFileSize:    maxFileSize,
		maxJobsPerUser: maxJobsPerUser,
		counts:         make(map[int64]int),
	}
}

// ValidateSize checks the transport-declared size against the configured
// ceiling. MIME types are not validated; size is the only gate.
func (c *Control) ValidateSize(audio job.AudioDescriptor) error {
	if audio.Size > c.maxFileSize {
		return &FileTooLargeError{LimitMB: c.maxFileSize / (1024 * 1024)}
	}
	return nil
}

// TryAdmit reserves a slot for chatID if it is below its ceiling.
// The check and the increment are a single atomic step, so concurrent
// submissions from one chat can never overshoot the ceiling.
func (c *Control) TryAdmit(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[chatID] >= c.maxJobsPerUser {
		return false
	}
	c.counts[chatID]++
	return true
}

// Release returns a slot for chatID. It is called exactly once per admitted
// job, whatever the outcome. The count never goes below zero and empty
// entries are removed so the map does not grow for the life of the process.
func (c *Control) Release(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[chatID] <= 1 {
		delete(c.counts, chatID)
		return
	}
	c.counts[chatID]--
}

// CountFor reports how many jobs chatID currently has admitted.
func (c *Control) CountFor(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[chatID]
}

// MaxJobsPerUser returns the configured per-chat ceiling.
func (c *Control) MaxJobsPerUser() int {
	return c.maxJobsPerUser
}
