package bot

import (
	"context"
	"sync"
	"testing"

	"scribo/internal/admission"
	"scribo/internal/job"
	"scribo/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMessage struct {
	ChatID int64
	ID     int
	Text   string
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []recordedMessage
	edits  []recordedMessage
	nextID int
}

func (f *fakeTransport) FetchFile(ctx context.Context, fileID, dest string) error {
	return nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, recordedMessage{ChatID: chatID, ID: f.nextID, Text: text})
	return f.nextID, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, recordedMessage{ChatID: chatID, ID: messageID, Text: text})
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (f *fakeTransport) lastEdit() recordedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return recordedMessage{}
	}
	return f.edits[len(f.edits)-1]
}

func newTestBot(queueCapacity, maxJobsPerUser int) (*Bot, *fakeTransport, *queue.JobQueue, *admission.Control) {
	tp := &fakeTransport{}
	q := queue.New(queueCapacity)
	adm := admission.NewControl(20*1024*1024, maxJobsPerUser)
	b := &Bot{
		queue:     q,
		admission: adm,
		transport: tp,
	}
	return b, tp, q, adm
}

func sampleAudio() job.AudioDescriptor {
	return job.AudioDescriptor{
		FileID:   "file-1",
		UniqueID: "uniq-1",
		Size:     1024 * 1024,
		MIMEType: "audio/ogg",
	}
}

func TestQueueAudioJob_ReportsPosition(t *testing.T) {
	b, tp, q, _ := newTestBot(10, 5)
	ctx := context.Background()

	require.NoError(t, b.queueAudioJob(ctx, 1, 1, sampleAudio()))

	assert.Equal(t, 1, q.Size())
	assert.Contains(t, tp.lastEdit().Text, "Position: 1")

	require.NoError(t, b.queueAudioJob(ctx, 1, 2, sampleAudio()))
	assert.Contains(t, tp.lastEdit().Text, "Position: 2")
}

func TestQueueAudioJob_QueueFullScenario(t *testing.T) {
	b, tp, q, adm := newTestBot(2, 5)
	ctx := context.Background()

	// A and B fill the queue.
	require.NoError(t, b.queueAudioJob(ctx, 1, 1, sampleAudio()))
	require.NoError(t, b.queueAudioJob(ctx, 2, 2, sampleAudio()))
	require.True(t, q.IsFull())

	// C is rejected while A and B sit unprocessed; the message names the
	// configured capacity.
	require.NoError(t, b.queueAudioJob(ctx, 3, 3, sampleAudio()))
	assert.Contains(t, tp.lastEdit().Text, "processing queue is full (2 files)")
	assert.Equal(t, 0, adm.CountFor(3), "rejected submitter must hold no slot")

	// A worker drains A and completes it.
	j, err := q.Get(ctx)
	require.NoError(t, err)
	adm.Release(j.ChatID)

	// D now fits.
	require.NoError(t, b.queueAudioJob(ctx, 4, 4, sampleAudio()))
	assert.Contains(t, tp.lastEdit().Text, "has been queued for processing")
}

func TestQueueAudioJob_PerUserCeilingScenario(t *testing.T) {
	b, tp, _, adm := newTestBot(10, 2)
	ctx := context.Background()
	chatID := int64(12345)

	require.NoError(t, b.queueAudioJob(ctx, chatID, 1, sampleAudio()))
	require.NoError(t, b.queueAudioJob(ctx, chatID, 2, sampleAudio()))
	assert.Equal(t, 2, adm.CountFor(chatID))

	// Third submission from the same chat is rejected; the counter must
	// stay at the ceiling.
	require.NoError(t, b.queueAudioJob(ctx, chatID, 3, sampleAudio()))
	rejection := tp.lastEdit().Text
	assert.Contains(t, rejection, "reached the maximum limit of 2 audio files")
	assert.Contains(t, rejection, "Currently in queue: 2")
	assert.Equal(t, 2, adm.CountFor(chatID))
}

func TestQueueAudioJob_IndependentUsers(t *testing.T) {
	b, _, _, adm := newTestBot(10, 2)
	ctx := context.Background()

	require.NoError(t, b.queueAudioJob(ctx, 1, 1, sampleAudio()))
	require.NoError(t, b.queueAudioJob(ctx, 1, 2, sampleAudio()))
	require.NoError(t, b.queueAudioJob(ctx, 1, 3, sampleAudio())) // rejected

	// A different chat is unaffected by the first chat's ceiling.
	require.NoError(t, b.queueAudioJob(ctx, 2, 4, sampleAudio()))
	assert.Equal(t, 2, adm.CountFor(1))
	assert.Equal(t, 1, adm.CountFor(2))
}

func TestQueueAudioJob_ConcurrentSubmissionsRespectCeiling(t *testing.T) {
	b, _, q, adm := newTestBot(50, 2)
	ctx := context.Background()
	chatID := int64(777)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = b.queueAudioJob(ctx, chatID, n, sampleAudio())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, adm.CountFor(chatID))
	assert.Equal(t, 2, q.Size())
}

func TestHelpText_ReportsStartedWorkerCount(t *testing.T) {
	// The advertised parallelism is the number of workers that actually came
	// up, which can be lower than the configured count.
	b, _, _, _ := newTestBot(10, 5)
	b.workers = 3

	assert.Contains(t, b.helpText(), "up to 3 files at the same time")
}

func TestSubmitAudio_GateOrder(t *testing.T) {
	// Global capacity is evaluated before the per-chat ceiling: with a full
	// queue, a chat already at its ceiling still gets the queue-full reply.
	b, tp, q, _ := newTestBot(1, 1)
	ctx := context.Background()

	require.NoError(t, b.queueAudioJob(ctx, 1, 1, sampleAudio()))
	require.True(t, q.IsFull())

	require.NoError(t, b.queueAudioJob(ctx, 1, 2, sampleAudio()))
	assert.Contains(t, tp.lastEdit().Text, "processing queue is full")
}
