package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scribo/internal/admission"
	"scribo/internal/job"
	"scribo/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolationRecognizer flags any concurrent use of the same instance.
type isolationRecognizer struct {
	id         int
	inUse      atomic.Int32
	violations *atomic.Int32
	jobsSeen   *atomic.Int32
}

func (r *isolationRecognizer) Transcribe(samples []float32) (string, error) {
	if !r.inUse.CompareAndSwap(0, 1) {
		r.violations.Add(1)
	}
	time.Sleep(5 * time.Millisecond)
	r.inUse.Store(0)
	r.jobsSeen.Add(1)
	return "text", nil
}

type panickyRecognizer struct {
	calls atomic.Int32
}

func (r *panickyRecognizer) Transcribe(samples []float32) (string, error) {
	if r.calls.Add(1) == 1 {
		panic("inference blew up")
	}
	return "recovered text", nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func poolJob(n int, chatID int64) job.Job {
	return job.Job{
		ID:              "job",
		ChatID:          chatID,
		MessageID:       n,
		FileID:          "file",
		FileUniqueID:    "",
		FileName:        "voice_message.ogg",
		MIMEType:        "audio/ogg",
		FileSize:        100,
		StatusMessageID: 1000 + n,
	}
}

func TestPool_ProcessesJobsAndReleasesSlots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := &fakeTransport{}
	adm := admission.NewControl(1024, 10)
	q := queue.New(10)
	p := NewProcessor(tp, &fakeDecoder{samples: samplesFor(1)}, nil, nil, nil, 1024, 13)

	pool := NewPool(q, p, adm, tp, 2, func() (Recognizer, error) {
		return &fakeRecognizer{text: "done"}, nil
	})
	require.Equal(t, 2, pool.Start(ctx))

	const jobs = 4
	chatID := int64(7)
	for i := 0; i < jobs; i++ {
		require.True(t, adm.TryAdmit(chatID))
		require.NoError(t, q.Put(ctx, poolJob(i, chatID)))
	}

	waitFor(t, func() bool { return adm.CountFor(chatID) == 0 })

	tp.mu.Lock()
	defer tp.mu.Unlock()
	assert.Len(t, tp.sent, jobs, "one transcription per job")
	assert.Len(t, tp.deleted, jobs, "one status-message delete per job")
}

func TestPool_SurvivesPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := &fakeTransport{}
	adm := admission.NewControl(1024, 10)
	q := queue.New(10)
	p := NewProcessor(tp, &fakeDecoder{samples: samplesFor(1)}, nil, nil, nil, 1024, 13)

	rec := &panickyRecognizer{}
	pool := NewPool(q, p, adm, tp, 1, func() (Recognizer, error) {
		return rec, nil
	})
	require.Equal(t, 1, pool.Start(ctx))

	chatID := int64(3)
	require.True(t, adm.TryAdmit(chatID))
	require.NoError(t, q.Put(ctx, poolJob(1, chatID)))
	require.True(t, adm.TryAdmit(chatID))
	require.NoError(t, q.Put(ctx, poolJob(2, chatID)))

	// The same worker must survive the first job's panic and still process
	// the second job; both slots must be released.
	waitFor(t, func() bool { return adm.CountFor(chatID) == 0 })

	tp.mu.Lock()
	defer tp.mu.Unlock()
	require.Len(t, tp.deleted, 2)

	var delivered int
	for _, m := range tp.sent {
		if m.Text == transcriptionHeader+"recovered text" {
			delivered++
		}
	}
	assert.Equal(t, 1, delivered)
}

func TestPool_EachWorkerUsesOnlyItsOwnRecognizer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const workers = 4
	const jobs = 20

	tp := &fakeTransport{}
	adm := admission.NewControl(1024, jobs)
	q := queue.New(jobs)
	p := NewProcessor(tp, &fakeDecoder{samples: samplesFor(1)}, nil, nil, nil, 1024, 13)

	var violations, jobsSeen atomic.Int32
	var mu sync.Mutex
	var created []*isolationRecognizer

	pool := NewPool(q, p, adm, tp, workers, func() (Recognizer, error) {
		mu.Lock()
		defer mu.Unlock()
		rec := &isolationRecognizer{id: len(created), violations: &violations, jobsSeen: &jobsSeen}
		created = append(created, rec)
		return rec, nil
	})
	require.Equal(t, workers, pool.Start(ctx))

	chatID := int64(11)
	for i := 0; i < jobs; i++ {
		require.True(t, adm.TryAdmit(chatID))
		require.NoError(t, q.Put(ctx, poolJob(i, chatID)))
	}

	waitFor(t, func() bool { return jobsSeen.Load() == jobs })

	assert.Len(t, created, workers, "one recognizer per worker")
	assert.Zero(t, violations.Load(), "no recognizer may be used concurrently")
}

func TestPool_FailedRecognizerFailsClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := &fakeTransport{}
	adm := admission.NewControl(1024, 10)
	q := queue.New(10)
	p := NewProcessor(tp, &fakeDecoder{}, nil, nil, nil, 1024, 13)

	pool := NewPool(q, p, adm, tp, 3, func() (Recognizer, error) {
		return nil, errors.New("model missing")
	})

	assert.Equal(t, 0, pool.Start(ctx), "no worker should start without a recognizer")
}

func TestPool_PartialStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := &fakeTransport{}
	adm := admission.NewControl(1024, 10)
	q := queue.New(10)
	p := NewProcessor(tp, &fakeDecoder{samples: samplesFor(1)}, nil, nil, nil, 1024, 13)

	var n atomic.Int32
	pool := NewPool(q, p, adm, tp, 3, func() (Recognizer, error) {
		if n.Add(1) == 2 {
			return nil, errors.New("model missing")
		}
		return &fakeRecognizer{text: "ok"}, nil
	})

	// One worker fails closed; the other two still serve the queue.
	require.Equal(t, 2, pool.Start(ctx))

	chatID := int64(5)
	require.True(t, adm.TryAdmit(chatID))
	require.NoError(t, q.Put(ctx, poolJob(1, chatID)))

	waitFor(t, func() bool { return adm.CountFor(chatID) == 0 })
}
