package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueEmail(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	want := EmailPayload{EmailType: "invitation", ParticipantID: 7, RecipientEmail: "alice@example.com"}
	if err := q.EnqueueEmail(ctx, want); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatalf("expected a job")
	}
	if job.Type != JobTypeEmail || job.Attempt != 0 {
		t.Fatalf("unexpected job envelope: %+v", job)
	}
	var got EmailPayload
	if err := json.Unmarshal(job.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got != want {
		t.Fatalf("payload mismatch: want %+v got %+v", want, got)
	}
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: "job-1", Type: JobTypeEmail, Payload: json.RawMessage(`{}`)}
	for i := 1; i < MaxRetries; i++ {
		if err := q.Retry(ctx, job); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
	}
	if n, _ := mr.List(QueueEmails); len(n) != MaxRetries-1 {
		t.Fatalf("expected %d requeued jobs, got %d", MaxRetries-1, len(n))
	}

	if err := q.Retry(ctx, job); err != nil {
		t.Fatalf("final retry: %v", err)
	}
	if pending, err := q.Pending(ctx); err != nil || pending != int64(MaxRetries-1) {
		t.Fatalf("pending: %d %v", pending, err)
	}
	dead, err := q.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if dead != 1 {
		t.Fatalf("expected 1 dead letter, got %d", dead)
	}
}
