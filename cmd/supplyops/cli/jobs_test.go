package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/jobs"
)

type queueStub struct {
	enqueued []*asynq.Task
	info     *asynq.QueueInfo
	err      error
}

func (q *queueStub) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.enqueued = append(q.enqueued, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (q *queueStub) GetQueueInfo(string) (*asynq.QueueInfo, error) { return q.info, q.err }

func (q *queueStub) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, q.err
}

func TestJobsTriggerDigest(t *testing.T) {
	stub := &queueStub{}
	c := NewJobsCLIWith(stub, stub)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := c.Command(context.Background(), JobsOptions{Args: []string{"trigger", "digest"}, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 0, code, stderr.String())
	require.Len(t, stub.enqueued, 1)
	assert.Equal(t, jobs.TaskReadyToCloseDigest, stub.enqueued[0].Type())
	assert.Contains(t, stdout.String(), "enqueued workflow:ready-to-close-digest")
}

func TestJobsTriggerUnknown(t *testing.T) {
	stub := &queueStub{}
	c := NewJobsCLIWith(stub, stub)
	stderr := new(bytes.Buffer)
	code := c.Command(context.Background(), JobsOptions{Args: []string{"trigger", "reindex"}, Stdout: new(bytes.Buffer), Stderr: stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unsupported job reindex")
}

func TestJobsStats(t *testing.T) {
	stub := &queueStub{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}}
	c := NewJobsCLIWith(stub, stub)
	stdout := new(bytes.Buffer)
	code := c.Command(context.Background(), JobsOptions{Args: []string{"stats"}, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"queue":"default","pending":2,"active":0,"scheduled":0,"retry":1,"archived":0}`, stdout.String())

	stub.err = errors.New("redis down")
	assert.Equal(t, 1, c.Command(context.Background(), JobsOptions{Args: []string{"stats"}, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}))
}

func TestJobsUsage(t *testing.T) {
	c := NewJobsCLIWith(&queueStub{}, &queueStub{})
	assert.Equal(t, 2, c.Command(context.Background(), JobsOptions{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}))
	assert.Equal(t, 2, c.Command(context.Background(), JobsOptions{Args: []string{"nope"}, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}))
}
