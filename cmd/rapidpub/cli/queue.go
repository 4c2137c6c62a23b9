// Package cli holds the operator subcommands of the rapidpub binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/rapid-pub/backoffice/jobs"
)

// Enqueuer submits email tasks.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Inspector reads queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// QueueCLI wraps manual management helpers for the email queue.
type QueueCLI struct {
	queue     Enqueuer
	inspector Inspector
	out       io.Writer
}

// NewQueueCLI builds the helpers. Either dependency may be nil; the
// commands needing it then fail.
func NewQueueCLI(queue Enqueuer, inspector Inspector, out io.Writer) *QueueCLI {
	return &QueueCLI{queue: queue, inspector: inspector, out: out}
}

// Stats prints the depth of the default queue.
func (c *QueueCLI) Stats() error {
	if c.inspector == nil {
		return errors.New("queue cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
		info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
	return tw.Flush()
}

// Retries lists the tasks waiting for another attempt with their last error.
func (c *QueueCLI) Retries(size int) error {
	if c.inspector == nil {
		return errors.New("queue cli: inspector not configured")
	}
	if size <= 0 {
		size = 20
	}
	tasks, err := c.inspector.ListRetryTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, "no task waiting for retry")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tRETRIED\tNEXT\tLAST ERROR")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
			t.ID, t.Type, t.Retried, t.MaxRetry, t.NextProcessAt.Format(time.RFC3339), t.LastErr)
	}
	return tw.Flush()
}

// SendTest enqueues a test message to check SMTP delivery end to end.
func (c *QueueCLI) SendTest(ctx context.Context, from, to string) error {
	if c.queue == nil {
		return errors.New("queue cli: queue not configured")
	}
	if to == "" {
		return errors.New("queue cli: recipient required")
	}
	info, err := c.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		MessageID: uuid.NewString(),
		From:      from,
		To:        to,
		Subject:   "Test d'envoi",
		Body:      "Ce message confirme que la file d'envoi fonctionne.",
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "enqueued %s on %s\n", info.ID, info.Queue)
	return nil
}
