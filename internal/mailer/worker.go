package mailer

import (
	"context"
	"log/slog"

	"github.com/gatehouse-hq/apiserver/internal/mq"
)

// Worker drains the mail queue, rendering and delivering each job.
type Worker struct {
	bus    *mq.Bus
	sender Sender
	logger *slog.Logger
}

func NewWorker(bus *mq.Bus, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{bus: bus, sender: sender, logger: logger}
}

// Run blocks consuming mail jobs until ctx is cancelled. Render failures
// are dropped (retrying cannot fix a bad template reference); delivery
// failures are returned to the broker for redelivery.
func (w *Worker) Run(ctx context.Context) error {
	return w.bus.SubscribeMailJobs(ctx, func(ctx context.Context, job mq.MailJob) error {
		data := make(map[string]any, len(job.Data)+1)
		for k, v := range job.Data {
			data[k] = v
		}
		data["name"] = job.Name

		body, err := Render(job.Template, data)
		if err != nil {
			w.logger.Error("render mail template", "template", job.Template, "error", err)
			return nil
		}

		if err := w.sender.Send(ctx, job.To, job.Name, job.Subject, body); err != nil {
			w.logger.Error("deliver mail", "to", job.To, "subject", job.Subject, "error", err)
			return err
		}
		w.logger.Info("mail delivered", "to", job.To, "subject", job.Subject)
		return nil
	})
}
