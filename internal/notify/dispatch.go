package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkrause/beacon/internal/connector"
	"github.com/mkrause/beacon/internal/models"
)

// defaultWorkers bounds concurrent deliveries. Recipient counts are small;
// the pool exists so one hung delivery cannot stall the whole batch.
const defaultWorkers = 4

// Dispatcher fans a message out to a recipient set through the connector.
type Dispatcher struct {
	sender  connector.Sender
	log     zerolog.Logger
	workers int
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Sender  connector.Sender
	Log     zerolog.Logger
	Workers int // defaults to defaultWorkers
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("notify: sender is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Dispatcher{sender: opts.Sender, log: opts.Log, workers: workers}, nil
}

// task is one unit of delivery work.
type task struct {
	id  string
	rec models.RecipientRecord
}

// result is the typed outcome of one task.
type result struct {
	info models.SentInfo
	err  error
}

// Dispatch delivers text to every recipient independently and returns the
// aggregate report. One recipient's failure never aborts the rest; every
// recipient is accounted for in either SentTo or Errors. The caller fills
// in TotalRecipients and TargetingCriteria.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients map[string]models.RecipientRecord, text string) models.Report {
	tasks := make(chan task, len(recipients))
	for id, rec := range recipients {
		tasks <- task{id: id, rec: rec}
	}
	close(tasks)

	results := make(chan result, len(recipients))
	workers := d.workers
	if workers > len(recipients) {
		workers = len(recipients)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- d.sendOne(ctx, t, text)
			}
		}()
	}
	wg.Wait()
	close(results)

	report := models.Report{
		FilteredRecipients: len(recipients),
		SentTo:             []models.SentInfo{},
		Errors:             []string{},
	}
	for r := range results {
		if r.err != nil {
			report.Errors = append(report.Errors, r.err.Error())
			continue
		}
		report.SentCount++
		report.SentTo = append(report.SentTo, r.info)
	}
	return report
}

func (d *Dispatcher) sendOne(ctx context.Context, t task, text string) result {
	name := t.rec.DisplayName
	if name == "" {
		name = t.id
	}
	if err := d.sender.SendToConversation(ctx, t.rec.Reference, text); err != nil {
		d.log.Warn().Err(err).Str("conversation", t.id).Msg("notification send failed")
		return result{err: fmt.Errorf("Failed to send to %s: %v", name, err)}
	}
	d.log.Info().Str("conversation", t.id).Str("display_name", name).Msg("notification sent")
	return result{info: models.SentInfo{
		ConversationID: t.id,
		DisplayName:    t.rec.DisplayName,
		Tags:           t.rec.Tags,
	}}
}
