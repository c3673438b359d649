// internal/scheduler/scheduler.go
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Handler is the callback invoked when the schedule fires.
type Handler func()

// Scheduler fires a single job, the daily run, on a cron expression.
type Scheduler struct {
	schedule string
	handler  Handler
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether schedule is a valid cron expression.
func Validate(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// New creates a Scheduler that calls handler on schedule. Firings that
// arrive while the previous run is still going are skipped.
func New(schedule string, handler Handler) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		handler:  handler,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

// Start registers the job and starts the cron ticker.
func (s *Scheduler) Start() error {
	if err := Validate(s.schedule); err != nil {
		return err
	}
	_, err := s.cron.AddFunc(s.schedule, func() {
		slog.Info("cron firing daily run", "schedule", s.schedule)
		s.handler()
	})
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.cron.Start()
	slog.Info("scheduled daily run", "schedule", s.schedule)
	return nil
}

// Next returns when the job fires next; zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops the cron ticker and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
