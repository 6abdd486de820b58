package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically retries auto-assignment for pending tickets that
// stayed unassigned, picking up staff that became available since the ticket
// was created.
type Sweeper struct {
	Store   Store
	Routing *RoutingService
	Logger  zerolog.Logger

	// MinAge keeps the sweeper away from tickets the webhook path may still
	// be processing.
	MinAge    time.Duration
	BatchSize int

	scheduler *cron.Cron
}

func (s *Sweeper) Start(schedule string) error {
	if s.MinAge == 0 {
		s.MinAge = time.Minute
	}
	if s.BatchSize == 0 {
		s.BatchSize = 100
	}

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(schedule, s.runOnce); err != nil {
		return err
	}
	s.scheduler.Start()
	s.Logger.Info().Str("schedule", schedule).Msg("assignment sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assigned, scanned, err := s.Sweep(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("assignment sweep failed")
		return
	}
	if scanned > 0 {
		s.Logger.Info().Int("scanned", scanned).Int("assigned", assigned).Msg("assignment sweep complete")
	}
}

// Sweep retries auto-assignment for one batch of unassigned tickets. A
// ticket that still has no available target is left for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (assigned int, scanned int, err error) {
	tickets, err := s.Store.UnassignedTickets(ctx, s.MinAge, s.BatchSize)
	if err != nil {
		return 0, 0, err
	}

	for i := range tickets {
		ok, err := s.Routing.AutoAssignTicket(ctx, &tickets[i])
		if err != nil {
			s.Logger.Error().Err(err).Str("ticket_id", tickets[i].ID).Msg("sweep assignment failed")
			continue
		}
		if ok {
			assigned++
		}
	}
	return assigned, len(tickets), nil
}
