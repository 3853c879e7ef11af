/**
 * @description
 * Cron scheduler for background payroll maintenance:
 * - refreshing FX rates on draft batches whose snapshot is not locked, so the
 *   numbers preparers see stay close to market without a manual recalculation
 * - nudging approvers on batches that have sat in the approval queue past the
 *   reminder threshold
 *
 * Jobs only touch batches whose state permits the action; a batch holding a
 * live FX lock is left alone.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/geniehr/payroll-service/internal/domain"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	service *Service

	fxRefreshSchedule        string
	approvalReminderSchedule string
	reminderAfter            time.Duration
}

// NewScheduler creates a scheduler around the payroll service. Schedules use
// standard cron expressions; an empty schedule disables that job.
func NewScheduler(service *Service, fxRefreshSchedule, approvalReminderSchedule string, reminderAfter time.Duration) *Scheduler {
	return &Scheduler{
		cron:                     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		service:                  service,
		fxRefreshSchedule:        fxRefreshSchedule,
		approvalReminderSchedule: approvalReminderSchedule,
		reminderAfter:            reminderAfter,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if s.fxRefreshSchedule != "" {
		if _, err := s.cron.AddFunc(s.fxRefreshSchedule, s.runFXRefresh); err != nil {
			log.Printf("level=error component=scheduler msg=\"failed to schedule fx refresh job\" schedule=%q err=%v", s.fxRefreshSchedule, err)
		} else {
			log.Printf("level=info component=scheduler msg=\"scheduled fx refresh job\" schedule=%q", s.fxRefreshSchedule)
		}
	}

	if s.approvalReminderSchedule != "" {
		if _, err := s.cron.AddFunc(s.approvalReminderSchedule, s.runApprovalReminders); err != nil {
			log.Printf("level=error component=scheduler msg=\"failed to schedule approval reminder job\" schedule=%q err=%v", s.approvalReminderSchedule, err)
		} else {
			log.Printf("level=info component=scheduler msg=\"scheduled approval reminder job\" schedule=%q", s.approvalReminderSchedule)
		}
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runFXRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	refreshed, err := s.service.RefreshDraftSnapshots(ctx)
	if err != nil {
		log.Printf("level=error component=scheduler job=fx_refresh msg=\"job failed\" err=%v", err)
		return
	}
	log.Printf("level=info component=scheduler job=fx_refresh msg=\"job finished\" refreshed=%d", refreshed)
}

func (s *Scheduler) runApprovalReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	reminded, err := s.service.RemindStaleApprovals(ctx, s.reminderAfter)
	if err != nil {
		log.Printf("level=error component=scheduler job=approval_reminder msg=\"job failed\" err=%v", err)
		return
	}
	log.Printf("level=info component=scheduler job=approval_reminder msg=\"job finished\" reminded=%d", reminded)
}

// RefreshDraftSnapshots recalculates FX rates on every draft batch whose
// snapshot is not under a live lock. Returns the number of batches refreshed.
func (s *Service) RefreshDraftSnapshots(ctx context.Context) (int, error) {
	batches, err := s.repo.ListBatchesByStatus(ctx, domain.BatchDraft)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for i := range batches {
		batch := &batches[i]
		if len(batch.Payees) == 0 {
			continue
		}
		if _, err := s.RecalculateFX(ctx, batch.ID, ""); err != nil {
			// A live lock or a provider outage on one batch must not stop
			// the sweep.
			log.Printf("level=warn component=scheduler job=fx_refresh msg=\"batch skipped\" batch_id=%s err=%v", batch.ID, err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// RemindStaleApprovals sends a reminder for every batch that has been awaiting
// approval longer than the threshold. Returns the number of reminders sent.
func (s *Service) RemindStaleApprovals(ctx context.Context, olderThan time.Duration) (int, error) {
	batches, err := s.repo.ListBatchesByStatus(ctx, domain.BatchAwaitingApproval)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-olderThan)
	reminded := 0
	for i := range batches {
		batch := &batches[i]
		if batch.UpdatedAt.After(cutoff) {
			continue
		}
		if _, err := s.Remind(ctx, batch.ID, ""); err != nil {
			log.Printf("level=warn component=scheduler job=approval_reminder msg=\"reminder failed\" batch_id=%s err=%v", batch.ID, err)
			continue
		}
		reminded++
	}
	return reminded, nil
}
