/*
Copyright 2025 Outbound Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package relay

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outboundlabs/relay/database"
	"github.com/outboundlabs/relay/model"
)

// PacingLimits bound how fast the bulk processor drains the backlog.
// Unlike the quota enforcer's calendar buckets, these are rolling windows
// measured backwards from now.
type PacingLimits struct {
	Hourly    int
	Daily     int
	Weekly    int
	MinDelay  time.Duration
	PollEvery time.Duration
}

// AddResult reports how a batch load went: contacts inserted versus
// contacts skipped as duplicates of a live backlog entry.
type AddResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// ProcessorStats is a point-in-time snapshot of the backlog and the
// processor's rolling send windows.
type ProcessorStats struct {
	Queued       int64     `json:"queued"`
	Processing   int64     `json:"processing"`
	Completed    int64     `json:"completed"`
	Failed       int64     `json:"failed"`
	SentThisHour int        `json:"sent_this_hour"`
	SentToday    int        `json:"sent_today"`
	SentThisWeek int        `json:"sent_this_week"`
	LastSentAt   *time.Time `json:"last_sent_at,omitempty"`
	Paused       bool       `json:"paused"`
}

// BulkProcessor drains the queued-contact backlog one contact at a time,
// highest static priority first, at a pace bounded by rolling hourly,
// daily and weekly windows plus a minimum inter-send delay. Backlog state
// lives in postgres; the send-time log lives in memory, so pacing resets
// on restart, which only ever errs on the slow side.
type BulkProcessor struct {
	datasource database.IDataSource
	limits     PacingLimits

	mutex        sync.Mutex
	sentLog      []time.Time
	paused       bool
	running      bool
	stopChan     chan struct{}
	doneChan     chan struct{}
	timeProvider func() time.Time
}

func NewBulkProcessor(db database.IDataSource, limits PacingLimits) *BulkProcessor {
	return &BulkProcessor{
		datasource:   db,
		limits:       limits,
		timeProvider: time.Now,
	}
}

// AddContacts loads a batch into the backlog. Each contact is validated and
// deduplicated case-insensitively against live backlog entries and against
// earlier contacts in the same batch; duplicates are counted as skipped,
// never treated as errors. Invalid entries fail the whole batch.
func (p *BulkProcessor) AddContacts(ctx context.Context, requests []model.NewContactRequest) (*AddResult, error) {
	result := &AddResult{}
	seen := make(map[string]bool)

	for _, req := range requests {
		if err := req.Validate(); err != nil {
			return nil, err
		}

		email := model.NormalizeEmail(req.Email)
		if seen[email] {
			result.Skipped++
			continue
		}
		seen[email] = true

		exists, err := p.datasource.QueuedEmailExists(ctx, email)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Skipped++
			continue
		}

		contact := &model.QueuedContact{
			ContactID:           model.GenerateUUIDWithSuffix("cnt"),
			Email:               email,
			Name:                req.Name,
			Company:             req.Company,
			JobTitle:            req.JobTitle,
			Source:              req.Source,
			StaticPriorityScore: model.StaticPriorityScore(req.JobTitle, req.Company),
			Status:              model.ContactStatusQueued,
			QueuedAt:            time.Now(),
		}
		if _, err := p.datasource.RecordQueuedContact(ctx, contact); err != nil {
			return nil, err
		}
		result.Added++
	}

	return result, nil
}

// CanProcessNow reports whether the next contact may be processed right
// now. When it may not, the returned reason names the first gate that
// blocked, checked in a fixed order: pause flag, empty backlog, hourly
// window, daily window, weekly window, minimum delay since the last send.
func (p *BulkProcessor) CanProcessNow(ctx context.Context) (bool, string, error) {
	p.mutex.Lock()
	paused := p.paused
	p.mutex.Unlock()
	if paused {
		return false, "processing is paused", nil
	}

	counts, err := p.datasource.CountContactsByStatus(ctx)
	if err != nil {
		return false, "", err
	}
	if counts[model.ContactStatusQueued] == 0 {
		return false, "backlog is empty", nil
	}

	now := p.timeProvider()
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.pruneSentLog(now)

	if p.limits.Hourly > 0 && p.sentSince(now.Add(-time.Hour)) >= p.limits.Hourly {
		return false, "hourly pacing limit reached", nil
	}
	if p.limits.Daily > 0 && p.sentSince(now.Add(-24*time.Hour)) >= p.limits.Daily {
		return false, "daily pacing limit reached", nil
	}
	if p.limits.Weekly > 0 && p.sentSince(now.Add(-7*24*time.Hour)) >= p.limits.Weekly {
		return false, "weekly pacing limit reached", nil
	}
	if last := p.lastSent(); !last.IsZero() && now.Sub(last) < p.limits.MinDelay {
		return false, "minimum delay between sends not yet elapsed", nil
	}
	return true, "", nil
}

// ProcessOne takes the highest-priority queued contact through one
// workflow run. The QUEUED -> PROCESSING claim is a guarded update, so two
// competing processors can never both run the same contact. The outcome is
// recorded durably as COMPLETED or FAILED before ProcessOne returns.
//
// When nothing was processed the returned contact is nil and the reason
// says why (a pacing gate, or a concurrent claim on the same contact).
func (p *BulkProcessor) ProcessOne(ctx context.Context, handler WorkflowHandler) (*model.QueuedContact, string, error) {
	ok, reason, err := p.CanProcessNow(ctx)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, reason, nil
	}

	contact, err := p.datasource.GetNextQueuedContact(ctx)
	if err != nil {
		return nil, "", err
	}
	if contact == nil {
		return nil, "backlog is empty", nil
	}

	claimed, err := p.datasource.UpdateContactStatus(ctx, contact.ContactID,
		model.ContactStatusQueued, model.ContactStatusProcessing, "")
	if err != nil {
		return nil, "", err
	}
	if !claimed {
		return nil, "contact claimed by another processor", nil
	}
	contact.Status = model.ContactStatusProcessing

	if handlerErr := handler(ctx, contact); handlerErr != nil {
		if _, err := p.datasource.UpdateContactStatus(ctx, contact.ContactID,
			model.ContactStatusProcessing, model.ContactStatusFailed, handlerErr.Error()); err != nil {
			return nil, "", err
		}
		contact.Status = model.ContactStatusFailed
		contact.ErrorMessage = handlerErr.Error()
		return contact, "", nil
	}

	if _, err := p.datasource.UpdateContactStatus(ctx, contact.ContactID,
		model.ContactStatusProcessing, model.ContactStatusCompleted, ""); err != nil {
		return nil, "", err
	}
	contact.Status = model.ContactStatusCompleted

	p.mutex.Lock()
	p.sentLog = append(p.sentLog, p.timeProvider())
	p.mutex.Unlock()
	return contact, "", nil
}

// Start runs the drain loop in a background goroutine, attempting one
// contact per poll interval. It is a no-op when the loop is already
// running.
func (p *BulkProcessor) Start(ctx context.Context, handler WorkflowHandler) {
	p.mutex.Lock()
	if p.running {
		p.mutex.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	stopChan, doneChan := p.stopChan, p.doneChan
	p.mutex.Unlock()

	go func() {
		defer close(doneChan)
		ticker := time.NewTicker(p.limits.PollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				contact, reason, err := p.ProcessOne(ctx, handler)
				if err != nil {
					logrus.Errorf("bulk processor: %v", err)
					continue
				}
				if contact != nil {
					logrus.Infof("bulk processor: %s contact %s (%s)", contact.Status, contact.ContactID, contact.Email)
				} else if reason != "" {
					logrus.Debugf("bulk processor idle: %s", reason)
				}
			}
		}
	}()
}

// Stop signals the drain loop and waits for it to exit. A contact already
// in flight finishes; no new one starts.
func (p *BulkProcessor) Stop() {
	p.mutex.Lock()
	if !p.running {
		p.mutex.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	doneChan := p.doneChan
	p.mutex.Unlock()
	<-doneChan
}

// SetPaused toggles the pause flag without tearing down the loop.
func (p *BulkProcessor) SetPaused(paused bool) {
	p.mutex.Lock()
	p.paused = paused
	p.mutex.Unlock()
}

func (p *BulkProcessor) Paused() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.paused
}

// Stats snapshots backlog counts and the rolling send windows.
func (p *BulkProcessor) Stats(ctx context.Context) (*ProcessorStats, error) {
	counts, err := p.datasource.CountContactsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	now := p.timeProvider()
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.pruneSentLog(now)

	var lastSentAt *time.Time
	if last := p.lastSent(); !last.IsZero() {
		lastSentAt = &last
	}

	return &ProcessorStats{
		Queued:       counts[model.ContactStatusQueued],
		Processing:   counts[model.ContactStatusProcessing],
		Completed:    counts[model.ContactStatusCompleted],
		Failed:       counts[model.ContactStatusFailed],
		SentThisHour: p.sentSince(now.Add(-time.Hour)),
		SentToday:    p.sentSince(now.Add(-24 * time.Hour)),
		SentThisWeek: p.sentSince(now.Add(-7 * 24 * time.Hour)),
		LastSentAt:   lastSentAt,
		Paused:       p.paused,
	}, nil
}

// pruneSentLog drops entries older than the widest window. Callers hold
// the mutex.
func (p *BulkProcessor) pruneSentLog(now time.Time) {
	cutoff := now.Add(-7 * 24 * time.Hour)
	kept := p.sentLog[:0]
	for _, t := range p.sentLog {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.sentLog = kept
}

func (p *BulkProcessor) sentSince(cutoff time.Time) int {
	count := 0
	for _, t := range p.sentLog {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

func (p *BulkProcessor) lastSent() time.Time {
	if len(p.sentLog) == 0 {
		return time.Time{}
	}
	return p.sentLog[len(p.sentLog)-1]
}
