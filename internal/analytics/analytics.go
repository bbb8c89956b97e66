// Package analytics aggregates moderation activity for reporting commands.
package analytics

import (
	"context"
	"time"

	"warden/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total         int
	ByKind        []storage.KindCount
	TopModerators []storage.ModeratorCount
	Since         time.Time
}

// ModerationReport summarizes ledger activity in a guild since the given
// time. A zero since covers everything.
func (s *Service) ModerationReport(ctx context.Context, guildID string, since time.Time) (Report, error) {
	report := Report{Since: since}

	total, err := s.store.CountActionsSince(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}
	report.Total = total

	if report.ByKind, err = s.store.CountByKindSince(ctx, guildID, since); err != nil {
		return Report{}, err
	}
	if report.TopModerators, err = s.store.TopModeratorsSince(ctx, guildID, since, 5); err != nil {
		return Report{}, err
	}
	return report, nil
}

// AuditReport counts audit-log entries by level, as shown by the report
// command.
func (s *Service) AuditReport(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return nil, err
	}
	byLevel := make(map[string]int)
	for _, log := range logs {
		byLevel[log.Level]++
	}
	return byLevel, nil
}
