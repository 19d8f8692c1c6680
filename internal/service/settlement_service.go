package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// Archiver stores a durable copy of a settlement receipt.
type Archiver interface {
	Archive(ctx context.Context, s domain.Settlement) error
}

// Notifier tells operators about settlement results and failed cycles.
type Notifier interface {
	NotifySettlement(ctx context.Context, s domain.Settlement) error
	NotifyCycleError(ctx context.Context, err error) error
}

// SettlementDeps lists the journal sinks. Every field is optional.
type SettlementDeps struct {
	Store    domain.SettlementStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Channel  string
	Stream   string
	Archiver Archiver
	Notifier Notifier
}

// SettlementService journals every settlement result to whichever sinks are
// configured. A failing sink never stops the others.
type SettlementService struct {
	deps   SettlementDeps
	logger *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(deps SettlementDeps, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		deps:   deps,
		logger: logger.With(slog.String("component", "settlement_service")),
	}
}

type settlementEvent struct {
	Event string `json:"event"`
	domain.SettlementRecord
}

// Record persists, publishes, archives and announces s. The returned error
// joins the failures of individual sinks.
func (s *SettlementService) Record(ctx context.Context, st domain.Settlement) error {
	var errs []error
	d := s.deps

	if d.Store != nil {
		if err := d.Store.Insert(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}

	if d.Bus != nil {
		payload, err := json.Marshal(settlementEvent{Event: "settlement", SettlementRecord: st.Record()})
		if err != nil {
			errs = append(errs, fmt.Errorf("settlement_service: marshal event: %w", err))
		} else {
			if d.Channel != "" {
				if err := d.Bus.Publish(ctx, d.Channel, payload); err != nil {
					errs = append(errs, err)
				}
			}
			if d.Stream != "" {
				if err := d.Bus.StreamAppend(ctx, d.Stream, payload); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	if d.Archiver != nil && st.Status == domain.SettlementConfirmed {
		if err := d.Archiver.Archive(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}

	if d.Notifier != nil {
		if err := d.Notifier.NotifySettlement(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.WarnContext(ctx, "settlement journal incomplete",
			slog.Uint64("market_id", st.MarketID),
			slog.String("status", string(st.Status)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// RecordCycleError writes an audit row and alerts operators about a cycle
// that could not scan.
func (s *SettlementService) RecordCycleError(ctx context.Context, cycleErr error) error {
	var errs []error
	if s.deps.Audit != nil {
		if err := s.deps.Audit.Log(ctx, "cycle_error", map[string]any{"error": cycleErr.Error()}); err != nil {
			errs = append(errs, err)
		}
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyCycleError(ctx, cycleErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
