package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/classifier"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/rs/zerolog"
)

var ErrLocationRequired = errors.New("location is required")

// Scope selects the subscriptions to export. Without explicit names every
// subscription the credential can see is used, optionally limited to one
// tenant.
type Scope struct {
	Subscriptions []string
	Tenant        string
}

type Exporter struct {
	platform platform.Platform
}

func NewExporter(p platform.Platform) *Exporter {
	return &Exporter{platform: p}
}

func (e *Exporter) Export(ctx context.Context, location string, scope Scope) ([]domain.FlowLogRecord, error) {
	logger := zerolog.Ctx(ctx)
	if strings.TrimSpace(location) == "" {
		return nil, ErrLocationRequired
	}
	location = strings.ToLower(location)

	subscriptions, err := e.subscriptions(ctx, scope)
	if err != nil {
		return nil, err
	}

	var records []domain.FlowLogRecord
	for _, sub := range subscriptions {
		session, err := e.platform.Open(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", platform.ErrSession, sub, err)
		}
		current := session.Subscription()

		flowLogs, err := session.ListFlowLogs(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("list flow logs of %s in %s: %w", current, location, err)
		}
		if len(flowLogs) == 0 {
			logger.Info().Str("subscription", current.String()).Str("location", location).
				Msg("no flow logs found, skipping subscription")
			continue
		}

		logger.Info().Str("subscription", current.String()).Int("flow_logs", len(flowLogs)).
			Msg("flow logs found")
		for _, fl := range flowLogs {
			records = append(records, toRecord(ctx, current, location, fl))
		}
	}
	return records, nil
}

func (e *Exporter) subscriptions(ctx context.Context, scope Scope) ([]string, error) {
	if len(scope.Subscriptions) > 0 {
		return scope.Subscriptions, nil
	}

	all, err := e.platform.Subscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	var names []string
	for _, s := range all {
		if scope.Tenant != "" && !strings.EqualFold(s.TenantID, scope.Tenant) {
			continue
		}
		names = append(names, s.ID)
	}
	return names, nil
}

func toRecord(ctx context.Context, sub domain.Subscription, location string, fl domain.FlowLog) domain.FlowLogRecord {
	record := domain.FlowLogRecord{
		Name:             fl.Name,
		SubscriptionName: sub.String(),
		Location:         location,
		Status:           domain.StatusFromEnabled(fl.Enabled),
		TAInterval:       fl.Interval(),
	}

	target, err := classifier.Classify(fl.TargetResourceID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("flow_log", fl.Name).Msg("cannot classify flow log target")
		record.TargetResourceType = domain.TargetUnknown
		record.TargetResourceName = fl.TargetResourceID
		return record
	}

	record.ResourceGroup = target.ResourceGroup
	record.TargetResourceName = target.Name
	record.TargetResourceType = target.Type
	return record
}
