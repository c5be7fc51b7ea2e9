package reconcile

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidStatus = errors.New("invalid status")
	ErrSession       = platform.ErrSession
)

var (
	errNoInterval         = errors.New("no traffic analytics interval given")
	errNoTrafficAnalytics = errors.New("traffic analytics is not configured on this flow log")
)

// Filter narrows the desired state to the scopes a run may touch. Empty
// fields match everything.
type Filter struct {
	Subscriptions []string
	Location      string
	WhatIf        bool
}

func (f Filter) includesLocation(location string) bool {
	return f.Location == "" || strings.EqualFold(f.Location, location)
}

// subscriptionFilter matches the subscription column of a record against
// the filter entries by ID or display name, whichever form either side uses.
type subscriptionFilter struct {
	names    []string
	resolved []domain.Subscription
}

// resolveSubscriptions looks the filter entries up in the directory when the
// opener provides one. Entries it does not know are still compared by name.
func (r *Reconciler) resolveSubscriptions(ctx context.Context, names []string) (subscriptionFilter, error) {
	sf := subscriptionFilter{names: names}
	dir, ok := r.opener.(platform.Directory)
	if !ok || len(names) == 0 {
		return sf, nil
	}

	all, err := dir.Subscriptions(ctx)
	if err != nil {
		return sf, fmt.Errorf("list subscriptions: %w", err)
	}
	for _, name := range names {
		found := false
		for _, s := range all {
			if s.Matches(name) {
				sf.resolved = append(sf.resolved, s)
				found = true
			}
		}
		if !found {
			zerolog.Ctx(ctx).Warn().Str("subscription", name).Msg("subscription filter matches no accessible subscription")
		}
	}
	return sf, nil
}

func (sf subscriptionFilter) includes(name string) bool {
	if len(sf.names) == 0 {
		return true
	}
	for _, n := range sf.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	for _, s := range sf.resolved {
		if s.Matches(name) {
			return true
		}
	}
	return false
}

// Partition is one (subscription, location) unit of work.
type Partition struct {
	Subscription domain.Subscription
	Location     string
	Records      int
	Duration     time.Duration
}

// PartitionHandler receives the reports of a partition once every worker
// of that partition has finished, before the next partition starts.
type PartitionHandler func(ctx context.Context, p Partition, reports []domain.ActionReport) error

type Config struct {
	// Parallelism bounds the workers of a partition. Zero means one worker
	// per CPU.
	Parallelism int
	OnPartition PartitionHandler
}

type Reconciler struct {
	opener      platform.Opener
	parallelism int
	onPartition PartitionHandler
}

func NewReconciler(opener platform.Opener, cfg Config) *Reconciler {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &Reconciler{
		opener:      opener,
		parallelism: parallelism,
		onPartition: cfg.OnPartition,
	}
}

type group struct {
	subscription string
	records      []domain.FlowLogRecord
}

// groupBySubscription keeps groups in order of first appearance.
func groupBySubscription(records []domain.FlowLogRecord) []*group {
	var groups []*group
	byName := make(map[string]*group)
	for _, r := range records {
		g, ok := byName[r.SubscriptionName]
		if !ok {
			g = &group{subscription: r.SubscriptionName}
			byName[r.SubscriptionName] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}
	return groups
}

type locationGroup struct {
	location string
	records  []domain.FlowLogRecord
}

// groupByLocation splits the records of one subscription into partitions
// per lowercased location, in order of first appearance.
func groupByLocation(records []domain.FlowLogRecord) []*locationGroup {
	var groups []*locationGroup
	byLocation := make(map[string]*locationGroup)
	for _, r := range records {
		key := strings.ToLower(r.Location)
		g, ok := byLocation[key]
		if !ok {
			g = &locationGroup{location: key}
			byLocation[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}
	return groups
}

func validate(records []domain.FlowLogRecord) error {
	for _, r := range records {
		if !r.Status.Valid() {
			return fmt.Errorf("%w %q for flow log %s: expected one of %s, %s, %s, %s",
				ErrInvalidStatus, r.Status, r.Name,
				domain.StatusEnabled, domain.StatusDisabled, domain.StatusDeleted, domain.StatusUpdated)
		}
	}
	return nil
}

// Reconcile converges live flow logs towards desired. On a fatal error the
// reports of the partitions completed so far are returned with it.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	desired []domain.FlowLogRecord,
	filter Filter,
) ([]domain.ActionReport, error) {
	logger := zerolog.Ctx(ctx)
	collector := &Collector{}

	subscriptions, err := r.resolveSubscriptions(ctx, filter.Subscriptions)
	if err != nil {
		return nil, err
	}

	for _, g := range groupBySubscription(desired) {
		if !subscriptions.includes(g.subscription) {
			logger.Debug().Str("subscription", g.subscription).Msg("subscription filtered out, skipping")
			continue
		}

		session, err := r.opener.Open(ctx, g.subscription)
		if err != nil {
			return collector.Reports(), fmt.Errorf("%w %q: %w", ErrSession, g.subscription, err)
		}

		var records []domain.FlowLogRecord
		for _, rec := range g.records {
			if filter.includesLocation(rec.Location) {
				records = append(records, rec)
			}
		}
		if len(records) == 0 {
			logger.Info().
				Str("subscription", session.Subscription().String()).
				Str("location", filter.Location).
				Msg("no flow logs to process")
			continue
		}

		if err := validate(records); err != nil {
			return collector.Reports(), err
		}

		for _, l := range groupByLocation(records) {
			p := Partition{
				Subscription: session.Subscription(),
				Location:     l.location,
				Records:      len(l.records),
			}
			reports := r.run(ctx, session, l.records, filter.WhatIf, &p)
			for _, rep := range reports {
				collector.Add(rep)
			}

			if r.onPartition != nil {
				if err := r.onPartition(ctx, p, reports); err != nil {
					return collector.Reports(), err
				}
			}
		}
	}

	return collector.Reports(), nil
}

// run processes one partition on a bounded pool and blocks until every
// record has a report.
func (r *Reconciler) run(
	ctx context.Context,
	session platform.Session,
	records []domain.FlowLogRecord,
	whatIf bool,
	p *Partition,
) []domain.ActionReport {
	logger := zerolog.Ctx(ctx).With().Str("subscription", p.Subscription.String()).Str("location", p.Location).Logger()
	logger.Info().Int("records", len(records)).Int("workers", r.parallelism).Bool("what_if", whatIf).
		Msg("reconciling flow logs")

	start := time.Now()
	collector := &Collector{}

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for _, rec := range records {
		g.Go(func() error {
			report := apply(ctx, session, rec, whatIf)
			logger.Debug().Str("flow_log", rec.Name).Str("action", string(report.Action)).Msg("record processed")
			collector.Add(report)
			return nil
		})
	}
	_ = g.Wait()

	p.Duration = time.Since(start)
	return collector.Reports()
}

// apply drives one desired record through the state machine. It never
// returns an error: every platform failure becomes a Failed report.
func apply(ctx context.Context, session platform.Session, record domain.FlowLogRecord, whatIf bool) domain.ActionReport {
	found, err := session.GetFlowLog(ctx, record.Location, record.Name)
	if err != nil {
		return domain.FailedWith(record, domain.VerbGet, err)
	}
	live := *found

	switch record.Status {
	case domain.StatusEnabled:
		if live.Enabled {
			return domain.Succeeded(record, domain.ActionAlreadyEnabled)
		}
		live.Enabled = true
		if err := session.SetFlowLog(ctx, live, whatIf); err != nil {
			return domain.FailedWith(record, domain.VerbEnable, err)
		}
		return domain.Succeeded(record, domain.ActionEnabled)

	case domain.StatusDisabled:
		if !live.Enabled {
			return domain.Succeeded(record, domain.ActionAlreadyDisabled)
		}
		live.Enabled = false
		if err := session.SetFlowLog(ctx, live, whatIf); err != nil {
			return domain.FailedWith(record, domain.VerbDisable, err)
		}
		return domain.Succeeded(record, domain.ActionDisabled)

	case domain.StatusDeleted:
		if err := session.DeleteFlowLog(ctx, record.Location, record.Name, whatIf); err != nil {
			return domain.FailedWith(record, domain.VerbDelete, err)
		}
		return domain.Succeeded(record, domain.ActionDeleted)

	case domain.StatusUpdated:
		if !record.TAInterval.Set {
			return domain.FailedWith(record, domain.VerbUpdate, errNoInterval)
		}
		if live.TrafficAnalytics == nil {
			return domain.FailedWith(record, domain.VerbUpdate, errNoTrafficAnalytics)
		}
		ta := *live.TrafficAnalytics
		ta.Interval = record.TAInterval
		live.TrafficAnalytics = &ta
		if err := session.SetFlowLog(ctx, live, whatIf); err != nil {
			return domain.FailedWith(record, domain.VerbUpdate, err)
		}
		return domain.Succeeded(record, domain.ActionUpdated)
	}

	// validate rejects every other status before any record is dispatched.
	panic(fmt.Sprintf("reconcile: unvalidated status %q for flow log %s", record.Status, record.Name))
}
