package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/rs/zerolog"
)

var _ platform.Session = (*session)(nil)

var ErrNoNetworkWatcher = errors.New("no network watcher in location")

// watcher identifies the network watcher that owns the flow logs of a
// location.
type watcher struct {
	resourceGroup string
	name          string
}

type session struct {
	sub      domain.Subscription
	flowLogs *armnetwork.FlowLogsClient
	watchers *armnetwork.WatchersClient

	mu         sync.Mutex
	byLocation map[string]watcher
}

func newSession(sub domain.Subscription, factory *armnetwork.ClientFactory) *session {
	return &session{
		sub:        sub,
		flowLogs:   factory.NewFlowLogsClient(),
		watchers:   factory.NewWatchersClient(),
		byLocation: make(map[string]watcher),
	}
}

func (s *session) Subscription() domain.Subscription {
	return s.sub
}

func (s *session) watcher(ctx context.Context, location string) (watcher, error) {
	location = strings.ToLower(location)

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.byLocation[location]; ok {
		return w, nil
	}

	pager := s.watchers.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return watcher{}, fmt.Errorf("failed to list network watchers: %w", err)
		}
		for _, nw := range page.Value {
			if nw == nil || !strings.EqualFold(deref(nw.Location), location) {
				continue
			}
			id, err := arm.ParseResourceID(deref(nw.ID))
			if err != nil {
				return watcher{}, fmt.Errorf("failed to parse network watcher ID: %w", err)
			}
			w := watcher{resourceGroup: id.ResourceGroupName, name: id.Name}
			s.byLocation[location] = w
			return w, nil
		}
	}
	return watcher{}, fmt.Errorf("%w %s of subscription %s", ErrNoNetworkWatcher, location, s.sub)
}

func (s *session) ListFlowLogs(ctx context.Context, location string) ([]domain.FlowLog, error) {
	w, err := s.watcher(ctx, location)
	if errors.Is(err, ErrNoNetworkWatcher) {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("location has no flow logs")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []domain.FlowLog
	pager := s.flowLogs.NewListPager(w.resourceGroup, w.name, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list flow logs of %s: %w", w.name, err)
		}
		for _, fl := range page.Value {
			if fl != nil {
				out = append(out, toDomainFlowLog(fl))
			}
		}
	}
	return out, nil
}

func (s *session) get(ctx context.Context, location, name string) (watcher, *armnetwork.FlowLog, error) {
	w, err := s.watcher(ctx, location)
	if err != nil {
		return watcher{}, nil, err
	}
	resp, err := s.flowLogs.Get(ctx, w.resourceGroup, w.name, name, nil)
	if err != nil {
		return watcher{}, nil, err
	}
	return w, &resp.FlowLog, nil
}

func (s *session) GetFlowLog(ctx context.Context, location, name string) (*domain.FlowLog, error) {
	_, raw, err := s.get(ctx, location, name)
	if err != nil {
		return nil, err
	}
	fl := toDomainFlowLog(raw)
	return &fl, nil
}

// SetFlowLog reads the current resource and overlays the mutable fields of
// flowLog on it, so anything the domain model does not carry survives the
// PUT unchanged.
func (s *session) SetFlowLog(ctx context.Context, flowLog domain.FlowLog, whatIf bool) error {
	w, raw, err := s.get(ctx, flowLog.Location, flowLog.Name)
	if err != nil {
		return err
	}
	applyFlowLog(raw, flowLog)

	if whatIf {
		zerolog.Ctx(ctx).Info().
			Str("flow_log", flowLog.Name).
			Bool("enabled", flowLog.Enabled).
			Str("ta_interval", flowLog.Interval().String()).
			Msg("what if: flow log would be updated")
		return nil
	}

	poller, err := s.flowLogs.BeginCreateOrUpdate(ctx, w.resourceGroup, w.name, flowLog.Name, *raw, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (s *session) DeleteFlowLog(ctx context.Context, location, name string, whatIf bool) error {
	if whatIf {
		if _, _, err := s.get(ctx, location, name); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Str("flow_log", name).Msg("what if: flow log would be deleted")
		return nil
	}

	w, err := s.watcher(ctx, location)
	if err != nil {
		return err
	}
	poller, err := s.flowLogs.BeginDelete(ctx, w.resourceGroup, w.name, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}
