package azure

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
)

var _ platform.Platform = (*Platform)(nil)

type Platform struct {
	credential    azcore.TokenCredential
	options       *arm.ClientOptions
	subscriptions *armsubscriptions.Client

	mu     sync.Mutex
	listed []domain.Subscription
}

func NewPlatform(credential azcore.TokenCredential, options *arm.ClientOptions) (*Platform, error) {
	factory, err := armsubscriptions.NewClientFactory(credential, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client factory: %w", err)
	}
	return &Platform{
		credential:    credential,
		options:       options,
		subscriptions: factory.NewClient(),
	}, nil
}

// Subscriptions lists the subscriptions visible to the credential. The
// result is cached for the lifetime of the platform.
func (p *Platform) Subscriptions(ctx context.Context) ([]domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listed != nil {
		return append([]domain.Subscription(nil), p.listed...), nil
	}

	var subs []domain.Subscription
	pager := p.subscriptions.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		for _, s := range page.Value {
			if s == nil {
				continue
			}
			subs = append(subs, domain.Subscription{
				ID:          deref(s.SubscriptionID),
				DisplayName: deref(s.DisplayName),
				TenantID:    deref(s.TenantID),
			})
		}
	}
	p.listed = subs
	return append([]domain.Subscription(nil), subs...), nil
}

// Open resolves a subscription by ID or display name and returns a session
// bound to it.
func (p *Platform) Open(ctx context.Context, subscription string) (platform.Session, error) {
	sub, err := platform.Resolve(ctx, p, subscription)
	if err != nil {
		return nil, err
	}
	factory, err := armnetwork.NewClientFactory(sub.ID, p.credential, p.options)
	if err != nil {
		return nil, fmt.Errorf("failed to create network client factory for %s: %w", sub, err)
	}
	return newSession(sub, factory), nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
