package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
)

var _ Platform = (*Fixed)(nil)

// Fixed pins every session to one subscription, the way the
// single-subscription variant works. Records naming another subscription
// are refused instead of being applied to the pinned one.
type Fixed struct {
	platform Platform
	sub      domain.Subscription
}

// NewFixed resolves subscription by ID or display name.
func NewFixed(ctx context.Context, p Platform, subscription string) (*Fixed, error) {
	sub, err := Resolve(ctx, p, subscription)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrSession, subscription, err)
	}
	return &Fixed{platform: p, sub: sub}, nil
}

func Resolve(ctx context.Context, d Directory, subscription string) (domain.Subscription, error) {
	if subscription == "" {
		return domain.Subscription{}, fmt.Errorf("no subscription given")
	}
	subs, err := d.Subscriptions(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	for _, s := range subs {
		if s.Matches(subscription) {
			return s, nil
		}
	}
	return domain.Subscription{}, fmt.Errorf("subscription %q is not accessible with the current credential", subscription)
}

func (f *Fixed) Subscription() domain.Subscription {
	return f.sub
}

func (f *Fixed) Subscriptions(_ context.Context) ([]domain.Subscription, error) {
	return []domain.Subscription{f.sub}, nil
}

// Open accepts an empty subscription, which single-subscription inventories
// may carry.
func (f *Fixed) Open(ctx context.Context, subscription string) (Session, error) {
	if strings.TrimSpace(subscription) != "" && !f.sub.Matches(subscription) {
		return nil, fmt.Errorf("subscription %q does not match the active subscription %s", subscription, f.sub)
	}
	return f.platform.Open(ctx, f.sub.ID)
}
