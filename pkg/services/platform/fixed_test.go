package platform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	ctx := context.Background()
	p := memory.New(
		domain.Subscription{ID: "s1", DisplayName: "prod"},
		domain.Subscription{ID: "s2", DisplayName: "dev"},
	)

	fixed, err := platform.NewFixed(ctx, p, "PROD")
	require.NoError(t, err)
	assert.Equal(t, "s1", fixed.Subscription().ID)

	subs, err := fixed.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Subscription{{ID: "s1", DisplayName: "prod"}}, subs)

	for _, name := range []string{"", " ", "s1", "prod", "Prod"} {
		s, err := fixed.Open(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, "prod", s.Subscription().DisplayName)
	}

	_, err = fixed.Open(ctx, "dev")
	assert.ErrorContains(t, err, "does not match the active subscription prod")
	assert.Equal(t, []string{"prod", "prod", "prod", "prod", "prod"}, p.Opened())
}

func TestNewFixed_UnknownSubscription(t *testing.T) {
	p := memory.New(domain.Subscription{ID: "s1", DisplayName: "prod"})

	_, err := platform.NewFixed(context.Background(), p, "staging")
	assert.ErrorIs(t, err, platform.ErrSession)
	assert.ErrorContains(t, err, "not accessible")

	_, err = platform.NewFixed(context.Background(), p, "")
	assert.ErrorIs(t, err, platform.ErrSession)
}

type brokenDirectory struct{}

func (brokenDirectory) Subscriptions(context.Context) ([]domain.Subscription, error) {
	return nil, errors.New("token expired")
}

func TestResolve_DirectoryError(t *testing.T) {
	_, err := platform.Resolve(context.Background(), brokenDirectory{}, "prod")
	assert.ErrorContains(t, err, "token expired")
}
