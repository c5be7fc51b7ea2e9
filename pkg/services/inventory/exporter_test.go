package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	prod  = domain.Subscription{ID: "s1", DisplayName: "prod", TenantID: "t1"}
	dev   = domain.Subscription{ID: "s2", DisplayName: "dev", TenantID: "t1"}
	other = domain.Subscription{ID: "s3", DisplayName: "partner", TenantID: "t2"}
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestExport_ClassifiesAndNormalizes(t *testing.T) {
	p := memory.New(prod)
	p.Put("prod", domain.FlowLog{
		Name:             "fl-subnet",
		Location:         "westeurope",
		TargetResourceID: "/subscriptions/s1/resourceGroups/rg-net/providers/Microsoft.Network/virtualNetworks/hub/subnets/app",
		Enabled:          true,
		TrafficAnalytics: &domain.TrafficAnalytics{Enabled: true, Interval: domain.IntervalOf(10)},
	})
	p.Put("prod", domain.FlowLog{
		Name:             "fl-nsg",
		Location:         "westeurope",
		TargetResourceID: "/subscriptions/s1/resourceGroups/rg-sec/providers/Microsoft.Network/networkSecurityGroups/nsg1",
	})

	records, err := NewExporter(p).Export(testContext(t), "WestEurope", Scope{Subscriptions: []string{"prod"}})
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]domain.FlowLogRecord{}
	for _, r := range records {
		byName[r.Name] = r
	}
	assert.Equal(t, domain.FlowLogRecord{
		Name:               "fl-subnet",
		SubscriptionName:   "prod",
		Location:           "westeurope",
		ResourceGroup:      "rg-net",
		TargetResourceName: "app",
		TargetResourceType: domain.TargetSubnet,
		Status:             domain.StatusEnabled,
		TAInterval:         domain.IntervalOf(10),
	}, byName["fl-subnet"])
	assert.Equal(t, domain.FlowLogRecord{
		Name:               "fl-nsg",
		SubscriptionName:   "prod",
		Location:           "westeurope",
		ResourceGroup:      "rg-sec",
		TargetResourceName: "nsg1",
		TargetResourceType: domain.TargetNSG,
		Status:             domain.StatusDisabled,
	}, byName["fl-nsg"])
}

func TestExport_AllSubscriptionsOfTenant(t *testing.T) {
	p := memory.New(prod, dev, other)
	for _, sub := range []string{"prod", "partner"} {
		p.Put(sub, domain.FlowLog{
			Name:             "fl-" + sub,
			Location:         "eastus",
			TargetResourceID: "/subscriptions/x/resourceGroups/rg/providers/Microsoft.Network/networkInterfaces/nic",
		})
	}

	records, err := NewExporter(p).Export(testContext(t), "eastus", Scope{Tenant: "t1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fl-prod", records[0].Name)
	assert.Equal(t, []string{"prod", "dev"}, p.Opened())
}

func TestExport_MalformedTargetIsKeptAsUnknown(t *testing.T) {
	p := memory.New(prod)
	p.Put("prod", domain.FlowLog{Name: "odd", Location: "eastus", TargetResourceID: "nic1", Enabled: true})

	records, err := NewExporter(p).Export(testContext(t), "eastus", Scope{Subscriptions: []string{"s1"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TargetUnknown, records[0].TargetResourceType)
	assert.Equal(t, "nic1", records[0].TargetResourceName)
	assert.Empty(t, records[0].ResourceGroup)
}

func TestExport_Errors(t *testing.T) {
	p := memory.New(prod)

	_, err := NewExporter(p).Export(testContext(t), " ", Scope{})
	assert.ErrorIs(t, err, ErrLocationRequired)

	_, err = NewExporter(p).Export(testContext(t), "eastus", Scope{Subscriptions: []string{"nope"}})
	assert.ErrorIs(t, err, platform.ErrSession)
	assert.Contains(t, err.Error(), "nope")
}

type mockPlatform struct{ mock.Mock }

func (m *mockPlatform) Open(ctx context.Context, subscription string) (platform.Session, error) {
	args := m.Called(ctx, subscription)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(platform.Session), args.Error(1)
}

func (m *mockPlatform) Subscriptions(ctx context.Context) ([]domain.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Subscription), args.Error(1)
}

func TestExport_SubscriptionListingFails(t *testing.T) {
	p := new(mockPlatform)
	p.On("Subscriptions", mock.Anything).Return(nil, errors.New("AADSTS700082: token expired"))

	_, err := NewExporter(p).Export(testContext(t), "eastus", Scope{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
	p.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}
