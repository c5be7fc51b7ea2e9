package terminal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/azure"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform/memory"
	"github.com/de-tools/flowlog-atlas/pkg/services/reconcile"
	"github.com/de-tools/flowlog-atlas/pkg/store/csv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nicID    = "/subscriptions/s1/resourceGroups/rg-app/providers/Microsoft.Network/networkInterfaces/vm1-nic"
	subnetID = "/subscriptions/s1/resourceGroups/rg-net/providers/Microsoft.Network/virtualNetworks/vnet-a/subnets/snet-a"
	nsgID    = "/subscriptions/s1/resourceGroups/rg-net/providers/Microsoft.Network/networkSecurityGroups/nsg-a"
	vnetID   = "/subscriptions/s2/resourceGroups/rg-dev/providers/Microsoft.Network/virtualNetworks/vnet-dev"
)

type fixture struct {
	platform *memory.Platform
	out      bytes.Buffer
	logs     bytes.Buffer
	dir      string
	tenants  []string
	profile  *azure.Config
}

func newFixture(t *testing.T) *fixture {
	t.Setenv("HOME", t.TempDir())

	p := memory.New(
		domain.Subscription{ID: "s1", DisplayName: "prod", TenantID: "t1"},
		domain.Subscription{ID: "s2", DisplayName: "dev", TenantID: "t2"},
	)
	withTA := func(minutes int) *domain.TrafficAnalytics {
		return &domain.TrafficAnalytics{Enabled: true, WorkspaceID: "ws", Interval: domain.IntervalOf(minutes)}
	}
	p.Put("s1", domain.FlowLog{Name: "fl1", Location: "westeurope", TargetResourceID: nicID, Enabled: true, TrafficAnalytics: withTA(60)})
	p.Put("s1", domain.FlowLog{Name: "fl2", Location: "westeurope", TargetResourceID: subnetID, Enabled: true, TrafficAnalytics: withTA(60)})
	p.Put("s1", domain.FlowLog{Name: "fl3", Location: "westeurope", TargetResourceID: nsgID, Enabled: false})
	p.Put("s2", domain.FlowLog{Name: "fl4", Location: "westeurope", TargetResourceID: vnetID, Enabled: true, TrafficAnalytics: withTA(10)})
	p.Put("s2", domain.FlowLog{Name: "fl5", Location: "northeurope", TargetResourceID: vnetID, Enabled: true})

	return &fixture{
		platform: p,
		dir:      t.TempDir(),
		profile:  &azure.Config{Profile: "default", SubscriptionID: "s1", TenantID: "t1"},
	}
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := f.path(name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) run(args ...string) error {
	f.out.Reset()
	cli := NewCLI(Options{
		Connect: func(_ context.Context, tenant string) (platform.Platform, error) {
			f.tenants = append(f.tenants, tenant)
			return f.platform, nil
		},
		Profile: func(profile string) (*azure.Config, error) {
			if f.profile == nil {
				return nil, errors.New("no Azure config")
			}
			return f.profile, nil
		},
		Output:    &f.out,
		LogOutput: &f.logs,
	})
	return cli.ExecuteContext(context.Background(), args...)
}

func TestMulti_Export(t *testing.T) {
	f := newFixture(t)
	out := f.path("inventory.csv")

	require.NoError(t, f.run("multi", "--export", "--location", "WestEurope", "--csv", out))

	records, err := csv.ReadFile(out, csv.SchemaMulti)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.FlowLogRecord{
		{Name: "fl1", SubscriptionName: "prod", Location: "westeurope", ResourceGroup: "rg-app", TargetResourceName: "vm1-nic",
			TargetResourceType: domain.TargetNIC, Status: domain.StatusEnabled, TAInterval: domain.IntervalOf(60)},
		{Name: "fl2", SubscriptionName: "prod", Location: "westeurope", ResourceGroup: "rg-net", TargetResourceName: "snet-a",
			TargetResourceType: domain.TargetSubnet, Status: domain.StatusEnabled, TAInterval: domain.IntervalOf(60)},
		{Name: "fl3", SubscriptionName: "prod", Location: "westeurope", ResourceGroup: "rg-net", TargetResourceName: "nsg-a",
			TargetResourceType: domain.TargetNSG, Status: domain.StatusDisabled},
		{Name: "fl4", SubscriptionName: "dev", Location: "westeurope", ResourceGroup: "rg-dev", TargetResourceName: "vnet-dev",
			TargetResourceType: domain.TargetVNet, Status: domain.StatusEnabled, TAInterval: domain.IntervalOf(10)},
	}, records)

	assert.Contains(t, f.out.String(), "Flow logs in westeurope")
	assert.Contains(t, f.out.String(), "4 flow log(s)")
}

func TestMulti_ExportTenantScope(t *testing.T) {
	f := newFixture(t)
	out := f.path("inventory.csv")

	require.NoError(t, f.run("multi", "--export", "--location", "westeurope", "--tenant", "t2", "--csv", out))
	assert.Equal(t, []string{"t2"}, f.tenants)

	records, err := csv.ReadFile(out, csv.SchemaMulti)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fl4", records[0].Name)
}

func TestMulti_ImportWithHistory(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "desired.csv", strings.Join([]string{
		"Name;SubscriptionName;Location;ResourceGroup;TargetResourceName;TargetResourceType;Status;TAInterval",
		"fl1;prod;westeurope;rg-app;vm1-nic;NIC;Disabled;60",
		"fl2;prod;westeurope;rg-net;snet-a;Subnet;Updated;10",
		"fl3;prod;westeurope;rg-net;nsg-a;NSG;Deleted;N/A",
		"fl4;dev;westeurope;rg-dev;vnet-dev;VNet;Enabled;10",
		"fl9;dev;westeurope;rg-dev;vnet-dev;VNet;Enabled;10",
	}, "\n"))
	db := f.path("history.db")

	require.NoError(t, f.run("--no-color", "multi", "--import", "--csv", in, "--history-db", db, "--parallelism", "2"))

	out := f.out.String()
	assert.Contains(t, out, "prod / westeurope: 3 flow log(s)")
	assert.Contains(t, out, "Disabled: 1, Deleted: 1, Updated: 1")
	assert.Contains(t, out, "Ignored (already enabled): 1, Failed: 1")
	assert.Contains(t, out, `failed to get: flow log "fl9" not found in westeurope`)

	fl1, _ := f.platform.FlowLog("prod", "westeurope", "fl1")
	assert.False(t, fl1.Enabled)
	fl2, _ := f.platform.FlowLog("prod", "westeurope", "fl2")
	assert.Equal(t, domain.IntervalOf(10), fl2.Interval())
	_, ok := f.platform.FlowLog("prod", "westeurope", "fl3")
	assert.False(t, ok)

	require.NoError(t, f.run("history", "--history-db", db))
	history := f.out.String()
	assert.Contains(t, history, "| multi   | import |")
	assert.Contains(t, history, "1 run(s)")

	runID := regexp.MustCompile(`run_id=(\S+)`).FindStringSubmatch(f.logs.String())
	require.Len(t, runID, 2)
	require.NoError(t, f.run("history", "--history-db", db, "--run", runID[1]))
	assert.Contains(t, f.out.String(), "Run "+runID[1])
	assert.Contains(t, f.out.String(), "Disabled: 1, Deleted: 1, Updated: 1, Ignored (already enabled): 1, Failed: 1")
}

func TestMulti_ImportSubscriptionFilter(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "desired.csv", strings.Join([]string{
		"Name,SubscriptionName,Location,ResourceGroup,TargetResourceName,TargetResourceType,Status,TAInterval",
		"fl1,prod,westeurope,rg-app,vm1-nic,NIC,Disabled,60",
		"fl4,dev,westeurope,rg-dev,vnet-dev,VNet,Disabled,10",
	}, "\n"))

	require.NoError(t, f.run("multi", "--import", "--csv", in, "--subscription", "dev", "--location", "westeurope"))

	assert.Equal(t, []string{"dev"}, f.platform.Opened())
	fl1, _ := f.platform.FlowLog("prod", "westeurope", "fl1")
	assert.True(t, fl1.Enabled)
	fl4, _ := f.platform.FlowLog("dev", "westeurope", "fl4")
	assert.False(t, fl4.Enabled)
	assert.Contains(t, f.out.String(), "dev / westeurope: 1 flow log(s)")
}

func TestMulti_ImportSubscriptionFilterByID(t *testing.T) {
	f := newFixture(t)
	out := f.path("inventory.csv")
	require.NoError(t, f.run("multi", "--export", "--location", "westeurope", "--csv", out))

	records, err := csv.ReadFile(out, csv.SchemaMulti)
	require.NoError(t, err)
	for i := range records {
		records[i].Status = domain.StatusDisabled
	}
	require.NoError(t, csv.WriteFile(out, csv.SchemaMulti, records))

	require.NoError(t, f.run("multi", "--import", "--csv", out, "--subscription", "s2"))

	assert.Contains(t, f.out.String(), "dev / westeurope: 1 flow log(s)")
	fl4, _ := f.platform.FlowLog("dev", "westeurope", "fl4")
	assert.False(t, fl4.Enabled)
	fl1, _ := f.platform.FlowLog("prod", "westeurope", "fl1")
	assert.True(t, fl1.Enabled)
}

func TestMulti_ImportInvalidStatus(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "desired.csv", strings.Join([]string{
		"Name,SubscriptionName,Location,ResourceGroup,TargetResourceName,TargetResourceType,Status,TAInterval",
		"fl1,prod,westeurope,rg-app,vm1-nic,NIC,Paused,60",
	}, "\n"))

	err := f.run("multi", "--import", "--csv", in)
	assert.ErrorIs(t, err, reconcile.ErrInvalidStatus)
	assert.Zero(t, f.platform.Calls().Get)
}

func TestSingle_ProfileSubscription(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "desired.csv", strings.Join([]string{
		"Name,SubscriptionName,Location,ResourceGroup,TargetResourceName,TargetResourceType,Status",
		"fl3,,westeurope,rg-net,nsg-a,NSG,Enabled",
	}, "\n"))

	require.NoError(t, f.run("single", "--import", "--csv", in, "--what-if"))
	assert.Equal(t, []string{"t1"}, f.tenants)
	assert.Equal(t, 1, f.platform.WhatIfCalls())
	fl3, _ := f.platform.FlowLog("prod", "westeurope", "fl3")
	assert.False(t, fl3.Enabled)
	assert.Contains(t, f.out.String(), "[what if]")

	require.NoError(t, f.run("single", "--import", "--csv", in))
	fl3, _ = f.platform.FlowLog("prod", "westeurope", "fl3")
	assert.True(t, fl3.Enabled)
}

func TestSingle_Export(t *testing.T) {
	f := newFixture(t)
	f.profile = nil
	out := f.path("single.csv")

	require.NoError(t, f.run("single", "--export", "--subscription", "dev", "--location", "northeurope", "--csv", out))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"Name,SubscriptionName,Location,ResourceGroup,TargetResourceName,TargetResourceType,Status\n"+
			"fl5,dev,northeurope,rg-dev,vnet-dev,VNet,Enabled\n",
		string(content))
}

func TestSingle_RefusesOtherSubscription(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "desired.csv", strings.Join([]string{
		"Name,SubscriptionName,Location,ResourceGroup,TargetResourceName,TargetResourceType,Status",
		"fl4,dev,westeurope,rg-dev,vnet-dev,VNet,Disabled",
	}, "\n"))

	err := f.run("single", "--import", "--csv", in)
	assert.ErrorIs(t, err, platform.ErrSession)
	fl4, _ := f.platform.FlowLog("dev", "westeurope", "fl4")
	assert.True(t, fl4.Enabled)
}

func TestSingle_NoSubscription(t *testing.T) {
	f := newFixture(t)
	f.profile = nil

	err := f.run("single", "--export", "--location", "westeurope", "--csv", f.path("out.csv"))
	assert.ErrorContains(t, err, "no --subscription given")
}

func TestRunFlags(t *testing.T) {
	f := newFixture(t)

	err := f.run("multi", "--export", "--import", "--csv", f.path("x.csv"))
	assert.Error(t, err)

	err = f.run("multi", "--location", "westeurope")
	assert.Error(t, err)

	err = f.run("multi", "--import")
	assert.ErrorContains(t, err, "--csv is required")

	err = f.run("multi", "--export", "--csv", f.path("x.csv"))
	assert.ErrorContains(t, err, "location is required")

	err = f.run("multi", "--import", "--csv", f.path("missing.csv"))
	assert.Error(t, err)
}

func TestSettingsFileDefaults(t *testing.T) {
	f := newFixture(t)
	cfg := f.write(t, "flowlogs.yaml", "location: northeurope\nlog_level: debug\n")
	out := f.path("inventory.csv")

	require.NoError(t, f.run("--config", cfg, "multi", "--export", "--csv", out))

	records, err := csv.ReadFile(out, csv.SchemaMulti)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fl5", records[0].Name)
	assert.Contains(t, f.logs.String(), "flow logs found")
}

func TestPolicy(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run("policy", "show"))
	assert.Contains(t, f.out.String(), `"trafficAnalyticsInterval"`)

	params := f.write(t, "params.json", `{
		"nsgRegion": {"value": "westeurope"},
		"storageId": {"value": "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Storage/storageAccounts/logs"},
		"workspaceResourceId": {"value": "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.OperationalInsights/workspaces/la"},
		"workspaceRegion": {"value": "westeurope"},
		"trafficAnalyticsInterval": {"value": 10}
	}`)
	require.NoError(t, f.run("policy", "validate", "--params", params))
	assert.Contains(t, f.out.String(), "Parameters are valid")
	assert.Contains(t, f.out.String(), "retentionDays: 30 (default)")

	bad := f.write(t, "bad.json", `{"trafficAnalyticsInterval": {"value": 15}}`)
	err := f.run("policy", "validate", "--params", bad)
	assert.ErrorContains(t, err, "trafficAnalyticsInterval")
}
