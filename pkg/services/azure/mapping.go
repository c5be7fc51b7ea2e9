package azure

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
)

func toDomainFlowLog(raw *armnetwork.FlowLog) domain.FlowLog {
	fl := domain.FlowLog{
		ID:       deref(raw.ID),
		Name:     deref(raw.Name),
		Location: strings.ToLower(deref(raw.Location)),
	}

	props := raw.Properties
	if props == nil {
		return fl
	}
	fl.TargetResourceID = deref(props.TargetResourceID)
	fl.StorageID = deref(props.StorageID)
	fl.Enabled = deref(props.Enabled)

	if rp := props.RetentionPolicy; rp != nil {
		fl.Retention = &domain.RetentionPolicy{
			Enabled: deref(rp.Enabled),
			Days:    int(deref(rp.Days)),
		}
	}

	if fa := props.FlowAnalyticsConfiguration; fa != nil && fa.NetworkWatcherFlowAnalyticsConfiguration != nil {
		ta := fa.NetworkWatcherFlowAnalyticsConfiguration
		fl.TrafficAnalytics = &domain.TrafficAnalytics{
			Enabled:             deref(ta.Enabled),
			WorkspaceID:         deref(ta.WorkspaceID),
			WorkspaceRegion:     deref(ta.WorkspaceRegion),
			WorkspaceResourceID: deref(ta.WorkspaceResourceID),
		}
		if ta.TrafficAnalyticsInterval != nil {
			fl.TrafficAnalytics.Interval = domain.IntervalOf(int(*ta.TrafficAnalyticsInterval))
		}
	}
	return fl
}

// applyFlowLog writes the mutable settings of fl onto raw. Target, storage
// and workspace are carried over from fl as well, which keeps them
// unchanged when fl came from the same resource.
func applyFlowLog(raw *armnetwork.FlowLog, fl domain.FlowLog) {
	if raw.Properties == nil {
		raw.Properties = &armnetwork.FlowLogPropertiesFormat{}
	}
	props := raw.Properties
	props.Enabled = to.Ptr(fl.Enabled)
	if fl.TargetResourceID != "" {
		props.TargetResourceID = to.Ptr(fl.TargetResourceID)
	}
	if fl.StorageID != "" {
		props.StorageID = to.Ptr(fl.StorageID)
	}
	if fl.Retention != nil {
		props.RetentionPolicy = &armnetwork.RetentionPolicyParameters{
			Enabled: to.Ptr(fl.Retention.Enabled),
			Days:    to.Ptr(int32(fl.Retention.Days)),
		}
	}

	if fl.TrafficAnalytics == nil {
		return
	}
	if props.FlowAnalyticsConfiguration == nil {
		props.FlowAnalyticsConfiguration = &armnetwork.TrafficAnalyticsProperties{}
	}
	if props.FlowAnalyticsConfiguration.NetworkWatcherFlowAnalyticsConfiguration == nil {
		props.FlowAnalyticsConfiguration.NetworkWatcherFlowAnalyticsConfiguration = &armnetwork.TrafficAnalyticsConfigurationProperties{}
	}
	ta := props.FlowAnalyticsConfiguration.NetworkWatcherFlowAnalyticsConfiguration
	ta.Enabled = to.Ptr(fl.TrafficAnalytics.Enabled)
	if fl.TrafficAnalytics.WorkspaceID != "" {
		ta.WorkspaceID = to.Ptr(fl.TrafficAnalytics.WorkspaceID)
	}
	if fl.TrafficAnalytics.WorkspaceRegion != "" {
		ta.WorkspaceRegion = to.Ptr(fl.TrafficAnalytics.WorkspaceRegion)
	}
	if fl.TrafficAnalytics.WorkspaceResourceID != "" {
		ta.WorkspaceResourceID = to.Ptr(fl.TrafficAnalytics.WorkspaceResourceID)
	}
	if fl.TrafficAnalytics.Interval.Set {
		ta.TrafficAnalyticsInterval = to.Ptr(int32(fl.TrafficAnalytics.Interval.Minutes))
	}
}
