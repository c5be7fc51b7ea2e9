package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
)

var ErrMalformedID = errors.New("malformed resource identifier")

// resourceGroupIndex is the position of the resource group in
// /subscriptions/{id}/resourceGroups/{name}/... once split on "/".
const resourceGroupIndex = 4

// Ordered by priority: a subnet ID also contains its parent virtualNetworks
// segment, so the more specific segments are tested first.
var segments = []struct {
	segment string
	target  domain.TargetType
}{
	{"networkInterfaces", domain.TargetNIC},
	{"subnets", domain.TargetSubnet},
	{"virtualNetworks", domain.TargetVNet},
	{"networkSecurityGroups", domain.TargetNSG},
}

type Target struct {
	Type          domain.TargetType
	ResourceGroup string
	Name          string
}

func TypeOf(resourceID string) domain.TargetType {
	for _, s := range segments {
		if strings.Contains(resourceID, s.segment) {
			return s.target
		}
	}
	return domain.TargetUnknown
}

// Classify derives the category, resource group and name of a flow log
// target from its fully-qualified resource ID.
func Classify(resourceID string) (Target, error) {
	parts := strings.Split(resourceID, "/")
	if len(parts) <= resourceGroupIndex || parts[resourceGroupIndex] == "" {
		return Target{}, fmt.Errorf("%w: %q has no resource group segment", ErrMalformedID, resourceID)
	}

	name := parts[len(parts)-1]
	if name == "" || len(parts)-1 == resourceGroupIndex {
		return Target{}, fmt.Errorf("%w: %q has no resource name segment", ErrMalformedID, resourceID)
	}

	return Target{
		Type:          TypeOf(resourceID),
		ResourceGroup: parts[resourceGroupIndex],
		Name:          name,
	}, nil
}
