package adapters

import (
	"errors"
	"testing"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReport(t *testing.T) {
	rec := domain.FlowLogRecord{Name: "fl1", SubscriptionName: "prod", Location: "westeurope", TargetResourceType: domain.TargetSubnet}

	t.Run("success", func(t *testing.T) {
		r := domain.Succeeded(rec, domain.ActionDisabled)
		sr := MapDomainReportToStore("run-1", 3, r)

		assert.Equal(t, "run-1", sr.RunID)
		assert.Equal(t, 3, sr.Seq)
		assert.Equal(t, "Subnet", sr.TargetType)
		assert.Equal(t, "Disabled", sr.Action)
		assert.Nil(t, sr.FailureVerb)
		assert.Equal(t, r, MapStoreReportToDomain(sr))
	})

	t.Run("failure", func(t *testing.T) {
		r := domain.FailedWith(rec, domain.VerbDelete, errors.New("conflict"))
		sr := MapDomainReportToStore("run-1", 0, r)

		require.NotNil(t, sr.FailureVerb)
		assert.Equal(t, "delete", *sr.FailureVerb)
		assert.Equal(t, "conflict", *sr.FailureMessage)
		assert.Equal(t, r, MapStoreReportToDomain(sr))
	})
}
