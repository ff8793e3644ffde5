package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanctionMetadata_ScanValue(t *testing.T) {
	age := 12
	in := SanctionMetadata{
		AltDetection: &AltDetectionResult{
			IsLikelyAlt:    true,
			Confidence:     90,
			Reasons:        []string{"Account created within 30 days"},
			AccountAgeDays: &age,
			KnownAlts:      []int64{42},
		},
		RobloxEnforced:   false,
		RobloxStatusCode: 403,
	}

	v, err := in.Value()
	require.NoError(t, err)

	var out SanctionMetadata
	require.NoError(t, out.Scan(v))
	require.NotNil(t, out.AltDetection)
	assert.Equal(t, 90, out.AltDetection.Confidence)
	assert.Equal(t, []int64{42}, out.AltDetection.KnownAlts)
	assert.Equal(t, 403, out.RobloxStatusCode)

	require.NoError(t, out.Scan([]byte(`{"robloxEnforced":true}`)))
	assert.True(t, out.RobloxEnforced)
	assert.Nil(t, out.AltDetection)

	require.NoError(t, out.Scan(nil))
	assert.False(t, out.RobloxEnforced)

	assert.Error(t, out.Scan(12))
}

func TestTenant_HasEnforcementCredentials(t *testing.T) {
	universe := "123"
	key := "enc"
	empty := ""

	assert.False(t, (&Tenant{}).HasEnforcementCredentials())
	assert.False(t, (&Tenant{RobloxUniverseID: &universe}).HasEnforcementCredentials())
	assert.False(t, (&Tenant{RobloxUniverseID: &universe, RobloxAPIKey: &empty}).HasEnforcementCredentials())
	assert.True(t, (&Tenant{RobloxUniverseID: &universe, RobloxAPIKey: &key}).HasEnforcementCredentials())
}
