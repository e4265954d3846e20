package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Snapshot(t *testing.T) {
	r := Default()

	snap, err := r.Snapshot("pro")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), snap.Price)
	assert.Equal(t, lifecycle.IntervalMonth, snap.Interval)
	assert.True(t, snap.Features.Has(lifecycle.FeatureTableOrdering))

	_, err = r.Snapshot("enterprise")
	assert.ErrorIs(t, err, lifecycle.ErrPlanNotFound)
}

func TestAll_SortedByPrice(t *testing.T) {
	plans := Default().All()
	require.NotEmpty(t, plans)
	for i := 1; i < len(plans); i++ {
		assert.LessOrEqual(t, plans[i-1].Price, plans[i].Price)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"plans":[
		{"plan_id":"solo","name":"Solo","price":5000,"currency":"RWF","interval":"monthly","features":["digital_menu"]},
		{"plan_id":"legacy","name":"Legacy","price":1000,"currency":"RWF","interval":"month","hidden":true}
	]}`), 0o600))

	r, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, r.Exists("legacy"))
	require.Len(t, r.All(), 1)
	assert.Equal(t, "solo", r.All()[0].PlanID)
}

func TestLoadFromFile_RejectsUnknownFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"plans":[
		{"plan_id":"x","price":1,"currency":"RWF","interval":"month","features":["hologram"]}
	]}`), 0o600))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
