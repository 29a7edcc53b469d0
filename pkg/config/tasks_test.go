package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLab/internal/domain/models"
)

func TestTasksBuildsPolicies(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	start, end, err := c.Window()
	require.NoError(t, err)

	tasks, err := c.Tasks(start, end, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	cpi := tasks[0]
	assert.Equal(t, models.FrequencyMonthly, cpi.Spec.Frequency)
	assert.Equal(t, models.ProviderFRED, cpi.Request.Provider)
	assert.True(t, cpi.Policy.LevelOnly)
	assert.Equal(t, 45, cpi.Policy.FreshnessErrorAfter)
	assert.Equal(t, 30, cpi.Policy.FreshnessWarnAfter)
	assert.Equal(t, 8.0, cpi.Policy.OutlierZ)
	require.Len(t, cpi.Policy.Holidays, 1)
	assert.Equal(t, time.Date(2020, 1, 20, 0, 0, 0, 0, time.UTC), cpi.Policy.Holidays[0])

	spy := tasks[1]
	assert.Equal(t, models.SeriesTypeMarket, spy.Spec.Type)
	assert.Equal(t, 7, spy.Policy.FreshnessErrorAfter)
	assert.Equal(t, 3, spy.Policy.FreshnessWarnAfter)
	assert.False(t, spy.Policy.LevelOnly)
}

func TestTasksFilter(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	start, end, _ := c.Window()

	tasks, err := c.Tasks(start, end, []string{" spy "})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "SPY", tasks[0].Spec.ID)

	_, err = c.Tasks(start, end, []string{"SPY", "GDP"})
	require.ErrorContains(t, err, "GDP")
}

func TestTasksUnknownSeriesSorted(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	start, end, _ := c.Window()

	for i := 0; i < 5; i++ {
		_, err = c.Tasks(start, end, []string{"zz", "GDP", "spy", "aa"})
		require.EqualError(t, err, "unknown series: AA, GDP, ZZ")
	}
}
