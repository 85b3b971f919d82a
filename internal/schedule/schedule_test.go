package schedule

import (
	"testing"
	"time"

	"CryptoDCA/internal/model"
	"CryptoDCA/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
func at(day, hour, min int) time.Time {
	return time.Date(2026, time.October, day, hour, min, 0, 0, time.UTC)
}

func coin(cycle model.CycleKind) model.Coin {
	return model.Coin{
		Name:     "ABC",
		Pairing:  "USD",
		Cycle:    cycle,
		At:       model.AtTime{Hour: 9},
		Strategy: strategy.Classic{Amount: 50},
	}
}

func TestInitial_Daily(t *testing.T) {
	c := coin(model.CycleDaily)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before anchor", at(19, 8, 0), at(19, 9, 0)},
		{"exactly at anchor", at(19, 9, 0), at(19, 9, 0)},
		{"just after anchor", at(19, 9, 0).Add(500 * time.Millisecond), at(20, 9, 0)},
		{"after anchor", at(19, 10, 0), at(20, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Initial(c, tt.now, false, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitial_Weekly(t *testing.T) {
	c := coin(model.CycleWeekly)

	c.Weekday = 2 // Wednesday
	got, err := Initial(c, at(19, 10, 0), false, nil)
	require.NoError(t, err)
	assert.Equal(t, at(21, 9, 0), got)

	c.Weekday = 0 // Monday, already passed today
	got, err = Initial(c, at(19, 10, 0), false, nil)
	require.NoError(t, err)
	assert.Equal(t, at(26, 9, 0), got)

	c.Weekday = 6 // Sunday
	got, err = Initial(c, at(19, 10, 0), false, nil)
	require.NoError(t, err)
	assert.Equal(t, at(25, 9, 0), got)
}

func TestInitial_BiWeeklyRestartRecovery(t *testing.T) {
	c := coin(model.CycleBiWeekly)
	c.Weekday = 2
	now := at(19, 10, 0)
	naive := at(21, 9, 0)

	t.Run("no persisted state", func(t *testing.T) {
		got, err := Initial(c, now, false, nil)
		require.NoError(t, err)
		assert.Equal(t, naive, got)
	})

	t.Run("persisted one week later wins", func(t *testing.T) {
		persisted := []model.OrderBookEntry{
			{Coin: "XYZ", Due: at(19, 12, 0), Cycle: model.CycleDaily},
			{Coin: "ABC", Due: at(28, 9, 0), Cycle: model.CycleBiWeekly},
		}
		got, err := Initial(c, now, false, persisted)
		require.NoError(t, err)
		assert.Equal(t, at(28, 9, 0), got)
	})

	t.Run("persisted in the computed week is ignored", func(t *testing.T) {
		persisted := []model.OrderBookEntry{{Coin: "ABC", Due: naive, Cycle: model.CycleBiWeekly}}
		got, err := Initial(c, now, false, persisted)
		require.NoError(t, err)
		assert.Equal(t, naive, got)
	})

	t.Run("persisted row with another cycle is ignored", func(t *testing.T) {
		persisted := []model.OrderBookEntry{{Coin: "ABC", Due: at(28, 9, 0), Cycle: model.CycleWeekly}}
		got, err := Initial(c, now, false, persisted)
		require.NoError(t, err)
		assert.Equal(t, naive, got)
	})

	t.Run("persisted row of another coin is ignored", func(t *testing.T) {
		persisted := []model.OrderBookEntry{{Coin: "XYZ", Due: at(28, 9, 0), Cycle: model.CycleBiWeekly}}
		got, err := Initial(c, now, false, persisted)
		require.NoError(t, err)
		assert.Equal(t, naive, got)
	})
}

func TestInitial_Monthly(t *testing.T) {
	c := coin(model.CycleMonthly)

	c.Day = 15
	got, err := Initial(c, at(19, 10, 0), false, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.November, 15, 9, 0, 0, 0, time.UTC), got)

	c.Day = 19
	c.At = model.AtTime{Hour: 11, Minute: 30}
	got, err = Initial(c, at(19, 10, 0), false, nil)
	require.NoError(t, err)
	assert.Equal(t, at(19, 11, 30), got)

	c.Day = 5
	got, err = Initial(c, time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC), false, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, time.January, 5, 11, 30, 0, 0, time.UTC), got)
}

func TestInitial_Minutely(t *testing.T) {
	c := coin(model.CycleMinutely)
	now := at(19, 10, 7)

	got, err := Initial(c, now, true, nil)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	_, err = Initial(c, now, false, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestInitial_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Coin)
	}{
		{"unknown cycle", func(c *model.Coin) { c.Cycle = "yearly" }},
		{"weekday too large", func(c *model.Coin) { c.Cycle = model.CycleWeekly; c.Weekday = 7 }},
		{"weekday negative", func(c *model.Coin) { c.Cycle = model.CycleBiWeekly; c.Weekday = -1 }},
		{"day zero", func(c *model.Coin) { c.Cycle = model.CycleMonthly; c.Day = 0 }},
		{"day 29", func(c *model.Coin) { c.Cycle = model.CycleMonthly; c.Day = 29 }},
		{"hour 24", func(c *model.Coin) { c.At = model.AtTime{Hour: 24} }},
		{"minute 60", func(c *model.Coin) { c.At = model.AtTime{Hour: 1, Minute: 60} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := coin(model.CycleDaily)
			tt.mutate(&c)
			_, err := Initial(c, at(19, 10, 0), true, nil)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestAdvance_OneCycleUnit(t *testing.T) {
	prev := at(20, 9, 0)
	monthly := coin(model.CycleMonthly)
	monthly.Day = 20

	assert.Equal(t, prev.Add(time.Minute), Advance(coin(model.CycleMinutely), prev))
	assert.Equal(t, at(21, 9, 0), Advance(coin(model.CycleDaily), prev))
	assert.Equal(t, at(27, 9, 0), Advance(coin(model.CycleWeekly), prev))
	assert.Equal(t, time.Date(2026, time.November, 3, 9, 0, 0, 0, time.UTC), Advance(coin(model.CycleBiWeekly), prev))
	assert.Equal(t, time.Date(2026, time.November, 20, 9, 0, 0, 0, time.UTC), Advance(monthly, prev))
}

func TestAdvance_MonthlyKeepsAnchorDayAfterClamp(t *testing.T) {
	m := coin(model.CycleMonthly)
	m.Day = 28

	// A late run moved to the 29th still snaps back to the configured day.
	late := time.Date(2026, time.October, 29, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.November, 28, 9, 0, 0, 0, time.UTC), Advance(m, late))
}

func TestAdvance_NoDrift(t *testing.T) {
	c := coin(model.CycleDaily)
	s := at(20, 9, 0)
	for i := 0; i < 400; i++ {
		next := Advance(c, s)
		require.True(t, next.After(s))
		s = next
		require.Equal(t, 9, s.Hour())
		require.Equal(t, 0, s.Minute())
	}

	m := coin(model.CycleMonthly)
	m.Day = 28
	s = time.Date(2026, time.January, 28, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 36; i++ {
		s = Advance(m, s)
		require.Equal(t, 28, s.Day())
	}
	assert.Equal(t, time.Date(2029, time.January, 28, 9, 0, 0, 0, time.UTC), s)
}

func TestAdvance_MonthlyDay31DoesNotWrap(t *testing.T) {
	m := coin(model.CycleMonthly)
	m.Day = 31 // outside the configurable range, pinned here for the clamping rule

	s := time.Date(2027, time.January, 31, 9, 0, 0, 0, time.UTC)
	want := []time.Time{
		time.Date(2027, time.February, 28, 9, 0, 0, 0, time.UTC),
		time.Date(2027, time.March, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2027, time.April, 30, 9, 0, 0, 0, time.UTC),
		time.Date(2027, time.May, 31, 9, 0, 0, 0, time.UTC),
	}
	for _, w := range want {
		s = Advance(m, s)
		assert.Equal(t, w, s)
	}

	leap := AddMonth(time.Date(2028, time.January, 31, 9, 0, 0, 0, time.UTC), 31)
	assert.Equal(t, time.Date(2028, time.February, 29, 9, 0, 0, 0, time.UTC), leap)

	yearEnd := AddMonth(time.Date(2026, time.December, 31, 9, 0, 0, 0, time.UTC), 31)
	assert.Equal(t, time.Date(2027, time.January, 31, 9, 0, 0, 0, time.UTC), yearEnd)
}

func TestAdvance_DailyKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	c := coin(model.CycleDaily)
	s := time.Date(2026, time.October, 24, 9, 0, 0, 0, loc) // DST ends on the 25th
	for i := 0; i < 3; i++ {
		s = Advance(c, s)
		assert.Equal(t, 9, s.Hour())
	}
	assert.Equal(t, 27, s.Day())
}

func TestCronSpec(t *testing.T) {
	c := coin(model.CycleWeekly)
	c.At = model.AtTime{Hour: 7, Minute: 45}
	c.Weekday = 6
	spec, err := CronSpec(c)
	require.NoError(t, err)
	assert.Equal(t, "45 7 * * 0", spec)

	c.Cycle = model.CycleMonthly
	c.Day = 3
	spec, err = CronSpec(c)
	require.NoError(t, err)
	assert.Equal(t, "45 7 3 * *", spec)

	_, err = CronSpec(coin(model.CycleMinutely))
	assert.ErrorIs(t, err, ErrConfiguration)
}
