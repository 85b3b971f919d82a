package schedule

import (
	"errors"
	"fmt"
	"time"

	"CryptoDCA/internal/model"

	"github.com/robfig/cron/v3"
)

// ErrConfiguration marks schedule settings that can never run. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validate checks the anchors a coin's cycle depends on.
func Validate(coin model.Coin, testMode bool) error {
	if coin.At.Hour < 0 || coin.At.Hour > 23 || coin.At.Minute < 0 || coin.At.Minute > 59 {
		return configErr("%s: at_time %s must have hours 0-23 and minutes 0-59", coin.Name, coin.At)
	}
	switch coin.Cycle {
	case model.CycleMinutely:
		if !testMode {
			return configErr("%s: cycle %q is only available in test mode", coin.Name, coin.Cycle)
		}
	case model.CycleDaily:
	case model.CycleWeekly, model.CycleBiWeekly:
		if coin.Weekday < 0 || coin.Weekday > 6 {
			return configErr("%s: on_weekday %d must range from 0 to 6", coin.Name, coin.Weekday)
		}
	case model.CycleMonthly:
		if coin.Day < 1 || coin.Day > 28 {
			return configErr("%s: on_day %d must range from 1 to 28", coin.Name, coin.Day)
		}
	default:
		return configErr("%s: cycle %q not recognized, valid cycles are daily, weekly, bi-weekly and monthly",
			coin.Name, coin.Cycle)
	}
	return nil
}

// CronSpec expresses the coin's anchor as a standard five-field cron spec.
// Weekdays are converted from Monday=0 to cron's Sunday=0.
func CronSpec(coin model.Coin) (string, error) {
	switch coin.Cycle {
	case model.CycleDaily:
		return fmt.Sprintf("%d %d * * *", coin.At.Minute, coin.At.Hour), nil
	case model.CycleWeekly, model.CycleBiWeekly:
		return fmt.Sprintf("%d %d * * %d", coin.At.Minute, coin.At.Hour, (coin.Weekday+1)%7), nil
	case model.CycleMonthly:
		return fmt.Sprintf("%d %d %d * *", coin.At.Minute, coin.At.Hour, coin.Day), nil
	default:
		return "", configErr("%s: cycle %q has no cron anchor", coin.Name, coin.Cycle)
	}
}

// Initial computes the first due time of a coin at startup. The result is the first
// anchor occurrence at or after now, in now's location. Minutely coins are due at once.
//
// persisted is the order book written by a previous run. A bi-weekly coin whose
// persisted due time is exactly one week after the computed one keeps the persisted
// time, so a restart never shortens the 14-day cycle to 7 days.
func Initial(coin model.Coin, now time.Time, testMode bool, persisted []model.OrderBookEntry) (time.Time, error) {
	if err := Validate(coin, testMode); err != nil {
		return time.Time{}, err
	}
	if coin.Cycle == model.CycleMinutely {
		return now, nil
	}

	spec, err := CronSpec(coin)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, configErr("%s: %v", coin.Name, err)
	}
	// Next is strictly after its argument; step back so an anchor equal to now counts.
	due := sched.Next(now.Add(-time.Nanosecond))

	if coin.Cycle == model.CycleBiWeekly {
		for _, e := range persisted {
			if e.Coin == coin.Name && e.Cycle == model.CycleBiWeekly && e.Due.Equal(due.AddDate(0, 0, 7)) {
				due = e.Due
			}
		}
	}
	return due, nil
}

// Advance returns the next nominal schedule, exactly one cycle after the previous one.
// It is computed from the previous schedule, never from the current time, so late
// executions do not shift later purchases.
func Advance(coin model.Coin, previous time.Time) time.Time {
	switch coin.Cycle {
	case model.CycleMinutely:
		return previous.Add(time.Minute)
	case model.CycleDaily:
		return previous.AddDate(0, 0, 1)
	case model.CycleWeekly:
		return previous.AddDate(0, 0, 7)
	case model.CycleBiWeekly:
		return previous.AddDate(0, 0, 14)
	case model.CycleMonthly:
		return AddMonth(previous, coin.Day)
	default:
		panic(fmt.Sprintf("schedule: advance on unvalidated cycle %q", coin.Cycle))
	}
}

// AddMonth moves t to the next calendar month on the given anchor day, clamped to the
// last day of that month. Time of day and location are kept.
func AddMonth(t time.Time, day int) time.Time {
	year, month := t.Year(), t.Month()+1
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
