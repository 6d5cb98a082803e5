package wakeup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun_BeforeScheduleHour_SameDay(t *testing.T) {
	j := &Job{cfg: Config{ScheduleHour: 2}}
	now := time.Date(2026, 8, 6, 1, 0, 0, 0, time.UTC)
	got := j.nextRun(now)
	assert.Equal(t, time.Date(2026, 8, 6, 2, 0, 0, 0, time.UTC), got)
}

func TestNextRun_AfterScheduleHour_NextDay(t *testing.T) {
	j := &Job{cfg: Config{ScheduleHour: 2}}
	now := time.Date(2026, 8, 6, 5, 30, 0, 0, time.UTC)
	got := j.nextRun(now)
	assert.Equal(t, time.Date(2026, 8, 7, 2, 0, 0, 0, time.UTC), got)
}

func TestNextRun_ExactlyAtScheduleHour_NextDay(t *testing.T) {
	j := &Job{cfg: Config{ScheduleHour: 2}}
	now := time.Date(2026, 8, 6, 2, 0, 0, 0, time.UTC)
	got := j.nextRun(now)
	assert.Equal(t, time.Date(2026, 8, 7, 2, 0, 0, 0, time.UTC), got)
}
