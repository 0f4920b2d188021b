// Package scheduler drives the daemon mode on a daily cadence.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/ports"
	"github.com/Seeker214/SystemPaperDaily/pkg/logger"
)

// CronScheduler runs a job once per day at a fixed wall-clock time. Only a
// daily "M H * * *" expression is understood; anything else falls back to the
// default run time.
type CronScheduler struct {
	hour   int
	minute int
	loc    *time.Location
	stop   chan struct{}
	log    interface{ Printf(string, ...any) }
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a cron expression and timezone.
func NewCronScheduler(spec string, loc *time.Location) *CronScheduler {
	c := &CronScheduler{hour: 6, minute: 0, loc: loc, log: logger.New("scheduler")}
	if h, m, err := parseDailySpec(spec); err == nil {
		c.hour, c.minute = h, m
	} else if spec != "" {
		c.log.Printf("unsupported cron expression %q, using %02d:%02d: %v", spec, c.hour, c.minute, err)
	}
	return c
}

// Start launches the schedule loop. The job runs at the next configured
// wall-clock time and every 24 hours thereafter.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.stop != nil {
		return nil
	}

	c.stop = make(chan struct{})
	go func() {
		for {
			next := c.nextRun(time.Now().In(c.loc))
			c.log.Printf("next run at %s", next.Format(time.RFC3339))
			timer := time.NewTimer(time.Until(next))
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-c.stop:
				timer.Stop()
				return
			}
		}
	}()
	return nil
}

// Stop halts the schedule loop.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}

func (c *CronScheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, c.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// parseDailySpec accepts "M H * * *" and returns the hour and minute.
func parseDailySpec(spec string) (hour, minute int, err error) {
	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return 0, 0, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	if fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return 0, 0, fmt.Errorf("only daily schedules are supported")
	}
	minute, err = strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", fields[0])
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", fields[1])
	}
	return hour, minute, nil
}
