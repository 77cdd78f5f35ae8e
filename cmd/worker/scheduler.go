package main

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"kornews/internal/logger"
)

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}

// scheduler runs one harvest job on a cron schedule. Scheduled ticks and the
// start-up run go through the same job chain, so at most one harvest runs at a time.
type scheduler struct {
	cron *cron.Cron
	job  cron.Job
	wg   sync.WaitGroup
}

// newScheduler parses spec (five fields, or a descriptor such as "@every 1h")
// and registers run behind panic recovery and overlap skipping.
func newScheduler(spec string, run func(), log *logger.Logger) (*scheduler, error) {
	l := cronLogger{log}

	cronParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(cronParser), cron.WithLogger(l))

	job := cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).Then(cron.FuncJob(run))

	if _, err := c.AddJob(spec, job); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	return &scheduler{cron: c, job: job}, nil
}

// Start begins scheduling. With runNow the job also runs once immediately,
// skipped like any tick if a harvest is already running.
func (s *scheduler) Start(runNow bool) {
	s.cron.Start()

	if runNow {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			s.job.Run()
		}()
	}
}

// Stop halts scheduling and waits for every running harvest, the start-up run included.
func (s *scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}
