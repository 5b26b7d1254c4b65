package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	release chan struct{}
	entered chan struct{}
	runs    int
}

func (b *blockingJob) Name() string { return "blocking" }

func (b *blockingJob) Run(ctx context.Context) error {
	b.runs++
	close(b.entered)
	<-b.release
	return errors.New("done")
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	job := &blockingJob{release: make(chan struct{}), entered: make(chan struct{})}
	sj := &scheduledJob{job: job, spec: "@every 1m"}

	result := make(chan error, 1)
	go func() {
		_, err := sj.runOnce(context.Background())
		result <- err
	}()
	<-job.entered

	ran, err := sj.runOnce(context.Background())
	require.False(t, ran)
	require.NoError(t, err)

	close(job.release)
	require.EqualError(t, <-result, "done")
	require.Equal(t, 1, job.runs)
}

type namedJob string

func (n namedJob) Name() string                  { return string(n) }
func (n namedJob) Run(ctx context.Context) error { return nil }

func TestAddJob(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(namedJob("a"), "0 3 * * *"))
	require.NoError(t, s.AddJob(namedJob("b"), "@hourly"))
	require.Error(t, s.AddJob(namedJob("a"), "0 4 * * *"))
	require.Error(t, s.AddJob(namedJob("c"), "not a spec"))
	s.Start(context.Background())
	s.Stop()
}
