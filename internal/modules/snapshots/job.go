package snapshots

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotJob records a snapshot for every account on a schedule
type SnapshotJob struct {
	recorder *Recorder
	timeout  time.Duration
	log      zerolog.Logger
}

// NewSnapshotJob creates the periodic snapshot job
func NewSnapshotJob(recorder *Recorder, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		recorder: recorder,
		timeout:  10 * time.Minute,
		log:      log.With().Str("job", "snapshot_all").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "snapshot_all"
}

// Run executes the job
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	recorded, err := j.recorder.RecordAll(ctx)
	if err != nil {
		j.log.Error().Err(err).Int("recorded", recorded).Msg("Snapshot run finished with errors")
		return err
	}
	return nil
}
