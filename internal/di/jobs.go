package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/finsight/papertrade/internal/config"
	"github.com/finsight/papertrade/internal/modules/snapshots"
	"github.com/finsight/papertrade/internal/reliability"
	"github.com/finsight/papertrade/internal/scheduler"
)

type jobRegistration struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the background jobs and registers them with the
// scheduler. The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	if container.EventManager != nil {
		container.Scheduler.SetErrorReporter(container.EventManager)
	}
	dbs := container.Databases()

	instances := &JobInstances{
		Snapshots:      snapshots.NewSnapshotJob(container.SnapshotRecorder, log),
		CacheCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, cfg.Quotes.StaleRetention, log),
		WALCheck:       scheduler.NewCheckWALCheckpointsJob(log, dbs...),
		IntegrityCheck: scheduler.NewCheckCoreDatabasesJob(log, container.PortfolioDB, container.LedgerDB),
		Maintenance:    reliability.NewMaintenanceJob(dbs, cfg.DataDir, log),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
	}

	registrations := []jobRegistration{
		{cfg.Schedules.Snapshots, instances.Snapshots},
		{cfg.Schedules.CacheCleanup, instances.CacheCleanup},
		{cfg.Schedules.WALCheckpoint, instances.WALCheck},
		{cfg.Schedules.IntegrityCheck, instances.IntegrityCheck},
		{cfg.Schedules.Maintenance, instances.Maintenance},
	}
	if instances.Backup != nil {
		registrations = append(registrations, jobRegistration{cfg.Schedules.Backup, instances.Backup})
	}

	for _, reg := range registrations {
		if err := container.Scheduler.AddJob(reg.schedule, reg.job); err != nil {
			return nil, err
		}
	}

	return instances, nil
}
