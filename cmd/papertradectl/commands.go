package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/config"
	"github.com/finsight/papertrade/internal/di"
	"github.com/finsight/papertrade/pkg/logger"
)

var commands = []subcommands.Command{
	&issueTokenCmd{},
	&snapshotAllCmd{},
	&pruneCacheCmd{},
	&checkDBCmd{},
	&backupCmd{},
}

var stdout io.Writer = os.Stdout

// newLogger logs to stderr so command output stays pipeable
func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})
}

// withContainer loads configuration, wires the application and runs fn
func withContainer(fn func(ctx context.Context, c *di.Container, jobs *di.JobInstances) error) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	log := newLogger(cfg)

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	if err := fn(context.Background(), container, jobs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type issueTokenCmd struct {
	user string
}

func (*issueTokenCmd) Name() string     { return "issue-token" }
func (*issueTokenCmd) Synopsis() string { return "print a bearer token for a user id" }
func (*issueTokenCmd) Usage() string {
	return `papertradectl issue-token -user <id>

  Signs the user id with AUTH_SECRET. The token is accepted by the API in
  the Authorization header or the access_token query parameter.
`
}

func (c *issueTokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id to issue the token for.")
}

func (c *issueTokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.AuthSecret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_SECRET is not set")
		return subcommands.ExitFailure
	}

	verifier, err := auth.NewHMACVerifier(cfg.AuthSecret)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	token, err := verifier.Issue(c.user)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(stdout, token)
	return subcommands.ExitSuccess
}

type snapshotAllCmd struct{}

func (*snapshotAllCmd) Name() string     { return "snapshot-all" }
func (*snapshotAllCmd) Synopsis() string { return "record a value snapshot for every account" }
func (*snapshotAllCmd) Usage() string {
	return `papertradectl snapshot-all

  Records a cost-basis snapshot for every account, as the scheduled job does.
`
}
func (*snapshotAllCmd) SetFlags(*flag.FlagSet) {}

func (*snapshotAllCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(func(ctx context.Context, c *di.Container, _ *di.JobInstances) error {
		recorded, err := c.SnapshotRecorder.RecordAll(ctx)
		fmt.Fprintf(stdout, "recorded %d snapshots\n", recorded)
		return err
	})
}

type pruneCacheCmd struct {
	retention time.Duration
}

func (*pruneCacheCmd) Name() string     { return "prune-cache" }
func (*pruneCacheCmd) Synopsis() string { return "delete expired provider cache entries" }
func (*pruneCacheCmd) Usage() string {
	return `papertradectl prune-cache [-retention <duration>]

  Deletes cached quotes, searches and crypto prices that expired more than
  the retention window ago. Use -retention 0 to drop every expired entry.
`
}

func (c *pruneCacheCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.retention, "retention", 24*time.Hour, "Keep expired entries this long for stale fallback.")
}

func (c *pruneCacheCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(func(_ context.Context, container *di.Container, _ *di.JobInstances) error {
		results, err := container.ClientDataRepo.DeleteAllExpired(c.retention)
		if err != nil {
			return err
		}

		tables := make([]string, 0, len(results))
		for table := range results {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Fprintf(stdout, "%-16s %d\n", table, results[table])
		}
		return nil
	})
}

type checkDBCmd struct{}

func (*checkDBCmd) Name() string     { return "check-db" }
func (*checkDBCmd) Synopsis() string { return "run integrity and WAL checks on the databases" }
func (*checkDBCmd) Usage() string {
	return `papertradectl check-db

  Runs PRAGMA integrity_check on the account and ledger databases and
  reports WAL growth for every database.
`
}
func (*checkDBCmd) SetFlags(*flag.FlagSet) {}

func (*checkDBCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(func(_ context.Context, c *di.Container, jobs *di.JobInstances) error {
		if err := c.Scheduler.RunNow(jobs.IntegrityCheck); err != nil {
			return err
		}
		if err := c.Scheduler.RunNow(jobs.WALCheck); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	})
}

type backupCmd struct {
	list bool
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "upload a database backup, or list uploaded backups" }
func (*backupCmd) Usage() string {
	return `papertradectl backup [-list]

  Copies every database with VACUUM INTO, archives the copies and uploads the
  archive to the configured bucket. With -list, prints the stored backups.
`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "List stored backups instead of creating one.")
}

func (c *backupCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(func(ctx context.Context, container *di.Container, _ *di.JobInstances) error {
		if container.BackupService == nil {
			return errors.New("backups are not configured (BACKUP_BUCKET is empty)")
		}

		if c.list {
			backups, err := container.BackupService.ListBackups(ctx)
			if err != nil {
				return err
			}
			for _, b := range backups {
				fmt.Fprintf(stdout, "%s\t%d\t%dh\n", b.Key, b.SizeBytes, b.AgeHours)
			}
			return nil
		}

		key, err := container.BackupService.CreateAndUploadBackup(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, key)
		return nil
	})
}
