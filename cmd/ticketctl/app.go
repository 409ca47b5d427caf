package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/urfave/cli/v2"

	"ticketledger/clock"
	"ticketledger/entity"
	"ticketledger/gateway"
	"ticketledger/issuer"
	"ticketledger/ledger"
	"ticketledger/pkg"
	"ticketledger/pubsub"
	"ticketledger/reconcile"
	"ticketledger/ticketing"
	"ticketledger/validator"
)

// remoteFactory connects to the remote ledger copy. close releases whatever
// the connection holds.
type remoteFactory func(c *cli.Context) (remote reconcile.RemoteStore, locker reconcile.Locker, close func() error, err error)

func redisRemote(c *cli.Context) (reconcile.RemoteStore, reconcile.Locker, func() error, error) {
	rdb := pkg.NewRedisClient(c.String("redis-addr"))
	locker := pkg.NewRedisLock(rdb, "ticketledger:sync-lock:"+c.String("remote-ledger-id"), c.Duration("sync-lock-ttl"))

	return gateway.NewRedisBlobStore(rdb), locker, rdb.Close, nil
}

// logOnlyBus stands in for the broker when the CLI is not asked to publish.
type logOnlyBus struct{}

func (logOnlyBus) Publish(ctx context.Context, event any) error {
	log.FromContext(ctx).Infof("not publishing %T", event)
	return nil
}

func newApp(out io.Writer, newRemote remoteFactory) *cli.App {
	return &cli.App{
		Name:  "ticketctl",
		Usage: "Issue, validate and reconcile event tickets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ledger", Value: "tickets.csv", EnvVars: []string{"LEDGER_PATH"}, Usage: "local ledger file"},
			&cli.StringFlag{Name: "backup-dir", Value: "backups", EnvVars: []string{"BACKUP_DIR"}},
			&cli.StringSliceFlag{Name: "event-type", Value: cli.NewStringSlice(entity.DefaultEventTypes...), EnvVars: []string{"EVENT_TYPES"}},
			&cli.StringFlag{Name: "redis-addr", Value: "localhost:6379", EnvVars: []string{"REDIS_ADDR"}},
			&cli.StringFlag{Name: "remote-ledger-id", Value: "tickets.csv", EnvVars: []string{"REMOTE_LEDGER_ID"}},
			&cli.DurationFlag{Name: "remote-timeout", Value: 10 * time.Second, EnvVars: []string{"REMOTE_TIMEOUT"}},
			&cli.DurationFlag{Name: "sync-lock-ttl", Value: time.Minute, EnvVars: []string{"SYNC_LOCK_TTL"}},
		},
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "issue a ticket and append it to the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "event", Required: true},
					&cli.StringFlag{Name: "date", Required: true, Usage: "YYYY-MM-DD"},
					&cli.StringFlag{Name: "adults", Value: "0"},
					&cli.StringFlag{Name: "children", Value: "0"},
					&cli.StringFlag{Name: "name", Usage: "holder name"},
					&cli.BoolFlag{Name: "publish", Usage: "announce the ticket on the broker so the server prints it"},
				},
				Action: func(c *cli.Context) error {
					var bus ticketing.EventBus = logOnlyBus{}
					if c.Bool("publish") {
						rdb := pkg.NewRedisClient(c.String("redis-addr"))
						defer rdb.Close()

						publisher, err := pubsub.NewRedisPublisher(rdb, log.NewWatermill(log.FromContext(c.Context)))
						if err != nil {
							return err
						}
						eventBus, err := pkg.NewEventBus(publisher)
						if err != nil {
							return err
						}
						bus = eventBus
					}

					svc := ticketing.NewService(
						issuer.NewIssuer(c.StringSlice("event-type")),
						ledger.NewFileStore(c.String("ledger")),
						bus,
						clock.NewSystem(),
					)

					record, err := svc.IssueTicket(c.Context, issuer.TicketRequest{
						EventType:  c.String("event"),
						Date:       c.String("date"),
						Adults:     c.String("adults"),
						Children:   c.String("children"),
						HolderName: c.String("name"),
					})
					if err != nil && record.UniqueID == "" {
						return err
					}

					fmt.Fprintf(out, "public_token\t%s\n", record.PublicToken)
					fmt.Fprintf(out, "unique_id\t%s\n", record.UniqueID)
					fmt.Fprintf(out, "artifact\t%s\n", record.ArtifactPath)
					return err
				},
			},
			{
				Name:      "validate",
				ArgsUsage: "<public_token>",
				Usage:     "check a scanned token",
				Action: func(c *cli.Context) error {
					v := validator.NewValidator(ledger.NewFileStore(c.String("ledger")), nil)

					result, err := v.Validate(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					if !result.Found {
						return cli.Exit("INVALID", 1)
					}

					ticket := result.Public()
					fmt.Fprintf(out, "VALID\t%s\t%s\tadults=%d\tchildren=%d\n",
						ticket.EventType, ticket.EventDate, ticket.Adults, ticket.Children)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list issued tickets without their tokens",
				Action: func(c *cli.Context) error {
					records, err := ledger.NewFileStore(c.String("ledger")).LoadAll(c.Context)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "NOMBRE\tEVENT\tDATE\tADULTS\tCHILDREN\tGENERATED")
					for _, r := range records {
						generated := ""
						if !r.CreatedAt.IsZero() {
							generated = r.CreatedAt.Format(time.RFC3339)
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
							r.HolderName, r.EventType, r.EventDate, r.Adults, r.Children, generated)
					}
					return w.Flush()
				},
			},
			{
				Name:  "summary",
				Usage: "totals per event type",
				Action: func(c *cli.Context) error {
					records, err := ledger.NewFileStore(c.String("ledger")).LoadAll(c.Context)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "EVENT\tTICKETS\tADULTS\tCHILDREN")
					for _, totals := range ticketing.Summarize(records) {
						fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", totals.EventType, totals.Tickets, totals.Adults, totals.Children)
					}
					return w.Flush()
				},
			},
			{
				Name:  "verify",
				Usage: "check every row against the ledger invariants",
				Action: func(c *cli.Context) error {
					snapshot, err := ledger.NewFileStore(c.String("ledger")).Snapshot(c.Context)
					if err != nil {
						return err
					}

					violations, err := ledger.Verify(snapshot)
					if err != nil {
						return err
					}
					for _, v := range violations {
						fmt.Fprintf(out, "row %d: %s\n", v.Row, v.Reason)
					}
					if len(violations) > 0 {
						return cli.Exit(strconv.Itoa(len(violations))+" violations", 1)
					}

					fmt.Fprintf(out, "ok, %d rows\n", len(snapshot.Rows))
					return nil
				},
			},
			{
				Name:      "replace",
				ArgsUsage: "<file>",
				Usage:     "overwrite the ledger with a file, after backing it up",
				Action: func(c *cli.Context) error {
					f, err := os.Open(c.Args().First())
					if err != nil {
						return err
					}
					defer f.Close()

					snapshot, err := ledger.ReadSnapshot(f)
					if err != nil {
						return err
					}

					backupPath, err := ledger.NewFileStore(c.String("ledger")).ReplaceAll(
						c.Context,
						snapshot,
						ledger.NewDirBackup(c.String("backup-dir"), clock.NewSystem()),
					)
					if err != nil {
						return err
					}

					fmt.Fprintf(out, "replaced with %d rows, backup %q\n", len(snapshot.Rows), backupPath)
					return nil
				},
			},
			{
				Name:  "push",
				Usage: "merge with the remote ledger and upload the result",
				Action: func(c *cli.Context) error {
					return runSync(c, out, newRemote, entity.SyncDirectionPush)
				},
			},
			{
				Name:  "pull",
				Usage: "merge the remote ledger into the local one",
				Action: func(c *cli.Context) error {
					return runSync(c, out, newRemote, entity.SyncDirectionPull)
				},
			},
		},
	}
}

func runSync(c *cli.Context, out io.Writer, newRemote remoteFactory, direction string) error {
	remote, locker, closeRemote, err := newRemote(c)
	if err != nil {
		return err
	}
	defer closeRemote()

	syncer := reconcile.NewSyncer(
		ledger.NewFileStore(c.String("ledger")),
		remote,
		locker,
		reconcile.Config{
			RemoteID: c.String("remote-ledger-id"),
			Timeout:  c.Duration("remote-timeout"),
		},
	)

	run := syncer.Pull
	if direction == entity.SyncDirectionPush {
		run = syncer.Push
	}

	result, err := run(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: local=%d remote=%d merged=%d uploaded=%t\n",
		direction, result.LocalRows, result.RemoteRows, result.MergedRows, result.Uploaded)
	return nil
}
