// Command workshopd serves the workshop scheduling API and its admin tasks.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
	// Timezones resolve even on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/workshop-scheduler/internal/application"
	"github.com/example/workshop-scheduler/internal/config"
	"github.com/example/workshop-scheduler/internal/logging"
	"github.com/example/workshop-scheduler/internal/scheduler"
	"github.com/example/workshop-scheduler/internal/seed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds state shared by every subcommand.
type cli struct {
	configFile string
	envFile    string

	cfg    config.Config
	logger *slog.Logger
	flush  func() error
}

func (c *cli) load() error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{ConfigFile: c.configFile, DotEnvFile: c.envFile})
	if err != nil {
		return err
	}
	logger, flush, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	c.flush = flush
	return nil
}

func (c *cli) close() {
	if c.flush != nil {
		_ = c.flush()
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "workshopd",
		Short:         "Workshop session scheduling and meeting-link gate",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", os.Getenv("WORKSHOP_CONFIG"), "YAML configuration file")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newSeedCmd(c),
		newPreviewCmd(c),
		newHashKeyCmd(),
	)
	return root
}

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := rt.Close(); cerr != nil {
					c.logger.Error("failed to close storage", "error", cerr)
				}
			}()

			generator, err := newGenerator(c.cfg.Meeting)
			if err != nil {
				return err
			}
			notifier, err := newNotifier(c.cfg.Notify, c.logger)
			if err != nil {
				return err
			}
			if c.cfg.AdminKeyHash == "" {
				c.logger.Warn("WORKSHOP_ADMIN_KEY_HASH is empty; admin requests will be rejected")
			}

			svc := rt.services(generator, notifier, time.Now, uuid.NewString)
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", c.cfg.HTTPPort),
				Handler:           rt.handler(svc),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					c.logger.Error("failed to shutdown server", "error", err)
				}
			}()

			c.logger.Info("workshop API listening",
				"addr", server.Addr,
				"ledger_backend", c.cfg.LedgerBackend,
				"meeting_provider", c.cfg.Meeting.Provider,
				"timezone", c.cfg.Timezone.String(),
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server encountered error: %w", err)
			}
			return nil
		},
	}
}

func newMigrateCmd(c *cli) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			ctx := cmd.Context()

			storage, err := openSQLite(ctx, c.cfg.SQLiteDSN, c.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			status, err := storage.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema version %d (%d applied, %d pending)\n", status.CurrentVersion, len(status.Applied), len(status.Pending))
			if statusOnly {
				for _, applied := range status.Applied {
					fmt.Fprintf(out, "  %03d applied %s\n", applied.Version, applied.AppliedAt.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "List applied migrations")
	return cmd
}

func newSeedCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load workshops and enrollments from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			ctx := cmd.Context()

			doc, err := seed.NewLoader(file).Load()
			if err != nil {
				return err
			}

			rt, err := openRuntime(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := seed.Apply(ctx, rt.storage, doc, time.Now().UTC(), c.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new and %d existing workshops with %d enrollments\n",
				result.Created, result.Updated, result.Enrollments)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Seed YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPreviewCmd(c *cli) *cobra.Command {
	var (
		workshopID string
		day        int
		at         string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the meeting link status of a workshop's sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			ctx := cmd.Context()

			now := time.Now
			if at != "" {
				instant, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				now = func() time.Time { return instant }
			}

			rt, err := openRuntime(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Previews never generate, so no provider is needed.
			svc := rt.services(nil, nil, now, uuid.NewString)

			var previews []application.LinkPreview
			if day > 0 {
				preview, err := svc.links.PreviewLink(ctx, workshopID, day)
				if err != nil {
					return err
				}
				previews = append(previews, preview)
			} else {
				previews, err = svc.links.ListSessions(ctx, workshopID)
				if err != nil {
					return err
				}
			}
			return writePreviews(cmd.OutOrStdout(), previews, rt.cfg.Timezone)
		},
	}
	cmd.Flags().StringVar(&workshopID, "workshop", "", "Workshop ID")
	cmd.Flags().IntVar(&day, "day", 0, "Day index (1-based); all sessions when omitted")
	cmd.Flags().StringVar(&at, "at", "", "Evaluate at this RFC3339 instant instead of now")
	_ = cmd.MarkFlagRequired("workshop")
	return cmd
}

func writePreviews(w io.Writer, previews []application.LinkPreview, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tSTART\tSTATUS\tDETAIL")
	for _, p := range previews {
		detail := ""
		switch p.Status {
		case application.LinkStatusGenerated:
			detail = p.Link
		case application.LinkStatusPending:
			detail = "opens in " + scheduler.FormatWait(p.WaitRemaining)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.DayIndex, p.Start.In(loc).Format("Mon 2006-01-02 15:04 MST"), p.Status, detail)
	}
	return tw.Flush()
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the bcrypt hash for WORKSHOP_ADMIN_KEY_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				key = strings.TrimSpace(line)
			}

			hash, err := application.HashAdminKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
