package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/api/handlers"
	"github.com/maheshrc27/contentflow/internal/logging"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/queue"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/maheshrc27/contentflow/internal/transfer"
	"github.com/maheshrc27/contentflow/pkg/utils"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	scheduler service.SchedulerService
}

// open returns a pre-run hook that opens the post store and builds the
// scheduler around it. With load unset the store is never loaded, so no
// record on disk is rewritten. The worker is only started by the run command.
func (a *app) open(load bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return a.setup(cmd, load)
	}
}

func (a *app) setup(cmd *cobra.Command, load bool) error {
	a.cfg = config.LoadConfig()
	logger := logging.New(a.cfg.LogLevel)

	posts, err := repository.NewPostRepository(a.cfg.Scheduler.DataDir,
		repository.WithDefaultMaxAttempts(a.cfg.Scheduler.MaxAttempts),
		repository.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if load {
		if _, err := posts.LoadAll(cmd.Context()); err != nil {
			return err
		}
	}

	dispatcher := service.NewDispatcher([]service.Publisher{
		service.NewLinkedInService(*a.cfg, logger),
		service.NewFacebookService(*a.cfg, logger),
	}, service.NewCredentialService(*a.cfg), service.DispatcherOptions{
		Timeout:   a.cfg.Scheduler.PublishTimeout,
		SecretKey: a.cfg.SecretKey,
		Logger:    logger,
	})
	worker := queue.NewWorker(posts, dispatcher, nil, queue.WorkerOptions{
		Interval:    a.cfg.Scheduler.PollInterval,
		Backoff:     a.cfg.Scheduler.RetryBackoff,
		MaxAttempts: a.cfg.Scheduler.MaxAttempts,
		Logger:      logger,
	})
	a.scheduler = service.NewSchedulerService(posts, worker, service.SchedulerOptions{
		MaxAttempts:  a.cfg.Scheduler.MaxAttempts,
		SecretKey:    a.cfg.SecretKey,
		Logger:       logger,
		ReadFromDisk: !load,
	})
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "contentctl",
		Short:         "Schedule and publish LinkedIn and Facebook posts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	withStore := func(cmd *cobra.Command, load bool) *cobra.Command {
		cmd.PersistentPreRunE = a.open(load)
		return cmd
	}

	root.AddCommand(
		withStore(newScheduleCmd(a), true),
		withStore(newListCmd(a), false),
		withStore(newCancelCmd(a), true),
		withStore(newDiagnoseCmd(a), false),
		withStore(newRunCmd(a), true),
		newKeygenCmd(),
		newTokenCmd(),
	)
	return root
}

func newScheduleCmd(a *app) *cobra.Command {
	var (
		file, content, image, at, only string
		in                             int
		platforms                      models.Platforms
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a post from text or a reviewed-content file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			when, err := handlers.ParseScheduleTime(at, in, time.Now())
			if err != nil {
				return err
			}
			if only != "" {
				if platforms, err = models.ParsePlatforms(only); err != nil {
					return err
				}
			}

			var id string
			switch {
			case file != "":
				id, err = a.scheduler.ScheduleFromFile(cmd.Context(), file, when, platforms)
			case content != "":
				id, err = a.scheduler.SchedulePost(cmd.Context(), &transfer.PostCreation{
					Content:          content,
					ImagePath:        image,
					Platforms:        platforms,
					ScheduleDatetime: when,
				})
			default:
				return fmt.Errorf("one of --file or --content is required")
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s scheduled for %s (%s)\n", id, when.Format(time.RFC3339), platforms)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "reviewed-content JSON file")
	cmd.Flags().StringVar(&content, "content", "", "post text")
	cmd.Flags().StringVar(&image, "image", "", "image to attach")
	cmd.Flags().StringVar(&at, "at", "", "publication time (RFC 3339 or 2006-01-02T15:04)")
	cmd.Flags().IntVar(&in, "in", 0, "publish in N minutes")
	cmd.Flags().BoolVar(&platforms.LinkedIn, "linkedin", false, "publish to LinkedIn")
	cmd.Flags().BoolVar(&platforms.Facebook, "facebook", false, "publish to Facebook")
	cmd.Flags().StringVar(&only, "platforms", "", "comma separated platforms, overrides --linkedin and --facebook")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries := a.scheduler.List(cmd.Context())
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scheduled posts")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tPLATFORMS\tATTEMPTS\tIMAGE\tPREVIEW")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
					s.ID, s.ScheduleDatetime.Format(time.RFC3339), s.Platforms, s.Attempts, s.HasImage, s.Preview)
			}
			return w.Flush()
		},
	}
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a scheduled post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.scheduler.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled\n", args[0])
			return nil
		},
	}
}

func newDiagnoseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Report store status counts and image problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			diag, err := a.scheduler.Diagnose(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(diag)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler loop in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.scheduler.Start(ctx); err != nil {
				return err
			}
			log.Printf("Scheduler running on %s, polling every %s", a.cfg.Scheduler.DataDir, a.cfg.Scheduler.PollInterval)
			<-ctx.Done()

			shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return a.scheduler.Stop(shutdown)
		},
	}
}

func newKeygenCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random API or secret key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := utils.GenerateRandomKey(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 24, "random bytes before encoding")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token signed with SECRET_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadConfig()
			if cfg.SecretKey == "" {
				return fmt.Errorf("SECRET_KEY is not set")
			}
			token, err := utils.GenerateToken(cfg.SecretKey, operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "operator name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
