package main

import (
	"fmt"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/app"
	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/usecase"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedUsername = "seed"
	seedEmail    = "seed@test.local"
)

type seedTask struct {
	title    string
	priority domain.Priority
	// in is the offset from now of the scheduled instant; zero means unscheduled.
	in       time.Duration
	dateOnly bool
}

var seedTasks = []seedTask{
	// Reminder fires within the first tick
	{"Call the dentist", domain.PriorityHigh, 16 * time.Minute, false},
	{"Stand-up notes", domain.PriorityMedium, 20 * time.Minute, false},

	// Reminder later today
	{"Pick up dry cleaning", domain.PriorityLow, 3 * time.Hour, false},

	// Date-only: reminder at 09:00 UTC on the day
	{"Pay rent", domain.PriorityHigh, 48 * time.Hour, true},

	// Unscheduled: only shows up in digests
	{"Read a book", domain.PriorityLow, 0, false},
	{"Clean the garage", domain.PriorityMedium, 0, false},
}

func seedCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "insert a test user and a handful of tasks into the local database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			if e.cfg.Env == "production" {
				return fmt.Errorf("refusing to seed a production database")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			a := app.New(e.cfg, e.pool, e.logger)
			user, err := a.Users.Create(cmd.Context(), &domain.User{
				Username:      seedUsername,
				FirstName:     "Seed",
				Email:         seedEmail,
				PasswordHash:  string(hash),
				EmailVerified: true,
			})
			if err != nil {
				return fmt.Errorf("upsert user: %w", err)
			}

			now := time.Now().UTC()
			for _, st := range seedTasks {
				in := usecase.TaskInput{UserID: user.ID, Title: st.title, Priority: st.priority}
				if st.in > 0 {
					at := now.Add(st.in).Truncate(time.Minute)
					date := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
					in.ScheduledDate = &date
					if !st.dateOnly {
						offset := at.Sub(date)
						in.ScheduledTime = &offset
					}
				}
				if _, err := a.TaskUsecase.Create(cmd.Context(), in); err != nil {
					return fmt.Errorf("create task %q: %w", st.title, err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Seed complete")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  User:          %s (%s)\n", seedUsername, seedEmail)
			fmt.Fprintf(out, "  User ID:       %s\n", user.ID)
			fmt.Fprintf(out, "  Tasks created: %d\n", len(seedTasks))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Get a JWT:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  curl -s -X POST %s/auth/login \\\n", e.cfg.AppBaseURL)
			fmt.Fprintf(out, "    -H 'Content-Type: application/json' \\\n")
			fmt.Fprintf(out, "    -d '{\"username\":\"%s\",\"password\":\"%s\"}'\n", seedUsername, password)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Fire the reminder job without waiting for the scheduler:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  notifyctl run reminders.dispatch")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "password123", "password for the seed user")
	return cmd
}
