package usecase

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/ErlanBelekov/task-notifier/internal/repository"
)

const (
	// DigestMark names the marker holding the time of the last completed digest pass.
	DigestMark = "digest.last"

	defaultDigestCooldown = 4 * time.Minute
)

// Marks stores named timestamps across job runs. Implemented by *scheduler.State.
type Marks interface {
	LastMark(key string) (time.Time, bool)
	SetMark(key string, at time.Time)
}

type DigestConfig struct {
	// Cooldown is the minimum gap between two digest passes. Defaults to 4m.
	Cooldown time.Duration
	// Horizon limits a digest to tasks scheduled before now+Horizon. Unscheduled tasks
	// are always included. Zero means no limit.
	Horizon time.Duration
}

type DigestSummary struct {
	// Ran is false when the pass was suppressed by the cool-down.
	Ran    bool
	Owners int
	Sent   int
	Failed int
}

type DigestUsecase struct {
	tasks    repository.TaskRepository
	notifier Notifier
	cooldown time.Duration
	horizon  time.Duration
	logger   *slog.Logger

	mu sync.Mutex
}

func NewDigestUsecase(tasks repository.TaskRepository, notifier Notifier, cfg DigestConfig, logger *slog.Logger) *DigestUsecase {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultDigestCooldown
	}
	return &DigestUsecase{
		tasks:    tasks,
		notifier: notifier,
		cooldown: cfg.Cooldown,
		horizon:  cfg.Horizon,
		logger:   logger.With("component", "digest"),
	}
}

type ownerDigest struct {
	email     string
	firstName string
	tasks     []*domain.OutstandingTask
}

// MaybeDispatchDigests sends each owner one summary of their outstanding tasks, at most
// once per cool-down. The marker moves once the pass completes, even if some sends
// failed; it does not move when the task listing itself fails.
func (u *DigestUsecase) MaybeDispatchDigests(ctx context.Context, now time.Time, marks Marks) (DigestSummary, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var sum DigestSummary
	if last, ok := marks.LastMark(DigestMark); ok && now.Sub(last) < u.cooldown {
		return sum, nil
	}

	outstanding, err := u.tasks.ListOutstanding(ctx)
	if err != nil {
		return sum, fmt.Errorf("list outstanding tasks: %w", err)
	}
	sum.Ran = true

	owners, order := u.group(outstanding, now)
	sum.Owners = len(order)

	for _, userID := range order {
		d := owners[userID]
		if d.email == "" {
			u.logger.DebugContext(ctx, "owner has no email address, skipping digest", "user_id", userID)
			continue
		}

		n := domain.Notification{
			Kind:    domain.NotificationDigest,
			To:      d.email,
			Subject: digestSubject(len(d.tasks)),
			Body:    digestBody(d),
		}
		if err := u.notifier.Deliver(ctx, n); err != nil {
			u.logger.WarnContext(ctx, "digest delivery failed", "user_id", userID, "error", err)
			sum.Failed++
			continue
		}
		sum.Sent++
	}

	marks.SetMark(DigestMark, now)
	metrics.DigestsTotal.WithLabelValues("sent").Add(float64(sum.Sent))
	metrics.DigestsTotal.WithLabelValues("failed").Add(float64(sum.Failed))
	return sum, nil
}

// group buckets tasks by owner, drops terminal and out-of-horizon tasks, and sorts each
// bucket. order lists owner IDs in a stable order.
func (u *DigestUsecase) group(tasks []*domain.OutstandingTask, now time.Time) (map[string]*ownerDigest, []string) {
	owners := make(map[string]*ownerDigest)
	var order []string

	for _, t := range tasks {
		if t.Status.Terminal() || !u.withinHorizon(&t.Task, now) {
			continue
		}
		d, ok := owners[t.UserID]
		if !ok {
			d = &ownerDigest{email: t.OwnerEmail, firstName: t.OwnerFirstName}
			owners[t.UserID] = d
			order = append(order, t.UserID)
		}
		d.tasks = append(d.tasks, t)
	}

	for _, d := range owners {
		slices.SortStableFunc(d.tasks, compareForDigest)
	}
	slices.Sort(order)
	return owners, order
}

func (u *DigestUsecase) withinHorizon(t *domain.Task, now time.Time) bool {
	if u.horizon <= 0 {
		return true
	}
	at, _, ok := t.ScheduledAt()
	if !ok {
		return true
	}
	return at.Before(now.Add(u.horizon))
}

// Priority descending, then earliest schedule (unscheduled last), then title.
func compareForDigest(a, b *domain.OutstandingTask) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	aAt, _, aOK := a.ScheduledAt()
	bAt, _, bOK := b.ScheduledAt()
	switch {
	case aOK && !bOK:
		return -1
	case !aOK && bOK:
		return 1
	case aOK && bOK:
		if c := aAt.Compare(bAt); c != 0 {
			return c
		}
	}
	return strings.Compare(a.Title, b.Title)
}

func digestSubject(n int) string {
	if n == 1 {
		return "You have 1 outstanding task"
	}
	return fmt.Sprintf("You have %d outstanding tasks", n)
}

func digestBody(d *ownerDigest) string {
	var b strings.Builder
	name := d.firstName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nHere is what is still open:\n\n", name)
	for _, t := range d.tasks {
		fmt.Fprintf(&b, "- **%s** (%s, %s", t.Title, t.Priority, t.Status)
		if at, hasTime, ok := t.ScheduledAt(); ok {
			if hasTime {
				fmt.Fprintf(&b, ", due %s", at.Format(timeLayout))
			} else {
				fmt.Fprintf(&b, ", due %s", at.Format("2006-01-02"))
			}
		}
		b.WriteString(")\n")
	}
	return b.String()
}
