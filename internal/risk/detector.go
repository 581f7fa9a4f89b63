package risk

import (
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/iam-copilot/internal/snapshot"
)

const (
	dateLayout = "2006-01-02"

	DefaultInactiveDays = 90
	DefaultRecentDays   = 30
)

type Detector struct {
	logger        *slog.Logger
	referenceDate time.Time
	inactiveDays  int
	recentDays    int
}

type Option func(*Detector)

// WithReferenceDate pins "today" for the date based rules. A zero time keeps the default.
func WithReferenceDate(t time.Time) Option {
	return func(d *Detector) {
		if !t.IsZero() {
			d.referenceDate = t
		}
	}
}

func WithWindows(inactiveDays, recentDays int) Option {
	return func(d *Detector) {
		if inactiveDays > 0 {
			d.inactiveDays = inactiveDays
		}
		if recentDays > 0 {
			d.recentDays = recentDays
		}
	}
}

func NewDetector(logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		logger:        logger,
		referenceDate: time.Now(),
		inactiveDays:  DefaultInactiveDays,
		recentDays:    DefaultRecentDays,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) ReferenceDate() time.Time {
	return d.referenceDate
}

// inactiveCutoff and recentCutoff are compared against raw ISO strings, so both
// sides must be zero padded YYYY-MM-DD.
func (d *Detector) inactiveCutoff() string {
	return d.referenceDate.AddDate(0, 0, -d.inactiveDays).Format(dateLayout)
}

func (d *Detector) recentCutoff() string {
	return d.referenceDate.AddDate(0, 0, -d.recentDays).Format(dateLayout)
}

// Detect returns the users matching topic, in snapshot order. Unknown topics match nobody.
func (d *Detector) Detect(snap *snapshot.Snapshot, topic Topic) []snapshot.User {
	match := d.predicate(snap, topic)
	if match == nil {
		return nil
	}

	var users []snapshot.User
	for _, u := range snap.Users {
		if match(u) {
			users = append(users, u)
		}
	}
	return users
}

func (d *Detector) predicate(snap *snapshot.Snapshot, topic Topic) func(snapshot.User) bool {
	switch topic {
	case WeakMFAUsers:
		return func(u snapshot.User) bool {
			return equalsAny(u.MFAStatus, "sms", "email")
		}
	case NoMFAUsers:
		return func(u snapshot.User) bool {
			return isBlank(u.MFAStatus) || equalsAny(u.MFAStatus, "none")
		}
	case InactiveUsers:
		cutoff := d.inactiveCutoff()
		return func(u snapshot.User) bool {
			last := strings.TrimSpace(u.LastLogin)
			return last != "" && last < cutoff
		}
	case NeverLoggedInUsers:
		return func(u snapshot.User) bool {
			return isBlank(u.LastLogin)
		}
	case PartiallyOffboardedUsers:
		lingering := snap.UsersWithLingeringAccess()
		return func(u snapshot.User) bool {
			return equalsAny(u.Status, "offboarded") && lingering.Has(u.UserID)
		}
	case ServiceAccounts:
		return func(u snapshot.User) bool {
			return equalsAny(u.AccountType, "service")
		}
	case LocalAccounts:
		return func(u snapshot.User) bool {
			return equalsAny(u.AccountType, "local")
		}
	case RecentlyJoinedUsers:
		cutoff := d.recentCutoff()
		return func(u snapshot.User) bool {
			start := datePart(u.EmploymentStartDate)
			return start != "" && start > cutoff
		}
	default:
		return nil
	}
}

// Matches runs every detection and groups the matched topics per user.
func (d *Detector) Matches(snap *snapshot.Snapshot) map[string][]Topic {
	matches := make(map[string][]Topic, len(snap.Users))
	for _, topic := range allTopics {
		users := d.Detect(snap, topic)
		for _, u := range users {
			matches[u.UserID] = append(matches[u.UserID], topic)
		}
		d.logger.Debug("risk detected", "topic", topic.String(), "users", len(users))
	}
	return matches
}

// Assign detects all topics and resolves them to one topic per user.
func (d *Detector) Assign(snap *snapshot.Snapshot) Assignment {
	assignment := Resolve(snap, d.Matches(snap))
	d.logger.Info("risk topics assigned",
		"users", len(snap.Users),
		"at_risk", len(assignment),
		"reference_date", d.referenceDate.Format(dateLayout))
	return assignment
}

func equalsAny(value string, candidates ...string) bool {
	value = strings.TrimSpace(value)
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func datePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		return s[:len(dateLayout)]
	}
	return s
}
