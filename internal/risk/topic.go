// Package risk tags identity records with the security risk they exhibit.
package risk

import (
	"fmt"
	"strings"
)

// Topic is a closed set of risk categories. The zero value means "no risk".
type Topic uint8

const (
	WeakMFAUsers Topic = iota + 1
	NoMFAUsers
	InactiveUsers
	NeverLoggedInUsers
	PartiallyOffboardedUsers
	ServiceAccounts
	LocalAccounts
	RecentlyJoinedUsers
)

var allTopics = []Topic{
	WeakMFAUsers,
	NoMFAUsers,
	InactiveUsers,
	NeverLoggedInUsers,
	PartiallyOffboardedUsers,
	ServiceAccounts,
	LocalAccounts,
	RecentlyJoinedUsers,
}

// priorityOrder is highest first. Changing it changes every stored assignment.
var priorityOrder = []Topic{
	WeakMFAUsers,
	NoMFAUsers,
	InactiveUsers,
	PartiallyOffboardedUsers,
	NeverLoggedInUsers,
	ServiceAccounts,
	LocalAccounts,
	RecentlyJoinedUsers,
}

var priorityIndex = func() map[Topic]int {
	idx := make(map[Topic]int, len(priorityOrder))
	for i, t := range priorityOrder {
		idx[t] = i
	}
	return idx
}()

// All returns the eight topics in declaration order.
func All() []Topic {
	out := make([]Topic, len(allTopics))
	copy(out, allTopics)
	return out
}

// Priority returns the topics highest priority first.
func Priority() []Topic {
	out := make([]Topic, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

func (t Topic) Valid() bool {
	return t >= WeakMFAUsers && t <= RecentlyJoinedUsers
}

func (t Topic) String() string {
	switch t {
	case WeakMFAUsers:
		return "WEAK_MFA_USERS"
	case NoMFAUsers:
		return "NO_MFA_USERS"
	case InactiveUsers:
		return "INACTIVE_USERS"
	case NeverLoggedInUsers:
		return "NEVER_LOGGED_IN_USERS"
	case PartiallyOffboardedUsers:
		return "PARTIALLY_OFFBOARDED_USERS"
	case ServiceAccounts:
		return "SERVICE_ACCOUNTS"
	case LocalAccounts:
		return "LOCAL_ACCOUNTS"
	case RecentlyJoinedUsers:
		return "RECENTLY_JOINED_USERS"
	default:
		return ""
	}
}

func (t Topic) Description() string {
	switch t {
	case WeakMFAUsers:
		return "users whose MFA method is SMS or email"
	case NoMFAUsers:
		return "users with no MFA configured"
	case InactiveUsers:
		return "users who have not logged in for over 90 days"
	case NeverLoggedInUsers:
		return "users who have never logged in"
	case PartiallyOffboardedUsers:
		return "offboarded users who still belong to an application or group"
	case ServiceAccounts:
		return "non-human service accounts"
	case LocalAccounts:
		return "local accounts not managed by the identity provider"
	case RecentlyJoinedUsers:
		return "users who joined within the last 30 days"
	default:
		return ""
	}
}

func (t Topic) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid risk topic %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Topic) UnmarshalText(text []byte) error {
	parsed, ok := ParseTopic(string(text))
	if !ok {
		return fmt.Errorf("unknown risk topic %q", string(text))
	}
	*t = parsed
	return nil
}

// ParseTopic maps a stored vocabulary string back to its Topic, ignoring case.
func ParseTopic(s string) (Topic, bool) {
	s = strings.TrimSpace(s)
	for _, t := range allTopics {
		if strings.EqualFold(t.String(), s) {
			return t, true
		}
	}
	return 0, false
}
