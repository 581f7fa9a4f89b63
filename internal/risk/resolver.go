package risk

import "github.com/frahmantamala/iam-copilot/internal/snapshot"

// Assignment maps a UserID to its single resolved topic. Users without risk are absent.
type Assignment map[string]Topic

func (a Assignment) TopicFor(userID string) (Topic, bool) {
	t, ok := a[userID]
	return t, ok
}

// Counts returns the number of users per topic, including topics with no users.
func (a Assignment) Counts() map[Topic]int {
	counts := make(map[Topic]int, len(allTopics))
	for _, t := range allTopics {
		counts[t] = 0
	}
	for _, t := range a {
		counts[t]++
	}
	return counts
}

// Resolve picks, for every user in the snapshot, the matched topic earliest in the
// priority order. Matches for IDs that are not snapshot users are ignored.
func Resolve(snap *snapshot.Snapshot, matches map[string][]Topic) Assignment {
	assignment := make(Assignment)
	for _, u := range snap.Users {
		if best, ok := highestPriority(matches[u.UserID]); ok {
			assignment[u.UserID] = best
		}
	}
	return assignment
}

func highestPriority(topics []Topic) (Topic, bool) {
	var (
		best    Topic
		bestIdx = len(priorityOrder)
	)
	for _, t := range topics {
		idx, ok := priorityIndex[t]
		if ok && idx < bestIdx {
			best, bestIdx = t, idx
		}
	}
	return best, bestIdx < len(priorityOrder)
}
