package entity

// ChatReaction is set membership, not a counter: one row per (user, emoji).
type ChatReaction struct {
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// GroupReactions aggregates a reaction set by emoji, preserving first-seen
// emoji order.
func GroupReactions(reactions []ChatReaction) []ReactionGroup {
	var groups []ReactionGroup
	index := map[string]int{}

	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].UserIDs = append(groups[i].UserIDs, r.UserID)
	}

	return groups
}

type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"user_ids"`
}

func (g ReactionGroup) Count() int {
	return len(g.UserIDs)
}

func (g ReactionGroup) Contains(userID string) bool {
	for _, id := range g.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
