package core

import (
	"sort"
	"strings"
)

// sortAvailable orders the discovery list for presentation: entries with a
// known user count first, descending by count with case-insensitive name
// as tiebreak; entries without a count after them, by name. The sort is
// stable so equal entries keep their server-reported order.
func sortAvailable(list []AvailableChannelInfo) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.HasUserCount != b.HasUserCount {
			return a.HasUserCount
		}
		if a.HasUserCount && a.UserCount != b.UserCount {
			return a.UserCount > b.UserCount
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// SortedMembers returns the channel's members ordered for display: ops,
// then voiced, then the rest, each class case-insensitively by nickname.
func SortedMembers(ch *Channel) []*User {
	users := make([]*User, 0, len(ch.Users))
	for _, u := range ch.Users {
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if ra, rb := memberRank(a), memberRank(b); ra != rb {
			return ra < rb
		}
		return strings.ToLower(a.Nickname) < strings.ToLower(b.Nickname)
	})
	return users
}

func memberRank(u *User) int {
	switch {
	case u.IsOp():
		return 0
	case u.IsVoice():
		return 1
	default:
		return 2
	}
}
