package service

import (
	"sort"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/mention"
	"github.com/mbeoliero/huddle/pkg/constant"
)

// usersToRoster maps users to mention entities ordered by display name, then
// Id. The system user is never mentionable.
func usersToRoster(users []*entity.User) []mention.Entity {
	roster := make([]mention.Entity, 0, len(users))
	for _, u := range users {
		if u == nil || u.Id == constant.SystemUserId {
			continue
		}
		roster = append(roster, mention.Entity{Id: u.Id, Name: u.DisplayName()})
	}
	sort.SliceStable(roster, func(i, j int) bool {
		if roster[i].Name != roster[j].Name {
			return roster[i].Name < roster[j].Name
		}
		return roster[i].Id < roster[j].Id
	})
	return roster
}

// filterRoster keeps the entries whose Id is in allowed, preserving order
func filterRoster(roster []mention.Entity, allowed []string) []mention.Entity {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	result := make([]mention.Entity, 0, len(roster))
	for _, e := range roster {
		if _, ok := set[e.Id]; ok {
			result = append(result, e)
		}
	}
	return result
}
