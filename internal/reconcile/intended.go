package reconcile

import (
	"sort"

	"github.com/pysugar/wg-provisioner/internal/db/models"
)

// IntendedUsers returns the users that should hold an account on serverID:
// every explicitly granted user plus every admin. Grants of unknown users are
// ignored. The result is ordered by user id.
func IntendedUsers(serverID uint, grants []models.AccessGrant, users []models.User) []models.User {
	granted := make(map[uint]bool, len(grants))
	for _, g := range grants {
		if g.ServerID == serverID {
			granted[g.UserID] = true
		}
	}
	out := make([]models.User, 0, len(granted))
	for _, u := range users {
		if u.IsAdmin || granted[u.ID] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasAccess reports whether user belongs to the intended set of serverID.
func HasAccess(user models.User, serverID uint, grants []models.AccessGrant) bool {
	return len(IntendedUsers(serverID, grants, []models.User{user})) == 1
}
