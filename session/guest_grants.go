package session

import (
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/patrickmn/go-cache"
)

// TaskGuestCache holds short-lived per-task grants for guest accounts, used
// by guest-facing endpoints to authorize without a full login.
var TaskGuestCache = cache.New(GuestGrantExpiration, 5*time.Minute)

const GuestGrantExpiration = 7 * 24 * time.Hour

func taskGuestKey(taskID, userID types.ID) string {
	return fmt.Sprintf("task-guest-%d-%d", taskID, userID)
}

func ActivateTaskGuestCache(taskID, userID types.ID) {
	TaskGuestCache.Set(taskGuestKey(taskID, userID), true, GuestGrantExpiration)
}

func DeactivateTaskGuestCache(taskID, userID types.ID) {
	TaskGuestCache.Delete(taskGuestKey(taskID, userID))
}

func HasTaskGuestGrant(taskID, userID types.ID) bool {
	_, found := TaskGuestCache.Get(taskGuestKey(taskID, userID))
	return found
}
