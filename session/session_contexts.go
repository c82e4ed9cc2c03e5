package session

import (
	"context"

	"pneumatic/domain"

	"github.com/fundwit/go-commons/types"
)

type Identity struct {
	ID        types.ID `json:"id"`
	AccountID types.ID `json:"accountId"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`

	Type string `json:"type"` // USER, GUEST

	IsAccountOwner bool `json:"isAccountOwner"`
	IsAdmin        bool `json:"isAdmin"`
	IsSuperuser    bool `json:"-"`
}

type Context struct {
	Context context.Context `json:"-"`

	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

func (c *Context) IsGuest() bool {
	return c.Identity.Type == domain.UserTypeGuest
}

// CanManagePerformers reports whether the identity may change performers of
// workflows of the given template without being a performer itself.
func (c *Context) CanManagePerformers(template *domain.Template) bool {
	if c.Identity.IsAccountOwner || c.Identity.IsAdmin {
		return true
	}
	return template != nil && template.OwnerIDs.Contains(c.Identity.ID)
}
