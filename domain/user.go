package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	UserTypeUser  = "USER"
	UserTypeGuest = "GUEST"

	UserStatusActive   = "ACTIVE"
	UserStatusInactive = "INACTIVE"
)

type User struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Email string `json:"email"`
	Name  string `json:"name"`
	Photo string `json:"photo"`

	Type   string `json:"type"`   // USER, GUEST
	Status string `json:"status"` // ACTIVE, INACTIVE

	IsAccountOwner bool `json:"isAccountOwner"`
	IsAdmin        bool `json:"isAdmin"`
	IsSuperuser    bool `json:"-"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type Group struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AccountID types.ID `json:"accountId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Name    string `json:"name"`
	UserIDs IDList `json:"userIds" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
