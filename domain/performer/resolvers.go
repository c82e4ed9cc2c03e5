package performer

import (
	"pneumatic/bizerror"
	"pneumatic/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// PerformerKey identifies the performer a request refers to: a user by id, a
// user (or guest) by email, or a group by id.
type PerformerKey struct {
	UserID  types.ID `json:"userId"`
	Email   string   `json:"email"`
	GroupID types.ID `json:"groupId"`
}

func ByID(userID types.ID) PerformerKey {
	return PerformerKey{UserID: userID}
}

func ByEmail(email string) PerformerKey {
	return PerformerKey{Email: email}
}

func ByGroup(groupID types.ID) PerformerKey {
	return PerformerKey{GroupID: groupID}
}

func (k PerformerKey) IsGroup() bool {
	return k.GroupID != 0
}

func (k PerformerKey) IsEmpty() bool {
	return k.UserID == 0 && k.Email == "" && k.GroupID == 0
}

func findUserByKey(tx *gorm.DB, key PerformerKey, accountID types.ID) (*domain.User, error) {
	user := domain.User{}
	query := tx.Where(&domain.User{AccountID: accountID})
	if key.UserID != 0 {
		query = query.Where(&domain.User{ID: key.UserID})
	} else {
		query = query.Where("email = ?", key.Email)
	}
	if err := query.First(&user).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// resolveUserForCreate rejects identities that must not become performers
// through the plain user path: guests, inactive users and users of other
// accounts.
func resolveUserForCreate(tx *gorm.DB, key PerformerKey, accountID types.ID) (*domain.User, error) {
	user, err := findUserByKey(tx, key, accountID)
	if err != nil {
		return nil, err
	}
	if user.Type == domain.UserTypeGuest {
		return nil, bizerror.ErrPerformerNotEligible
	}
	if user.Status != domain.UserStatusActive {
		return nil, bizerror.ErrPerformerNotEligible
	}
	return user, nil
}

// resolveUserForDelete permits inactive users and guests: an assignment of a
// deactivated user must still be removable.
func resolveUserForDelete(tx *gorm.DB, key PerformerKey, accountID types.ID) (*domain.User, error) {
	return findUserByKey(tx, key, accountID)
}

func resolveGroup(tx *gorm.DB, key PerformerKey, accountID types.ID) (*domain.Group, error) {
	group := domain.Group{}
	if err := tx.Where(&domain.Group{ID: key.GroupID, AccountID: accountID}).First(&group).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}
