package hierarchy

import (
	"errors"
	"fmt"

	"certipanel/models"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// Directory answers tree questions against the users table. Construct it on
// the pool for standalone reads or on an open transaction to join one.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) GetUser(userID uint) (models.User, error) {
	var user models.User
	if err := d.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%w: id=%d", ErrUserNotFound, userID)
		}
		return models.User{}, err
	}
	return user, nil
}

type NewUser struct {
	Username     string
	PasswordHash string
	Role         string
	ParentID     *uint
	FullName     string
	Email        string
	Phone        string
	Country      string
}

// CreateUserUnderParent inserts a user and assigns its materialized path and
// depth in the same transaction. The path embeds the freshly assigned id, so
// the row is created first and the path written before commit.
func (d *Directory) CreateUserUnderParent(in NewUser) (models.User, error) {
	if in.Role == models.RoleRoot && in.ParentID != nil {
		return models.User{}, fmt.Errorf("%w: root cannot have a parent", ErrBrokenHierarchy)
	}
	if in.Role != models.RoleRoot && in.ParentID == nil {
		return models.User{}, fmt.Errorf("%w: role %s requires a parent", ErrBrokenHierarchy, in.Role)
	}

	var parent models.User
	if in.ParentID != nil {
		if err := d.db.First(&parent, *in.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.User{}, fmt.Errorf("%w: parent id=%d", ErrUserNotFound, *in.ParentID)
			}
			return models.User{}, err
		}
		if !parent.IsActive {
			return models.User{}, fmt.Errorf("%w: parent %d is inactive", ErrBrokenHierarchy, parent.ID)
		}
	}

	user := models.User{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		ParentID:     in.ParentID,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Country:      in.Country,
		IsActive:     true,
	}

	tx := d.db.Begin()
	if tx.Error != nil {
		return models.User{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return models.User{}, err
	}

	user.Path = BuildPath(parent.Path, user.ID)
	user.Depth = parent.Depth + 1
	if in.ParentID == nil {
		user.Path = BuildPath("", user.ID)
		user.Depth = 0
	}

	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"path": user.Path, "depth": user.Depth}).Error; err != nil {
		tx.Rollback()
		return models.User{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (d *Directory) DirectChildren(userID uint) ([]models.User, error) {
	var children []models.User
	err := d.db.Where("parent_id = ?", userID).Order("id asc").Find(&children).Error
	return children, err
}

// SubtreeUsers returns the whole subtree rooted at root, root included,
// derived from the materialized path rather than an object-graph walk.
func (d *Directory) SubtreeUsers(root models.User) ([]models.User, error) {
	if root.Path == "" {
		return nil, fmt.Errorf("%w: user %d has no path", ErrBrokenHierarchy, root.ID)
	}
	var users []models.User
	err := d.db.Where("path = ? OR path LIKE ?", root.Path, root.Path+".%").
		Order("depth asc, id asc").Find(&users).Error
	return users, err
}

func (d *Directory) SubtreeIDs(root models.User) ([]uint, error) {
	users, err := d.SubtreeUsers(root)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}
