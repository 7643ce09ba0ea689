package models

// Role is the caller's privilege level.
type Role string

const (
	RolePlain Role = "plain"
	RoleAdmin Role = "admin"
)

// User 代表系统中的用户。Users are managed elsewhere; this service only reads them.
type User struct {
	BaseModel    `bson:",inline"`
	Name         string `gorm:"type:varchar(100)" json:"name" bson:"name"`
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username" bson:"username"`
	Email        string `gorm:"type:varchar(100);index" json:"email,omitempty" bson:"email"`
	PasswordHash string `gorm:"type:varchar(255)" json:"-" bson:"passwordHash"`
	Avatar       string `gorm:"type:varchar(512)" json:"avatar,omitempty" bson:"avatar,omitempty"`
	ProfileImage string `gorm:"type:varchar(512)" json:"profileImage,omitempty" bson:"profileImage,omitempty"`
	Role         Role   `gorm:"type:varchar(20);default:'plain';index" json:"role" bson:"role"`
	PushToken    string `gorm:"type:varchar(255)" json:"-" bson:"pushToken,omitempty"`

	// Mongo keeps the social graph on the user document; SQL uses the follows table.
	Following []string `gorm:"-" json:"-" bson:"following,omitempty"`
	Followers []string `gorm:"-" json:"-" bson:"followers,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName falls back to the username when no name is set.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// DisplayImage returns whichever of the two legacy image fields is populated.
func (u *User) DisplayImage() string {
	if u == nil {
		return ""
	}
	if u.ProfileImage != "" {
		return u.ProfileImage
	}
	return u.Avatar
}

// UserBasicInfo holds minimal public information about a user.
type UserBasicInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// BasicInfo projects the user onto its public fields. Email is omitted unless withEmail is set.
func (u *User) BasicInfo(withEmail bool) *UserBasicInfo {
	if u == nil {
		return nil
	}
	info := &UserBasicInfo{
		ID:       u.ID,
		Name:     u.DisplayName(),
		Username: u.Username,
		Avatar:   u.DisplayImage(),
		Role:     u.Role,
	}
	if withEmail {
		info.Email = u.Email
	}
	return info
}
