package models

// Post is the subset of a feed post needed to render a shared-post message.
type Post struct {
	BaseModel `bson:",inline"`
	AuthorID  string `gorm:"type:varchar(36);index" json:"authorId" bson:"authorId"`
	Caption   string `gorm:"type:text" json:"caption,omitempty" bson:"caption,omitempty"`
	Image     string `gorm:"type:varchar(512)" json:"image,omitempty" bson:"image,omitempty"`
}

func (Post) TableName() string {
	return "posts"
}
