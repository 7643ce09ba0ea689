package models

import "time"

// Follow is a directed edge in the social graph: FollowerID follows FolloweeID.
type Follow struct {
	FollowerID string    `gorm:"type:varchar(36);primaryKey" json:"followerId"`
	FolloweeID string    `gorm:"type:varchar(36);primaryKey;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Follow) TableName() string {
	return "follows"
}
