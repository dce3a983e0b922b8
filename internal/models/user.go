package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered citizen account.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username   string             `bson:"username" json:"username"`
	Email      string             `bson:"email" json:"email"`
	Password   string             `bson:"password" json:"-"` // bcrypt hash, never serialized
	FullName   string             `bson:"fullName" json:"fullName"`
	Avatar     string             `bson:"avatar" json:"avatar"`
	Location   string             `bson:"location" json:"location"`
	Bio        string             `bson:"bio" json:"bio"`
	PostsCount int                `bson:"postsCount" json:"postsCount"`
	VotesGiven int                `bson:"votesGiven" json:"votesGiven"`
	IsVerified bool               `bson:"isVerified" json:"isVerified"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the subset of User embedded in post and comment
// responses in place of the raw author id.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Username string             `bson:"username" json:"username"`
	FullName string             `bson:"fullName" json:"fullName"`
	Avatar   string             `bson:"avatar" json:"avatar"`
}

// Summary trims a User down to the fields exposed on authored content.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.Avatar}
}

type RegisterInput struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName" binding:"required,max=50"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ProfileUpdateInput uses pointer fields so a partial update only
// touches the keys the request carries; omitted fields keep their
// stored values.
type ProfileUpdateInput struct {
	FullName *string `json:"fullName" binding:"required,max=50"`
	Location *string `json:"location" binding:"omitempty,max=100"`
	Bio      *string `json:"bio" binding:"omitempty,max=200"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=300"`
}
