package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Like is one user's like on a comment. At most one per user per comment.
type Like struct {
	User    primitive.ObjectID `bson:"user" json:"user"`
	LikedAt time.Time          `bson:"likedAt" json:"likedAt"`
}

// Comment belongs to a post and optionally replies to another comment
// on the same post (single level of threading).
type Comment struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Content       string               `bson:"content" json:"content"`
	AuthorID      primitive.ObjectID   `bson:"author" json:"authorId"`
	Author        *UserSummary         `bson:"-" json:"author,omitempty"` // populated in responses only
	PostID        primitive.ObjectID   `bson:"post" json:"postId"`
	ParentComment primitive.ObjectID   `bson:"parentComment,omitempty" json:"parentComment,omitempty"`
	Replies       []primitive.ObjectID `bson:"replies" json:"replies"`
	Likes         []Like               `bson:"likes" json:"likes"`
	LikeCount     int                  `bson:"likeCount" json:"likeCount"`
	IsEdited      bool                 `bson:"isEdited" json:"isEdited"`
	EditedAt      *time.Time           `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	IsActive      bool                 `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasLikeFrom reports whether user has liked the comment.
func (c *Comment) HasLikeFrom(user primitive.ObjectID) bool {
	for _, l := range c.Likes {
		if l.User == user {
			return true
		}
	}
	return false
}

type CreateCommentInput struct {
	Content       string `json:"content" binding:"required,max=500"`
	ParentComment string `json:"parentComment"`
}

type EditCommentInput struct {
	Content string `json:"content" binding:"required,max=500"`
}
