package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport/internal/models"
	"civicreport/internal/store"
)

func (e *Env) LikeComment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid comment ID")
		return
	}

	result, err := e.Store.ToggleCommentLike(c.Request.Context(), id, currentUser(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Comment not found")
			return
		}
		log.Printf("Error processing comment like: %v", err)
		fail(c, http.StatusInternalServerError, "Error processing like")
		return
	}

	message := "Like removed"
	if result.HasLiked {
		message = "Like added"
	}
	ok(c, http.StatusOK, gin.H{
		"message":   message,
		"likeCount": result.LikeCount,
		"hasLiked":  result.HasLiked,
	})
}

func (e *Env) EditComment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid comment ID")
		return
	}

	var input models.EditCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Comment content is required")
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	comment, err := e.Store.EditComment(c.Request.Context(), id, currentUser(c), content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			fail(c, http.StatusNotFound, "Comment not found")
		case errors.Is(err, store.ErrForbidden):
			fail(c, http.StatusForbidden, "Only the author can edit a comment")
		default:
			log.Printf("Error editing comment: %v", err)
			fail(c, http.StatusInternalServerError, "Error editing comment")
		}
		return
	}

	ok(c, http.StatusOK, gin.H{
		"message": "Comment updated successfully",
		"comment": comment,
	})
}
