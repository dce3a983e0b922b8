package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport/internal/models"
)

// Memory is the demo-mode Store: a process-lifetime, map-backed mirror
// of the Mongo collections with no persistence and no eviction. It
// applies the same filter, radius, and counter semantics, so handlers
// and tests behave identically over either implementation.
type Memory struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]*models.User
	posts    map[primitive.ObjectID]*models.Post
	comments map[primitive.ObjectID]*models.Comment
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[primitive.ObjectID]*models.User),
		posts:    make(map[primitive.ObjectID]*models.Post),
		comments: make(map[primitive.ObjectID]*models.Comment),
	}
}

// --- Users ---

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicate
		}
	}

	now := time.Now()
	u.ID = primitive.NewObjectID()
	u.CreatedAt = now
	u.UpdatedAt = now

	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateProfile(_ context.Context, id primitive.ObjectID, in models.ProfileUpdateInput) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	if in.Location != nil {
		u.Location = *in.Location
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
	if in.Avatar != nil {
		u.Avatar = *in.Avatar
	}
	u.UpdatedAt = time.Now()

	cp := *u
	return &cp, nil
}

// --- Posts ---

func (m *Memory) CreatePost(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = models.StatusOpen
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	p.IsActive = true
	if p.Images == nil {
		p.Images = []models.Image{}
	}
	p.Votes = []models.Vote{}
	p.CommentIDs = []primitive.ObjectID{}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	cp := clonePost(p)
	m.posts[p.ID] = cp

	if author, ok := m.users[p.AuthorID]; ok {
		author.PostsCount++
	}
	p.Author = m.summaryLocked(p.AuthorID)
	return nil
}

func (m *Memory) PostByID(_ context.Context, id primitive.ObjectID, incrementViews bool) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok || !p.IsActive {
		return nil, ErrNotFound
	}
	if incrementViews {
		p.Views++
	}

	out := clonePost(p)
	out.Author = m.summaryLocked(p.AuthorID)
	out.Comments = m.commentsForPostLocked(id)
	return out, nil
}

func (m *Memory) ListPosts(_ context.Context, q PostQuery) ([]models.Post, int64, error) {
	q.Normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Post
	for _, p := range m.posts {
		if m.matches(p, q) {
			matched = append(matched, p)
		}
	}

	sortPosts(matched, q.SortBy, q.SortDesc)

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]models.Post, 0, end-start)
	for _, p := range matched[start:end] {
		cp := clonePost(p)
		cp.Author = m.summaryLocked(p.AuthorID)
		out = append(out, *cp)
	}
	return out, total, nil
}

func (m *Memory) matches(p *models.Post, q PostQuery) bool {
	if !p.IsActive {
		return false
	}
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.Severity != 0 && p.Severity != q.Severity {
		return false
	}
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.Near != nil {
		if len(p.Location.Coordinates) != 2 {
			return false
		}
		d := distanceM(q.Near.Lng, q.Near.Lat, p.Location.Coordinates[0], p.Location.Coordinates[1])
		if d > q.Near.RadiusM {
			return false
		}
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		hay := strings.ToLower(p.Title + " " + p.Description + " " + strings.Join(p.Tags, " "))
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

func sortPosts(posts []*models.Post, key string, desc bool) {
	less := func(a, b *models.Post) bool {
		switch key {
		case "voteCount":
			return a.VoteCount < b.VoteCount
		case "commentCount":
			return a.CommentCount < b.CommentCount
		case "severity":
			return a.Severity < b.Severity
		case "views":
			return a.Views < b.Views
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if desc {
			return less(posts[j], posts[i])
		}
		return less(posts[i], posts[j])
	})
}

func (m *Memory) SimilarPosts(_ context.Context, category string, lng, lat, radiusM float64, limit int) ([]models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		post *models.Post
		dist float64
	}
	var cands []candidate
	for _, p := range m.posts {
		if !p.IsActive || p.Category != category {
			continue
		}
		if p.Status != models.StatusOpen && p.Status != models.StatusInProgress {
			continue
		}
		if len(p.Location.Coordinates) != 2 {
			continue
		}
		d := distanceM(lng, lat, p.Location.Coordinates[0], p.Location.Coordinates[1])
		if d <= radiusM {
			cands = append(cands, candidate{p, d})
		}
	}

	// Nearest first, matching the $near ordering.
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > limit {
		cands = cands[:limit]
	}

	out := make([]models.Post, 0, len(cands))
	for _, c := range cands {
		cp := clonePost(c.post)
		cp.Author = m.summaryLocked(c.post.AuthorID)
		out = append(out, *cp)
	}
	return out, nil
}

func (m *Memory) PostsByAuthor(_ context.Context, author primitive.ObjectID, limit int) ([]models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Post
	for _, p := range m.posts {
		if p.IsActive && p.AuthorID == author {
			matched = append(matched, p)
		}
	}
	sortPosts(matched, "createdAt", true)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]models.Post, 0, len(matched))
	for _, p := range matched {
		cp := clonePost(p)
		cp.Author = m.summaryLocked(p.AuthorID)
		out = append(out, *cp)
	}
	return out, nil
}

func (m *Memory) ToggleVote(_ context.Context, postID, userID primitive.ObjectID) (VoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok || !p.IsActive {
		return VoteResult{}, ErrNotFound
	}

	idx := -1
	for i, v := range p.Votes {
		if v.User == userID {
			idx = i
			break
		}
	}

	hasVoted := idx < 0
	if idx >= 0 {
		p.Votes = append(p.Votes[:idx], p.Votes[idx+1:]...)
		p.VoteCount--
	} else {
		p.Votes = append(p.Votes, models.Vote{User: userID, VotedAt: time.Now()})
		p.VoteCount++
	}

	if u, ok := m.users[userID]; ok {
		if hasVoted {
			u.VotesGiven++
		} else {
			u.VotesGiven--
		}
	}
	return VoteResult{VoteCount: p.VoteCount, HasVoted: hasVoted}, nil
}

func (m *Memory) HidePost(_ context.Context, postID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok || !p.IsActive {
		return ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	return nil
}

// --- Comments ---

func (m *Memory) CreateComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[c.PostID]
	if !ok || !p.IsActive {
		return ErrNotFound
	}

	var parent *models.Comment
	if !c.ParentComment.IsZero() {
		parent, ok = m.comments[c.ParentComment]
		if !ok || !parent.IsActive || parent.PostID != c.PostID {
			return ErrNotFound
		}
	}

	now := time.Now()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.IsActive = true
	c.Replies = []primitive.ObjectID{}
	c.Likes = []models.Like{}

	m.comments[c.ID] = cloneComment(c)

	p.CommentIDs = append(p.CommentIDs, c.ID)
	p.CommentCount++
	if parent != nil {
		parent.Replies = append(parent.Replies, c.ID)
	}

	c.Author = m.summaryLocked(c.AuthorID)
	return nil
}

func (m *Memory) CommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok || !c.IsActive {
		return nil, ErrNotFound
	}
	out := cloneComment(c)
	out.Author = m.summaryLocked(c.AuthorID)
	return out, nil
}

func (m *Memory) EditComment(_ context.Context, id, author primitive.ObjectID, content string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || !c.IsActive {
		return nil, ErrNotFound
	}
	if c.AuthorID != author {
		return nil, ErrForbidden
	}

	now := time.Now()
	c.Content = content
	c.IsEdited = true
	c.EditedAt = &now
	c.UpdatedAt = now

	out := cloneComment(c)
	out.Author = m.summaryLocked(c.AuthorID)
	return out, nil
}

func (m *Memory) ToggleCommentLike(_ context.Context, commentID, userID primitive.ObjectID) (LikeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[commentID]
	if !ok || !c.IsActive {
		return LikeResult{}, ErrNotFound
	}

	idx := -1
	for i, l := range c.Likes {
		if l.User == userID {
			idx = i
			break
		}
	}

	hasLiked := idx < 0
	if idx >= 0 {
		c.Likes = append(c.Likes[:idx], c.Likes[idx+1:]...)
		c.LikeCount--
	} else {
		c.Likes = append(c.Likes, models.Like{User: userID, LikedAt: time.Now()})
		c.LikeCount++
	}
	return LikeResult{LikeCount: c.LikeCount, HasLiked: hasLiked}, nil
}

// --- internals (callers hold m.mu) ---

func (m *Memory) summaryLocked(id primitive.ObjectID) *models.UserSummary {
	if u, ok := m.users[id]; ok {
		return u.Summary()
	}
	return nil
}

func (m *Memory) commentsForPostLocked(postID primitive.ObjectID) []models.Comment {
	var out []models.Comment
	for _, c := range m.comments {
		if c.IsActive && c.PostID == postID {
			cp := cloneComment(c)
			cp.Author = m.summaryLocked(c.AuthorID)
			out = append(out, *cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].CreatedAt.Before(out[i].CreatedAt) })
	return out
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Images = append([]models.Image(nil), p.Images...)
	cp.Votes = append([]models.Vote(nil), p.Votes...)
	cp.CommentIDs = append([]primitive.ObjectID(nil), p.CommentIDs...)
	cp.Tags = append([]string(nil), p.Tags...)
	if len(p.Location.Coordinates) > 0 {
		cp.Location.Coordinates = append([]float64(nil), p.Location.Coordinates...)
	}
	return &cp
}

func cloneComment(c *models.Comment) *models.Comment {
	cp := *c
	cp.Replies = append([]primitive.ObjectID(nil), c.Replies...)
	cp.Likes = append([]models.Like(nil), c.Likes...)
	return &cp
}
