package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicreport/internal/models"
)

// Mongo implements Store on a MongoDB database.
type Mongo struct {
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
}

var _ Store = (*Mongo)(nil)

func NewMongo(database *mongo.Database) *Mongo {
	return &Mongo{
		users:    database.Collection("users"),
		posts:    database.Collection("posts"),
		comments: database.Collection("comments"),
	}
}

// EnsureIndexes declares the indexes the query paths rely on: the
// 2dsphere index behind proximity queries, the text index behind
// free-text search, and the unique constraints on user identity.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}

	_, err = m.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{
			{Key: "title", Value: "text"},
			{Key: "description", Value: "text"},
			{Key: "tags", Value: "text"},
		}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "voteCount", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = m.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "parentComment", Value: 1}}},
	})
	return err
}

// --- Users ---

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := m.users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := m.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) UpdateProfile(ctx context.Context, id primitive.ObjectID, in models.ProfileUpdateInput) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if in.FullName != nil {
		set["fullName"] = *in.FullName
	}
	if in.Location != nil {
		set["location"] = *in.Location
	}
	if in.Bio != nil {
		set["bio"] = *in.Bio
	}
	if in.Avatar != nil {
		set["avatar"] = *in.Avatar
	}
	update := bson.M{"$set": set}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	err := m.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) incUserCounters(ctx context.Context, id primitive.ObjectID, posts, votes int) error {
	_, err := m.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{
		"postsCount": posts,
		"votesGiven": votes,
	}})
	return err
}

// --- Posts ---

func (m *Mongo) CreatePost(ctx context.Context, p *models.Post) error {
	now := time.Now()
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

	res, err := m.posts.InsertOne(ctx, p)
	if err != nil {
		return err
	}
	p.ID = res.InsertedID.(primitive.ObjectID)

	// Not atomic with the insert; an accepted stale-counter window.
	if err := m.incUserCounters(ctx, p.AuthorID, 1, 0); err != nil {
		return err
	}
	return m.populatePostAuthors(ctx, []*models.Post{p})
}

func (m *Mongo) PostByID(ctx context.Context, id primitive.ObjectID, incrementViews bool) (*models.Post, error) {
	filter := bson.M{"_id": id, "isActive": true}

	var p models.Post
	var err error
	if incrementViews {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = m.posts.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"views": 1}}, opts).Decode(&p)
	} else {
		err = m.posts.FindOne(ctx, filter).Decode(&p)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := m.populatePostAuthors(ctx, []*models.Post{&p}); err != nil {
		return nil, err
	}
	comments, err := m.commentsForPost(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Comments = comments
	return &p, nil
}

// buildPostFilter translates a PostQuery into a Mongo filter document.
// The geographic predicate uses $geoWithin/$centerSphere rather than
// $near so the same filter is valid for both Find and CountDocuments.
func buildPostFilter(q PostQuery) bson.M {
	filter := bson.M{"isActive": true}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Severity != 0 {
		filter["severity"] = q.Severity
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Near != nil {
		filter["location"] = bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{q.Near.Lng, q.Near.Lat}, q.Near.RadiusM / earthRadiusM},
		}}
	}
	if q.Search != "" {
		filter["$text"] = bson.M{"$search": q.Search}
	}
	return filter
}

func (m *Mongo) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error) {
	q.Normalize()
	filter := buildPostFilter(q)

	dir := 1
	if q.SortDesc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: q.SortBy, Value: dir}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))

	cur, err := m.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, 0, err
	}

	total, err := m.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if err := m.populateAuthors(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (m *Mongo) SimilarPosts(ctx context.Context, category string, lng, lat, radiusM float64, limit int) ([]models.Post, error) {
	filter := bson.M{
		"isActive": true,
		"category": category,
		"status":   bson.M{"$in": bson.A{models.StatusOpen, models.StatusInProgress}},
		"location": bson.M{"$near": bson.M{
			"$geometry":    bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"$maxDistance": radiusM,
		}},
	}

	cur, err := m.posts.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	if err := m.populateAuthors(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (m *Mongo) PostsByAuthor(ctx context.Context, author primitive.ObjectID, limit int) ([]models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := m.posts.Find(ctx, bson.M{"author": author, "isActive": true}, opts)
	if err != nil {
		return nil, err
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	if err := m.populateAuthors(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ToggleVote removes the caller's vote if present, otherwise adds it.
// Each branch is a single guarded document update whose filter asserts
// the vote's presence or absence, so voteCount stays equal to the vote
// array length even under racing duplicate requests.
func (m *Mongo) ToggleVote(ctx context.Context, postID, userID primitive.ObjectID) (VoteResult, error) {
	res, err := m.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "isActive": true, "votes.user": userID},
		bson.M{
			"$pull": bson.M{"votes": bson.M{"user": userID}},
			"$inc":  bson.M{"voteCount": -1},
		})
	if err != nil {
		return VoteResult{}, err
	}

	hasVoted := false
	changed := true
	if res.MatchedCount == 0 {
		res, err = m.posts.UpdateOne(ctx,
			bson.M{"_id": postID, "isActive": true, "votes.user": bson.M{"$ne": userID}},
			bson.M{
				"$push": bson.M{"votes": models.Vote{User: userID, VotedAt: time.Now()}},
				"$inc":  bson.M{"voteCount": 1},
			})
		if err != nil {
			return VoteResult{}, err
		}
		hasVoted = true
		if res.MatchedCount == 0 {
			// Neither branch matched: the post is gone, or a concurrent
			// toggle won both races. This request wrote nothing, so
			// report the actual membership and leave counters alone.
			p, err := m.PostByID(ctx, postID, false)
			if err != nil {
				return VoteResult{}, err
			}
			hasVoted = p.HasVoteFrom(userID)
			changed = false
		}
	}

	if changed {
		delta := 1
		if !hasVoted {
			delta = -1
		}
		if err := m.incUserCounters(ctx, userID, 0, delta); err != nil {
			return VoteResult{}, err
		}
	}

	var p struct {
		VoteCount int `bson:"voteCount"`
	}
	if err := m.posts.FindOne(ctx, bson.M{"_id": postID},
		options.FindOne().SetProjection(bson.M{"voteCount": 1})).Decode(&p); err != nil {
		return VoteResult{}, err
	}
	return VoteResult{VoteCount: p.VoteCount, HasVoted: hasVoted}, nil
}

func (m *Mongo) HidePost(ctx context.Context, postID primitive.ObjectID) error {
	res, err := m.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Comments ---

func (m *Mongo) CreateComment(ctx context.Context, c *models.Comment) error {
	// The post must exist and be active before anything is written.
	if err := m.posts.FindOne(ctx, bson.M{"_id": c.PostID, "isActive": true},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	if !c.ParentComment.IsZero() {
		var parent models.Comment
		err := m.comments.FindOne(ctx, bson.M{"_id": c.ParentComment, "isActive": true}).Decode(&parent)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if parent.PostID != c.PostID {
			return ErrNotFound
		}
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.IsActive = true
	c.Replies = []primitive.ObjectID{}
	c.Likes = []models.Like{}

	res, err := m.comments.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)

	_, err = m.posts.UpdateOne(ctx, bson.M{"_id": c.PostID}, bson.M{
		"$push": bson.M{"comments": c.ID},
		"$inc":  bson.M{"commentCount": 1},
	})
	if err != nil {
		return err
	}

	if !c.ParentComment.IsZero() {
		_, err = m.comments.UpdateOne(ctx, bson.M{"_id": c.ParentComment},
			bson.M{"$push": bson.M{"replies": c.ID}})
		if err != nil {
			return err
		}
	}

	return m.populateCommentAuthors(ctx, []*models.Comment{c})
}

func (m *Mongo) CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var c models.Comment
	err := m.comments.FindOne(ctx, bson.M{"_id": id, "isActive": true}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := m.populateCommentAuthors(ctx, []*models.Comment{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *Mongo) EditComment(ctx context.Context, id, author primitive.ObjectID, content string) (*models.Comment, error) {
	existing, err := m.CommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != author {
		return nil, ErrForbidden
	}

	now := time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Comment
	err = m.comments.FindOneAndUpdate(ctx, bson.M{"_id": id, "isActive": true}, bson.M{
		"$set": bson.M{
			"content":   content,
			"isEdited":  true,
			"editedAt":  now,
			"updatedAt": now,
		},
	}, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := m.populateCommentAuthors(ctx, []*models.Comment{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

// ToggleCommentLike mirrors ToggleVote's guarded-update pattern.
func (m *Mongo) ToggleCommentLike(ctx context.Context, commentID, userID primitive.ObjectID) (LikeResult, error) {
	res, err := m.comments.UpdateOne(ctx,
		bson.M{"_id": commentID, "isActive": true, "likes.user": userID},
		bson.M{
			"$pull": bson.M{"likes": bson.M{"user": userID}},
			"$inc":  bson.M{"likeCount": -1},
		})
	if err != nil {
		return LikeResult{}, err
	}

	hasLiked := false
	if res.MatchedCount == 0 {
		res, err = m.comments.UpdateOne(ctx,
			bson.M{"_id": commentID, "isActive": true, "likes.user": bson.M{"$ne": userID}},
			bson.M{
				"$push": bson.M{"likes": models.Like{User: userID, LikedAt: time.Now()}},
				"$inc":  bson.M{"likeCount": 1},
			})
		if err != nil {
			return LikeResult{}, err
		}
		hasLiked = true
		if res.MatchedCount == 0 {
			// Lost both races; answer with the actual membership.
			existing, err := m.CommentByID(ctx, commentID)
			if err != nil {
				return LikeResult{}, err
			}
			hasLiked = existing.HasLikeFrom(userID)
		}
	}

	var c struct {
		LikeCount int `bson:"likeCount"`
	}
	if err := m.comments.FindOne(ctx, bson.M{"_id": commentID},
		options.FindOne().SetProjection(bson.M{"likeCount": 1})).Decode(&c); err != nil {
		return LikeResult{}, err
	}
	return LikeResult{LikeCount: c.LikeCount, HasLiked: hasLiked}, nil
}

func (m *Mongo) commentsForPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := m.comments.Find(ctx, bson.M{"post": postID, "isActive": true}, opts)
	if err != nil {
		return nil, err
	}
	var comments []models.Comment
	if err := cur.All(ctx, &comments); err != nil {
		return nil, err
	}

	ptrs := make([]*models.Comment, len(comments))
	for i := range comments {
		ptrs[i] = &comments[i]
	}
	if err := m.populateCommentAuthors(ctx, ptrs); err != nil {
		return nil, err
	}
	return comments, nil
}

// --- Author population ---

func (m *Mongo) authorSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.UserSummary, error) {
	if len(ids) == 0 {
		return map[primitive.ObjectID]*models.UserSummary{}, nil
	}
	cur, err := m.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]*models.UserSummary, len(users))
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

func (m *Mongo) populateAuthors(ctx context.Context, posts []models.Post) error {
	ptrs := make([]*models.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	return m.populatePostAuthors(ctx, ptrs)
}

func (m *Mongo) populatePostAuthors(ctx context.Context, posts []*models.Post) error {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, p := range posts {
		if !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			ids = append(ids, p.AuthorID)
		}
	}
	summaries, err := m.authorSummaries(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Author = summaries[p.AuthorID]
	}
	return nil
}

func (m *Mongo) populateCommentAuthors(ctx context.Context, comments []*models.Comment) error {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, c := range comments {
		if !seen[c.AuthorID] {
			seen[c.AuthorID] = true
			ids = append(ids, c.AuthorID)
		}
	}
	summaries, err := m.authorSummaries(ctx, ids)
	if err != nil {
		return err
	}
	for _, c := range comments {
		c.Author = summaries[c.AuthorID]
	}
	return nil
}
