package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

const (
	usersCollection = "users"
	bugsCollection  = "bugs"
)

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         domain.Role        `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (m mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID.Hex(),
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// mongoBug mirrors domain.Bug; the rank fields exist so sorting by priority
// or status follows severity instead of string order.
type mongoBug struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Title        string             `bson:"title"`
	Description  string             `bson:"description"`
	Status       domain.BugStatus   `bson:"status"`
	StatusRank   int                `bson:"status_rank"`
	Priority     domain.BugPriority `bson:"priority"`
	PriorityRank int                `bson:"priority_rank"`
	CreatedBy    string             `bson:"created_by"`
	AssignedTo   *string            `bson:"assigned_to"`
	Comments     []domain.Comment   `bson:"comments"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (m mongoBug) toDomain() *domain.Bug {
	comments := m.Comments
	if comments == nil {
		comments = []domain.Comment{}
	}
	return &domain.Bug{
		ID:          m.ID.Hex(),
		Title:       m.Title,
		Description: m.Description,
		Status:      m.Status,
		Priority:    m.Priority,
		CreatedBy:   m.CreatedBy,
		AssignedTo:  m.AssignedTo,
		Comments:    comments,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// EnsureMongoIndexes creates the indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}
	_, err = db.Collection(bugsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "assigned_to", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("bugs indexes: %w", err)
	}
	return nil
}

// NewMongoStores returns repositories backed by db.
func NewMongoStores(db *mongo.Database) Stores {
	return Stores{
		Users:  &mongoUserRepository{db: db},
		Bugs:   &mongoBugRepository{db: db},
		Health: mongoPinger{client: db.Client()},
	}
}

type mongoPinger struct{ client *mongo.Client }

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, nil)
}

type mongoUserRepository struct {
	db *mongo.Database
}

func (r *mongoUserRepository) users() *mongo.Collection { return r.db.Collection(usersCollection) }

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := mongoNow()
	doc := mongoUser{
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.users().InsertOne(ctx, doc)
	if err != nil {
		return mapMongoError(err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id %T", res.InsertedID)
	}
	user.ID = oid.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return ErrNotFound
	}
	now := mongoNow()
	res, err := r.users().UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"role":          user.Role,
		"updated_at":    now,
	}})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	user.UpdatedAt = now
	if user.Role != domain.RoleDeveloper {
		return r.unassign(ctx, user.ID)
	}
	return nil
}

// Delete removes the user and clears any assignments pointing at them. The two
// writes are not transactional; a failure in between leaves a dangling
// assignee that the next assignment overwrites.
func (r *mongoUserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.users().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return r.unassign(ctx, id)
}

// unassign clears assigned_to on every bug pointing at userID.
func (r *mongoUserRepository) unassign(ctx context.Context, userID string) error {
	_, err := r.db.Collection(bugsCollection).UpdateMany(ctx,
		bson.M{"assigned_to": userID},
		bson.M{"$set": bson.M{"assigned_to": nil, "updated_at": mongoNow()}},
	)
	return err
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := bson.M{}
	if filter.Role != nil {
		query["role"] = *filter.Role
	}
	cur, err := r.users().Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := []domain.User{}
	for cur.Next(ctx) {
		var doc mongoUser
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, *doc.toDomain())
	}
	return result, cur.Err()
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc mongoUser
	if err := r.users().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toDomain(), nil
}

type mongoBugRepository struct {
	db *mongo.Database
}

func (r *mongoBugRepository) bugs() *mongo.Collection { return r.db.Collection(bugsCollection) }

func (r *mongoBugRepository) Create(ctx context.Context, bug *domain.Bug) error {
	now := mongoNow()
	if bug.Comments == nil {
		bug.Comments = []domain.Comment{}
	}
	doc := mongoBug{
		Title:        bug.Title,
		Description:  bug.Description,
		Status:       bug.Status,
		StatusRank:   bug.Status.Rank(),
		Priority:     bug.Priority,
		PriorityRank: bug.Priority.Rank(),
		CreatedBy:    bug.CreatedBy,
		AssignedTo:   bug.AssignedTo,
		Comments:     bug.Comments,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.bugs().InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id %T", res.InsertedID)
	}
	bug.ID = oid.Hex()
	bug.CreatedAt = now
	bug.UpdatedAt = now
	return nil
}

func (r *mongoBugRepository) GetByID(ctx context.Context, id string) (*domain.Bug, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoBug
	if err := r.bugs().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *mongoBugRepository) Update(ctx context.Context, id string, patch domain.BugPatch) (*domain.Bug, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	if patch.AssignSet && patch.AssignedTo != nil {
		if err := r.checkDeveloper(ctx, *patch.AssignedTo); err != nil {
			return nil, err
		}
	}

	set := bson.M{"updated_at": mongoNow()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
		set["status_rank"] = patch.Status.Rank()
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
		set["priority_rank"] = patch.Priority.Rank()
	}
	if patch.AssignSet {
		set["assigned_to"] = patch.AssignedTo
	}

	var doc mongoBug
	err = r.bugs().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toDomain(), nil
}

// checkDeveloper re-reads the assignee right before the write. Mongo offers no
// cross-document lock here, so the window is narrowed rather than closed.
func (r *mongoBugRepository) checkDeveloper(ctx context.Context, userID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrInvalidAssignee
	}
	err = r.db.Collection(usersCollection).FindOne(ctx, bson.M{
		"_id":  oid,
		"role": domain.RoleDeveloper,
	}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrInvalidAssignee
	}
	return err
}

func (r *mongoBugRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.bugs().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoBugRepository) List(ctx context.Context, filter BugFilter) ([]domain.Bug, int64, error) {
	query := bson.M{}
	if filter.CreatedBy != nil {
		query["created_by"] = *filter.CreatedBy
	}
	if filter.AssignedTo != nil {
		query["assigned_to"] = *filter.AssignedTo
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.Priority != nil {
		query["priority"] = *filter.Priority
	}

	total, err := r.bugs().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	opts := options.Find().
		SetSort(mongoSort(filter.Sort)).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.bugs().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	result := []domain.Bug{}
	for cur.Next(ctx) {
		var doc mongoBug
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, err
		}
		result = append(result, *doc.toDomain())
	}
	return result, total, cur.Err()
}

func mongoSort(order BugSort) bson.D {
	if order.Field == "" {
		order = DefaultBugSort
	}
	dir := 1
	if order.Descending {
		dir = -1
	}
	switch order.Field {
	case SortPriority:
		return bson.D{{Key: "priority_rank", Value: dir}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	case SortStatus:
		return bson.D{{Key: "status_rank", Value: dir}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}
	}
}

func (r *mongoBugRepository) AddComment(ctx context.Context, bugID string, comment domain.Comment) (*domain.Bug, error) {
	oid, err := primitive.ObjectIDFromHex(bugID)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoBug
	err = r.bugs().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"comments": comment},
			"$set":  bson.M{"updated_at": mongoNow()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *mongoBugRepository) DeleteComment(ctx context.Context, bugID, commentID string) error {
	oid, err := primitive.ObjectIDFromHex(bugID)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.bugs().UpdateOne(ctx,
		bson.M{"_id": oid, "comments.id": commentID},
		bson.M{
			"$pull": bson.M{"comments": bson.M{"id": commentID}},
			"$set":  bson.M{"updated_at": mongoNow()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

// mongoNow truncates to the millisecond precision BSON dates keep.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
