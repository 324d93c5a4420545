package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aleks8/blog-list/internal/models"
)

const defaultMongoDatabase = "bloglist"

type blogDocument struct {
	ID     primitive.ObjectID  `bson:"_id,omitempty"`
	Title  string              `bson:"title"`
	Author string              `bson:"author"`
	URL    string              `bson:"url"`
	Likes  int                 `bson:"likes"`
	User   *primitive.ObjectID `bson:"user,omitempty"`
}

func (d blogDocument) model() models.Blog {
	blog := models.Blog{
		ID:     d.ID.Hex(),
		Title:  d.Title,
		Author: d.Author,
		URL:    d.URL,
		Likes:  d.Likes,
	}
	if d.User != nil {
		blog.User = d.User.Hex()
	}
	return blog
}

type userDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Username     string               `bson:"username"`
	Name         string               `bson:"name"`
	PasswordHash string               `bson:"passwordHash"`
	Blogs        []primitive.ObjectID `bson:"blogs"`
}

func (d userDocument) model() models.User {
	user := models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Blogs:        make([]string, 0, len(d.Blogs)),
	}
	for _, id := range d.Blogs {
		user.Blogs = append(user.Blogs, id.Hex())
	}
	return user
}

// MongoStore keeps blogs and users in two collections. Each user document
// carries the ids of the blogs it created.
type MongoStore struct {
	client *mongo.Client
	blogs  *mongo.Collection
	users  *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := newMongoStore(client, client.Database(mongoDatabaseName(uri)))
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create username index: %w", err)
	}
	return s, nil
}

func newMongoStore(client *mongo.Client, database *mongo.Database) *MongoStore {
	return &MongoStore{
		client: client,
		blogs:  database.Collection("blogs"),
		users:  database.Collection("users"),
	}
}

// byInsertion orders finds by _id. ObjectIDs lead with their creation time
// and a per-process counter.
func byInsertion() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
}

func mongoDatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

func (s *MongoStore) Close() {
	_ = s.client.Disconnect(context.Background())
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) ListBlogs(ctx context.Context) ([]models.Blog, error) {
	cur, err := s.blogs.Find(ctx, bson.D{}, byInsertion())
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	var docs []blogDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode blogs: %w", err)
	}
	blogs := make([]models.Blog, 0, len(docs))
	for _, doc := range docs {
		blogs = append(blogs, doc.model())
	}
	return blogs, nil
}

func (s *MongoStore) GetBlog(ctx context.Context, id string) (*models.Blog, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var doc blogDocument
	if err := s.blogs.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get blog: %w", err)
	}
	blog := doc.model()
	return &blog, nil
}

func (s *MongoStore) CreateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error) {
	doc := blogDocument{
		ID:     primitive.NewObjectID(),
		Title:  blog.Title,
		Author: blog.Author,
		URL:    blog.URL,
		Likes:  blog.Likes,
	}
	if blog.User != "" {
		uid, err := primitive.ObjectIDFromHex(blog.User)
		if err != nil {
			return nil, ErrInvalidID
		}
		doc.User = &uid
	}
	if _, err := s.blogs.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}
	if doc.User != nil {
		_, err := s.users.UpdateByID(ctx, *doc.User, bson.M{"$push": bson.M{"blogs": doc.ID}})
		if err != nil {
			// A blog with an owner exists only while the owner lists it.
			if _, delErr := s.blogs.DeleteOne(ctx, bson.M{"_id": doc.ID}); delErr != nil {
				return nil, fmt.Errorf("link blog to user: %w (rollback: %v)", err, delErr)
			}
			return nil, fmt.Errorf("link blog to user: %w", err)
		}
	}
	created := doc.model()
	return &created, nil
}

func (s *MongoStore) UpdateBlog(ctx context.Context, blog models.Blog) (*models.Blog, error) {
	oid, err := primitive.ObjectIDFromHex(blog.ID)
	if err != nil {
		return nil, ErrInvalidID
	}
	update := bson.M{"$set": bson.M{
		"title":  blog.Title,
		"author": blog.Author,
		"url":    blog.URL,
		"likes":  blog.Likes,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc blogDocument
	if err := s.blogs.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}
	updated := doc.model()
	return &updated, nil
}

func (s *MongoStore) DeleteBlog(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	var doc blogDocument
	if err := s.blogs.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return fmt.Errorf("delete blog: %w", err)
	}
	if doc.User != nil {
		_, err := s.users.UpdateByID(ctx, *doc.User, bson.M{"$pull": bson.M{"blogs": doc.ID}})
		if err != nil {
			return fmt.Errorf("unlink blog from user: %w", err)
		}
	}
	return nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.D{}, byInsertion())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.model())
	}
	return users, nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user := doc.model()
	return &user, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     user.Username,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		Blogs:        []primitive.ObjectID{},
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	created := doc.model()
	return &created, nil
}

func (s *MongoStore) Reset(ctx context.Context) error {
	if _, err := s.blogs.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("reset blogs: %w", err)
	}
	if _, err := s.users.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("reset users: %w", err)
	}
	return nil
}
