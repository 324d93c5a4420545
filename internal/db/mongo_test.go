package db

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/aleks8/blog-list/internal/models"
)

func mockStore(mt *mtest.T) *MongoStore {
	return newMongoStore(mt.Client, mt.Client.Database(defaultMongoDatabase))
}

func TestMongoListsInInsertionOrder(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("blogs", func(mt *mtest.T) {
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, defaultMongoDatabase+".blogs", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}, {Key: "title", Value: "a"}, {Key: "url", Value: "u"}},
			bson.D{{Key: "_id", Value: second}, {Key: "title", Value: "b"}, {Key: "url", Value: "u"}},
		))

		blogs, err := mockStore(mt).ListBlogs(context.Background())
		if err != nil {
			mt.Fatalf("list: %v", err)
		}
		if len(blogs) != 2 || blogs[0].ID != first.Hex() || blogs[1].ID != second.Hex() {
			mt.Fatalf("unexpected blogs %+v", blogs)
		}
		expectIDSort(mt)
	})

	mt.Run("users", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, defaultMongoDatabase+".users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "username", Value: "root"}},
		))

		users, err := mockStore(mt).ListUsers(context.Background())
		if err != nil {
			mt.Fatalf("list: %v", err)
		}
		if len(users) != 1 || users[0].Username != "root" || len(users[0].Blogs) != 0 {
			mt.Fatalf("unexpected users %+v", users)
		}
		expectIDSort(mt)
	})
}

func expectIDSort(mt *mtest.T) {
	mt.Helper()
	evt := mt.GetStartedEvent()
	if evt == nil || evt.CommandName != "find" {
		mt.Fatalf("expected a find command, got %+v", evt)
	}
	sort, ok := evt.Command.Lookup("sort").DocumentOK()
	if !ok {
		mt.Fatalf("find sent without sort: %s", evt.Command)
	}
	if dir := sort.Lookup("_id").AsInt64(); dir != 1 {
		mt.Fatalf("expected ascending _id sort, got %s", sort)
	}
}

func TestMongoCreateBlogRollsBackWhenUserLinkFails(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("push fails", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "push rejected"}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		userID := primitive.NewObjectID().Hex()
		blog, err := mockStore(mt).CreateBlog(context.Background(), models.Blog{Title: "t", URL: "u", User: userID})
		if err == nil || blog != nil {
			mt.Fatalf("expected link error, got %+v, %v", blog, err)
		}

		var commands []string
		for _, evt := range mt.GetAllStartedEvents() {
			commands = append(commands, evt.CommandName)
		}
		if len(commands) != 3 || commands[0] != "insert" || commands[1] != "update" || commands[2] != "delete" {
			mt.Fatalf("expected insert, update, delete; got %v", commands)
		}
	})

	mt.Run("malformed owner", func(mt *mtest.T) {
		if _, err := mockStore(mt).CreateBlog(context.Background(), models.Blog{Title: "t", URL: "u", User: "x"}); !errors.Is(err, ErrInvalidID) {
			mt.Fatalf("expected ErrInvalidID, got %v", err)
		}
		if n := len(mt.GetAllStartedEvents()); n != 0 {
			mt.Fatalf("expected no commands, got %d", n)
		}
	})
}
