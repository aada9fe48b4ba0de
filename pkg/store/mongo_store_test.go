package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

func TestBookFilterPublicQuery(t *testing.T) {
	filter := bookFilter(BookQuery{
		Status:      domain.StatusApproved,
		Text:        "c++ (2nd)",
		Category:    "prog",
		PublishYear: 2020,
	})
	if filter["isApproved"] != true {
		t.Fatalf("expected approved filter, got %v", filter["isApproved"])
	}
	if filter["publishYear"] != 2020 {
		t.Fatalf("expected year filter, got %v", filter["publishYear"])
	}
	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected $or with two clauses, got %#v", filter["$or"])
	}
	title := or[0].(bson.M)["title"].(primitive.Regex)
	if title.Pattern != `c\+\+ \(2nd\)` || title.Options != "i" {
		t.Fatalf("unexpected title regex: %+v", title)
	}
	if _, ok := or[1].(bson.M)["uploadedByName"]; !ok {
		t.Fatalf("expected uploader clause, got %#v", or[1])
	}
	category := filter["category"].(primitive.Regex)
	if category.Pattern != "prog" || category.Options != "i" {
		t.Fatalf("unexpected category regex: %+v", category)
	}
}

func TestBookFilterOwnerPending(t *testing.T) {
	filter := bookFilter(BookQuery{OwnerID: "u1", Status: domain.StatusPending, Text: "   "})
	if filter["uploadedBy"] != "u1" || filter["isApproved"] != false {
		t.Fatalf("unexpected filter: %#v", filter)
	}
	if _, ok := filter["$or"]; ok {
		t.Fatalf("blank text must not add a clause")
	}
	if len(bookFilter(BookQuery{})) != 0 {
		t.Fatalf("empty query should match everything")
	}
}

func TestBookSortOrders(t *testing.T) {
	if got := bookSort(SortYearAsc)[0]; got.Key != "publishYear" || got.Value != 1 {
		t.Fatalf("unexpected oldest sort: %+v", got)
	}
	if got := bookSort(SortYearDesc)[0]; got.Key != "publishYear" || got.Value != -1 {
		t.Fatalf("unexpected year sort: %+v", got)
	}
	if got := bookSort(SortNewest)[0]; got.Key != "createdAt" || got.Value != -1 {
		t.Fatalf("unexpected default sort: %+v", got)
	}
}
