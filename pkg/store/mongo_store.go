package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

const (
	usersCollection = "users"
	booksCollection = "books"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	books  *mongo.Collection
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password,omitempty"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type bookDocument struct {
	ID                 string    `bson:"_id"`
	Title              string    `bson:"title"`
	Description        string    `bson:"description"`
	Category           string    `bson:"category"`
	PublishYear        int       `bson:"publishYear"`
	CoverImage         string    `bson:"coverImage"`
	CoverImagePublicID string    `bson:"coverImagePublicId"`
	PDF                string    `bson:"pdf"`
	PDFPublicID        string    `bson:"pdfPublicId"`
	PageCount          int       `bson:"pageCount,omitempty"`
	UploadedBy         string    `bson:"uploadedBy"`
	UploadedByName     string    `bson:"uploadedByName"`
	IsApproved         bool      `bson:"isApproved"`
	CreatedAt          time.Time `bson:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

// NewMongoStore connects to uri, verifies the connection and ensures indexes.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	if strings.TrimSpace(dbName) == "" {
		return nil, errors.New("mongo database name required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(dbName)
	s := &MongoStore{
		client: client,
		users:  db.Collection(usersCollection),
		books:  db.Collection(booksCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	_, err = s.books.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isApproved", Value: 1}, {Key: "publishYear", Value: -1}}},
		{Keys: bson.D{{Key: "uploadedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create books indexes: %w", err)
	}
	return nil
}

// SaveUser inserts a new user.
func (s *MongoStore) SaveUser(ctx context.Context, u domain.User) error {
	_, err := s.users.InsertOne(ctx, userToDocument(u))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

// GetUserByEmail looks up a user by email.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// GetUserByID returns a user by ID.
func (s *MongoStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (domain.User, bool, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromDocument(doc), true, nil
}

// ListUsers returns a page of users without password hashes.
func (s *MongoStore) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	total, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetProjection(bson.M{"password": 0}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetSkip(int64(offset)).SetLimit(int64(limit))
	}
	cur, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	res := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		res = append(res, userFromDocument(d))
	}
	return res, total, nil
}

// ListUsersByIDs returns the users matching ids.
func (s *MongoStore) ListUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		res = append(res, userFromDocument(d))
	}
	return res, nil
}

// SaveBook inserts a new book.
func (s *MongoStore) SaveBook(ctx context.Context, b domain.Book) error {
	_, err := s.books.InsertOne(ctx, bookToDocument(b))
	return err
}

// GetBook retrieves a book.
func (s *MongoStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var doc bookDocument
	if err := s.books.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromDocument(doc), true, nil
}

// ListBooks returns one page of books matching q plus the total match count.
func (s *MongoStore) ListBooks(ctx context.Context, q BookQuery) ([]domain.Book, int64, error) {
	filter := bookFilter(q)
	total, err := s.books.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bookSort(q.Sort))
	if q.Limit > 0 {
		opts.SetSkip(int64(q.Offset)).SetLimit(int64(q.Limit))
	}
	cur, err := s.books.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []bookDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	res := make([]domain.Book, 0, len(docs))
	for _, d := range docs {
		res = append(res, bookFromDocument(d))
	}
	return res, total, nil
}

// bookFilter translates q into a Mongo filter. Text inputs are matched as
// literal, case-insensitive substrings.
func bookFilter(q BookQuery) bson.M {
	filter := bson.M{}
	if q.OwnerID != "" {
		filter["uploadedBy"] = q.OwnerID
	}
	switch q.Status {
	case domain.StatusApproved:
		filter["isApproved"] = true
	case domain.StatusPending:
		filter["isApproved"] = false
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		re := substringRegex(text)
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"uploadedByName": re},
		}
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		filter["category"] = substringRegex(category)
	}
	if q.PublishYear != 0 {
		filter["publishYear"] = q.PublishYear
	}
	return filter
}

func substringRegex(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

func bookSort(order BookSort) bson.D {
	switch order {
	case SortYearAsc:
		return bson.D{{Key: "publishYear", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	case SortYearDesc:
		return bson.D{{Key: "publishYear", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	}
}

// ApproveBook sets the approval flag.
func (s *MongoStore) ApproveBook(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.books.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"isApproved": true,
		"updatedAt":  at.UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// DeleteBook removes a book.
func (s *MongoStore) DeleteBook(ctx context.Context, id string) (bool, error) {
	res, err := s.books.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Ping checks the connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func userToDocument(u domain.User) userDocument {
	return userDocument{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Password:  u.PasswordHash,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userFromDocument(d userDocument) domain.User {
	return domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Role:         domain.UserRole(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func bookToDocument(b domain.Book) bookDocument {
	return bookDocument{
		ID:                 b.ID,
		Title:              b.Title,
		Description:        b.Description,
		Category:           b.Category,
		PublishYear:        b.PublishYear,
		CoverImage:         b.CoverImage,
		CoverImagePublicID: b.CoverImageID,
		PDF:                b.PDF,
		PDFPublicID:        b.PDFID,
		PageCount:          b.PageCount,
		UploadedBy:         b.UploadedBy,
		UploadedByName:     b.UploadedByName,
		IsApproved:         b.IsApproved,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func bookFromDocument(d bookDocument) domain.Book {
	return domain.Book{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Category:       d.Category,
		PublishYear:    d.PublishYear,
		CoverImage:     d.CoverImage,
		CoverImageID:   d.CoverImagePublicID,
		PDF:            d.PDF,
		PDFID:          d.PDFPublicID,
		PageCount:      d.PageCount,
		UploadedBy:     d.UploadedBy,
		UploadedByName: d.UploadedByName,
		IsApproved:     d.IsApproved,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
