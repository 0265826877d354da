package exilium

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	usersCollection  = "users"
	marketCollection = "market"
	configCollection = "config"
	economiaDocID    = "economia"

	mongoOpTimeout = 5 * time.Second
)

// MongoStore is the primary document backend. All timeouts are short: a
// slow database round-trip must not stall command handling for long before
// the dual store flips to the file fallback.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	market *mongo.Collection
	config *mongo.Collection
	log    *zap.Logger
}

// mongoUser wraps a UserRecord with the string _id key.
type mongoUser struct {
	ID         string `bson:"_id"`
	UserRecord `bson:",inline"`
}

// economiaDoc mirrors the config collection layout: one document with
// _id "economia" and the reference data under "data".
type economiaDoc struct {
	ID   string          `bson:"_id"`
	Data *EconomiaConfig `bson:"data"`
}

// ConnectMongo dials the database with bounded connect, socket and server
// selection timeouts and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(mongoOpTimeout).
		SetServerSelectionTimeout(mongoOpTimeout).
		SetSocketTimeout(mongoOpTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(database)
	return &MongoStore{
		client: client,
		users:  db.Collection(usersCollection),
		market: db.Collection(marketCollection),
		config: db.Collection(configCollection),
		log:    log,
	}, nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*UserRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	var doc mongoUser
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec := doc.UserRecord
	return &rec, true, nil
}

func (s *MongoStore) SetUser(ctx context.Context, userID string, rec *UserRecord) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	doc := mongoUser{ID: userID, UserRecord: *rec}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": userID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) UpdateUser(ctx context.Context, userID string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	_, err := s.users.DeleteOne(ctx, bson.M{"_id": userID})
	return err
}

func (s *MongoStore) ListUsers(ctx context.Context) (map[string]*UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cursor, err := s.users.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := make(map[string]*UserRecord)
	for cursor.Next(ctx) {
		var doc mongoUser
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		rec := doc.UserRecord
		out[doc.ID] = &rec
	}
	return out, cursor.Err()
}

func (s *MongoStore) ListListings(ctx context.Context) ([]*MarketListing, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	cursor, err := s.market.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*MarketListing
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) PutListing(ctx context.Context, listing *MarketListing) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	_, err := s.market.ReplaceOne(ctx, bson.M{"_id": listing.ID}, listing, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteListing(ctx context.Context, listingID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	_, err := s.market.DeleteOne(ctx, bson.M{"_id": listingID})
	return err
}

func (s *MongoStore) GetEconomia(ctx context.Context) (*EconomiaConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	var doc economiaDoc
	err := s.config.FindOne(ctx, bson.M{"_id": economiaDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *MongoStore) SetEconomia(ctx context.Context, cfg *EconomiaConfig) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	_, err := s.config.UpdateOne(ctx,
		bson.M{"_id": economiaDocID},
		bson.M{"$set": bson.M{"data": cfg}},
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
