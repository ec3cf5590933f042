package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dmv-prep/backend/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const progressCollection = "user_progress"

// MongoStore maps the merge rules onto update operators so concurrent
// writers from different devices never overwrite each other's fields.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(progressCollection)}
}

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Println("[progress] connected to MongoDB")
	return client, nil
}

func (s *MongoStore) Load(ctx context.Context, userID string) (*models.UserProgressDocument, error) {
	var doc models.UserProgressDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	doc.UserID = userID
	doc.Normalize()
	return &doc, nil
}

func (s *MongoStore) Save(ctx context.Context, userID string, update models.ProgressUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	filter := bson.M{"_id": userID}
	_, err := s.collection.UpdateOne(ctx, filter, buildMongoUpdate(update, time.Now().UTC()),
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	// firstScore is only written while the field is still absent.
	for n, first := range firstScores(update) {
		path := "tests." + strconv.Itoa(n) + ".firstScore"
		_, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": userID, path: bson.M{"$exists": false}},
			bson.M{"$set": bson.M{path: first}},
		)
		if err != nil {
			return fmt.Errorf("save first score: %w", err)
		}
	}
	return nil
}

// buildMongoUpdate translates a ProgressUpdate into update operators. The
// wrong-queue is written as sent; Load filters it against mastered ids.
func buildMongoUpdate(update models.ProgressUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	unset := bson.M{}
	maxOps := bson.M{}
	addToSet := bson.M{}

	if update.SelectedState != nil {
		set["selectedState"] = *update.SelectedState
	}

	for n, stats := range update.Tests {
		if stats == nil {
			continue
		}
		prefix := "tests." + strconv.Itoa(n) + "."
		maxOps[prefix+"attemptCount"] = stats.AttemptCount
		maxOps[prefix+"bestScore"] = stats.BestScore
		if stats.LastAttemptDate != nil {
			maxOps[prefix+"lastAttemptDate"] = *stats.LastAttemptDate
		}
	}

	for n, session := range update.Sessions {
		key := "sessions." + strconv.Itoa(n)
		if session == nil || session.Completed {
			unset[key] = ""
			continue
		}
		set[key] = session
	}

	for id, p := range update.Training {
		if p == nil {
			continue
		}
		prefix := "training." + id + "."
		wrong := make([]string, 0, len(p.WrongQueue))
		for _, q := range p.WrongQueue {
			if !p.IsMastered(q) {
				wrong = append(wrong, q)
			}
		}
		set[prefix+"wrongQueue"] = wrong
		maxOps[prefix+"correctCount"] = max(p.CorrectCount, len(p.MasteredIDs))
		if len(p.MasteredIDs) > 0 {
			addToSet[prefix+"masteredIds"] = bson.M{"$each": p.MasteredIDs}
		}
	}

	if len(update.ActiveDates) > 0 {
		addToSet["activeDates"] = bson.M{"$each": update.ActiveDates}
	}

	if update.Subscription != nil {
		set["subscription"] = *update.Subscription
	}

	ops := bson.M{"$set": set}
	if len(unset) > 0 {
		ops["$unset"] = unset
	}
	if len(maxOps) > 0 {
		ops["$max"] = maxOps
	}
	if len(addToSet) > 0 {
		ops["$addToSet"] = addToSet
	}
	return ops
}

func firstScores(update models.ProgressUpdate) map[int]int {
	out := map[int]int{}
	for n, stats := range update.Tests {
		if stats != nil && stats.FirstScore != nil {
			out[n] = *stats.FirstScore
		}
	}
	return out
}
