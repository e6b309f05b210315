package services

import (
	"context"
	"sync"
	"time"

	"nfl-pickem/database"
	"nfl-pickem/logging"
	"nfl-pickem/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WeekChangeFunc is called when stored games for a week change
type WeekChangeFunc func(ctx context.Context, season, week int)

// ChangeStreamWatcher relays writes made by other processes sharing the
// database: pick changes become live events and game changes trigger the
// week's resolution. Local writes publish directly, so the same change can
// reach subscribers twice; consumers re-fetch and debounce.
type ChangeStreamWatcher struct {
	db            *database.MongoDB
	publisher     Publisher
	onWeekChanged WeekChangeFunc
	retryDelay    time.Duration
	logger        *logging.Logger
}

// NewChangeStreamWatcher creates a new change stream watcher
func NewChangeStreamWatcher(db *database.MongoDB, publisher Publisher, onWeekChanged WeekChangeFunc) *ChangeStreamWatcher {
	return &ChangeStreamWatcher{
		db:            db,
		publisher:     publisher,
		onWeekChanged: onWeekChanged,
		retryDelay:    5 * time.Second,
		logger:        logging.WithPrefix("ChangeStream"),
	}
}

// Run watches the picks and games collections until ctx is done
func (w *ChangeStreamWatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.watchCollection(ctx, "picks", picksPipeline(), w.handlePickChange)
	}()
	go func() {
		defer wg.Done()
		w.watchCollection(ctx, "games", gamesPipeline(), w.handleGameChange)
	}()
	wg.Wait()
}

// picksPipeline keeps inserts, replaces and updates that touch user-visible fields
func picksPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": []bson.M{
				{"operationType": bson.M{"$in": []string{"insert", "replace"}}},
				{
					"operationType": "update",
					"$or": []bson.M{
						{"updateDescription.updatedFields.is_finalized": bson.M{"$exists": true}},
						{"updateDescription.updatedFields.prop_bet": bson.M{"$exists": true}},
						{"updateDescription.updatedFields.prop_bet.status": bson.M{"$exists": true}},
						{"updateDescription.updatedFields.prop_bet.outcome": bson.M{"$exists": true}},
						{"updateDescription.updatedFields.outcomes": bson.M{"$exists": true}},
						{"updateDescription.updatedFields.selections": bson.M{"$exists": true}},
					},
				},
			},
		}}},
	}
}

// gamesPipeline keeps changes to results and schedule
func gamesPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": []string{"insert", "replace", "update"}},
		}}},
	}
}

func (w *ChangeStreamWatcher) watchCollection(ctx context.Context, name string, pipeline mongo.Pipeline, handle func(context.Context, bson.M)) {
	collection := w.db.GetCollection(name)
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	for {
		stream, err := collection.Watch(ctx, pipeline, opts)
		if err != nil {
			w.logger.Errorf("Error creating change stream for %s: %v", name, err)
		} else {
			w.logger.Infof("Watching %s collection", name)
			for stream.Next(ctx) {
				var event bson.M
				if err := stream.Decode(&event); err != nil {
					w.logger.Warnf("Error decoding change event from %s: %v", name, err)
					continue
				}
				handle(ctx, event)
			}
			if err := stream.Err(); err != nil && ctx.Err() == nil {
				w.logger.Errorf("Change stream error for %s: %v", name, err)
			}
			_ = stream.Close(context.Background())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
			w.logger.Infof("Reconnecting to %s", name)
		}
	}
}

func (w *ChangeStreamWatcher) handlePickChange(_ context.Context, event bson.M) {
	live, ok := pickEventFromChange(event)
	if !ok {
		return
	}
	w.publisher.Publish(live)
}

func (w *ChangeStreamWatcher) handleGameChange(ctx context.Context, event bson.M) {
	season, week, ok := weekFromChange(event)
	if !ok || w.onWeekChanged == nil {
		return
	}
	w.logger.Debugf("Games changed for week %d/%d", season, week)
	w.onWeekChanged(ctx, season, week)
}

// pickEventFromChange converts a picks change event into a live event
func pickEventFromChange(event bson.M) (models.LiveEvent, bool) {
	doc, ok := event["fullDocument"].(bson.M)
	if !ok {
		return models.LiveEvent{}, false
	}
	userID, okUser := intField(doc, "user_id")
	week, okWeek := intField(doc, "week")
	if !okUser || !okWeek {
		return models.LiveEvent{}, false
	}

	eventType := models.EventPickUpdate
	if updated, ok := event["updateDescription"].(bson.M); ok {
		if fields, ok := updated["updatedFields"].(bson.M); ok {
			if finalized, ok := fields["is_finalized"].(bool); ok && finalized {
				eventType = models.EventPickFinalize
			}
		}
	}
	if op, _ := event["operationType"].(string); op == "insert" {
		if finalized, ok := doc["is_finalized"].(bool); ok && finalized {
			eventType = models.EventPickFinalize
		}
	}
	return models.NewPickEvent(eventType, userID, week), true
}

// weekFromChange extracts the season and week of a games change event
func weekFromChange(event bson.M) (int, int, bool) {
	doc, ok := event["fullDocument"].(bson.M)
	if !ok {
		return 0, 0, false
	}
	season, okSeason := intField(doc, "season")
	week, okWeek := intField(doc, "week")
	return season, week, okSeason && okWeek
}

func intField(doc bson.M, key string) (int, bool) {
	switch v := doc[key].(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
