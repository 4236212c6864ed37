package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.col(colUsers).InsertOne(ctx, u)
	return translateError(err)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return findOne[model.User](ctx, s.col(colUsers), bson.D{{Key: "username", Value: username}})
}

func (s *Store) CountUsers(ctx context.Context, since, until time.Time) (int64, error) {
	n, err := s.col(colUsers).CountDocuments(ctx, timeRange(bson.D{}, "created_at", since, until))
	return n, translateError(err)
}

func (s *Store) ListUsersCreated(ctx context.Context, since, until time.Time) ([]model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[model.User](ctx, s.col(colUsers), timeRange(bson.D{}, "created_at", since, until), opts)
}

func (s *Store) CreateIncident(ctx context.Context, inc model.Incident) error {
	_, err := s.col(colIncidents).InsertOne(ctx, inc)
	return translateError(err)
}

func (s *Store) GetIncident(ctx context.Context, id string) (model.Incident, error) {
	return findOne[model.Incident](ctx, s.col(colIncidents), byID(id))
}

func (s *Store) ListIncidents(ctx context.Context, f db.IncidentFilter) ([]model.Incident, error) {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	if f.Priority != "" {
		filter = append(filter, bson.E{Key: "priority", Value: f.Priority})
	}
	if f.ReportedBy != "" {
		filter = append(filter, bson.E{Key: "fullName", Value: f.ReportedBy})
	}
	filter = timeRange(filter, "created_at", f.Since, f.Until)
	return findAll[model.Incident](ctx, s.col(colIncidents), filter, page(f.Skip, f.Limit))
}

func (s *Store) UpdateIncident(ctx context.Context, inc model.Incident) error {
	return replaceByID(ctx, s.col(colIncidents), inc.ID, inc)
}

func (s *Store) DeleteIncident(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(colIncidents), id)
}

func (s *Store) CountIncidents(ctx context.Context, since, until time.Time) (int64, error) {
	n, err := s.col(colIncidents).CountDocuments(ctx, timeRange(bson.D{}, "created_at", since, until))
	return n, translateError(err)
}

func (s *Store) CreateTyphoon(ctx context.Context, t model.Typhoon) error {
	_, err := s.col(colTyphoons).InsertOne(ctx, t)
	return translateError(err)
}

func (s *Store) GetTyphoon(ctx context.Context, id string) (model.Typhoon, error) {
	return findOne[model.Typhoon](ctx, s.col(colTyphoons), byID(id))
}

func (s *Store) ListTyphoons(ctx context.Context, f db.TyphoonFilter) ([]model.Typhoon, error) {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	return findAll[model.Typhoon](ctx, s.col(colTyphoons), filter, page(f.Skip, f.Limit))
}

func (s *Store) UpdateTyphoon(ctx context.Context, t model.Typhoon) error {
	return replaceByID(ctx, s.col(colTyphoons), t.ID, t)
}

func (s *Store) AppendTrackingPoint(ctx context.Context, id string, p model.TrackingPoint, editor string, at time.Time) (model.Typhoon, error) {
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "trackingPath", Value: p}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: at}, {Key: "updated_by", Value: editor}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t model.Typhoon
	if err := s.col(colTyphoons).FindOneAndUpdate(ctx, byID(id), update, opts).Decode(&t); err != nil {
		return model.Typhoon{}, translateError(err)
	}
	return t, nil
}

func (s *Store) DeleteTyphoon(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(colTyphoons), id)
}

func (s *Store) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	opts := options.UpdateOne().SetUpsert(true)
	update := bson.D{{Key: "$set", Value: sub}}
	_, err := s.col(colSubscriptions).UpdateOne(ctx, bson.D{{Key: "endpoint", Value: sub.Endpoint}}, update, opts)
	return translateError(err)
}

func (s *Store) DeactivateSubscription(ctx context.Context, endpoint string) error {
	filter := bson.D{{Key: "endpoint", Value: endpoint}, {Key: "active", Value: true}}
	res, err := s.col(colSubscriptions).UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}})
	if err != nil {
		return translateError(err)
	}
	if res.ModifiedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, f db.SubscriptionFilter) ([]model.Subscription, error) {
	filter := bson.D{}
	if f.ActiveOnly {
		filter = append(filter, bson.E{Key: "active", Value: true})
	}
	if len(f.UserIDs) > 0 {
		filter = append(filter, bson.E{Key: "user_id", Value: bson.D{{Key: "$in", Value: f.UserIDs}}})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[model.Subscription](ctx, s.col(colSubscriptions), filter, opts)
}

func (s *Store) ActivePreferences(ctx context.Context, userID string) (model.Preferences, error) {
	sub, err := findOne[model.Subscription](ctx, s.col(colSubscriptions),
		bson.D{{Key: "user_id", Value: userID}, {Key: "active", Value: true}})
	if err != nil {
		return model.Preferences{}, err
	}
	return sub.Preferences, nil
}

func (s *Store) UpdatePreferences(ctx context.Context, userID string, p model.Preferences) (int64, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "active", Value: true}}
	res, err := s.col(colSubscriptions).UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "preferences", Value: p}}}})
	if err != nil {
		return 0, translateError(err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	n, err := s.col(colSubscriptions).CountDocuments(ctx, bson.D{{Key: "active", Value: true}})
	return n, translateError(err)
}

func (s *Store) CreateNotificationLog(ctx context.Context, l model.NotificationLog) error {
	_, err := s.col(colNotifications).InsertOne(ctx, l)
	return translateError(err)
}

func (s *Store) ListNotificationLogs(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(db.ClampLimit(limit)))
	return findAll[model.NotificationLog](ctx, s.col(colNotifications), bson.D{}, opts)
}

func (s *Store) CreateEvent(ctx context.Context, e model.Event) error {
	_, err := s.col(colEvents).InsertOne(ctx, e)
	return translateError(err)
}

func (s *Store) ListEvents(ctx context.Context, f db.EventFilter) ([]model.Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "id", Value: -1}}).
		SetLimit(int64(db.ClampLimit(f.Limit)))
	if f.Skip > 0 {
		opts.SetSkip(int64(f.Skip))
	}
	return findAll[model.Event](ctx, s.col(colEvents), timeRange(bson.D{}, "timestamp", f.Since, f.Until), opts)
}

func (s *Store) CountEvents(ctx context.Context, since, until time.Time) (int64, error) {
	n, err := s.col(colEvents).CountDocuments(ctx, timeRange(bson.D{}, "timestamp", since, until))
	return n, translateError(err)
}

func (s *Store) DistinctEventUsers(ctx context.Context, since time.Time) (int64, error) {
	filter := bson.D{
		{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since}}},
		{Key: "user_id", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}},
	}
	res := s.col(colEvents).Distinct(ctx, "user_id", filter)
	var ids []string
	if err := res.Decode(&ids); err != nil {
		return 0, translateError(err)
	}
	return int64(len(ids)), nil
}

func (s *Store) CreateStatusCheck(ctx context.Context, sc model.StatusCheck) error {
	_, err := s.col(colStatus).InsertOne(ctx, sc)
	return translateError(err)
}

func (s *Store) ListStatusChecks(ctx context.Context, limit int) ([]model.StatusCheck, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(int64(db.ClampLimit(limit)))
	return findAll[model.StatusCheck](ctx, s.col(colStatus), bson.D{}, opts)
}
