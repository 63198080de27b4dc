package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"assetmgt/database"
	"assetmgt/models"
)

// Mongo implements Store on top of a MongoDB replica set.
type Mongo struct {
	client       *mongo.Client
	users        *mongo.Collection
	affiliations *mongo.Collection
	assets       *mongo.Collection
	requests     *mongo.Collection
	assigned     *mongo.Collection
	packages     *mongo.Collection
	payments     *mongo.Collection
}

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	db := client.Database(dbName)
	return &Mongo{
		client:       client,
		users:        db.Collection(database.UsersCollection),
		affiliations: db.Collection(database.AffiliationsCollection),
		assets:       db.Collection(database.AssetsCollection),
		requests:     db.Collection(database.RequestsCollection),
		assigned:     db.Collection(database.AssignedCollection),
		packages:     db.Collection(database.PackagesCollection),
		payments:     db.Collection(database.PaymentsCollection),
	}
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func findOptions(p Page, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit)).SetSkip(int64(p.Skip()))
	}
	return opts
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, p Page, sort bson.D) ([]T, int64, error) {
	items, err := findAll[T](ctx, coll, filter, findOptions(p, sort))
	if err != nil {
		return nil, 0, err
	}
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func regex(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// ==== USERS ====

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := m.users.InsertOne(ctx, u)
	return mapErr(err)
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, mapErr(err)
}

func (m *Mongo) IncrementEmployees(ctx context.Context, hrEmail string) (bool, error) {
	filter := bson.M{
		"email": hrEmail,
		"role":  "hr",
		"$expr": bson.M{"$lt": bson.A{"$currentEmployees", "$packageLimit"}},
	}
	res, err := m.users.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"currentEmployees": 1}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (m *Mongo) DecrementEmployees(ctx context.Context, hrEmail string) error {
	filter := bson.M{"email": hrEmail, "role": "hr", "currentEmployees": bson.M{"$gt": 0}}
	_, err := m.users.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"currentEmployees": -1}})
	return err
}

func (m *Mongo) AddPackageLimit(ctx context.Context, hrEmail, packageName string, n int) error {
	res, err := m.users.UpdateOne(ctx,
		bson.M{"email": hrEmail, "role": "hr"},
		bson.M{
			"$inc": bson.M{"packageLimit": n},
			"$set": bson.M{"subscription": packageName},
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

// ==== ASSETS ====

func (m *Mongo) InsertAsset(ctx context.Context, a *models.Asset) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := m.assets.InsertOne(ctx, a)
	return mapErr(err)
}

func (m *Mongo) AssetByID(ctx context.Context, id primitive.ObjectID) (models.Asset, error) {
	var a models.Asset
	err := m.assets.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	return a, mapErr(err)
}

func (m *Mongo) ListAssets(ctx context.Context, f AssetFilter, p Page) ([]models.Asset, int64, error) {
	filter := bson.M{}
	if len(f.CompanyNames) > 0 {
		filter["companyName"] = bson.M{"$in": f.CompanyNames}
	}
	if f.Search != "" {
		filter["productName"] = regex(f.Search)
	}
	if f.Type != "" {
		filter["productType"] = f.Type
	}
	switch f.Stock {
	case "available":
		filter["availableQuantity"] = bson.M{"$gt": 0}
	case "out":
		filter["availableQuantity"] = bson.M{"$lte": 0}
	}

	sort := bson.D{{Key: "dateAdded", Value: -1}}
	switch f.SortQuantity {
	case "asc":
		sort = bson.D{{Key: "availableQuantity", Value: 1}, {Key: "_id", Value: 1}}
	case "desc":
		sort = bson.D{{Key: "availableQuantity", Value: -1}, {Key: "_id", Value: 1}}
	}
	return findPage[models.Asset](ctx, m.assets, filter, p, sort)
}

func (m *Mongo) UpdateAsset(ctx context.Context, a models.Asset) error {
	res, err := m.assets.UpdateOne(ctx,
		bson.M{"_id": a.ID, "companyName": a.CompanyName},
		bson.M{"$set": bson.M{
			"productName":       a.ProductName,
			"productType":       a.ProductType,
			"productImage":      a.ProductImage,
			"productQuantity":   a.ProductQuantity,
			"availableQuantity": a.AvailableQuantity,
			"updatedAt":         a.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteAsset(ctx context.Context, id primitive.ObjectID, companyName string) error {
	res, err := m.assets.DeleteOne(ctx, bson.M{"_id": id, "companyName": companyName})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) AdjustAvailable(ctx context.Context, id primitive.ObjectID, delta int) (bool, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["availableQuantity"] = bson.M{"$gte": -delta}
	}
	res, err := m.assets.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"availableQuantity": delta}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ==== REQUESTS ====

func (m *Mongo) InsertRequest(ctx context.Context, r *models.Request) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := m.requests.InsertOne(ctx, r)
	return mapErr(err)
}

func (m *Mongo) HasPendingRequest(ctx context.Context, assetID primitive.ObjectID, requesterEmail string) (bool, error) {
	n, err := m.requests.CountDocuments(ctx, bson.M{
		"assetId":        assetID,
		"requesterEmail": requesterEmail,
		"requestStatus":  models.RequestPending,
	})
	return n > 0, err
}

func (m *Mongo) RequestByID(ctx context.Context, id primitive.ObjectID) (models.Request, error) {
	var r models.Request
	err := m.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	return r, mapErr(err)
}

func (m *Mongo) DecideRequest(ctx context.Context, id primitive.ObjectID, status, processedBy string, at time.Time) (bool, error) {
	set := bson.M{"requestStatus": status, "processedBy": processedBy}
	if status == models.RequestApproved {
		set["approvalDate"] = at
	}
	res, err := m.requests.UpdateOne(ctx,
		bson.M{"_id": id, "requestStatus": models.RequestPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, mapErr(err)
	}
	return res.MatchedCount == 1, nil
}

func (m *Mongo) ResetRequest(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := m.requests.UpdateOne(ctx,
		bson.M{"_id": id, "requestStatus": bson.M{"$ne": models.RequestPending}},
		bson.M{
			"$set":   bson.M{"requestStatus": models.RequestPending, "approvalDate": nil},
			"$unset": bson.M{"processedBy": ""},
		},
	)
	if err != nil {
		return false, mapErr(err)
	}
	return res.MatchedCount == 1, nil
}

func (m *Mongo) ListRequests(ctx context.Context, f RequestFilter, p Page) ([]models.Request, int64, error) {
	filter := bson.M{}
	if f.CompanyName != "" {
		filter["companyName"] = f.CompanyName
	}
	if f.RequesterEmail != "" {
		filter["requesterEmail"] = f.RequesterEmail
	}
	if f.Status != "" {
		filter["requestStatus"] = f.Status
	}
	if f.Search != "" {
		filter["$or"] = []bson.M{
			{"requesterName": regex(f.Search)},
			{"requesterEmail": regex(f.Search)},
			{"assetName": regex(f.Search)},
		}
	}
	return findPage[models.Request](ctx, m.requests, filter, p, bson.D{{Key: "requestDate", Value: -1}})
}

// ==== AFFILIATIONS ====

func (m *Mongo) InsertAffiliation(ctx context.Context, a *models.EmployeeAffiliation) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := m.affiliations.InsertOne(ctx, a)
	return mapErr(err)
}

func (m *Mongo) AffiliationFor(ctx context.Context, employeeEmail, companyName string) (models.EmployeeAffiliation, error) {
	var a models.EmployeeAffiliation
	err := m.affiliations.FindOne(ctx, bson.M{"employeeEmail": employeeEmail, "companyName": companyName}).Decode(&a)
	return a, mapErr(err)
}

func (m *Mongo) AffiliationsByEmployee(ctx context.Context, employeeEmail string) ([]models.EmployeeAffiliation, error) {
	return findAll[models.EmployeeAffiliation](ctx, m.affiliations,
		bson.M{"employeeEmail": employeeEmail},
		options.Find().SetSort(bson.D{{Key: "affiliationDate", Value: 1}}))
}

func (m *Mongo) ListAffiliations(ctx context.Context, companyName string, p Page) ([]models.EmployeeAffiliation, int64, error) {
	return findPage[models.EmployeeAffiliation](ctx, m.affiliations,
		bson.M{"companyName": companyName}, p, bson.D{{Key: "affiliationDate", Value: -1}})
}

func (m *Mongo) DeleteAffiliation(ctx context.Context, employeeEmail, companyName string) (bool, error) {
	res, err := m.affiliations.DeleteOne(ctx, bson.M{"employeeEmail": employeeEmail, "companyName": companyName})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// ==== ASSIGNMENTS ====

func (m *Mongo) InsertAssignment(ctx context.Context, a *models.AssignedAsset) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := m.assigned.InsertOne(ctx, a)
	return mapErr(err)
}

func (m *Mongo) HasActiveAssignment(ctx context.Context, assetID primitive.ObjectID, employeeEmail string) (bool, error) {
	n, err := m.assigned.CountDocuments(ctx, bson.M{
		"assetId":       assetID,
		"employeeEmail": employeeEmail,
		"status":        models.AssignmentAssigned,
	})
	return n > 0, err
}

func (m *Mongo) CountAssignments(ctx context.Context, employeeEmail, companyName string) (int64, error) {
	return m.assigned.CountDocuments(ctx, bson.M{"employeeEmail": employeeEmail, "companyName": companyName})
}

func (m *Mongo) AssignmentByID(ctx context.Context, id primitive.ObjectID) (models.AssignedAsset, error) {
	var a models.AssignedAsset
	err := m.assigned.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	return a, mapErr(err)
}

func (m *Mongo) ListAssignments(ctx context.Context, f AssignmentFilter, p Page) ([]models.AssignedAsset, int64, error) {
	filter := bson.M{}
	if f.EmployeeEmail != "" {
		filter["employeeEmail"] = f.EmployeeEmail
	}
	if f.CompanyName != "" {
		filter["companyName"] = f.CompanyName
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return findPage[models.AssignedAsset](ctx, m.assigned, filter, p, bson.D{{Key: "assignmentDate", Value: -1}})
}

func (m *Mongo) MarkReturned(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := m.assigned.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AssignmentAssigned},
		bson.M{"$set": bson.M{"status": models.AssignmentReturned, "returnDate": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (m *Mongo) DeleteAssignments(ctx context.Context, employeeEmail, companyName string) (int64, error) {
	res, err := m.assigned.DeleteMany(ctx, bson.M{"employeeEmail": employeeEmail, "companyName": companyName})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ==== PACKAGES ====

func (m *Mongo) UpsertPackage(ctx context.Context, p models.Package) error {
	_, err := m.packages.UpdateOne(ctx,
		bson.M{"name": p.Name},
		bson.M{"$set": bson.M{
			"employeeLimit": p.EmployeeLimit,
			"price":         p.Price,
			"features":      p.Features,
		}},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

func (m *Mongo) ListPackages(ctx context.Context) ([]models.Package, error) {
	return findAll[models.Package](ctx, m.packages, bson.M{},
		options.Find().SetSort(bson.D{{Key: "employeeLimit", Value: 1}}))
}

func (m *Mongo) PackageByName(ctx context.Context, name string) (models.Package, error) {
	var p models.Package
	err := m.packages.FindOne(ctx, bson.M{"name": name}).Decode(&p)
	return p, mapErr(err)
}

// ==== PAYMENTS ====

func (m *Mongo) InsertPayment(ctx context.Context, p *models.Payment) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := m.payments.InsertOne(ctx, p)
	return mapErr(err)
}

func (m *Mongo) PaymentByTransaction(ctx context.Context, transactionID string) (models.Payment, error) {
	var p models.Payment
	err := m.payments.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&p)
	return p, mapErr(err)
}

func (m *Mongo) ListPayments(ctx context.Context, hrEmail string) ([]models.Payment, error) {
	return findAll[models.Payment](ctx, m.payments, bson.M{"hrEmail": hrEmail},
		options.Find().SetSort(bson.D{{Key: "paidAt", Value: -1}}))
}

// ==== STATS ====

type groupCount struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (m *Mongo) countBy(ctx context.Context, coll *mongo.Collection, companyName, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"companyName": companyName}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []groupCount
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		out[g.ID] = g.Count
	}
	return out, nil
}

func (m *Mongo) CompanyStats(ctx context.Context, companyName string) (Stats, error) {
	byStatus, err := m.countBy(ctx, m.requests, companyName, "requestStatus")
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate requests: %w", err)
	}
	byType, err := m.countBy(ctx, m.assets, companyName, "productType")
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate assets: %w", err)
	}
	limited, err := findAll[models.Asset](ctx, m.assets,
		bson.M{"companyName": companyName, "availableQuantity": bson.M{"$lt": LimitedStockThreshold}},
		options.Find().SetSort(bson.D{{Key: "availableQuantity", Value: 1}}).SetLimit(10))
	if err != nil {
		return Stats{}, fmt.Errorf("limited stock: %w", err)
	}
	return Stats{RequestsByStatus: byStatus, AssetsByType: byType, LimitedStock: limited}, nil
}

var _ Store = (*Mongo)(nil)
