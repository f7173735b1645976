package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"pillgenious/internal/logger"
	"pillgenious/pkg/models"
)

const textIndexName = "drug_text_search"

// MongoCatalog reads drugs from a MongoDB collection with a text index on name and description.
type MongoCatalog struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        zerolog.Logger
}

// drugDocument is the stored shape of a catalog entry.
type drugDocument struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Name                 string             `bson:"name"`
	GenericName          string             `bson:"genericName,omitempty"`
	Description          string             `bson:"description,omitempty"`
	Manufacturer         string             `bson:"manufacturer,omitempty"`
	Category             string             `bson:"category,omitempty"`
	Price                float64            `bson:"price"`
	Stock                int                `bson:"stock"`
	RequiresPrescription bool               `bson:"requiresPrescription"`
	IsActive             bool               `bson:"isActive"`
	CreatedAt            time.Time          `bson:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt"`
	Score                float64            `bson:"score,omitempty"`
}

// NewMongoCatalog connects to MongoDB and verifies the connection with a ping.
func NewMongoCatalog(ctx context.Context, cfg Config) (*MongoCatalog, error) {
	const op = "NewMongoCatalog"

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("%s: %w: MONGODB_URI is empty", op, ErrNotConfigured)
	}
	database := cfg.MongoDatabase
	if database == "" {
		database = "pillgenious"
	}
	collection := cfg.MongoCollection
	if collection == "" {
		collection = "drugs"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: failed to ping: %w", op, err)
	}

	return &MongoCatalog{
		client:     client,
		collection: client.Database(database).Collection(collection),
		log:        logger.WithComponent("catalog.mongo"),
	}, nil
}

// Name returns the driver name.
func (m *MongoCatalog) Name() string {
	return DriverMongo
}

// TextSearch runs a $text query ranked by textScore, then newest first.
func (m *MongoCatalog) TextSearch(ctx context.Context, phrase string, limit int) ([]models.Drug, error) {
	const op = "MongoCatalog.TextSearch"

	score := bson.D{{Key: "$meta", Value: "textScore"}}
	opts := options.Find().
		SetProjection(bson.D{{Key: "score", Value: score}}).
		SetSort(bson.D{{Key: "score", Value: score}, {Key: "createdAt", Value: -1}}).
		SetLimit(clampLimit(limit))

	drugs, err := m.find(ctx, textFilter(phrase), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return drugs, nil
}

// PatternSearch matches any pattern against name or description, newest first.
func (m *MongoCatalog) PatternSearch(ctx context.Context, patterns []string, limit int) ([]models.Drug, error) {
	const op = "MongoCatalog.PatternSearch"

	if len(patterns) == 0 {
		return []models.Drug{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(clampLimit(limit))

	drugs, err := m.find(ctx, patternFilter(patterns), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return drugs, nil
}

func (m *MongoCatalog) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.Drug, error) {
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []drugDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	drugs := make([]models.Drug, 0, len(docs))
	for _, doc := range docs {
		drugs = append(drugs, doc.toDrug())
	}
	return drugs, nil
}

// EnsureTextIndex creates the weighted text index on name and description.
func (m *MongoCatalog) EnsureTextIndex(ctx context.Context) error {
	const op = "MongoCatalog.EnsureTextIndex"

	name, err := m.collection.Indexes().CreateOne(ctx, textIndexModel())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info().Str("index", name).Msg("Text index ready")
	return nil
}

// InsertDrugs inserts the entries in one batch and returns how many were stored.
func (m *MongoCatalog) InsertDrugs(ctx context.Context, drugs []models.Drug) (int, error) {
	const op = "MongoCatalog.InsertDrugs"

	if len(drugs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(drugs))
	for _, drug := range drugs {
		docs = append(docs, newDrugDocument(drug, now))
	}

	res, err := m.collection.InsertMany(ctx, docs)
	if err != nil {
		inserted := 0
		if res != nil {
			inserted = len(res.InsertedIDs)
		}
		return inserted, fmt.Errorf("%s: %w", op, err)
	}
	return len(res.InsertedIDs), nil
}

// Close disconnects the client.
func (m *MongoCatalog) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func textFilter(phrase string) bson.D {
	return bson.D{
		{Key: "$text", Value: bson.D{{Key: "$search", Value: phrase}}},
		{Key: "isActive", Value: true},
	}
}

func patternFilter(patterns []string) bson.D {
	clauses := bson.A{}
	for _, pattern := range patterns {
		re := primitive.Regex{Pattern: pattern, Options: "i"}
		clauses = append(clauses,
			bson.D{{Key: "name", Value: re}},
			bson.D{{Key: "description", Value: re}},
		)
	}
	return bson.D{
		{Key: "$or", Value: clauses},
		{Key: "isActive", Value: true},
	}
}

func textIndexModel() mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
		Options: options.Index().
			SetName(textIndexName).
			SetWeights(bson.D{{Key: "name", Value: 10}, {Key: "description", Value: 2}}),
	}
}

func newDrugDocument(drug models.Drug, now time.Time) drugDocument {
	doc := drugDocument{
		Name:                 drug.Name,
		GenericName:          drug.GenericName,
		Description:          drug.Description,
		Manufacturer:         drug.Manufacturer,
		Category:             drug.Category,
		Price:                drug.Price,
		Stock:                drug.Stock,
		RequiresPrescription: drug.RequiresPrescription,
		IsActive:             drug.IsActive,
		CreatedAt:            drug.CreatedAt,
		UpdatedAt:            drug.UpdatedAt,
	}
	if id, err := primitive.ObjectIDFromHex(drug.ID); err == nil {
		doc.ID = id
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc
}

func (d drugDocument) toDrug() models.Drug {
	drug := models.Drug{
		Name:                 d.Name,
		GenericName:          d.GenericName,
		Description:          d.Description,
		Manufacturer:         d.Manufacturer,
		Category:             d.Category,
		Price:                d.Price,
		Stock:                d.Stock,
		RequiresPrescription: d.RequiresPrescription,
		IsActive:             d.IsActive,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		Score:                d.Score,
	}
	if !d.ID.IsZero() {
		drug.ID = d.ID.Hex()
	}
	return drug
}
