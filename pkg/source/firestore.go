package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore reads entity states that an upstream exporter mirrors into a
// Firestore collection. Each document is keyed by entity ID and holds the
// state as a JSON string in its "json" field.
type Firestore struct {
	client     *firestore.Client
	projectID  string
	database   string
	collection string
}

// configuredFirestore sets up the Firestore source.
// It registers flags for configuration.
func configuredFirestore() *Firestore {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")
	collection := lflag.String("firestore-collection", "states", "Firestore collection holding entity states")

	f := &Firestore{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.collection = *collection

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// NewFirestore returns a Firestore source reading collection. Init must be
// called before it is used.
func NewFirestore(projectID, database, collection string) *Firestore {
	return &Firestore{projectID: projectID, database: database, collection: collection}
}

// Init initializes the Firestore client.
// This must be called before using the source.
func (f *Firestore) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if f.collection == "" {
		f.collection = "states"
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// GetState implements Source.
func (f *Firestore) GetState(ctx context.Context, entityID string) (types.EntityState, error) {
	if entityID == "" {
		return types.EntityState{}, fmt.Errorf("entityID cannot be empty")
	}
	doc, err := f.client.Collection(f.collection).Doc(entityID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.EntityState{}, ErrEntityNotFound
		}
		return types.EntityState{}, fmt.Errorf("failed to fetch state doc: %w", err)
	}
	st, err := decodeStateDoc(doc)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode state doc", slog.String("entity", entityID), slog.Any("err", err))
		return types.EntityState{}, err
	}
	return st, nil
}

// ListStates implements Source. Malformed documents are skipped.
func (f *Firestore) ListStates(ctx context.Context) ([]types.EntityState, error) {
	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()

	var states []types.EntityState
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating states: %w", err)
		}
		st, err := decodeStateDoc(doc)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping malformed state doc", slog.String("entity", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

// PutState implements Source. The upstream exporter owns the collection.
func (f *Firestore) PutState(ctx context.Context, st types.EntityState) error {
	return ErrReadOnly
}

// Mirror writes a snapshot in the exporter's document format. It is meant
// for seeding an emulator; the server never calls it.
func (f *Firestore) Mirror(ctx context.Context, st types.EntityState) error {
	if st.EntityID == "" {
		return fmt.Errorf("entityID cannot be empty")
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = f.client.Collection(f.collection).Doc(st.EntityID).Set(ctx, map[string]any{
		"json":    string(b),
		"updated": firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to write state doc: %w", err)
	}
	return nil
}

func decodeStateDoc(doc *firestore.DocumentSnapshot) (types.EntityState, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		return types.EntityState{}, fmt.Errorf("state document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return types.EntityState{}, fmt.Errorf("state 'json' field is not a string")
	}
	var st types.EntityState
	if err := json.Unmarshal([]byte(jsonStr), &st); err != nil {
		return types.EntityState{}, fmt.Errorf("failed to unmarshal state json: %w", err)
	}
	if st.EntityID == "" {
		st.EntityID = doc.Ref.ID
	}
	return st, nil
}
