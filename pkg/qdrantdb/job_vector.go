package qdrantdb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	JobCollectionName = "job_clusters"
)

var namespace = uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

// JobPoint is one clustered posting as stored in qdrant.
type JobPoint struct {
	RunID   string
	Index   int
	Title   string
	Company string
	Summary string
	Link    string
	Cluster int
	X, Y    float64
	Vector  []float32
}

// ID is stable for a posting link, so re-running over the same listings
// overwrites earlier points. Postings without a link are keyed by run.
func (p JobPoint) ID() string {
	key := p.Link
	if key == "" {
		key = p.RunID + "/" + strconv.Itoa(p.Index)
	}
	return uuid.NewSHA1(namespace, []byte(key)).String()
}

func (p JobPoint) payload() map[string]any {
	return map[string]any{
		"run_id":  p.RunID,
		"index":   int64(p.Index),
		"title":   p.Title,
		"company": p.Company,
		"summary": p.Summary,
		"link":    p.Link,
		"cluster": int64(p.Cluster),
		"x":       p.X,
		"y":       p.Y,
	}
}

// EnsureCollection creates the collection for vectors of dim components.
func (c *JobClient) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := c.Client.CollectionExists(ctx, c.Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = c.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("err create job collection: %w", err)
	}

	_, err = c.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: c.Collection,
		FieldName:      "run_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("err create run_id index: %w", err)
	}
	return nil
}

// SaveJobs creates the collection if needed and upserts points.
func (c *JobClient) SaveJobs(ctx context.Context, points []JobPoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := c.EnsureCollection(ctx, len(points[0].Vector)); err != nil {
		return err
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID()),
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: qdrant.NewValueMap(p.payload()),
		}
	}
	_, err := c.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("err upsert jobs: %w", err)
	}
	return nil
}
