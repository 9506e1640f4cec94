package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/sermonkb/internal/index"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const qdrantUpsertBatch = 256

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
	Provider        string // Embedding identity the collection holds
	Model           string
}

// apiKeyInterceptor creates a unary interceptor that adds the API key to metadata.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository keeps chunk vectors in a Qdrant collection. It serves
// as an alternative semantic search backend; point IDs are chunk IDs and
// each point carries the owning video in its payload.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
	provider        string
	model           string
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption

	// TLS is enabled if an API key is set or UseTLS is explicitly true
	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: cfg.VectorDimension,
		provider:        cfg.Provider,
		model:           cfg.Model,
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// Identity returns the embedding provider and model the collection holds.
func (r *QdrantRepository) Identity() (provider, model string) {
	return r.provider, r.model
}

// EnsureCollection creates the collection if it doesn't exist, and rejects
// an existing collection whose vector size disagrees with the embedder.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Euclid,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// ReplaceAll drops and recreates the collection, then upserts every chunk
// vector in batches. Called after an index rebuild so the collection
// mirrors the flat artifacts exactly.
func (r *QdrantRepository) ReplaceAll(ctx context.Context, entries []index.EntryRef, vectors [][]float32) error {
	if len(entries) != len(vectors) {
		return fmt.Errorf("entry count %d does not match vector count %d", len(entries), len(vectors))
	}

	if _, err := r.collectClient.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collectionName,
	}); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := r.EnsureCollection(ctx); err != nil {
		return err
	}

	for start := 0; start < len(entries); start += qdrantUpsertBatch {
		end := start + qdrantUpsertBatch
		if end > len(entries) {
			end = len(entries)
		}

		points := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &pb.PointStruct{
				Id: &pb.PointId{
					PointIdOptions: &pb.PointId_Num{Num: uint64(entries[i].ChunkID)},
				},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: vectors[i]},
					},
				},
				Payload: map[string]*pb.Value{
					"chunk_id": {Kind: &pb.Value_IntegerValue{IntegerValue: entries[i].ChunkID}},
					"video_id": {Kind: &pb.Value_StringValue{StringValue: entries[i].VideoID}},
				},
			})
		}

		if _, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: r.collectionName,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	return nil
}

// Search performs a vector similarity search and maps the hits back to
// chunk references.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, k int) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	candidates := make([]index.Candidate, 0, len(resp.Result))
	for _, scored := range resp.Result {
		chunkID := int64(scored.Id.GetNum())
		videoID := ""
		if payload := scored.Payload; payload != nil {
			if v, ok := payload["chunk_id"]; ok {
				chunkID = v.GetIntegerValue()
			}
			if v, ok := payload["video_id"]; ok {
				videoID = v.GetStringValue()
			}
		}
		candidates = append(candidates, index.Candidate{
			ChunkID:  chunkID,
			VideoID:  videoID,
			Distance: scored.Score,
		})
	}

	return candidates, nil
}

// Size returns the number of points in the collection.
func (r *QdrantRepository) Size(ctx context.Context) (int, error) {
	resp, err := r.pointsClient.Count(ctx, &pb.CountPoints{
		CollectionName: r.collectionName,
		Exact:          optionalBool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func optionalBool(v bool) *bool {
	return &v
}
