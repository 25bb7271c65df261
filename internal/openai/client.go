package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/sectordocs/caodex/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultBatchSize bounds how many texts go into one embedding request
	DefaultBatchSize = 64
	// DefaultMaxAttempts bounds attempts per batch, the first one included
	DefaultMaxAttempts = 4
	// DefaultBatchConcurrency bounds concurrent in-flight batch requests
	DefaultBatchConcurrency = 2
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for the underlying embeddings endpoint.
// *openai.Client satisfies it directly.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config holds embedding client configuration.
type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	BatchSize           int
	MaxAttempts         int
	BatchConcurrency    int
	RequestTimeout      time.Duration
}

// Client wraps the OpenAI API with batching and bounded retries.
type Client struct {
	api         EmbeddingAPI
	model       openai.EmbeddingModel
	dimensions  int
	batchSize   int
	maxAttempts int
	concurrency int
	timeout     time.Duration
}

// NewClient creates a new embedding client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new embedding client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	c := &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       cfg.EmbeddingModel,
		dimensions:  cfg.EmbeddingDimensions,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		concurrency: cfg.BatchConcurrency,
		timeout:     cfg.RequestTimeout,
	}
	if c.model == "" {
		c.model = DefaultEmbeddingModel
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultBatchConcurrency
	}
	return c
}

// NewClientFromEnv creates a new embedding client using the OPENAI_API_KEY
// environment variable.
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// NewClientWithAPI creates a client over a custom EmbeddingAPI (for testing).
func NewClientWithAPI(api EmbeddingAPI, cfg Config) *Client {
	c := NewClientWithConfig(cfg)
	c.api = api
	return c
}

// Dimensions returns the expected embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedBatch maps ordered chunk texts to a parallel ordered list of vectors:
// output vector i corresponds to input text i. Texts are sent in batches of
// the configured size; batches may run concurrently and are reassembled by
// batch index before returning. Each batch retries transient failures with
// exponential backoff up to the attempt budget, then fails with a
// domain.EmbeddingError carrying the batch's chunk indices.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	type batchJob struct {
		index int
		start int
		texts []string
	}

	var jobs []batchJob
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		jobs = append(jobs, batchJob{index: len(jobs), start: start, texts: texts[start:end]})
	}

	results := make([][][]float32, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			vectors, err := c.embedOnce(gctx, job.texts)
			if err != nil {
				indices := make([]int, len(job.texts))
				for i := range indices {
					indices[i] = job.start + i
				}
				return &domain.EmbeddingError{ChunkIndices: indices, Err: err}
			}
			results[job.index] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, vectors := range results {
		out = append(out, vectors...)
	}
	return out, nil
}

// GenerateEmbedding generates an embedding for a single query text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	return vectors[0], nil
}

// embedOnce sends one batch, retrying transient failures.
func (c *Client) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: batch,
			Model: c.model,
		})
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != len(batch) {
			return backoff.Permanent(fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(batch)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			if len(d.Embedding) != c.dimensions {
				return backoff.Permanent(fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(d.Embedding)))
			}
			vectors[i] = d.Embedding
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vectors, nil
}

// retryable reports whether an embedding call failed transiently: rate
// limits, server errors, per-call timeouts, or network failures.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
