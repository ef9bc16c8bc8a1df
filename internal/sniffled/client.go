package sniffled

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psychicsniffle/sniffle/pkg/utils"
)

// SessionRequest describes the maximizer a client asks the daemon to host
type SessionRequest struct {
	SessionID  string
	GenomeSize int
	Population int
	Seed       int64
	Workers    int
	Analyser   string
}

// Client drives one remote session and satisfies the runner's Population contract.
// It caches the latest generation so Genomes needs no round trip.
type Client struct {
	conn     grpc.ClientConnInterface
	timeout  time.Duration
	backoff  utils.BackoffStrategy
	attempts int

	session    string
	generation int
	genomes    [][]byte
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithCallTimeout bounds every RPC
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry retries idempotent calls that fail with codes.Unavailable
func WithRetry(attempts int, backoff utils.BackoffStrategy) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// Dial opens an insecure connection to a daemon
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// NewClient creates a client on conn. Call Open before using it as a Population.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{
		conn:     conn,
		timeout:  30 * time.Second,
		attempts: 1,
		backoff:  utils.NewConstantBackoff(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// invokeIdempotent retries Unavailable failures using the configured backoff
func (c *Client) invokeIdempotent(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	var err error
	for attempt := 0; attempt < max(1, c.attempts); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff.NextDelay(attempt - 1)):
			}
		}
		var out *structpb.Struct
		if out, err = c.invoke(ctx, method, in); err == nil {
			return out, nil
		}
		if status.Code(err) != codes.Unavailable {
			return nil, err
		}
	}
	return nil, err
}

func (c *Client) adopt(out *structpb.Struct) error {
	f := out.GetFields()
	genomes, err := decodeGenomes(f[fieldGenomes].GetListValue().GetValues())
	if err != nil {
		return err
	}
	c.session = f[fieldSessionID].GetStringValue()
	c.generation = int(f[fieldGeneration].GetNumberValue())
	c.genomes = genomes
	return nil
}

// Open creates a remote session and fetches its first generation
func (c *Client) Open(ctx context.Context, req SessionRequest) error {
	in := map[string]any{
		fieldSessionID:  req.SessionID,
		fieldGenomeSize: req.GenomeSize,
		fieldPopulation: req.Population,
	}
	if req.Seed != 0 {
		in[fieldSeed] = strconv.FormatInt(req.Seed, 10)
	}
	if req.Workers != 0 {
		in[fieldWorkers] = req.Workers
	}
	if req.Analyser != "" {
		in[fieldAnalyser] = req.Analyser
	}

	out, err := c.invoke(ctx, "CreateSession", in)
	if err != nil {
		return err
	}
	return c.adopt(out)
}

// Attach binds the client to an existing session
func (c *Client) Attach(ctx context.Context, session string) error {
	out, err := c.invokeIdempotent(ctx, "GetGenomes", map[string]any{fieldSessionID: session})
	if err != nil {
		return err
	}
	return c.adopt(out)
}

// Session returns the bound session ID
func (c *Client) Session() string {
	return c.session
}

// Generation returns the generation of the cached genomes
func (c *Client) Generation() int {
	return c.generation
}

// Genomes returns the cached current generation
func (c *Client) Genomes() [][]byte {
	return c.genomes
}

// Crank sends fitness for the cached generation and caches the next one
func (c *Client) Crank(fitness []float64) error {
	values := make([]any, len(fitness))
	for i, f := range fitness {
		values[i] = f
	}
	out, err := c.invoke(context.Background(), "Crank", map[string]any{
		fieldSessionID: c.session,
		fieldFitness:   values,
	})
	if err != nil {
		return err
	}
	return c.adopt(out)
}

// Reset re-randomizes the remote session past preserve
func (c *Client) Reset(preserve int) error {
	out, err := c.invoke(context.Background(), "ResetSession", map[string]any{
		fieldSessionID: c.session,
		fieldPreserve:  preserve,
	})
	if err != nil {
		return err
	}
	return c.adopt(out)
}

// Close deletes the remote session
func (c *Client) Close(ctx context.Context) error {
	if c.session == "" {
		return nil
	}
	if _, err := c.invoke(ctx, "DeleteSession", map[string]any{fieldSessionID: c.session}); err != nil {
		return err
	}
	c.session = ""
	c.genomes = nil
	return nil
}
