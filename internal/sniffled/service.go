// Package sniffled hosts maximizer sessions behind gRPC and HTTP.
//
// Fitness evaluation stays with the client: it fetches genomes, scores them and
// sends the scores back with Crank, receiving the next generation in the reply.
package sniffled

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psychicsniffle/sniffle/internal/maximizer"
	"github.com/psychicsniffle/sniffle/internal/metrics"
	"github.com/psychicsniffle/sniffle/internal/tracker"
	"github.com/psychicsniffle/sniffle/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "sniffle.v1.MaximizerService"

// Message field names
const (
	fieldSessionID  = "session_id"
	fieldGenomeSize = "genome_size"
	fieldPopulation = "population"
	fieldSeed       = "seed"
	fieldWorkers    = "workers"
	fieldAnalyser   = "analyser"
	fieldGeneration = "generation"
	fieldGenomes    = "genomes"
	fieldFitness    = "fitness"
	fieldPreserve   = "preserve"
	fieldBest       = "best"
	fieldWorst      = "worst"
	fieldMean       = "mean"
	fieldStdDev     = "stddev"
	fieldBestIndex  = "best_index"
)

// MaximizerServer is the server API of the maximizer service
type MaximizerServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGenomes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Crank(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(MaximizerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MaximizerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(MaximizerServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MaximizerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateSession", MaximizerServer.CreateSession),
		unary("GetGenomes", MaximizerServer.GetGenomes),
		unary("Crank", MaximizerServer.Crank),
		unary("ResetSession", MaximizerServer.ResetSession),
		unary("DeleteSession", MaximizerServer.DeleteSession),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sniffle/v1/maximizer.proto",
}

// RegisterMaximizerServer registers srv with a gRPC server
func RegisterMaximizerServer(s grpc.ServiceRegistrar, srv MaximizerServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Default bounds on what a CreateSession request may ask for
const (
	DefaultMaxGenomeSize = 1024
	DefaultMaxWorkers    = 256
)

// Service implements MaximizerServer on a SessionStore
type Service struct {
	store    *SessionStore
	base     maximizer.Config
	recorder *metrics.Recorder
	log      *slog.Logger

	maxGenomeSize int
	maxWorkers    int
}

// NewService creates a service. base supplies every maximizer setting a
// CreateSession request does not override. recorder may be nil.
func NewService(store *SessionStore, base maximizer.Config, recorder *metrics.Recorder) *Service {
	return &Service{
		store:         store,
		base:          base,
		recorder:      recorder,
		log:           logger.Default,
		maxGenomeSize: DefaultMaxGenomeSize,
		maxWorkers:    DefaultMaxWorkers,
	}
}

// WithLimits bounds the genome size and worker count a client may request.
// Non-positive values keep the defaults.
func (s *Service) WithLimits(maxGenomeSize, maxWorkers int) *Service {
	if maxGenomeSize > 0 {
		s.maxGenomeSize = maxGenomeSize
	}
	if maxWorkers > 0 {
		s.maxWorkers = maxWorkers
	}
	return s
}

// WithLogger sets the logger
func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.log = l
	return s
}

// Store returns the backing session store
func (s *Service) Store() *SessionStore {
	return s.store
}

func (s *Service) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()

	cfg := s.base
	cfg.GenomeSize = int(f[fieldGenomeSize].GetNumberValue())
	cfg.PopulationSize = int(f[fieldPopulation].GetNumberValue())
	if cfg.GenomeSize <= 0 || cfg.PopulationSize <= 0 {
		return nil, status.Error(codes.InvalidArgument, "genome_size and population are required")
	}
	if cfg.GenomeSize > s.maxGenomeSize {
		return nil, status.Errorf(codes.InvalidArgument, "genome_size %d exceeds limit %d", cfg.GenomeSize, s.maxGenomeSize)
	}
	if v, ok := f[fieldSeed]; ok {
		seed, err := parseSeed(v)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid seed: %v", err)
		}
		cfg.Seed = seed
	}
	if v, ok := f[fieldWorkers]; ok {
		cfg.Workers = int(v.GetNumberValue())
	}
	if cfg.Workers < 0 || cfg.Workers > s.maxWorkers {
		return nil, status.Errorf(codes.InvalidArgument, "workers %d outside [0,%d]", cfg.Workers, s.maxWorkers)
	}
	if v, ok := f[fieldAnalyser]; ok {
		cfg.Analyser = tracker.Kind(v.GetStringValue())
	}

	sess, err := s.store.Create(f[fieldSessionID].GetStringValue(), cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	if s.recorder != nil {
		s.recorder.SessionOpened(sess.ID)
	}

	s.log.Info("session created",
		"session_id", sess.ID,
		"genome_size", cfg.GenomeSize,
		"population", cfg.PopulationSize)
	return newStruct(map[string]any{
		fieldSessionID:  sess.ID,
		fieldGenomeSize: cfg.GenomeSize,
		fieldPopulation: cfg.PopulationSize,
		fieldGeneration: 0,
		fieldGenomes:    encodeGenomes(sess.Genomes()),
	})
}

func (s *Service) GetGenomes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{
		fieldSessionID:  sess.ID,
		fieldGeneration: sess.Generation(),
		fieldGenomes:    encodeGenomes(sess.Genomes()),
	})
}

func (s *Service) Crank(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}

	values := req.GetFields()[fieldFitness].GetListValue().GetValues()
	fitness := make([]float64, len(values))
	for i, v := range values {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, status.Errorf(codes.InvalidArgument, "fitness[%d] is not a number", i)
		}
		fitness[i] = v.GetNumberValue()
	}

	start := time.Now()
	step, genomes, err := sess.Crank(fitness)
	if err != nil {
		if s.recorder != nil && errors.Is(err, maximizer.ErrInvariant) {
			s.recorder.CrankFailed(sess.ID)
		}
		s.log.Warn("crank failed", "session_id", sess.ID, "error", err)
		return nil, toStatus(err)
	}
	if s.recorder != nil {
		s.recorder.ObserveGeneration(sess.ID, step, time.Since(start))
		if c, ok := sess.Contrast(); ok {
			s.recorder.ObserveContrast(sess.ID, c)
		}
	}

	s.log.Debug("generation cranked", "session_id", sess.ID, "generation", step.Generation, "best", step.Best)
	return newStruct(map[string]any{
		fieldSessionID:  sess.ID,
		fieldGeneration: step.Generation + 1,
		fieldBest:       step.Best,
		fieldWorst:      step.Worst,
		fieldMean:       step.Mean,
		fieldStdDev:     step.StdDev,
		fieldBestIndex:  step.BestIndex,
		fieldGenomes:    encodeGenomes(genomes),
	})
}

func (s *Service) ResetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}

	preserve := int(req.GetFields()[fieldPreserve].GetNumberValue())
	genomes, err := sess.Reset(preserve)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.log.Info("session reset", "session_id", sess.ID, "preserve", preserve)
	return newStruct(map[string]any{
		fieldSessionID:  sess.ID,
		fieldGeneration: 0,
		fieldGenomes:    encodeGenomes(genomes),
	})
}

func (s *Service) DeleteSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()[fieldSessionID].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	if err := s.store.Delete(id); err != nil {
		return nil, toStatus(err)
	}
	if s.recorder != nil {
		s.recorder.SessionClosed(id)
	}

	s.log.Info("session deleted", "session_id", id)
	return newStruct(map[string]any{fieldSessionID: id})
}

func (s *Service) session(req *structpb.Struct) (*Session, error) {
	id := req.GetFields()[fieldSessionID].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session not found: %s", id)
	}
	return sess, nil
}

// toStatus maps domain errors onto gRPC codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrSessionExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrSessionLimit):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrFitnessLength):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, maximizer.ErrInvariant):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// parseSeed reads a seed sent as a decimal string. Plain numbers are accepted
// too but lose precision above 2^53.
func parseSeed(v *structpb.Value) (int64, error) {
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return strconv.ParseInt(s.StringValue, 10, 64)
	}
	return int64(v.GetNumberValue()), nil
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func encodeGenomes(genomes [][]byte) []any {
	out := make([]any, len(genomes))
	for i, g := range genomes {
		out[i] = base64.StdEncoding.EncodeToString(g)
	}
	return out
}

func decodeGenomes(values []*structpb.Value) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		g, err := base64.StdEncoding.DecodeString(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("genome %d: %w", i, err)
		}
		out[i] = g
	}
	return out, nil
}
