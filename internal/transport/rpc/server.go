package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/ashureev/callprep/internal/coach"
	"github.com/ashureev/callprep/internal/domain"
	"github.com/ashureev/callprep/internal/identity"
	"github.com/ashureev/callprep/internal/store"
	"github.com/bytedance/sonic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server serves the Coach service and the standard health service.
type Server struct {
	svc    *coach.Service
	logger *slog.Logger
	grpc   *grpc.Server
	health *health.Server
}

// NewServer creates a gRPC server for svc.
func NewServer(svc *coach.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		logger: logger.With("component", "grpc"),
		health: health.NewServer(),
	}
	s.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.logInterceptor),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
	)
	RegisterCoachServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Chat handles one coaching message.
func (s *Server) Chat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := keyFrom(req)
	if err != nil {
		return nil, err
	}
	ctx = identity.WithKey(ctx, key)
	key = identity.KeyFromContext(ctx)

	sess, reply, err := s.svc.Chat(ctx, key, stringField(req, "message"))
	if err != nil {
		return nil, toStatus(err)
	}
	return s.encode(sess, reply)
}

// Summary renders the call plan.
func (s *Server) Summary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := keyFrom(req)
	if err != nil {
		return nil, err
	}
	key = identity.KeyFromContext(identity.WithKey(ctx, key))

	sess, reply, err := s.svc.Summary(ctx, key)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.encode(sess, reply)
}

func (s *Server) encode(sess *domain.Session, reply coach.Reply) (*structpb.Struct, error) {
	data, err := sonic.Marshal(s.svc.Coach().Result(sess, reply))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error("gRPC call failed", append(attrs, "error", err)...)
	} else {
		s.logger.Info("gRPC call", attrs...)
	}
	return resp, err
}

func keyFrom(req *structpb.Struct) (store.SessionKey, error) {
	owner := stringField(req, "owner_id")
	if owner == "" {
		return store.SessionKey{}, status.Error(codes.InvalidArgument, "owner_id is required")
	}
	return store.SessionKey{OwnerID: owner, SessionID: stringField(req, "session_id")}, nil
}

func stringField(req *structpb.Struct, name string) string {
	if v, ok := req.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, coach.ErrTurnInProgress):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, coach.ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
