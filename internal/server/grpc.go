package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
)

const serviceName = "reconciler.v1.Reconciler"

// ReconcilerServer is the gRPC surface. Messages are structpb.Struct values
// holding the same JSON documents as the HTTP API. Struct numbers are
// doubles, so a numeric 1.50 arrives as 1.5; callers that need the literal
// quantity or article text should send it as a string.
type ReconcilerServer interface {
	Compare(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	OCRStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type ReconcilerService struct {
	cmp    comparer
	pool   StatsSource
	logger *slog.Logger
}

func NewReconcilerService(renderer *report.Renderer, pool StatsSource, logger *slog.Logger) *ReconcilerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcilerService{cmp: comparer{renderer: renderer, logger: logger}, pool: pool, logger: logger}
}

func (s *ReconcilerService) Compare(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CompareRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, common.InvalidArgumentErrorf("decode request: %v", err)
	}
	v := common.NewValidator().
		Field("app_name", in.AppName, common.MaxLength(255)).
		Field("inv_name", in.InvName, common.MaxLength(255))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	res, err := s.cmp.compare(in)
	if errors.Is(err, errNoDocuments) {
		return nil, common.InvalidArgumentError(err.Error())
	}
	if err != nil {
		s.logger.Error("grpc compare failed", "error", err)
		return nil, common.InternalError("comparison failed")
	}
	return toStruct(res)
}

func (s *ReconcilerService) OCRStats(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	if s.pool == nil {
		return nil, common.UnavailableError("ocr pool not configured")
	}
	return toStruct(s.pool.Stats())
}

// fromStruct decodes through JSON. Numbers come back in their shortest float
// form, not as the text the client wrote.
func fromStruct(in *structpb.Struct, out any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func unaryHandler(call func(ReconcilerServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReconcilerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReconcilerServer), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc describes reconciler.v1.Reconciler for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReconcilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compare", Handler: unaryHandler(ReconcilerServer.Compare, "Compare")},
		{MethodName: "OCRStats", Handler: unaryHandler(ReconcilerServer.OCRStats, "OCRStats")},
	},
	Metadata: "reconciler/v1/reconciler.proto",
}

// Register adds the reconciler and the standard health service to s.
func Register(s *grpc.Server, svc ReconcilerServer) *health.Server {
	s.RegisterService(&ServiceDesc, svc)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// Client calls the reconciler service over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Compare(ctx context.Context, req CompareRequest) (CompareResponse, error) {
	var out CompareResponse
	err := c.invoke(ctx, "Compare", req, &out)
	return out, err
}

func (c *Client) OCRStats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.invoke(ctx, "OCRStats", map[string]any{}, &out)
	return out, err
}

func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}
