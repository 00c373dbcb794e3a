package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/service"
)

// CodecName is the gRPC content subtype the Reconciler service speaks.
// Clients must call with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ReconcilerServer interface {
	OrderReachedCompletion(ctx context.Context, req *OrderEventRequest) (*ReconcileResponse, error)
	OrderRegressedFromCompletion(ctx context.Context, req *OrderEventRequest) (*ReconcileResponse, error)
	ReconcileBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error)
}

type GRPCHandler struct {
	reconciler  *service.ReconcileService
	coordinator *service.Coordinator
	logger      logrus.FieldLogger
}

func NewGRPCHandler(reconciler *service.ReconcileService, coordinator *service.Coordinator, logger logrus.FieldLogger) *GRPCHandler {
	return &GRPCHandler{reconciler: reconciler, coordinator: coordinator, logger: logger}
}

func (h *GRPCHandler) OrderReachedCompletion(ctx context.Context, req *OrderEventRequest) (*ReconcileResponse, error) {
	return h.orderEvent(ctx, req, domain.DirectionForward)
}

func (h *GRPCHandler) OrderRegressedFromCompletion(ctx context.Context, req *OrderEventRequest) (*ReconcileResponse, error) {
	return h.orderEvent(ctx, req, domain.DirectionReverse)
}

func (h *GRPCHandler) orderEvent(ctx context.Context, req *OrderEventRequest, direction domain.Direction) (*ReconcileResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var (
		summary domain.OrderSummary
		err     error
	)
	if direction == domain.DirectionForward {
		summary, err = h.reconciler.OrderReachedCompletion(ctx, req.RequestID, req.OrderID, req.ActorID)
	} else {
		summary, err = h.reconciler.OrderRegressedFromCompletion(ctx, req.RequestID, req.OrderID, req.ActorID)
	}
	if err != nil {
		_, message := describeError(err)
		if !errors.Is(err, service.ErrDuplicateRequest) {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"order_id":  req.OrderID,
				"direction": direction,
			}).Error("order event failed")
		}
		return &ReconcileResponse{Success: false, Message: message, Summary: &summary}, nil
	}

	return &ReconcileResponse{Success: true, Message: successMessage(direction), Summary: &summary}, nil
}

func (h *GRPCHandler) ReconcileBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &BatchResponse{Results: runBatch(ctx, h.coordinator, req)}, nil
}

func runBatch(ctx context.Context, coordinator *service.Coordinator, req *BatchRequest) []BatchResult {
	var results []service.OrderResult
	direction := domain.DirectionForward
	if req.Reverse {
		direction = domain.DirectionReverse
		results = coordinator.Reverse(ctx, req.OrderIDs, req.ActorID)
	} else {
		results = coordinator.Reconcile(ctx, req.OrderIDs, req.ActorID)
	}

	out := make([]BatchResult, 0, len(results))
	for _, r := range results {
		res := BatchResult{OrderID: r.OrderID, Success: r.Err == nil, Summary: r.Summary}
		if r.Err != nil {
			_, res.Message = describeError(r.Err)
		} else {
			res.Message = successMessage(direction)
		}
		out = append(out, res)
	}
	return out
}

const reconcilerServiceName = "goodsissue.Reconciler"

var reconcilerServiceDesc = grpc.ServiceDesc{
	ServiceName: reconcilerServiceName,
	HandlerType: (*ReconcilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OrderReachedCompletion", Handler: orderReachedCompletionHandler},
		{MethodName: "OrderRegressedFromCompletion", Handler: orderRegressedFromCompletionHandler},
		{MethodName: "ReconcileBatch", Handler: reconcileBatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "goodsissue/reconciler",
}

func RegisterReconcilerServer(s grpc.ServiceRegistrar, srv ReconcilerServer) {
	s.RegisterService(&reconcilerServiceDesc, srv)
}

func orderReachedCompletionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OrderEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).OrderReachedCompletion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + reconcilerServiceName + "/OrderReachedCompletion"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReconcilerServer).OrderReachedCompletion(ctx, req.(*OrderEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func orderRegressedFromCompletionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OrderEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).OrderRegressedFromCompletion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + reconcilerServiceName + "/OrderRegressedFromCompletion"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReconcilerServer).OrderRegressedFromCompletion(ctx, req.(*OrderEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reconcileBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).ReconcileBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + reconcilerServiceName + "/ReconcileBatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReconcilerServer).ReconcileBatch(ctx, req.(*BatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ReconcilerClient calls a remote Reconciler over an existing connection.
type ReconcilerClient struct {
	cc grpc.ClientConnInterface
}

func NewReconcilerClient(cc grpc.ClientConnInterface) *ReconcilerClient {
	return &ReconcilerClient{cc: cc}
}

func (c *ReconcilerClient) OrderReachedCompletion(ctx context.Context, req *OrderEventRequest) (*ReconcileResponse, error) {
	out := new(ReconcileResponse)
	if err := c.invoke(ctx, "OrderReachedCompletion", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconcilerClient) OrderRegressedFromCompletion(ctx context.Context, req *OrderEventRequest) (*ReconcileResponse, error) {
	out := new(ReconcileResponse)
	if err := c.invoke(ctx, "OrderRegressedFromCompletion", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconcilerClient) ReconcileBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	out := new(BatchResponse)
	if err := c.invoke(ctx, "ReconcileBatch", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconcilerClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+reconcilerServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}
