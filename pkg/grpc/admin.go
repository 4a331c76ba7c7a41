package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The admin API carries its payloads as google.protobuf.Struct, so the
// service is described here by hand instead of generated from a .proto.
const (
	OrderAdminServiceName = "localdelivery.admin.v1.OrderAdmin"

	getOrderMethod          = "/" + OrderAdminServiceName + "/GetOrder"
	listOrdersMethod        = "/" + OrderAdminServiceName + "/ListOrders"
	updateOrderStatusMethod = "/" + OrderAdminServiceName + "/UpdateOrderStatus"
)

type OrderAdminServer interface {
	// GetOrder expects {"id"} and returns {"order"}.
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListOrders accepts an optional {"status"} and returns {"orders", "total"}.
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// UpdateOrderStatus expects {"id", "status"} and returns {"order"}.
	UpdateOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterOrderAdminServer(s grpc.ServiceRegistrar, srv OrderAdminServer) {
	s.RegisterService(&orderAdminServiceDesc, srv)
}

type unaryCall func(srv OrderAdminServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderAdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var orderAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderAdminServiceName,
	HandlerType: (*OrderAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetOrder",
			Handler: unaryHandler(getOrderMethod, func(srv OrderAdminServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetOrder(ctx, in)
			}),
		},
		{
			MethodName: "ListOrders",
			Handler: unaryHandler(listOrdersMethod, func(srv OrderAdminServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListOrders(ctx, in)
			}),
		},
		{
			MethodName: "UpdateOrderStatus",
			Handler: unaryHandler(updateOrderStatusMethod, func(srv OrderAdminServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.UpdateOrderStatus(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "localdelivery/admin/v1/order_admin",
}

// OrderAdminClient calls the admin service over any client connection.
type OrderAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderAdminClient(cc grpc.ClientConnInterface) *OrderAdminClient {
	return &OrderAdminClient{cc: cc}
}

func (c *OrderAdminClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) GetOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, getOrderMethod, in, opts...)
}

func (c *OrderAdminClient) ListOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, listOrdersMethod, in, opts...)
}

func (c *OrderAdminClient) UpdateOrderStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, updateOrderStatusMethod, in, opts...)
}
