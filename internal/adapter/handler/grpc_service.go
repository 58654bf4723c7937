package handler

import (
	"context"

	"google.golang.org/grpc"
)

const ticketServiceName = "ticketsale.v1.TicketService"

type PurchaseRPCRequest struct {
	InventoryID    string   `json:"inventoryId"`
	Quantity       int32    `json:"quantity"`
	AddonNames     []string `json:"addonNames,omitempty"`
	IdempotencyKey string   `json:"idempotencyKey,omitempty"`
}

type PurchaseRPCResponse struct {
	Order OrderResponse `json:"order"`
}

type ListOrdersRPCRequest struct{}

type ListOrdersRPCResponse struct {
	Orders []OrderHistoryResponse `json:"orders"`
}

type ListConcertsRPCRequest struct{}

type ListConcertsRPCResponse struct {
	Concerts []ConcertResponse `json:"concerts"`
}

type TicketServiceServer interface {
	Purchase(context.Context, *PurchaseRPCRequest) (*PurchaseRPCResponse, error)
	ListOrders(context.Context, *ListOrdersRPCRequest) (*ListOrdersRPCResponse, error)
	ListConcerts(context.Context, *ListConcertsRPCRequest) (*ListConcertsRPCResponse, error)
}

func RegisterTicketServiceServer(s grpc.ServiceRegistrar, srv TicketServiceServer) {
	s.RegisterService(&TicketServiceDesc, srv)
}

var TicketServiceDesc = grpc.ServiceDesc{
	ServiceName: ticketServiceName,
	HandlerType: (*TicketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Purchase", Handler: purchaseRPCHandler},
		{MethodName: "ListOrders", Handler: listOrdersRPCHandler},
		{MethodName: "ListConcerts", Handler: listConcertsRPCHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ticketsale/v1/ticket_service",
}

func purchaseRPCHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PurchaseRPCRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TicketServiceServer).Purchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ticketServiceName + "/Purchase"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TicketServiceServer).Purchase(ctx, req.(*PurchaseRPCRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listOrdersRPCHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListOrdersRPCRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TicketServiceServer).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ticketServiceName + "/ListOrders"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TicketServiceServer).ListOrders(ctx, req.(*ListOrdersRPCRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listConcertsRPCHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListConcertsRPCRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TicketServiceServer).ListConcerts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ticketServiceName + "/ListConcerts"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TicketServiceServer).ListConcerts(ctx, req.(*ListConcertsRPCRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TicketServiceClient is the client side of TicketServiceDesc.
type TicketServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTicketServiceClient(cc grpc.ClientConnInterface) *TicketServiceClient {
	return &TicketServiceClient{cc: cc}
}

func (c *TicketServiceClient) Purchase(ctx context.Context, in *PurchaseRPCRequest, opts ...grpc.CallOption) (*PurchaseRPCResponse, error) {
	out := new(PurchaseRPCResponse)
	if err := c.invoke(ctx, "Purchase", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TicketServiceClient) ListOrders(ctx context.Context, in *ListOrdersRPCRequest, opts ...grpc.CallOption) (*ListOrdersRPCResponse, error) {
	out := new(ListOrdersRPCResponse)
	if err := c.invoke(ctx, "ListOrders", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TicketServiceClient) ListConcerts(ctx context.Context, in *ListConcertsRPCRequest, opts ...grpc.CallOption) (*ListConcertsRPCResponse, error) {
	out := new(ListConcertsRPCResponse)
	if err := c.invoke(ctx, "ListConcerts", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TicketServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ticketServiceName+"/"+method, in, out, opts...)
}
