package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/ticket-sale/internal/auth"
	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/core/service"
)

type GRPCHandler struct {
	orderService   *service.OrderService
	catalogService *service.CatalogService
	logger         *logrus.Logger
}

var _ TicketServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orderService *service.OrderService, catalogService *service.CatalogService, logger *logrus.Logger) *GRPCHandler {
	return &GRPCHandler{
		orderService:   orderService,
		catalogService: catalogService,
		logger:         logger,
	}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *PurchaseRPCRequest) (*PurchaseRPCResponse, error) {
	buyerID, ok := BuyerIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "please log in first")
	}

	order, err := h.orderService.Purchase(ctx, service.PurchaseRequest{
		BuyerID:        buyerID,
		ConcertID:      req.InventoryID,
		Quantity:       int(req.Quantity),
		AddonNames:     req.AddonNames,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, h.statusError(ctx, err)
	}

	return &PurchaseRPCResponse{Order: newOrderResponse(order, true)}, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, _ *ListOrdersRPCRequest) (*ListOrdersRPCResponse, error) {
	buyerID, ok := BuyerIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "please log in first")
	}

	entries, err := h.orderService.ListOrders(ctx, buyerID)
	if err != nil {
		return nil, h.statusError(ctx, err)
	}

	return &ListOrdersRPCResponse{Orders: newOrderHistoryResponses(entries)}, nil
}

func (h *GRPCHandler) ListConcerts(ctx context.Context, _ *ListConcertsRPCRequest) (*ListConcertsRPCResponse, error) {
	concerts, err := h.catalogService.ListConcerts(ctx)
	if err != nil {
		return nil, h.statusError(ctx, err)
	}

	return &ListConcertsRPCResponse{Concerts: newConcertResponses(concerts)}, nil
}

func (h *GRPCHandler) statusError(ctx context.Context, err error) error {
	codeMap := []struct {
		target error
		code   codes.Code
	}{
		{domain.ErrValidation, codes.InvalidArgument},
		{domain.ErrNotFound, codes.NotFound},
		{domain.ErrSalesClosed, codes.FailedPrecondition},
		{domain.ErrQuotaExceeded, codes.FailedPrecondition},
		{domain.ErrInsufficientStock, codes.ResourceExhausted},
		{domain.ErrDuplicateRequest, codes.AlreadyExists},
		{domain.ErrUsernameTaken, codes.AlreadyExists},
		{domain.ErrConflict, codes.Aborted},
		{domain.ErrInvalidCredentials, codes.Unauthenticated},
		{domain.ErrUnauthenticated, codes.Unauthenticated},
		{domain.ErrForbidden, codes.PermissionDenied},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}

	for _, m := range codeMap {
		if errors.Is(err, m.target) {
			return status.Error(m.code, err.Error())
		}
	}

	h.logger.WithContext(ctx).WithError(err).Error("unhandled error")
	return status.Error(codes.Internal, "internal error")
}

// publicMethods can be called without a bearer token.
var publicMethods = map[string]bool{
	"/" + ticketServiceName + "/ListConcerts": true,
}

// UnaryAuthInterceptor verifies the bearer token carried in the
// "authorization" metadata and stores its claims on the context.
func UnaryAuthInterceptor(tokens *auth.TokenManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}

		token, ok := bearerToken(strings.TrimSpace(header))
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "please log in first")
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			return nil, status.Error(codes.PermissionDenied, "invalid token")
		}

		return handler(withClaims(ctx, claims), req)
	}
}
