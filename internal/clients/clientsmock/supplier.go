// Package clientsmock provides a testify mock of the supplier API for
// package tests.
package clientsmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"supplier-engine-service/internal/clients"
)

// MockSupplierAPI is a mock implementation of clients.SupplierAPI
type MockSupplierAPI struct {
	mock.Mock
}

// Ensure MockSupplierAPI implements the interface
var _ clients.SupplierAPI = (*MockSupplierAPI)(nil)

func (m *MockSupplierAPI) SearchProducts(ctx context.Context, opts *clients.SearchOptions) (*clients.ProductsResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ProductsResult), args.Error(1)
}

func (m *MockSupplierAPI) GetProduct(ctx context.Context, pid string) (*clients.ProductDetail, error) {
	args := m.Called(ctx, pid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ProductDetail), args.Error(1)
}

func (m *MockSupplierAPI) GetVariants(ctx context.Context, pid string) ([]clients.Variant, error) {
	args := m.Called(ctx, pid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.Variant), args.Error(1)
}

func (m *MockSupplierAPI) QuoteFreight(ctx context.Context, req *clients.FreightRequest) ([]clients.FreightOption, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.FreightOption), args.Error(1)
}

func (m *MockSupplierAPI) GetStock(ctx context.Context, pid, vid string) ([]clients.StockEntry, error) {
	args := m.Called(ctx, pid, vid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.StockEntry), args.Error(1)
}

func (m *MockSupplierAPI) CreateOrder(ctx context.Context, req *clients.CreateOrderRequest) (*clients.CreateOrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.CreateOrderResult), args.Error(1)
}

func (m *MockSupplierAPI) ConfirmOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockSupplierAPI) GetBalance(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockSupplierAPI) PayOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockSupplierAPI) GetOrderDetail(ctx context.Context, orderID string) (*clients.OrderDetail, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.OrderDetail), args.Error(1)
}

func (m *MockSupplierAPI) CancelOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockSupplierAPI) GetTracking(ctx context.Context, trackingNumber string) (*clients.TrackingInfo, error) {
	args := m.Called(ctx, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.TrackingInfo), args.Error(1)
}

func (m *MockSupplierAPI) CreateDispute(ctx context.Context, req *clients.CreateDisputeRequest) (*clients.RemoteDispute, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.RemoteDispute), args.Error(1)
}

func (m *MockSupplierAPI) ListDisputes(ctx context.Context) ([]clients.RemoteDispute, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.RemoteDispute), args.Error(1)
}

func (m *MockSupplierAPI) CancelDispute(ctx context.Context, disputeID string) error {
	args := m.Called(ctx, disputeID)
	return args.Error(0)
}
