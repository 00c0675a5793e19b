package gatewaysvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/shule/core/payment"
)

// DummyService hands out fake orders in-memory; meant for tests and local development.
type DummyService struct {
	mu     sync.Mutex
	seq    int
	Orders map[string]payment.OrderRequest
}

var _ payment.OrderGateway = (*DummyService)(nil)

func NewDummyService() *DummyService {
	return &DummyService{Orders: make(map[string]payment.OrderRequest)}
}

func (svc *DummyService) CreateOrder(_ context.Context, req payment.OrderRequest) (payment.GatewayOrder, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.seq++
	id := fmt.Sprintf("order_dummy%05d", svc.seq)
	svc.Orders[id] = req
	return payment.GatewayOrder{ID: id, Amount: req.Amount, Currency: req.Currency}, nil
}
