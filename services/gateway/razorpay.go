package gatewaysvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
)

// razorpayService creates gateway orders through the Razorpay Orders API.
type razorpayService struct {
	client *resty.Client
	logger core.Logger
}

var _ payment.OrderGateway = (*razorpayService)(nil)

func NewRazorpayService(conf *core.Config, logger core.Logger) (*razorpayService, error) {
	if conf.Gateway.KeyID == "" || conf.Gateway.KeySecret == "" {
		return nil, payment.ErrGatewayUnavailable
	}
	client := resty.New().
		SetHostURL(conf.Gateway.BaseURL).
		SetBasicAuth(conf.Gateway.KeyID, conf.Gateway.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &razorpayService{client: client, logger: logger}, nil
}

type (
	orderBody struct {
		Amount   int64             `json:"amount"` // minor currency units
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Notes    map[string]string `json:"notes,omitempty"`
	}

	orderResponse struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}

	errorResponse struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
)

func (svc *razorpayService) CreateOrder(ctx context.Context, req payment.OrderRequest) (payment.GatewayOrder, error) {
	var (
		order  orderResponse
		apiErr errorResponse
	)
	res, err := svc.client.R().
		SetContext(ctx).
		SetBody(orderBody{
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Notes:    req.Notes,
		}).
		SetResult(&order).
		SetError(&apiErr).
		Post("/orders")
	if err != nil {
		return payment.GatewayOrder{}, errors.Wrap(err, "calling gateway")
	}
	if res.StatusCode() >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf(
			"gateway order failed - status: %d - code: %s - %s",
			res.StatusCode(), apiErr.Error.Code, apiErr.Error.Description,
		))
		return payment.GatewayOrder{}, errors.Errorf("gateway order failed: %s", apiErr.Error.Description)
	}
	return payment.GatewayOrder{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}
