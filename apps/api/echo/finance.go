package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
)

type financeApi struct {
	svc      *finance.Service
	validate *validator.Validate
}

func registerFinanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *finance.Service,
	validate *validator.Validate,
) {
	api := financeApi{
		svc:      svc,
		validate: validate,
	}

	fg := g.Group("/finance", jwt, adminMiddleware())
	fg.GET("/entries", api.queryEntries)
	fg.POST("/entries", api.createEntry)
}

func (api *financeApi) queryEntries(ctx echo.Context) error {
	filter := new(finance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying ledger entries")
	}
	if entries == nil {
		entries = []finance.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

// ManualEntryRequest records income or expense outside the payment flow,
// eg. salaries or cash collections.
type ManualEntryRequest struct {
	Income      decimal.Decimal `json:"income"`
	Expense     decimal.Decimal `json:"expense"`
	Description string          `json:"description" validate:"required"`
}

func (api *financeApi) createEntry(ctx echo.Context) error {
	var data ManualEntryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualEntryRequest")
	}
	data.Description = core.CleanString(data.Description)
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry, err := api.svc.Append(ctx.Request().Context(), finance.Entry{
		Month:       int(now.Month()),
		Year:        now.Year(),
		Income:      data.Income,
		Expense:     data.Expense,
		Description: data.Description,
		CreatedAt:   now,
	})
	if err != nil {
		return errors.Wrap(err, "appending ledger entry")
	}
	return ctx.JSON(http.StatusCreated, entry)
}
