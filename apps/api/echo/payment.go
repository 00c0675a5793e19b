package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/user"
)

type paymentApi struct {
	svc      *payment.Service
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerPaymentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *payment.Service,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := paymentApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	pg := g.Group("/payments")
	// gateway callback; the HMAC signature is the authentication here
	pg.POST("/verify", api.verify)

	pg.Use(jwt)
	pg.POST("", api.create, adminMiddleware())
	pg.GET("", api.query)
	pg.GET("/summary", api.summarize)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, adminMiddleware())
	pg.DELETE("", api.destroyMultiple, adminMiddleware())
	pg.POST("/:id/order", api.createOrder)
}

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, p.Render(time.Now()))
}

func (api *paymentApi) query(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter payment.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	res, err := api.svc.Query(ctx.Request().Context(), caller, filter, bindPagination(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paymentApi) summarize(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sum, err := api.svc.Summarize(ctx.Request().Context(), caller, ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p.Render(time.Now()))
}

func (api *paymentApi) update(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	orig, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data payment.UpdatePayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err = data.Validate(orig, api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p.Render(time.Now()))
}

func (api *paymentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting payments")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *paymentApi) createOrder(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	order, err := api.svc.CreateOrder(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, order)
}

func (api *paymentApi) verify(ctx echo.Context) error {
	var data payment.VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.Verify(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p.Render(time.Now()))
}
