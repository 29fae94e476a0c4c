package router

import (
	"fmt"
	"net/http"

	"anarchy.ttfm/storefront/detection"
	"anarchy.ttfm/storefront/fulfillment"
	"anarchy.ttfm/storefront/orders"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (r *Router) createOrder(ctx *gin.Context) {
	var create CreateOrder
	err := ctx.ShouldBindJSON(&create)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	order, err := r.Orders.Create(ctx, CreateToOrders(&create))
	if err != nil {
		fail(ctx, err)
		return
	}
	out := OrderFromOrders(&order)
	ctx.JSON(http.StatusCreated, &out)
}

func orderId(ctx *gin.Context) (id uuid.UUID, ok bool) {
	id, err := uuid.Parse(ctx.Param(IdParam))
	if err != nil {
		badRequest(ctx, fmt.Errorf("invalid order id: %w", err))
		return id, false
	}
	return id, true
}

// payerOrder loads the order addressed by the path, only if payer owns it
func (r *Router) payerOrder(ctx *gin.Context, payer string) (order orders.Order, ok bool) {
	id, ok := orderId(ctx)
	if !ok {
		return order, false
	}
	order, err := r.Orders.PayerOrder(ctx, id, payer)
	if err != nil {
		fail(ctx, err)
		return order, false
	}
	return order, true
}

func (r *Router) detectionView(ctx *gin.Context, code int, session *detection.Session) {
	policy := r.Detection.Policy()
	out := DetectionFromSession(session, &policy)
	ctx.JSON(code, &out)
}

func (r *Router) startDetection(ctx *gin.Context) {
	var start StartDetection
	err := ctx.ShouldBindJSON(&start)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	order, ok := r.payerOrder(ctx, start.PayerId)
	if !ok {
		return
	}
	if order.Status != orders.StatusPending {
		fail(ctx, fmt.Errorf("%w: %s", ErrAlreadyPaid, order.Status))
		return
	}

	req, err := detection.RequestFor(order)
	if err != nil {
		fail(ctx, err)
		return
	}
	session, err := r.Detection.Start(req)
	if err != nil {
		fail(ctx, err)
		return
	}
	r.detectionView(ctx, http.StatusAccepted, &session)
}

func (r *Router) detectionStatus(ctx *gin.Context) {
	order, ok := r.payerOrder(ctx, ctx.Query(PayerIdQuery))
	if !ok {
		return
	}
	session, err := r.Detection.Session(order.Id)
	if err != nil {
		fail(ctx, err)
		return
	}
	r.detectionView(ctx, http.StatusOK, &session)
}

func (r *Router) cancelDetection(ctx *gin.Context) {
	order, ok := r.payerOrder(ctx, ctx.Query(PayerIdQuery))
	if !ok {
		return
	}
	session, err := r.Detection.Cancel(order.Id)
	if err != nil {
		fail(ctx, err)
		return
	}
	r.detectionView(ctx, http.StatusOK, &session)
}

func (r *Router) fulfill(ctx *gin.Context) {
	var req Fulfill
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	delivery, err := r.Fulfillment.Fulfill(ctx, fulfillment.Request{
		OrderId:    req.OrderId,
		ProductId:  req.ProductId,
		PayerEmail: req.PayerEmail,
	})
	if err != nil {
		fail(ctx, err)
		return
	}
	out := DeliveryFromFulfillment(&delivery)
	ctx.JSON(http.StatusOK, &out)
}

// download exchanges a download token for the order download link
func (r *Router) download(ctx *gin.Context) {
	productId := ctx.Param(ProductIdParam)
	session, err := r.Auth.Parse(ctx, ctx.Param(TokenParam))
	if err == nil {
		err = session.RequireDownload(productId)
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	order, err := r.Orders.Get(ctx, session.OrderId)
	if err != nil {
		fail(ctx, err)
		return
	}
	if order.Status != orders.StatusCompleted || order.DownloadUrl == "" {
		fail(ctx, fmt.Errorf("%w: no download for order", orders.ErrOrderNotFound))
		return
	}
	ctx.JSON(http.StatusOK, &Download{
		ProductName: order.ProductName,
		DownloadUrl: order.DownloadUrl,
		ExpiresAt:   session.ExpiresAt,
	})
}

func (r *Router) createTicket(ctx *gin.Context) {
	var create CreateTicket
	err := ctx.ShouldBindJSON(&create)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	ticket, err := r.Support.Create(ctx, CreateToSupport(&create))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, &TicketCreated{
		Message: Message{Success: true, Message: "Support ticket created"},
		Ticket: TicketReceipt{
			Id:        ticket.Id,
			Status:    ticket.Status,
			CreatedAt: ticket.CreatedAt,
		},
	})
}
