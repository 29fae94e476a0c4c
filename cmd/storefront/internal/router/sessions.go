package router

import (
	"log"
	"net/http"

	"anarchy.ttfm/storefront/auth"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/projection"
	"github.com/gin-gonic/gin"
)

func (r *Router) adminLogin(ctx *gin.Context) {
	var login AdminLogin
	err := ctx.ShouldBindJSON(&login)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	token, session, err := r.Auth.AdminLogin(login.Username, login.Password)
	if err != nil {
		log.Println("WARN|ADMIN|LOGIN", ctx.ClientIP())
		fail(ctx, err)
		return
	}
	r.setCookie(ctx, AdminCookie, token, session.ExpiresAt)
	ctx.JSON(http.StatusOK, &Message{Success: true, Message: "Logged in"})
}

func (r *Router) logout(ctx *gin.Context, cookie string) {
	if s := session(ctx); s != nil {
		err := r.Auth.Logout(ctx, *s)
		if err != nil {
			fail(ctx, err)
			return
		}
	}
	r.clearCookie(ctx, cookie)
	ctx.JSON(http.StatusOK, &Message{Success: true, Message: "Logged out"})
}

func (r *Router) adminLogout(ctx *gin.Context) {
	r.logout(ctx, AdminCookie)
}

func check(ctx *gin.Context, require func(s *auth.Session) error) {
	s := session(ctx)
	if require(s) != nil {
		ctx.JSON(http.StatusOK, &Check{})
		return
	}
	ctx.JSON(http.StatusOK, &Check{Authenticated: true, ExpiresAt: s.ExpiresAt})
}

func (r *Router) adminCheck(ctx *gin.Context) {
	check(ctx, (*auth.Session).RequireAdmin)
}

func (r *Router) adminOrders(ctx *gin.Context) {
	list, err := r.Admin.Orders(ctx, session(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, OrdersFromOrders(list))
}

func (r *Router) adminUpdateStatus(ctx *gin.Context) {
	id, ok := orderId(ctx)
	if !ok {
		return
	}
	var update UpdateStatus
	err := ctx.ShouldBindJSON(&update)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	order, _, err := r.Admin.UpdateStatus(ctx, session(ctx), id, update.Status)
	if err != nil {
		fail(ctx, err)
		return
	}
	out := OrderFromOrders(&order)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) adminStats(ctx *gin.Context) {
	stats, err := r.Admin.Stats(ctx, session(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, &Stats{
		Pending:   stats.Pending,
		Confirmed: stats.Confirmed,
		Completed: stats.Completed,
	})
}

func (r *Router) adminTickets(ctx *gin.Context) {
	tickets, err := r.Admin.Tickets(ctx, session(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, TicketsFromSupport(tickets))
}

func (r *Router) customerLogin(ctx *gin.Context) {
	var login CustomerLogin
	err := ctx.ShouldBindJSON(&login)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	order, err := r.Orders.PayerOrder(ctx, login.OrderId, login.Email)
	if err != nil {
		fail(ctx, err)
		return
	}
	token, session, err := r.Auth.CustomerLogin(order.Id, orders.NormalizePayer(login.Email))
	if err != nil {
		fail(ctx, err)
		return
	}
	r.setCookie(ctx, CustomerCookie, token, session.ExpiresAt)
	ctx.JSON(http.StatusOK, &Message{Success: true, Message: "Logged in"})
}

func (r *Router) customerLogout(ctx *gin.Context) {
	r.logout(ctx, CustomerCookie)
}

func (r *Router) customerCheck(ctx *gin.Context) {
	check(ctx, (*auth.Session).RequireCustomer)
}

// customerView projects order and hands out a download token when the
// delivery is a download
func (r *Router) customerView(order orders.Order) (out CustomerOrder) {
	view := projection.Project(order)
	out = CustomerOrderFromView(&view)
	if out.DownloadUrl == "" || order.ProductId == "" {
		return out
	}
	token, _, err := r.Auth.DownloadToken(order.Id, order.ProductId)
	if err != nil {
		log.Println("ERROR|CUSTOMER|DOWNLOAD-TOKEN", order.Id, err)
		return out
	}
	out.DownloadToken = token
	return out
}

func (r *Router) customerOrders(ctx *gin.Context) {
	s := session(ctx)
	err := s.RequireCustomer()
	if err != nil {
		fail(ctx, err)
		return
	}

	list, err := r.Orders.ForPayer(ctx, s.Subject)
	if err != nil {
		fail(ctx, err)
		return
	}
	views := projection.ProjectAll(list)
	summary := projection.Summarize(views)

	dashboard := Dashboard{
		Orders:  make([]CustomerOrder, 0, len(list)),
		Summary: SummaryFromProjection(&summary),
	}
	for _, order := range list {
		dashboard.Orders = append(dashboard.Orders, r.customerView(order))
	}
	ctx.JSON(http.StatusOK, &dashboard)
}

func (r *Router) customerOrder(ctx *gin.Context) {
	s := session(ctx)
	err := s.RequireCustomer()
	if err != nil {
		fail(ctx, err)
		return
	}

	order, ok := r.payerOrder(ctx, s.Subject)
	if !ok {
		return
	}
	out := r.customerView(order)
	ctx.JSON(http.StatusOK, &out)
}
