package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"anarchy.ttfm/storefront/admin"
	"anarchy.ttfm/storefront/auth"
	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/detection"
	"anarchy.ttfm/storefront/fulfillment"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/support"
	"github.com/gin-gonic/gin"
)

// Manages the entire HTTP surface of the storefront
type Router struct {
	Catalog     *catalog.Catalog
	Orders      *orders.Controller
	Detection   *detection.Manager
	Fulfillment *fulfillment.Hook
	Auth        *auth.Authority
	Admin       *admin.Panel
	Support     *support.Desk
	// Shared secret expected in WebhookSecretHeader. Without one the webhook
	// rejects every call
	WebhookSecret string
	// Mark session cookies as Secure
	SecureCookies bool
	// Base Gin Group to use for routing
	Base gin.IRouter
}

const (
	IdParam        = "id"
	QueryParam     = "query"
	ProductIdParam = "productId"
	TokenParam     = "token"
	PayerIdQuery   = "payerId"

	WebhookSecretHeader = "X-Webhook-Secret"
	AdminCookie         = "storefront_admin"
	CustomerCookie      = "storefront_customer"

	sessionKey = "session"
)

const (
	ApiPath = "/api"

	ProductsPath       = "/products"
	ProductsPathWithId = ProductsPath + "/:" + IdParam
	ProductsSearchPath = ProductsPath + "/search/:" + QueryParam
	ProductsFilterPath = ProductsPath + "/filter"
	ProductGroupsPath  = "/product-groups"

	OrdersPath          = "/orders"
	OrderDetectionPath  = OrdersPath + "/:" + IdParam + "/detection"
	FulfillmentHookPath = "/webhooks/fulfillment"
	DownloadPath        = "/download/:" + ProductIdParam + "/:" + TokenParam
	SupportPath         = "/support"

	AdminPath             = "/admin"
	AdminLoginPath        = AdminPath + "/login"
	AdminLogoutPath       = AdminPath + "/logout"
	AdminCheckPath        = AdminPath + "/check"
	AdminOrdersPath       = AdminPath + "/orders"
	AdminOrderStatusPath  = AdminOrdersPath + "/:" + IdParam + "/status"
	AdminStatsPath        = AdminPath + "/stats"
	AdminSupportPath      = AdminPath + "/support"
	CustomerPath          = "/customer"
	CustomerLoginPath     = CustomerPath + "/login"
	CustomerLogoutPath    = CustomerPath + "/logout"
	CustomerCheckPath     = CustomerPath + "/check"
	CustomerOrdersPath    = CustomerPath + "/orders"
	CustomerOrderPathWith = CustomerOrdersPath + "/:" + IdParam
)

// ErrAlreadyPaid is returned when detection is requested for an order that
// already moved past pending
var ErrAlreadyPaid = errors.New("order already paid")

// StatusCode maps domain errors to HTTP statuses
func StatusCode(err error) (code int) {
	switch {
	case errors.Is(err, orders.ErrStorageUnavailable),
		errors.Is(err, detection.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, detection.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, orders.ErrInvalidStatusTransition),
		errors.Is(err, fulfillment.ErrUnderpriced),
		errors.Is(err, ErrAlreadyPaid):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, detection.ErrInvalidRequest),
		errors.Is(err, fulfillment.ErrProductMismatch),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, support.ErrInvalidTicket):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail aborts the request. Internal failures are logged and never shown to
// the client.
func fail(ctx *gin.Context, err error) {
	code := StatusCode(err)
	message := err.Error()
	if code >= http.StatusInternalServerError {
		log.Println("ERROR|ROUTER|"+ctx.FullPath(), err)
		message = http.StatusText(code)
	}
	ctx.Error(err)
	ctx.AbortWithStatusJSON(code, &Message{Message: message})
}

func badRequest(ctx *gin.Context, err error) {
	ctx.Error(err)
	ctx.AbortWithStatusJSON(http.StatusBadRequest, &Message{Message: err.Error()})
}

// bearer returns the token from the Authorization header or the cookie
func bearer(ctx *gin.Context, cookie string) (token string) {
	header := ctx.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	token, _ = ctx.Cookie(cookie)
	return token
}

// authenticate parses the caller token into the request. Requests without a
// valid token go on without a session, operations decide what they need.
func (r *Router) authenticate(cookie string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearer(ctx, cookie)
		if token == "" {
			return
		}
		session, err := r.Auth.Parse(ctx, token)
		if err != nil {
			return
		}
		ctx.Set(sessionKey, &session)
	}
}

// session returns the request session or nil
func session(ctx *gin.Context) (s *auth.Session) {
	value, ok := ctx.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ = value.(*auth.Session)
	return s
}

func (r *Router) setCookie(ctx *gin.Context, name, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(name, token, maxAge, "/", "", r.SecureCookies, true)
}

func (r *Router) clearCookie(ctx *gin.Context, name string) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(name, "", -1, "/", "", r.SecureCookies, true)
}

func (r *Router) checkWebhookSecret(ctx *gin.Context) {
	got := ctx.GetHeader(WebhookSecretHeader)
	if r.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(r.WebhookSecret)) != 1 {
		fail(ctx, auth.ErrUnauthorized)
	}
}

// Register routes in the Gin engine
func (r *Router) Register() {
	api := r.Base.Group(ApiPath)

	api.GET(ProductsPath, r.listProducts)
	api.GET(ProductsSearchPath, r.searchProducts)
	api.POST(ProductsFilterPath, r.filterProducts)
	api.GET(ProductsPathWithId, r.getProduct)
	api.GET(ProductGroupsPath, r.listGroups)

	api.POST(OrdersPath, r.createOrder)
	api.POST(OrderDetectionPath, r.startDetection)
	api.GET(OrderDetectionPath, r.detectionStatus)
	api.DELETE(OrderDetectionPath, r.cancelDetection)

	api.POST(FulfillmentHookPath, r.checkWebhookSecret, r.fulfill)
	api.GET(DownloadPath, r.download)
	api.POST(SupportPath, r.createTicket)

	adminApi := api.Group("", r.authenticate(AdminCookie))
	adminApi.POST(AdminLoginPath, r.adminLogin)
	adminApi.POST(AdminLogoutPath, r.adminLogout)
	adminApi.GET(AdminCheckPath, r.adminCheck)
	adminApi.GET(AdminOrdersPath, r.adminOrders)
	adminApi.PATCH(AdminOrderStatusPath, r.adminUpdateStatus)
	adminApi.GET(AdminStatsPath, r.adminStats)
	adminApi.GET(AdminSupportPath, r.adminTickets)

	customerApi := api.Group("", r.authenticate(CustomerCookie))
	customerApi.POST(CustomerLoginPath, r.customerLogin)
	customerApi.POST(CustomerLogoutPath, r.customerLogout)
	customerApi.GET(CustomerCheckPath, r.customerCheck)
	customerApi.GET(CustomerOrdersPath, r.customerOrders)
	customerApi.GET(CustomerOrderPathWith, r.customerOrder)
}
