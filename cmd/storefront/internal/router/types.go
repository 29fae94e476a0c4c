package router

import (
	"time"

	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/detection"
	"anarchy.ttfm/storefront/fulfillment"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/projection"
	"anarchy.ttfm/storefront/support"
	"github.com/google/uuid"
)

type Message struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type (
	Product struct {
		Id            string               `json:"id"`
		Name          string               `json:"name"`
		Description   string               `json:"description"`
		Price         string               `json:"price"`
		OriginalPrice string               `json:"originalPrice,omitempty"`
		Category      string               `json:"category"`
		Game          string               `json:"game"`
		StockQuantity int                  `json:"stockQuantity"`
		InStock       bool                 `json:"inStock"`
		ImageUrl      string               `json:"imageUrl"`
		DeliveryType  catalog.DeliveryType `json:"deliveryType"`
	}
	Variant struct {
		Id            string `json:"id"`
		Name          string `json:"name"`
		Price         string `json:"price"`
		OriginalPrice string `json:"originalPrice,omitempty"`
		StockQuantity int    `json:"stockQuantity"`
		InStock       bool   `json:"inStock"`
	}
	ProductGroup struct {
		Id           string               `json:"id"`
		Name         string               `json:"name"`
		Description  string               `json:"description"`
		Category     string               `json:"category"`
		Game         string               `json:"game"`
		ImageUrl     string               `json:"imageUrl"`
		DeliveryType catalog.DeliveryType `json:"deliveryType"`
		Variants     []Variant            `json:"variants"`
	}
	PriceRange struct {
		Min decimal.Decimal `json:"min"`
		Max decimal.Decimal `json:"max"`
	}
	Filter struct {
		Categories []string    `json:"categories,omitempty"`
		Games      []string    `json:"games,omitempty"`
		PriceRange *PriceRange `json:"priceRange,omitempty"`
		InStock    *bool       `json:"inStock,omitempty"`
	}
)

// Delivery URLs and key templates never leave the server
func ProductFromCatalog(src *catalog.Product) (product Product) {
	return Product{
		Id:            src.Id,
		Name:          src.Name,
		Description:   src.Description,
		Price:         src.Price,
		OriginalPrice: src.OriginalPrice,
		Category:      src.Category,
		Game:          src.Game,
		StockQuantity: src.StockQuantity,
		InStock:       src.InStock,
		ImageUrl:      src.ImageUrl,
		DeliveryType:  src.DeliveryType,
	}
}

func ProductsFromCatalog(src []catalog.Product) (products []Product) {
	products = make([]Product, 0, len(src))
	for index := range src {
		products = append(products, ProductFromCatalog(&src[index]))
	}
	return products
}

func GroupFromCatalog(src *catalog.ResolvedGroup) (group ProductGroup) {
	group = ProductGroup{
		Id:           src.Id,
		Name:         src.Name,
		Description:  src.Description,
		Category:     src.Category,
		Game:         src.Game,
		ImageUrl:     src.ImageUrl,
		DeliveryType: src.DeliveryType,
		Variants:     make([]Variant, 0, len(src.Products)),
	}
	labels := make(map[string]string, len(src.Variants))
	for _, v := range src.Variants {
		labels[v.ProductId] = v.Name
	}
	for _, p := range src.Products {
		name := labels[p.Id]
		if name == "" {
			name = p.Name
		}
		group.Variants = append(group.Variants, Variant{
			Id:            p.Id,
			Name:          name,
			Price:         p.Price,
			OriginalPrice: p.OriginalPrice,
			StockQuantity: p.StockQuantity,
			InStock:       p.InStock,
		})
	}
	return group
}

func FilterToCatalog(src *Filter) (filter catalog.Filter) {
	filter = catalog.Filter{
		Categories: src.Categories,
		Games:      src.Games,
		InStock:    src.InStock,
	}
	if src.PriceRange != nil {
		filter.PriceRange = &catalog.PriceRange{Min: src.PriceRange.Min, Max: src.PriceRange.Max}
	}
	return filter
}

type (
	CreateOrder struct {
		ProductId     string               `json:"productId,omitempty"`
		ProductName   string               `json:"productName"`
		ProductPrice  string               `json:"productPrice"`
		PayerId       string               `json:"payerId"`
		PayerEmail    string               `json:"payerEmail,omitempty"`
		PaymentMethod orders.PaymentMethod `json:"paymentMethod"`
		WalletAddress string               `json:"walletAddress"`
	}
	// Order is the full record, for the admin panel
	Order struct {
		Id            uuid.UUID            `json:"id"`
		ProductId     string               `json:"productId,omitempty"`
		ProductName   string               `json:"productName"`
		ProductPrice  string               `json:"productPrice"`
		PayerId       string               `json:"payerId"`
		PayerEmail    string               `json:"payerEmail,omitempty"`
		PaymentMethod orders.PaymentMethod `json:"paymentMethod"`
		WalletAddress string               `json:"walletAddress"`
		Status        orders.Status        `json:"status"`
		CreatedAt     time.Time            `json:"createdAt"`
		UpdatedAt     time.Time            `json:"updatedAt"`
		TransactionId string               `json:"transactionId,omitempty"`
		LicenseKey    string               `json:"licenseKey,omitempty"`
		DownloadUrl   string               `json:"downloadUrl,omitempty"`
	}
	UpdateStatus struct {
		Status orders.Status `json:"status"`
	}
)

func CreateToOrders(src *CreateOrder) (out orders.Create) {
	return orders.Create{
		ProductId:     src.ProductId,
		ProductName:   src.ProductName,
		ProductPrice:  src.ProductPrice,
		PayerId:       src.PayerId,
		PayerEmail:    src.PayerEmail,
		PaymentMethod: src.PaymentMethod,
		WalletAddress: src.WalletAddress,
	}
}

func OrderFromOrders(src *orders.Order) (order Order) {
	return Order{
		Id:            src.Id,
		ProductId:     src.ProductId,
		ProductName:   src.ProductName,
		ProductPrice:  src.ProductPrice,
		PayerId:       src.PayerId,
		PayerEmail:    src.PayerEmail,
		PaymentMethod: src.PaymentMethod,
		WalletAddress: src.WalletAddress,
		Status:        src.Status,
		CreatedAt:     src.CreatedAt,
		UpdatedAt:     src.UpdatedAt,
		TransactionId: src.TransactionId,
		LicenseKey:    src.LicenseKey,
		DownloadUrl:   src.DownloadUrl,
	}
}

func OrdersFromOrders(src []orders.Order) (list []Order) {
	list = make([]Order, 0, len(src))
	for index := range src {
		list = append(list, OrderFromOrders(&src[index]))
	}
	return list
}

type (
	// CustomerOrder is what the customer dashboard shows
	CustomerOrder struct {
		Id            uuid.UUID            `json:"id"`
		ProductName   string               `json:"productName"`
		ProductPrice  string               `json:"productPrice"`
		PaymentMethod orders.PaymentMethod `json:"paymentMethod"`
		WalletAddress string               `json:"walletAddress"`
		Status        orders.Status        `json:"status"`
		Message       string               `json:"message"`
		CreatedAt     time.Time            `json:"createdAt"`
		TransactionId string               `json:"transactionId,omitempty"`
		LicenseKey    string               `json:"licenseKey,omitempty"`
		DownloadUrl   string               `json:"downloadUrl,omitempty"`
		DownloadToken string               `json:"downloadToken,omitempty"`
	}
	Summary struct {
		Total      int `json:"total"`
		Completed  int `json:"completed"`
		InProgress int `json:"inProgress"`
		Keys       int `json:"keys"`
	}
	Dashboard struct {
		Orders  []CustomerOrder `json:"orders"`
		Summary Summary         `json:"summary"`
	}
	CustomerLogin struct {
		OrderId uuid.UUID `json:"orderId"`
		Email   string    `json:"email"`
	}
	AdminLogin struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	Check struct {
		Authenticated bool      `json:"authenticated"`
		ExpiresAt     time.Time `json:"expiresAt,omitempty"`
	}
	Download struct {
		ProductName string    `json:"productName"`
		DownloadUrl string    `json:"downloadUrl"`
		ExpiresAt   time.Time `json:"expiresAt"`
	}
)

func CustomerOrderFromView(src *projection.View) (order CustomerOrder) {
	return CustomerOrder{
		Id:            src.Id,
		ProductName:   src.ProductName,
		ProductPrice:  src.ProductPrice,
		PaymentMethod: src.PaymentMethod,
		WalletAddress: src.WalletAddress,
		Status:        src.Status,
		Message:       src.Message,
		CreatedAt:     src.CreatedAt,
		TransactionId: src.TransactionId,
		LicenseKey:    src.LicenseKey,
		DownloadUrl:   src.DownloadUrl,
	}
}

func SummaryFromProjection(src *projection.Summary) (summary Summary) {
	return Summary{
		Total:      src.Total,
		Completed:  src.Completed,
		InProgress: src.InProgress,
		Keys:       src.Keys,
	}
}

type (
	StartDetection struct {
		PayerId string `json:"payerId"`
	}
	// Detection hides checker errors, customers only see that detection goes on
	Detection struct {
		OrderId               uuid.UUID            `json:"orderId"`
		Method                orders.PaymentMethod `json:"paymentMethod"`
		Address               string               `json:"address"`
		ExpectedAmount        decimal.Decimal      `json:"expectedAmount"`
		ReceivedAmount        decimal.Decimal      `json:"receivedAmount"`
		Confirmations         int                  `json:"confirmations"`
		RequiredConfirmations int                  `json:"requiredConfirmations"`
		State                 detection.State      `json:"state"`
		Settled               bool                 `json:"settled"`
		StartedAt             time.Time            `json:"startedAt,omitempty"`
		Deadline              time.Time            `json:"deadline,omitempty"`
	}
)

func DetectionFromSession(src *detection.Session, policy *detection.Policy) (out Detection) {
	return Detection{
		OrderId:               src.OrderId,
		Method:                src.Method,
		Address:               src.Address,
		ExpectedAmount:        src.Expected,
		ReceivedAmount:        src.Received,
		Confirmations:         src.Confirmations,
		RequiredConfirmations: policy.MinConfirmations,
		State:                 src.State,
		Settled:               src.Settled,
		StartedAt:             src.StartedAt,
		Deadline:              src.Deadline,
	}
}

type (
	Fulfill struct {
		OrderId    uuid.UUID `json:"orderId"`
		ProductId  string    `json:"productId"`
		PayerEmail string    `json:"payerEmail"`
	}
	DeliveryContent struct {
		DownloadUrl string `json:"downloadUrl,omitempty"`
		LicenseKey  string `json:"licenseKey,omitempty"`
	}
	Delivery struct {
		DeliveryMethod  catalog.DeliveryType `json:"deliveryMethod"`
		DeliveryContent DeliveryContent      `json:"deliveryContent"`
	}
)

func DeliveryFromFulfillment(src *fulfillment.Delivery) (out Delivery) {
	return Delivery{
		DeliveryMethod: src.Method,
		DeliveryContent: DeliveryContent{
			DownloadUrl: src.Content.DownloadUrl,
			LicenseKey:  src.Content.LicenseKey,
		},
	}
}

type (
	CreateTicket struct {
		Name     string           `json:"name"`
		Email    string           `json:"email"`
		Subject  string           `json:"subject"`
		Message  string           `json:"message"`
		Priority support.Priority `json:"priority,omitempty"`
	}
	TicketReceipt struct {
		Id        uuid.UUID      `json:"id"`
		Status    support.Status `json:"status"`
		CreatedAt time.Time      `json:"createdAt"`
	}
	TicketCreated struct {
		Message
		Ticket TicketReceipt `json:"ticket"`
	}
	Ticket struct {
		Id        uuid.UUID        `json:"id"`
		Name      string           `json:"name"`
		Email     string           `json:"email"`
		Subject   string           `json:"subject"`
		Message   string           `json:"message"`
		Priority  support.Priority `json:"priority"`
		Status    support.Status   `json:"status"`
		CreatedAt time.Time        `json:"createdAt"`
	}
)

func CreateToSupport(src *CreateTicket) (out support.Create) {
	return support.Create{
		Name:     src.Name,
		Email:    src.Email,
		Subject:  src.Subject,
		Message:  src.Message,
		Priority: src.Priority,
	}
}

func TicketsFromSupport(src []support.Ticket) (tickets []Ticket) {
	tickets = make([]Ticket, 0, len(src))
	for _, t := range src {
		tickets = append(tickets, Ticket{
			Id:        t.Id,
			Name:      t.Name,
			Email:     t.Email,
			Subject:   t.Subject,
			Message:   t.Message,
			Priority:  t.Priority,
			Status:    t.Status,
			CreatedAt: t.CreatedAt,
		})
	}
	return tickets
}

type Stats struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
}
