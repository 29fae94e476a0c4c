package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"anarchy.ttfm/storefront/admin"
	"anarchy.ttfm/storefront/auth"
	"anarchy.ttfm/storefront/blockchains/blockcypher"
	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/detection"
	"anarchy.ttfm/storefront/fulfillment"
	"anarchy.ttfm/storefront/notify"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/orders/sqlstore"
	"anarchy.ttfm/storefront/support"
	"anarchy.ttfm/storefront/utils"
	"github.com/dgraph-io/badger/v4"
	"github.com/gabstv/httpdigest"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/proxy"
)

const DefaultExplorerTimeout = 30 * time.Second

// Yaml configuration reference
type (
	Postgres struct {
		DSN   string `yaml:"dsn"`
		Debug bool   `yaml:"debug"`
	}
	Explorer struct {
		Url   string `yaml:"url"`
		Token string `yaml:"token"`
		// Digest credentials of a self hosted explorer
		Username *string `yaml:"username,omitempty"`
		Password *string `yaml:"password,omitempty"`
		// SOCKS5 proxy address, e.g. 127.0.0.1:9050
		Socks5  string        `yaml:"socks5"`
		Timeout time.Duration `yaml:"timeout"`
	}
	Detection struct {
		Tolerance        decimal.Decimal `yaml:"tolerance"`
		MinConfirmations int             `yaml:"min-confirmations"`
		Interval         time.Duration   `yaml:"interval"`
		ConfirmationCap  int             `yaml:"confirmation-cap"`
		MaxDuration      time.Duration   `yaml:"max-duration"`
		Workers          int             `yaml:"workers"`
	}
	Admin struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"password-hash"`
	}
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		Sync    bool     `yaml:"sync"`
	}
	Config struct {
		ListenAddress string `yaml:"listen-address"`
		DatabasePath  string `yaml:"database-path"`
		// Orders go to PostgreSQL when set, badger otherwise
		Postgres *Postgres `yaml:"postgres,omitempty"`
		// Load the bundled catalog at startup
		SeedCatalog bool `yaml:"seed-catalog"`
		// Extra catalog document loaded after the bundled one
		CatalogPath   string        `yaml:"catalog-path"`
		SessionSecret string        `yaml:"session-secret"`
		SessionTTL    time.Duration `yaml:"session-ttl"`
		DownloadTTL   time.Duration `yaml:"download-ttl"`
		SecureCookies bool          `yaml:"secure-cookies"`
		WebhookSecret string        `yaml:"webhook-secret"`
		Admin         Admin         `yaml:"admin"`
		Explorer      Explorer      `yaml:"explorer"`
		Detection     Detection     `yaml:"detection"`
		// Shared session revocation, in memory when unset
		Redis *Redis `yaml:"redis,omitempty"`
		// Completion events, logged when unset
		Kafka *Kafka `yaml:"kafka,omitempty"`
	}
)

// Storefront holds every compiled component
type Storefront struct {
	DB          *badger.DB
	Catalog     *catalog.Catalog
	Orders      *orders.Controller
	Support     *support.Desk
	Fulfillment *fulfillment.Hook
	Detection   *detection.Manager
	Auth        *auth.Authority
	Admin       *admin.Panel

	closers []io.Closer
}

// Close stops detection before releasing the storage it writes to
func (s *Storefront) Close() (err error) {
	if s.Detection != nil {
		s.Detection.Close()
	}
	for index := len(s.closers) - 1; index >= 0; index-- {
		err = errors.Join(err, s.closers[index].Close())
	}
	return err
}

func (c *Config) Policy() (policy detection.Policy) {
	policy = detection.DefaultPolicy()
	if !c.Detection.Tolerance.IsZero() {
		policy.Tolerance = c.Detection.Tolerance
	}
	if c.Detection.MinConfirmations > 0 {
		policy.MinConfirmations = c.Detection.MinConfirmations
	}
	if c.Detection.Interval > 0 {
		policy.Interval = c.Detection.Interval
	}
	if c.Detection.ConfirmationCap > 0 {
		policy.ConfirmationCap = c.Detection.ConfirmationCap
	}
	if c.Detection.MaxDuration > 0 {
		policy.MaxDuration = c.Detection.MaxDuration
	}
	return policy
}

// HTTPClient builds the explorer client
func (e *Explorer) HTTPClient() (client *http.Client, err error) {
	client = &http.Client{Timeout: e.Timeout}
	if client.Timeout <= 0 {
		client.Timeout = DefaultExplorerTimeout
	}

	digest := e.Username != nil && e.Password != nil
	switch {
	case digest && e.Socks5 != "":
		return nil, errors.New("explorer digest authentication cannot go through socks5")
	case digest:
		client.Transport = httpdigest.New(*e.Username, *e.Password)
	case e.Socks5 != "":
		dialer, err := proxy.SOCKS5("tcp", e.Socks5, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare socks5 dialer: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
		client.Transport = transport
	}
	return client, nil
}

func (c *Config) orderStore(db *badger.DB) (store orders.Store, closer io.Closer, err error) {
	if c.Postgres == nil || c.Postgres.DSN == "" {
		return orders.NewBadgerStore(db), nil, nil
	}
	sql, err := sqlstore.Open(sqlstore.Config{DSN: c.Postgres.DSN, Debug: c.Postgres.Debug})
	if err != nil {
		return nil, nil, err
	}
	return sql, sql, nil
}

func (c *Config) notifier() (notifier notify.Notifier, closer io.Closer) {
	if c.Kafka == nil || len(c.Kafka.Brokers) == 0 {
		return notify.Log{}, nil
	}
	k := notify.NewKafka(notify.KafkaConfig{
		Brokers: c.Kafka.Brokers,
		Topic:   c.Kafka.Topic,
		Sync:    c.Kafka.Sync,
	})
	return k, k
}

func (c *Config) revoker(ctx context.Context) (revoker auth.Revoker, closer io.Closer, err error) {
	if c.Redis == nil || c.Redis.Address == "" {
		return auth.NewMemoryRevoker(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	err = client.Ping(ctx).Err()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return auth.NewRedisRevoker(client), client, nil
}

func (c *Config) seed(ctx context.Context, products *catalog.Catalog) (err error) {
	documents := make([][]byte, 0, 2)
	if c.SeedCatalog {
		documents = append(documents, catalog.DefaultSeed)
	}
	if c.CatalogPath != "" {
		contents, err := os.ReadFile(c.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to read catalog: %w", err)
		}
		documents = append(documents, contents)
	}

	for _, document := range documents {
		p, g, err := products.Seed(ctx, document)
		if err != nil {
			return err
		}
		log.Println("INFO|CATALOG|SEEDED", p, "products", g, "groups")
	}
	return nil
}

var ErrMissingWebhookSecret = errors.New("webhook-secret is required")

func (c *Config) Compile() (sf *Storefront, err error) {
	sf = &Storefront{}
	defer func() {
		if err != nil {
			sf.Close()
			sf = nil
		}
	}()

	ctx, cancel := utils.NewContextWithTimeout(time.Minute)
	defer cancel()

	if c.WebhookSecret == "" {
		return sf, ErrMissingWebhookSecret
	}

	policy := c.Policy()
	err = policy.Validate()
	if err != nil {
		return sf, err
	}

	client, err := c.Explorer.HTTPClient()
	if err != nil {
		return sf, err
	}

	opt := badger.DefaultOptions(c.DatabasePath)
	sf.DB, err = badger.Open(opt)
	if err != nil {
		return sf, fmt.Errorf("failed to open database: %w", err)
	}
	sf.closers = append(sf.closers, sf.DB)

	store, closer, err := c.orderStore(sf.DB)
	if err != nil {
		return sf, err
	}
	if closer != nil {
		sf.closers = append(sf.closers, closer)
	}

	revoker, closer, err := c.revoker(ctx)
	if err != nil {
		return sf, err
	}
	if closer != nil {
		sf.closers = append(sf.closers, closer)
	}

	notifier, closer := c.notifier()
	if closer != nil {
		sf.closers = append(sf.closers, closer)
	}

	sf.Catalog = catalog.New(catalog.Config{DB: sf.DB})
	err = c.seed(ctx, sf.Catalog)
	if err != nil {
		return sf, err
	}

	sf.Orders = orders.New(orders.Config{Store: store, Prices: sf.Catalog})
	sf.Support = support.New(support.Config{DB: sf.DB})
	sf.Admin = admin.New(admin.Config{Orders: sf.Orders, Tickets: sf.Support})
	sf.Fulfillment = fulfillment.New(fulfillment.Config{
		Orders:   sf.Orders,
		Products: sf.Catalog,
		Notifier: notifier,
	})

	sf.Auth, err = auth.New(auth.Config{
		Secret:            []byte(c.SessionSecret),
		AdminUsername:     c.Admin.Username,
		AdminPasswordHash: c.Admin.PasswordHash,
		SessionTTL:        c.SessionTTL,
		DownloadTTL:       c.DownloadTTL,
		Revoker:           revoker,
	})
	if err != nil {
		return sf, err
	}

	sf.Detection, err = detection.NewManager(detection.Config{
		Checker: blockcypher.New(blockcypher.Config{
			Url:             c.Explorer.Url,
			Token:           c.Explorer.Token,
			ConfirmationCap: policy.ConfirmationCap,
			Client:          client,
		}),
		Settler: sf.Fulfillment,
		Policy:  policy,
		Workers: c.Detection.Workers,
	})
	if err != nil {
		return sf, err
	}
	return sf, nil
}
