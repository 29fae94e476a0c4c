// Package sqlstore keeps orders in PostgreSQL through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"anarchy.ttfm/storefront/orders"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Row is the table layout of an order
type Row struct {
	Id            string `gorm:"primaryKey;size:36"`
	ProductId     string `gorm:"size:128"`
	ProductName   string `gorm:"size:256"`
	ProductPrice  string `gorm:"size:32"`
	PayerId       string `gorm:"size:256"`
	PayerEmail    string `gorm:"size:256"`
	PayerKey      string `gorm:"index;size:256"`
	EmailKey      string `gorm:"index;size:256"`
	PaymentMethod string `gorm:"size:16"`
	WalletAddress string `gorm:"size:128"`
	Status        string `gorm:"size:16;default:'pending'"`
	TransactionId string `gorm:"size:128"`
	LicenseKey    string `gorm:"size:256"`
	DownloadUrl   string `gorm:"size:1024"`
	// Named apart from CreatedAt/UpdatedAt so gorm leaves them to the controller
	CreatedTime time.Time `gorm:"column:created_at;index"`
	UpdatedTime time.Time `gorm:"column:updated_at"`
}

func (Row) TableName() string {
	return "orders"
}

func fromOrder(order *orders.Order) (row Row) {
	return Row{
		Id:            order.Id.String(),
		ProductId:     order.ProductId,
		ProductName:   order.ProductName,
		ProductPrice:  order.ProductPrice,
		PayerId:       order.PayerId,
		PayerEmail:    order.PayerEmail,
		PayerKey:      orders.NormalizePayer(order.PayerId),
		EmailKey:      orders.NormalizePayer(order.PayerEmail),
		PaymentMethod: string(order.PaymentMethod),
		WalletAddress: order.WalletAddress,
		Status:        string(order.Status),
		TransactionId: order.TransactionId,
		LicenseKey:    order.LicenseKey,
		DownloadUrl:   order.DownloadUrl,
		CreatedTime:   order.CreatedAt,
		UpdatedTime:   order.UpdatedAt,
	}
}

func (r *Row) Order() (order orders.Order, err error) {
	id, err := uuid.Parse(r.Id)
	if err != nil {
		return order, fmt.Errorf("failed to parse order id: %w", err)
	}
	return orders.Order{
		Id:            id,
		ProductId:     r.ProductId,
		ProductName:   r.ProductName,
		ProductPrice:  r.ProductPrice,
		PayerId:       r.PayerId,
		PayerEmail:    r.PayerEmail,
		PaymentMethod: orders.PaymentMethod(r.PaymentMethod),
		WalletAddress: r.WalletAddress,
		Status:        orders.Status(r.Status),
		CreatedAt:     r.CreatedTime,
		UpdatedAt:     r.UpdatedTime,
		TransactionId: r.TransactionId,
		LicenseKey:    r.LicenseKey,
		DownloadUrl:   r.DownloadUrl,
	}, nil
}

type Config struct {
	// PostgreSQL DSN, e.g. "host=localhost user=postgres dbname=storefront sslmode=disable"
	DSN string
	// Log every statement
	Debug bool
}

type Store struct {
	db *gorm.DB
}

var _ orders.Store = (*Store)(nil)

// Open connects and migrates the orders table
func Open(config Config) (s *Store, err error) {
	level := logger.Warn
	if config.Debug {
		level = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	db, err := gorm.Open(postgres.Open(config.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err = New(db)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an open connection, migrating the orders table
func New(db *gorm.DB) (s *Store, err error) {
	err = db.AutoMigrate(&Row{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate orders: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() (err error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) Insert(ctx context.Context, order orders.Order) (err error) {
	row := fromOrder(&order)
	err = s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return orders.ErrOrderNotFound
	}
	return fmt.Errorf("failed to query order: %w", err)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (order orders.Order, err error) {
	var row Row
	err = s.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if err != nil {
		return order, notFound(err)
	}
	return row.Order()
}

func toOrders(rows []Row) (list []orders.Order, err error) {
	list = make([]orders.Order, 0, len(rows))
	for index := range rows {
		order, err := rows[index].Order()
		if err != nil {
			log.Println("ERROR|SQLSTORE|DECODE", rows[index].Id, err)
			continue
		}
		list = append(list, order)
	}
	return list, nil
}

func (s *Store) List(ctx context.Context) (list []orders.Order, err error) {
	var rows []Row
	err = s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return toOrders(rows)
}

func (s *Store) ListByPayer(ctx context.Context, payer string) (list []orders.Order, err error) {
	var rows []Row
	err = s.db.WithContext(ctx).
		Where("payer_key = ? OR email_key = ?", payer, payer).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payer orders: %w", err)
	}
	return toOrders(rows)
}

// Update locks the row with SELECT ... FOR UPDATE for the whole read-modify-write
func (s *Store) Update(ctx context.Context, id uuid.UUID, apply func(order *orders.Order) error) (order orders.Order, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		var row Row
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id.String()).
			First(&row).Error
		if err != nil {
			return notFound(err)
		}

		order, err = row.Order()
		if err != nil {
			return err
		}

		err = apply(&order)
		if err != nil {
			return err
		}

		updated := fromOrder(&order)
		err = tx.Save(&updated).Error
		if err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		return nil
	})
	return order, err
}
