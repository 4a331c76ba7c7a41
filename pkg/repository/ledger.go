package repository

import (
	"context"
	"fmt"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// PaymentLedger appends every payment verification attempt to MySQL.
type PaymentLedger struct {
	db *gorm.DB
}

func NewPaymentLedger(cfg *config.MySQLConfig) (*PaymentLedger, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewPaymentLedgerWithDB(db)
}

func NewPaymentLedgerWithDB(db *gorm.DB) (*PaymentLedger, error) {
	if err := db.AutoMigrate(&models.PaymentAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &PaymentLedger{db: db}, nil
}

func (l *PaymentLedger) Record(ctx context.Context, attempt *models.PaymentAttempt) error {
	if err := l.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	return nil
}

// AttemptsForOrder lists the recorded attempts of one order, oldest first.
func (l *PaymentLedger) AttemptsForOrder(ctx context.Context, orderID string) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := l.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payment attempts: %w", err)
	}
	return attempts, nil
}

func (l *PaymentLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ service.PaymentLedger = (*PaymentLedger)(nil)
