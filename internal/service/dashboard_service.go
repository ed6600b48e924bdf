package service

import (
	"context"

	"billing-backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardResponse carries the aggregate counters shown on the home
// screen. Revenue is the sum of all invoice totals; collected is the
// sum of all recorded payments.
type DashboardResponse struct {
	TotalCustomers int64  `json:"total_customers"`
	TotalProducts  int64  `json:"total_products"`
	TotalInvoices  int64  `json:"total_invoices"`
	UnpaidInvoices int64  `json:"unpaid_invoices"`
	TotalRevenue   string `json:"total_revenue"`
	TotalCollected string `json:"total_collected"`
}

type DashboardService interface {
	GetDashboard(ctx context.Context) (DashboardResponse, error)
}

type dashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) DashboardService {
	return &dashboardService{db: db}
}

func (s *dashboardService) GetDashboard(ctx context.Context) (DashboardResponse, error) {
	var resp DashboardResponse
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Customer{}).Count(&resp.TotalCustomers).Error; err != nil {
		return DashboardResponse{}, err
	}
	if err := db.Model(&model.Product{}).Count(&resp.TotalProducts).Error; err != nil {
		return DashboardResponse{}, err
	}
	if err := db.Model(&model.Invoice{}).Count(&resp.TotalInvoices).Error; err != nil {
		return DashboardResponse{}, err
	}
	if err := db.Model(&model.Invoice{}).Where("paid = ?", false).Count(&resp.UnpaidInvoices).Error; err != nil {
		return DashboardResponse{}, err
	}

	var revenue struct {
		Value decimal.Decimal
	}
	if err := db.Model(&model.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0) as value").
		Scan(&revenue).Error; err != nil {
		return DashboardResponse{}, err
	}
	resp.TotalRevenue = revenue.Value.StringFixed(2)

	var collected struct {
		Value decimal.Decimal
	}
	if err := db.Model(&model.Payment{}).
		Select("COALESCE(SUM(amount_paid), 0) as value").
		Scan(&collected).Error; err != nil {
		return DashboardResponse{}, err
	}
	resp.TotalCollected = collected.Value.StringFixed(2)

	return resp, nil
}
