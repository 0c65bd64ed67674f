package db

import "github.com/paycartapp/paycart/internal/models"

type Order = models.Order
type OrderItem = models.OrderItem
type OrderStatus = models.OrderStatus
type PaymentStatus = models.PaymentStatus
type PaymentProvider = models.PaymentProvider
type Product = models.Product
type DiscountCode = models.DiscountCode
type DiscountType = models.DiscountType

const (
	StatusPending   = models.StatusPending
	StatusPaid      = models.StatusPaid
	StatusCompleted = models.StatusCompleted
	StatusFailed    = models.StatusFailed
	StatusRefunded  = models.StatusRefunded

	PaymentPending   = models.PaymentPending
	PaymentSucceeded = models.PaymentSucceeded
	PaymentFailed    = models.PaymentFailed
	PaymentRefunded  = models.PaymentRefunded

	ProviderStripe = models.ProviderStripe
	ProviderPayPal = models.ProviderPayPal
)
