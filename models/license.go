package models

// LicenseDetails is the verified purchase record for the plus tier.
type LicenseDetails struct {
	Email       string `json:"email" yaml:"email"`
	ProductName string `json:"product_name" yaml:"product_name"`
	OrderNumber string `json:"order_number" yaml:"order_number"`
	PurchaserID string `json:"purchaser_id" yaml:"purchaser_id"`
	Key         string `json:"key" yaml:"key"`
}
