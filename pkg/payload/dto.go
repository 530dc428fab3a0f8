// Package payload holds the business documents carried inside workflow variables
// and builds the deploy-and-start requests for the onboarding, purchase order and
// document approval processes.
package payload

import "time"

// DefaultCurrency is used when an order does not state one.
const DefaultCurrency = "USD"

type EmployeeData struct {
	EmployeeID   string         `json:"employeeId"`
	PersonalInfo PersonalInfo   `json:"personalInfo"`
	JobDetails   JobDetails     `json:"jobDetails"`
	Permissions  []Permission   `json:"permissions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type PersonalInfo struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Address     Address    `json:"address"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type JobDetails struct {
	Position   string         `json:"position"`
	Department string         `json:"department"`
	Salary     float64        `json:"salary"`
	StartDate  time.Time      `json:"startDate"`
	Manager    string         `json:"manager"`
	Benefits   map[string]any `json:"benefits,omitempty"`
}

type Permission struct {
	System      string     `json:"system"`
	Role        string     `json:"role"`
	Permissions []string   `json:"permissions"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

type PurchaseOrder struct {
	PONumber     string                  `json:"poNumber"`
	Vendor       VendorInfo              `json:"vendor"`
	Items        []PurchaseItem          `json:"items"`
	Totals       OrderTotals             `json:"totals"`
	Approvals    map[string]ApprovalInfo `json:"approvals,omitempty"`
	CustomFields map[string]any          `json:"customFields,omitempty"`
}

type VendorInfo struct {
	VendorID     string            `json:"vendorId"`
	Name         string            `json:"name"`
	ContactInfo  map[string]string `json:"contactInfo,omitempty"`
	PaymentTerms string            `json:"paymentTerms"`
}

type PurchaseItem struct {
	ItemCode       string         `json:"itemCode"`
	Description    string         `json:"description"`
	Quantity       int            `json:"quantity"`
	UnitPrice      float64        `json:"unitPrice"`
	TotalPrice     float64        `json:"totalPrice"`
	Specifications map[string]any `json:"specifications,omitempty"`
}

type OrderTotals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// CurrencyOrDefault returns the currency, falling back to DefaultCurrency.
func (t OrderTotals) CurrencyOrDefault() string {
	if t.Currency == "" {
		return DefaultCurrency
	}
	return t.Currency
}

type ApprovalInfo struct {
	Approver  string         `json:"approver"`
	Status    string         `json:"status"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Comments  string         `json:"comments,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
