package domain

import "time"

// AdminCustomerView is the full customer record shown to tenant staff.
type AdminCustomerView struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Points     int64     `json:"points"`
	Tier       Tier      `json:"tier"`
	TotalSpent float64   `json:"totalSpent"`
	VisitCount int       `json:"visitCount"`
	JoinDate   time.Time `json:"joinDate"`
	LastVisit  time.Time `json:"lastVisit"`
	Version    int64     `json:"version"`
}

// CustomerView is a customer's own profile.
type CustomerView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Points     int64     `json:"points"`
	Tier       Tier      `json:"tier"`
	TotalSpent float64   `json:"totalSpent"`
	VisitCount int       `json:"visitCount"`
	JoinDate   time.Time `json:"joinDate"`
	LastVisit  time.Time `json:"lastVisit"`
}

// PublicCustomerView is what a customer may see about someone else.
type PublicCustomerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier Tier   `json:"tier"`
}

// NewAdminCustomerView maps a customer for staff.
func NewAdminCustomerView(c *Customer) AdminCustomerView {
	return AdminCustomerView{
		ID:         c.ID,
		TenantID:   c.TenantID,
		Name:       c.Name,
		Email:      c.Email,
		Points:     c.Points,
		Tier:       c.Tier,
		TotalSpent: c.TotalSpent,
		VisitCount: c.VisitCount,
		JoinDate:   c.JoinDate,
		LastVisit:  c.LastVisit,
		Version:    c.Version,
	}
}

// NewCustomerView maps a customer for themselves.
func NewCustomerView(c *Customer) CustomerView {
	return CustomerView{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Points:     c.Points,
		Tier:       c.Tier,
		TotalSpent: c.TotalSpent,
		VisitCount: c.VisitCount,
		JoinDate:   c.JoinDate,
		LastVisit:  c.LastVisit,
	}
}

// NewPublicCustomerView maps a customer for other customers.
func NewPublicCustomerView(c *Customer) PublicCustomerView {
	return PublicCustomerView{
		ID:   c.ID,
		Name: c.Name,
		Tier: c.Tier,
	}
}
