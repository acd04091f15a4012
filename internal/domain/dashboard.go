package domain

type DashboardStats struct {
	TotalProducts int     `json:"totalProducts"`
	TotalOrders   int     `json:"totalOrders"`
	TotalUsers    int     `json:"totalUsers"`
	TotalRevenue  float64 `json:"totalRevenue"`
}

type TopProduct struct {
	ID           string      `json:"_id"`
	Product      *ProductRef `json:"product"`
	TotalSold    int         `json:"totalSold"`
	TotalRevenue float64     `json:"totalRevenue"`
}

func (t TopProduct) Name() string {
	if t.Product == nil || t.Product.Name == "" {
		return "Unknown Product"
	}
	return t.Product.Name
}

// Dashboard is the admin summary. Missing sections decode to zero values.
type Dashboard struct {
	Stats        DashboardStats `json:"stats"`
	RecentOrders []Order        `json:"recentOrders"`
	TopProducts  []TopProduct   `json:"topProducts"`
}
