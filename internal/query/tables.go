package query

// Products lists the catalog with its category name.
func Products(maxPageSize int) Table {
	return Table{
		From: "products p",
		Columns: []string{
			"p.id", "p.name", "p.description", "p.price", "p.quantity",
			"p.category_id", "COALESCE(c.name, '') AS category", "p.created_at",
		},
		Joins: []string{"LEFT JOIN categories c ON c.id = p.category_id"},
		Sortable: map[string]string{
			"id":          "p.id",
			"name":        "p.name",
			"price":       "p.price",
			"category_id": "p.category_id",
			"created_at":  "p.created_at",
		},
		Filters: map[string]Filter{
			"keyword":     {Column: "p.name", Op: OpContains},
			"category":    {Column: "c.name", Op: OpContains},
			"category_id": {Column: "p.category_id", Op: OpEq, Int: true},
			"min_price":   {Column: "p.price", Op: OpMin, Int: true},
			"max_price":   {Column: "p.price", Op: OpMax, Int: true},
			"min_date":    {Column: "p.created_at", Op: OpDateFrom},
			"max_date":    {Column: "p.created_at", Op: OpDateTo},
		},
		DefaultOrder: "p.id ASC",
		MaxPageSize:  maxPageSize,
	}
}

func Carts(maxPageSize int) Table {
	return Table{
		From:    "carts ct",
		Columns: []string{"ct.id", "ct.user_id", "ct.product_id", "ct.quantity", "ct.created_at"},
		Sortable: map[string]string{
			"id":         "ct.id",
			"product_id": "ct.product_id",
			"quantity":   "ct.quantity",
			"created_at": "ct.created_at",
		},
		Filters: map[string]Filter{
			"user_id":    {Column: "ct.user_id", Op: OpEq, Int: true},
			"product_id": {Column: "ct.product_id", Op: OpEq, Int: true},
			"product":    {Column: "pr.name", Op: OpContains, Join: "JOIN products pr ON pr.id = ct.product_id"},
			"min_date":   {Column: "ct.created_at", Op: OpDateFrom},
			"max_date":   {Column: "ct.created_at", Op: OpDateTo},
		},
		DefaultOrder: "ct.id ASC",
		MaxPageSize:  maxPageSize,
	}
}

func Orders(maxPageSize int) Table {
	return Table{
		From:    "orders o",
		Columns: []string{"o.id", "o.user_id", "o.address", "o.fullname", "o.phone_number", "o.created_at"},
		Sortable: map[string]string{
			"id":         "o.id",
			"created_at": "o.created_at",
			"fullname":   "o.fullname",
		},
		Filters: map[string]Filter{
			"user_id":  {Column: "o.user_id", Op: OpEq, Int: true},
			"fullname": {Column: "o.fullname", Op: OpContains},
			"min_date": {Column: "o.created_at", Op: OpDateFrom},
			"max_date": {Column: "o.created_at", Op: OpDateTo},
		},
		DefaultOrder: "o.created_at DESC",
		MaxPageSize:  maxPageSize,
	}
}
