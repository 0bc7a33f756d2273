package model

import "time"

// ProductStatus is a product's availability state.
type ProductStatus string

const (
	ProductInStock      ProductStatus = "in-stock"
	ProductOutOfStock   ProductStatus = "out-of-stock"
	ProductDiscontinued ProductStatus = "discontinued"
)

// Product represents a catalogue item. The catalogue itself is managed
// elsewhere; this subsystem reads prices and mutates quantity, status and
// sell_count through the guarded stock reservation only.
type Product struct {
	ID          string        `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Price       float64       `json:"price" db:"price"`
	ProductType string        `json:"productType" db:"product_type"`
	Quantity    int           `json:"quantity" db:"quantity"`
	Status      ProductStatus `json:"status" db:"status"`
	SellCount   int           `json:"sellCount" db:"sell_count"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
}
