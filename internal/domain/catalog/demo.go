package catalog

import "invencare/internal/core/types"

// DemoStores returns the stores loaded by cmd/seed.
func DemoStores() []Store {
	return []Store{
		{ID: "store_001", Name: "Downtown Market"},
		{ID: "store_002", Name: "Riverside Plaza"},
		{ID: "store_003", Name: "Airport Express"},
	}
}

// DemoProducts returns a small multi-store catalog. DA-CHE-004 exists in
// store_002 and, under the same name and category, in store_001.
func DemoProducts() []Product {
	family := func(s string) *string { return &s }
	return []Product{
		{ID: "FV-BAN-001", StoreID: "store_001", Name: "Bananas", Category: "Fruits & Vegetables",
			UnitPrice: types.MustMoney("1.99"), Quantity: 100, MinimumStock: 20, MaximumStock: 300},
		{ID: "FV-APL-002", StoreID: "store_001", Name: "Gala Apples", Category: "Fruits & Vegetables",
			UnitPrice: types.MustMoney("3.49"), Quantity: 80, MinimumStock: 25, MaximumStock: 200},
		{ID: "DA-MLK-003", StoreID: "store_001", Name: "Whole Milk", Category: "Dairy",
			UnitPrice: types.MustMoney("2.89"), Quantity: 12, MinimumStock: 15, MaximumStock: 120},
		{ID: "DA-CHE-104", StoreID: "store_001", Name: "Cheddar Cheese", Category: "Dairy",
			UnitPrice: types.MustMoney("5.99"), Quantity: 7, MinimumStock: 5, MaximumStock: 60},
		{ID: "DA-CHE-004", StoreID: "store_002", Name: "Cheddar Cheese", Category: "Dairy",
			UnitPrice: types.MustMoney("5.99"), Quantity: 19, MinimumStock: 5, MaximumStock: 60},
		{ID: "BK-BRD-010", StoreID: "store_002", FamilyKey: family("bread-white"), Name: "White Bread", Category: "Bakery",
			UnitPrice: types.MustMoney("2.49"), Quantity: 30, MinimumStock: 10, MaximumStock: 80},
		{ID: "BK-BRD-310", StoreID: "store_003", FamilyKey: family("bread-white"), Name: "Sandwich Loaf", Category: "Bakery",
			UnitPrice: types.MustMoney("2.49"), Quantity: 4, MinimumStock: 10, MaximumStock: 80},
		{ID: "BV-WAT-020", StoreID: "store_003", Name: "Spring Water 1L", Category: "Beverages",
			UnitPrice: types.MustMoney("1.20"), Quantity: 0, MinimumStock: 24, MaximumStock: 240},
	}
}
