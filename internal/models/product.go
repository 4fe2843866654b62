package models

// Contact is the nested contact value stored on each catalog record.
// LookupValue mirrors Email for records created through the API; records
// imported from the old list system may carry a distinct display name there.
type Contact struct {
	Email       string `json:"Email"`
	LookupValue string `json:"LookupValue"`
}

// Product is one record of the catalog document. The JSON tags match the
// field names used in products.json since before this service existed; most
// are Japanese because the document originated as a list export. Every value
// field is a string, which is the document's historical shape.
type Product struct {
	Title           string  `json:"Title"`
	Description     string  `json:"商品説明"`
	Category        string  `json:"商品分類"`
	StartDate       string  `json:"提供開始日"`
	EndDate         string  `json:"提供終了日"`
	Quantity        string  `json:"数量"`
	Unit            string  `json:"単位"`
	Contact         Contact `json:"提供者の連絡先"`
	Address         string  `json:"提供元の住所"`
	Manager         string  `json:"作業所長名"`
	ImageKey        string  `json:"画像URL"`
	ModifiedDate    string  `json:"ModifiedDate"`
	LastUpdatedFrom string  `json:"LastUpdatedFrom"`
}
