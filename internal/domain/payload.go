package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemRecord is one flat item entry of the backend's locationGroups payload
type ItemRecord struct {
	ID                string `json:"id"`
	ProductSKU        string `json:"productSku"`
	ProductName       string `json:"productName"`
	ProductBarcode    string `json:"productBarcode"`
	ProductImageURL   string `json:"productImageUrl"`
	ImageURL          string `json:"imageUrl"`
	PickLocation      string `json:"pickLocation"`
	Quantity          int    `json:"quantity"`
	QuantityPicked    int    `json:"quantityPicked"`
	Status            string `json:"status"`
	IsOversized       bool   `json:"isOversized"`
	OversizedLocation string `json:"oversizedLocation"`
	OrderID           string `json:"orderId"`
	OrderNumber       string `json:"orderNumber"`
	CustomerName      string `json:"customerName"`
	ToteNumber        string `json:"toteNumber"`
	ToteBarcode       string `json:"toteBarcode"`
	LineNumber        int    `json:"lineNumber"`
}

// LocationGroup is a named group of items sharing a physical location code
type LocationGroup struct {
	Name  string       `json:"name"`
	Items []ItemRecord `json:"items"`
}

// LocationGroups accepts both payload shapes the backend has used over time:
// an array of {name, items} records, or an object mapping a location code to
// an item list. Object keys are decoded in document order so that building
// locations from either shape is deterministic given stable input ordering.
type LocationGroups []LocationGroup

// UnmarshalJSON implements json.Unmarshaler
func (g *LocationGroups) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*g = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var groups []LocationGroup
		if err := json.Unmarshal(trimmed, &groups); err != nil {
			return fmt.Errorf("decoding location group array: %w", err)
		}
		*g = groups
		return nil
	case '{':
		return g.unmarshalObject(trimmed)
	default:
		return fmt.Errorf("location groups: unexpected payload shape")
	}
}

// unmarshalObject walks the object token by token to preserve key order,
// which encoding/json's map decoding would lose.
func (g *LocationGroups) unmarshalObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	if _, err := dec.Token(); err != nil { // opening brace
		return err
	}

	var groups []LocationGroup
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("location groups: non-string key")
		}

		var items []ItemRecord
		if err := dec.Decode(&items); err != nil {
			return fmt.Errorf("decoding items for location %q: %w", name, err)
		}
		groups = append(groups, LocationGroup{Name: name, Items: items})
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}

	*g = groups
	return nil
}
