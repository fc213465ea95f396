package domain

// BuildLocations transforms the backend's flat locationGroups payload into the
// ordered traversal hierarchy: one Location per (location code, SKU) pair,
// each holding its orders, each holding its line items. Grouping preserves
// first-seen order throughout, so the result is deterministic given stable
// input ordering; that stability is what lets a session re-locate its current
// position after a server refresh.
//
// Malformed groups (missing or empty item lists, nil entries) are skipped
// rather than failing the whole batch.
func BuildLocations(groups LocationGroups) []Location {
	locations := make([]Location, 0, len(groups))

	for _, group := range groups {
		if len(group.Items) == 0 {
			continue
		}

		// Group items by SKU at this location, preserving first-seen order.
		skuOrder := make([]string, 0, len(group.Items))
		bySKU := make(map[string]*Location)

		for _, item := range group.Items {
			if item.ID == "" || item.ProductSKU == "" {
				continue
			}

			loc, ok := bySKU[item.ProductSKU]
			if !ok {
				code := item.PickLocation
				if code == "" {
					code = group.Name
				}
				loc = &Location{
					SKU:         item.ProductSKU,
					Code:        code,
					ProductName: item.ProductName,
					Barcode:     item.ProductBarcode,
					ImageURL:    firstNonEmpty(item.ProductImageURL, item.ImageURL),
				}
				bySKU[item.ProductSKU] = loc
				skuOrder = append(skuOrder, item.ProductSKU)
			}

			loc.TotalQuantity += item.Quantity
			appendLineItem(loc, item)
		}

		for _, sku := range skuOrder {
			locations = append(locations, *bySKU[sku])
		}
	}

	return locations
}

// appendLineItem places an item into its order group, creating the order on
// first sight to preserve order-of-appearance.
func appendLineItem(loc *Location, item ItemRecord) {
	var order *Order
	for i := range loc.Orders {
		if loc.Orders[i].ID == item.OrderID {
			order = &loc.Orders[i]
			break
		}
	}
	if order == nil {
		loc.Orders = append(loc.Orders, Order{
			ID:          item.OrderID,
			Number:      item.OrderNumber,
			Customer:    item.CustomerName,
			ToteNumber:  item.ToteNumber,
			ToteBarcode: item.ToteBarcode,
		})
		order = &loc.Orders[len(loc.Orders)-1]
	}

	order.Items = append(order.Items, LineItem{
		ID:           item.ID,
		SKU:          item.ProductSKU,
		ProductName:  item.ProductName,
		Barcode:      item.ProductBarcode,
		ImageURL:     item.ProductImageURL,
		LineNumber:   item.LineNumber,
		Required:     item.Quantity,
		Picked:       item.QuantityPicked,
		Status:       NormalizeItemStatus(item.Status),
		Oversized:    item.IsOversized,
		OversizedAt:  item.OversizedLocation,
		OrderID:      item.OrderID,
		OrderNumber:  item.OrderNumber,
		CustomerName: item.CustomerName,
		LocationCode: firstNonEmpty(item.PickLocation, loc.Code),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
