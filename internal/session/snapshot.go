package session

// Snapshot is a read-only view of the session for diagnostics
type Snapshot struct {
	BatchID       string `json:"batchId"`
	BatchNumber   string `json:"batchNumber"`
	LocationCount int    `json:"locationCount"`
	LocationIndex int    `json:"locationIndex"`
	CurrentSKU    string `json:"currentSku,omitempty"`
	CurrentCode   string `json:"currentLocation,omitempty"`
	ItemsTotal    int    `json:"itemsTotal"`
	ItemsComplete int    `json:"itemsComplete"`
	TotesAssigned int    `json:"totesAssigned"`
}

// Snapshot returns the current session state for the diagnostics endpoint
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		BatchID:       s.batchID,
		BatchNumber:   s.batchNumber,
		LocationCount: len(s.locations),
		LocationIndex: s.index,
		TotesAssigned: len(s.sessionTotes),
	}

	if len(s.locations) > 0 {
		snap.CurrentSKU = s.locations[s.index].SKU
		snap.CurrentCode = s.locations[s.index].Code
	}
	for _, loc := range s.locations {
		for _, order := range loc.Orders {
			for _, item := range order.Items {
				snap.ItemsTotal++
				if item.Complete() {
					snap.ItemsComplete++
				}
			}
		}
	}
	return snap
}
