package models

// Quote is the price and ETA estimate for a ride between two cells.
type Quote struct {
	Distance   int     `json:"distance"`
	ETASeconds float64 `json:"eta_seconds"`
	Price      float64 `json:"price"`
}

// RideQuote is the answer to a ride request: the assigned id and its estimate.
type RideQuote struct {
	RideID string `json:"ride_id"`
	Start  Cell   `json:"start"`
	End    Cell   `json:"end"`
	Quote
}
