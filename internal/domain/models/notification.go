package models

import "github.com/Temutjin2k/grid-dispatch/internal/domain/types"

// ProposalNotification is published for the delivery layer when a driver is claimed for a ride.
type ProposalNotification struct {
	Type            string       `json:"type"`
	RecipientUserID int64        `json:"recipient_user_id"`
	Data            ProposalData `json:"data"`
}

type ProposalData struct {
	RideID string  `json:"ride_id"`
	StartX int     `json:"start_x"`
	StartY int     `json:"start_y"`
	EndX   int     `json:"end_x"`
	EndY   int     `json:"end_y"`
	Price  float64 `json:"price"`
}

// NewProposalNotification builds the message offering ride e to driverID.
func NewProposalNotification(driverID int64, e RideEvent) ProposalNotification {
	return ProposalNotification{
		Type:            types.NotificationNewOrderProposal,
		RecipientUserID: driverID,
		Data: ProposalData{
			RideID: e.RideID,
			StartX: e.StartX,
			StartY: e.StartY,
			EndX:   e.EndX,
			EndY:   e.EndY,
			Price:  e.Price,
		},
	}
}
