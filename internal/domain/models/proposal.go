package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Proposal is an outstanding offer of a ride to a claimed driver.
type Proposal struct {
	RideID   string
	DriverID int64
	Deadline time.Time
}

// Member is the proposal's identity inside the time-ordered proposal set.
func (p Proposal) Member() string {
	return p.RideID + ":" + strconv.FormatInt(p.DriverID, 10)
}

// ParseProposalMember is the inverse of Proposal.Member. Ride ids may contain ':'.
func ParseProposalMember(member string) (Proposal, error) {
	i := strings.LastIndexByte(member, ':')
	if i <= 0 || i == len(member)-1 {
		return Proposal{}, fmt.Errorf("malformed proposal member %q", member)
	}
	driverID, err := strconv.ParseInt(member[i+1:], 10, 64)
	if err != nil {
		return Proposal{}, fmt.Errorf("malformed proposal member %q: %w", member, err)
	}
	return Proposal{RideID: member[:i], DriverID: driverID}, nil
}
