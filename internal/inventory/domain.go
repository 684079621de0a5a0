package inventory

import (
	"fmt"
	"time"

	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Roll is a physical piece of fabric in the warehouse. RollID is assigned
// at creation and never changes. A zero Price means the unit price is
// unknown and the roll is valued at the fabric's weighted average cost.
type Roll struct {
	RollID   string    `json:"rollId"`
	SubCode  string    `json:"subCode"`
	Meters   float64   `json:"meters"`
	Price    float64   `json:"price"`
	Location string    `json:"location"`
	AddedAt  time.Time `json:"addedAt"`
}

// Fabric is a catalog item identified by MainCode.
type Fabric struct {
	ID        string    `json:"id"`
	MainCode  string    `json:"mainCode"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Rolls     []Roll    `json:"rolls"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TotalMeters sums the remaining meters over all rolls.
func (f Fabric) TotalMeters() float64 {
	var total float64
	for _, r := range f.Rolls {
		total += r.Meters
	}
	return total
}

// FindFabric returns the first fabric with the given main code.
func FindFabric(fabrics []Fabric, mainCode string) (Fabric, bool) {
	for _, f := range fabrics {
		if f.MainCode == mainCode {
			return f, true
		}
	}
	return Fabric{}, false
}

// CreateFabricInput describes a new catalog entry.
type CreateFabricInput struct {
	MainCode string
	Name     string
	Color    string
}

// AddRollInput describes a roll added to an existing fabric.
type AddRollInput struct {
	SubCode  string
	Meters   float64
	Price    float64
	Location string
}

// FabricStock is the stock view of one fabric.
type FabricStock struct {
	Fabric    Fabric           `json:"fabric"`
	Subcodes  []SubcodeSummary `json:"subcodes"`
	AvgCost   float64          `json:"avgCost"`
	Value     float64          `json:"value"`
	Meters    float64          `json:"meters"`
	RollCount int              `json:"rollCount"`
}

var (
	// ErrDuplicateMainCode is returned when a main code is already taken.
	ErrDuplicateMainCode = fmt.Errorf("inventory: main code already exists: %w", shared.ErrConflict)
	// ErrInvalidMeters indicates a negative or missing roll quantity.
	ErrInvalidMeters = fmt.Errorf("inventory: meters must be > 0: %w", shared.ErrValidation)
	// ErrInvalidPrice indicates a negative unit price.
	ErrInvalidPrice = fmt.Errorf("inventory: price must be >= 0: %w", shared.ErrValidation)
)
