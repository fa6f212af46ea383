package models

import "time"

// Facility statuses.
const (
	StatusOperational       = "operational"
	StatusPlanned           = "planned"
	StatusUnderConstruction = "under_construction"
	StatusClosed            = "closed"
)

// Facility is a recycling site that documents can be scoped to.
type Facility struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Company   string    `json:"company,omitempty" bson:"company,omitempty"`
	Address   string    `json:"address,omitempty" bson:"address,omitempty"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
