package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the customer aggregate as seen by the discount engine.
type Customer struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	CustomerGroupID *uuid.UUID `json:"customer_group_id,omitempty" db:"customer_group_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Staff identifies the employee who applied or authorized a discount.
type Staff struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}
