package contracts

import "time"

// Bar one daily close
type Bar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}
