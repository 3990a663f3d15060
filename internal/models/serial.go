// internal/models/serial.go
package models

import "time"

// ManualBucket is the pool name recorded for caller-supplied serials
// created outside the pre-provisioned pools.
const ManualBucket = "Manual"

// Serial is one row of the serial-number pool. Pool serials start
// unissued and are claimed with a conditional update; manual serials are
// inserted already issued.
type Serial struct {
	SerialNumber string     `json:"serialNumber"`
	Pool         string     `json:"pool"`
	IsUsed       bool       `json:"isUsed"`
	UsedAt       *time.Time `json:"usedAt,omitempty"`
	UsedBy       string     `json:"usedBy,omitempty"`
}
