package statsdcore

import (
	"time"
)

// ReceiverStats holds statistics of the event reactor.
type ReceiverStats struct {
	LastPacket           time.Time `json:"lastPacket"`
	PacketsReceived      uint64    `json:"packetsReceived"`
	BytesReceived        uint64    `json:"bytesReceived"`
	MeasurementsReceived uint64    `json:"measurementsReceived"`
	BadPayloads          uint64    `json:"badPayloads"`
	DecodeErrors         uint64    `json:"decodeErrors"`
	TruncatedDatagrams   uint64    `json:"truncatedDatagrams"`
	ControlMessages      uint64    `json:"controlMessages"`
}
