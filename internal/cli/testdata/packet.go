package sample

// Packet is a wire header.
type Packet struct {
	Flag   bool   // set when the payload is compressed
	Length uint64 `json:"length"`
	Kind   uint8
}

type Compact struct {
	Length uint64
	Kind   uint8
	Flag   bool
}
