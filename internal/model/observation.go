package model

// Observation records one successful oracle update.
type Observation struct {
	ChainID        uint64 `json:"chain_id"`
	Pair           string `json:"pair"`
	BlockTimestamp uint32 `json:"block_timestamp"`
	Elapsed        uint32 `json:"elapsed"`
	Price0Average  string `json:"price0_average"`
	Price1Average  string `json:"price1_average"`
	Price0Decimal  string `json:"price0_decimal"`
	Price1Decimal  string `json:"price1_decimal"`
	ObservedAt     string `json:"observed_at"`
}
