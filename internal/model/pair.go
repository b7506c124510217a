package model

// Pair is a tracked pair record for storage.
type Pair struct {
	ChainID uint64 `json:"chain_id"`
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
}
