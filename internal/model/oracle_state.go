package model

// OracleState is the persisted form of a pair oracle. Numeric fields are
// base-10 strings; averages hold the raw UQ112x112 encoding.
type OracleState struct {
	ChainID              uint64 `json:"chain_id"`
	Pair                 string `json:"pair"`
	Token0               string `json:"token0"`
	Token1               string `json:"token1"`
	Price0CumulativeLast string `json:"price0_cumulative_last"`
	Price1CumulativeLast string `json:"price1_cumulative_last"`
	BlockTimestampLast   uint32 `json:"block_timestamp_last"`
	Price0Average        string `json:"price0_average"`
	Price1Average        string `json:"price1_average"`
	UpdatedAt            string `json:"updated_at"`
}
