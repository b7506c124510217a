package model

// TokenMeta is the ERC20 metadata needed to render averages in whole-token
// units. Decimals is 0 when the token could not be read.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
}
