/*

This is a custom type for tokens which carries the metadata needed to convert between raw on-chain amounts and human amounts.

*/

package types

import "time"

type Token struct {
	Symbol   string `json:"symbol"`         // e.g., "SOL"
	Mint     string `json:"mint,omitempty"` // e.g., "So11111111111111111111111111111111111111112"
	Decimals int    `json:"decimals"`       // e.g., 9 means 1e9 raw units = 1 token
}

// PriceData holds a single historical close price.
// Used by volatility calibration, which does not need volumes.
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
