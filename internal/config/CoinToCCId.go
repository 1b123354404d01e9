/*
Crypto Compare is used for hourly price history.

This file contains the mapping of token symbols to their corresponding Crypto Compare ID.
Wrapped and bridged tokens trade under the symbol of the underlying asset, and stablecoins
quoted by the pool are priced against USD.

If a token doesnt have an entry here it will by default use the symbol as the CCID.
*/

package config

var (
	CoinToCCId = map[string]string{
		// Solana
		"SOL":     "SOL",
		"WSOL":    "SOL",
		"MSOL":    "MSOL",
		"JITOSOL": "JITOSOL",
		"BONK":    "BONK",
		"JUP":     "JUP",
		"RAY":     "RAY",
		"ORCA":    "ORCA",

		// Ethereum
		"ETH":   "ETH",
		"WETH":  "ETH",
		"WBTC":  "BTC",
		"CBBTC": "BTC",
		"UNI":   "UNI",
		"ARB":   "ARB",

		// Quote tokens
		"USDC":   "USD",
		"USDC.E": "USD",
		"USDT":   "USDT",
		"USD":    "USD",
	}
)
