package domain

import "github.com/holiman/uint256"

// TokenMetadata describes a token. Set once at construction, never mutated.
type TokenMetadata struct {
	Name        string       // token name
	Symbol      string       // ticker symbol
	Decimals    uint8        // smallest-unit exponent
	TotalSupply *uint256.Int // fixed supply in smallest units
}

// Clone returns a deep copy of m.
func (m TokenMetadata) Clone() TokenMetadata {
	m.TotalSupply = CloneAmount(m.TotalSupply)
	return m
}

// Genesis is the construction record of a ledger.
// Corresponds to ledger_genesis table in PostgreSQL.
type Genesis struct {
	Name          string       // token name
	Symbol        string       // ticker symbol
	Decimals      uint8        // smallest-unit exponent
	InitialSupply *uint256.Int // whole units credited to Deployer
	Deployer      Account      // receives the full supply
	CreatedAt     int64        // construction timestamp (ms)
}

// Clone returns a deep copy of g.
func (g *Genesis) Clone() *Genesis {
	c := *g
	c.InitialSupply = CloneAmount(g.InitialSupply)
	return &c
}
