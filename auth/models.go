package auth

// Identity is the bearer-token-identified caller. Registration, login and
// credential storage live in an external service; this core only consumes
// the resulting claims.
type Identity struct {
	// Email identifies patrons and auditors across posts and bids.
	Email string
	// WalletAddress is set for callers that hold an on-chain account.
	// Arbiters are matched against it when voting.
	WalletAddress string
}
