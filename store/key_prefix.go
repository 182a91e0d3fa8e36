package store

// Declare database key prefix for objects
const (
	PrefixChain     = "chain:"      // chain:<team>:<seq BE8> -> block
	PrefixChainMeta = "chain_meta:" // chain_meta:<team>:<key> -> metadata

	ChainMetaKeyTip    = "tip"
	ChainMetaKeyFrozen = "frozen"

	PrefixContribution = "contrib:" // contrib:<contribution> -> meta
	PrefixVerification = "vrec:"    // vrec:<contribution>:<verifier> -> record
	PrefixScore        = "score:"   // score:<team>:<user> -> reputation score
)
