package backend

// MatchType tells how a device was matched.
type MatchType int

const (
	MatchTypeExact MatchType = iota
	MatchTypeConclusive
	MatchTypeRecovery
	MatchTypeCatchall
	_ // performance matching is retired
	MatchTypeNone
	MatchTypeCached
)

func (m MatchType) String() string {
	switch m {
	case MatchTypeExact:
		return "exact"
	case MatchTypeConclusive:
		return "conclusive"
	case MatchTypeRecovery:
		return "recovery"
	case MatchTypeCatchall:
		return "catchall"
	case MatchTypeCached:
		return "cached"
	default:
		return "none"
	}
}
