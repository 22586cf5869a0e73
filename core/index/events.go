package index

// EventMeta carries the chain position every decoded event shares. Address is
// the lower-cased emitting contract.
type EventMeta struct {
	BlockNumber uint64
	LogIndex    uint
	TxHash      string
	Address     string
}

// Event is one decoded chain log. The set of variants is closed; logs that
// decode to nothing useful surface as Unrecognized so the reducer can skip
// them instead of guessing.
type Event interface {
	Meta() EventMeta
}

func (m EventMeta) Meta() EventMeta { return m }

type BountyCreated struct {
	EventMeta
	Bounty   string
	Poster   string
	Token    string
	Amount   string // decimal token units
	Deadline int64
	Skills   []string
}

type BountyClaimed struct {
	EventMeta
	Bounty string
	Hunter string
}

type WorkSubmitted struct {
	EventMeta
	Bounty string
	Hunter string
}

type WorkApproved struct {
	EventMeta
	Bounty string
	Hunter string
}

type WorkRejected struct {
	EventMeta
	Bounty string
	Hunter string
}

type BountyCancelled struct {
	EventMeta
	Bounty string
}

type BountyResolved struct {
	EventMeta
	Bounty string
}

type ChallengeCreated struct {
	EventMeta
	Challenge       string
	Poster          string
	Token           string
	PrizePool       string // decimal token units
	Deadline        int64
	ScoringDeadline int64
	PayoutSplit     []uint8
}

type ChallengeEntered struct {
	EventMeta
	Challenge string
	Submitter string
	Version   int
}

type ScoringStarted struct {
	EventMeta
	Challenge string
}

type SubmissionScored struct {
	EventMeta
	Challenge string
	Submitter string
	Score     int64
}

// ChallengeFinalized carries winners in rank order; rank i+1 pays Prizes[i].
type ChallengeFinalized struct {
	EventMeta
	Challenge string
	Winners   []string
	Prizes    []string // decimal token units, same length as Winners
}

type ChallengeCancelled struct {
	EventMeta
	Challenge string
}

type ChallengeExpired struct {
	EventMeta
	Challenge string
}

type PrizeClaimed struct {
	EventMeta
	Challenge string
	Winner    string
}

type AgentRegistered struct {
	EventMeta
	AgentID     string
	Owner       string
	Name        string
	Skills      []string
	Description string
}

// Unrecognized is the fallback variant for logs whose topic the registry does
// not know. Topic is the hex of topics[0] when present.
type Unrecognized struct {
	EventMeta
	Topic string
}
