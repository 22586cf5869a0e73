package index

import "strings"

// BountyStatus tracks the escrow lifecycle of a work posting.
type BountyStatus string

const (
	BountyStatusOpen      BountyStatus = "open"
	BountyStatusClaimed   BountyStatus = "claimed"
	BountyStatusSubmitted BountyStatus = "submitted"
	BountyStatusApproved  BountyStatus = "approved"
	BountyStatusRejected  BountyStatus = "rejected"
	BountyStatusCancelled BountyStatus = "cancelled"
	BountyStatusResolved  BountyStatus = "resolved"
)

// ChallengeStatus tracks the competition lifecycle. Transitions only move
// forward: open -> scoring -> finalized, or out to cancelled/expired.
type ChallengeStatus string

const (
	ChallengeStatusOpen      ChallengeStatus = "open"
	ChallengeStatusScoring   ChallengeStatus = "scoring"
	ChallengeStatusFinalized ChallengeStatus = "finalized"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
	ChallengeStatusExpired   ChallengeStatus = "expired"
)

// challengeStatusRank orders forward transitions. Terminal states share the
// highest rank so nothing can move past them.
var challengeStatusRank = map[ChallengeStatus]int{
	ChallengeStatusOpen:      0,
	ChallengeStatusScoring:   1,
	ChallengeStatusFinalized: 2,
	ChallengeStatusCancelled: 2,
	ChallengeStatusExpired:   2,
}

// BountyRecord is the indexed view of a single bounty contract.
type BountyRecord struct {
	Address        string       `json:"address"`
	Poster         string       `json:"poster"`
	Status         BountyStatus `json:"status"`
	Amount         string       `json:"amount"` // exact token units, decimal string
	Token          string       `json:"token"`
	Skills         []string     `json:"skills,omitempty"`
	Deadline       int64        `json:"deadline"` // unix seconds
	Hunter         string       `json:"hunter,omitempty"`
	RejectionCount int          `json:"rejection_count"`
}

// SubmissionRecord is one participant's entry to a challenge. Version counts
// resubmissions; Seq preserves first-seen order across the whole challenge so
// reads stay deterministic.
type SubmissionRecord struct {
	Submitter string `json:"submitter"`
	Version   int    `json:"version"`
	Seq       int    `json:"seq"`
	Score     *int64 `json:"score,omitempty"`
	Rank      *int   `json:"rank,omitempty"`
}

// WinnerRecord is a finalized, ranked payout entry.
type WinnerRecord struct {
	Submitter string `json:"submitter"`
	Rank      int    `json:"rank"`
	Prize     string `json:"prize"` // exact token units, decimal string
	Claimed   bool   `json:"claimed"`
}

// ChallengeRecord is the indexed view of a single challenge contract.
type ChallengeRecord struct {
	Address         string                       `json:"address"`
	Poster          string                       `json:"poster"`
	Status          ChallengeStatus              `json:"status"`
	PrizePool       string                       `json:"prize_pool"`
	Token           string                       `json:"token"`
	PayoutSplit     []uint8                      `json:"payout_split,omitempty"` // percentages, rank order
	Deadline        int64                        `json:"deadline"`
	ScoringDeadline int64                        `json:"scoring_deadline"`
	Submissions     map[string]*SubmissionRecord `json:"submissions,omitempty"` // submitter -> record
	Winners         []WinnerRecord               `json:"winners,omitempty"`     // rank order, contiguous from 1
}

// AgentRecord is a registered participant identity.
type AgentRecord struct {
	AgentID      string   `json:"agent_id"`
	Owner        string   `json:"owner"`
	Name         string   `json:"name"`
	Skills       []string `json:"skills,omitempty"`
	Description  string   `json:"description,omitempty"`
	RegisteredAt int64    `json:"registered_at"`
}

// Snapshot is the complete state of one index domain at LastBlock. All
// addresses are stored lower-cased; keys equal the record's own address.
type Snapshot struct {
	LastBlock      uint64                      `json:"lastBlock"`
	FactoryAddress string                      `json:"factoryAddress"`
	ChainID        int64                       `json:"chainId"`
	Bounties       map[string]*BountyRecord    `json:"bounties"`
	Challenges     map[string]*ChallengeRecord `json:"challenges"`
	Agents         map[string]*AgentRecord     `json:"agents"`
}

// NewSnapshot returns an empty snapshot seeded at the factory's deployment
// block for the given network identity.
func NewSnapshot(factoryAddress string, chainID int64, deployBlock uint64) *Snapshot {
	return &Snapshot{
		LastBlock:      deployBlock,
		FactoryAddress: strings.ToLower(factoryAddress),
		ChainID:        chainID,
		Bounties:       make(map[string]*BountyRecord),
		Challenges:     make(map[string]*ChallengeRecord),
		Agents:         make(map[string]*AgentRecord),
	}
}

// Matches reports whether the snapshot belongs to the given network identity.
func (s *Snapshot) Matches(factoryAddress string, chainID int64) bool {
	return s.FactoryAddress == strings.ToLower(factoryAddress) && s.ChainID == chainID
}

// Clone deep-copies the snapshot so a sync batch can be applied and persisted
// without readers ever observing partial state.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		LastBlock:      s.LastBlock,
		FactoryAddress: s.FactoryAddress,
		ChainID:        s.ChainID,
		Bounties:       make(map[string]*BountyRecord, len(s.Bounties)),
		Challenges:     make(map[string]*ChallengeRecord, len(s.Challenges)),
		Agents:         make(map[string]*AgentRecord, len(s.Agents)),
	}
	for k, b := range s.Bounties {
		cp := *b
		cp.Skills = append([]string(nil), b.Skills...)
		out.Bounties[k] = &cp
	}
	for k, c := range s.Challenges {
		out.Challenges[k] = c.clone()
	}
	for k, a := range s.Agents {
		cp := *a
		cp.Skills = append([]string(nil), a.Skills...)
		out.Agents[k] = &cp
	}
	return out
}

// clone deep-copies one challenge so handing it out never exposes the
// snapshot's own maps and slices.
func (c *ChallengeRecord) clone() *ChallengeRecord {
	cp := *c
	cp.PayoutSplit = append([]uint8(nil), c.PayoutSplit...)
	cp.Winners = append([]WinnerRecord(nil), c.Winners...)
	cp.Submissions = make(map[string]*SubmissionRecord, len(c.Submissions))
	for sk, sub := range c.Submissions {
		scp := *sub
		if sub.Score != nil {
			v := *sub.Score
			scp.Score = &v
		}
		if sub.Rank != nil {
			v := *sub.Rank
			scp.Rank = &v
		}
		cp.Submissions[sk] = &scp
	}
	return &cp
}
