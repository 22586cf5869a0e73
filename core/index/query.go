package index

import (
	"math/big"
	"sort"
	"strings"
)

// DefaultLimit caps list results when the caller does not set one.
const DefaultLimit = 50

// BountyFilter captures query params for listing bounties.
type BountyFilter struct {
	Status    BountyStatus
	Skill     string // case-insensitive substring match against skill tags
	MinAmount string // exact token units, decimal string
	MaxAmount string
	Limit     int
}

// ChallengeFilter captures query params for listing challenges.
type ChallengeFilter struct {
	Status ChallengeStatus
	Limit  int
}

// Participation pairs an agent's submission to a challenge with its winner
// record when the agent placed.
type Participation struct {
	ChallengeAddress string            `json:"challenge_address"`
	ChallengeStatus  ChallengeStatus   `json:"challenge_status"`
	Submission       *SubmissionRecord `json:"submission"`
	Winner           *WinnerRecord     `json:"winner,omitempty"`
}

// AgentStats aggregates an agent's challenge history. BestRank 0 means no
// ranked participation yet; 0 is never a real rank.
type AgentStats struct {
	Entered          int     `json:"entered"`
	Won              int     `json:"won"`
	TotalPrizeEarned string  `json:"total_prize_earned"` // decimal string, exact
	AvgRank          float64 `json:"avg_rank"`
	BestRank         int     `json:"best_rank"`
}

// OpenBounties lists bounties matching the filter, sorted by deadline
// ascending. Status defaults to open.
func (s *Snapshot) OpenBounties(f BountyFilter) []BountyRecord {
	status := f.Status
	if status == "" {
		status = BountyStatusOpen
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	minAmount := parseAmount(f.MinAmount)
	maxAmount := parseAmount(f.MaxAmount)
	skill := strings.ToLower(strings.TrimSpace(f.Skill))

	out := make([]BountyRecord, 0)
	for _, b := range s.Bounties {
		if b.Status != status {
			continue
		}
		if skill != "" && !hasSkillSubstring(b.Skills, skill) {
			continue
		}
		amount := parseAmount(b.Amount)
		if minAmount != nil && (amount == nil || amount.Cmp(minAmount) < 0) {
			continue
		}
		if maxAmount != nil && (amount == nil || amount.Cmp(maxAmount) > 0) {
			continue
		}
		out = append(out, *b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Deadline != out[j].Deadline {
			return out[i].Deadline < out[j].Deadline
		}
		return out[i].Address < out[j].Address
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// BountyByAddress returns the bounty at addr, or nil.
func (s *Snapshot) BountyByAddress(addr string) *BountyRecord {
	b, ok := s.Bounties[strings.ToLower(addr)]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// ChallengeByAddress returns a copy of the challenge at addr, or nil.
func (s *Snapshot) ChallengeByAddress(addr string) *ChallengeRecord {
	c, ok := s.Challenges[strings.ToLower(addr)]
	if !ok {
		return nil
	}
	return c.clone()
}

// ListChallenges lists challenges matching the filter, newest deadline first.
func (s *Snapshot) ListChallenges(f ChallengeFilter) []ChallengeRecord {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]ChallengeRecord, 0)
	for _, c := range s.Challenges {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *c.clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Deadline != out[j].Deadline {
			return out[i].Deadline > out[j].Deadline
		}
		return out[i].Address < out[j].Address
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ChallengeLeaderboard ranks a challenge's submissions. When any submission
// has a score, scored submissions come back sorted by score descending with
// first-seen order breaking ties. Before any scoring happens every submission
// comes back sorted by version descending, so a fresh challenge still shows
// activity.
func (s *Snapshot) ChallengeLeaderboard(addr string, limit int) []SubmissionRecord {
	c, ok := s.Challenges[strings.ToLower(addr)]
	if !ok {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	scored := make([]*SubmissionRecord, 0, len(c.Submissions))
	all := make([]*SubmissionRecord, 0, len(c.Submissions))
	for _, sub := range c.Submissions {
		all = append(all, sub)
		if sub.Score != nil {
			scored = append(scored, sub)
		}
	}

	var picked []*SubmissionRecord
	if len(scored) > 0 {
		sortSubmissionsByScore(scored)
		picked = scored
	} else {
		sort.SliceStable(all, func(i, j int) bool {
			if all[i].Version != all[j].Version {
				return all[i].Version > all[j].Version
			}
			return all[i].Seq < all[j].Seq
		})
		picked = all
	}

	if len(picked) > limit {
		picked = picked[:limit]
	}
	out := make([]SubmissionRecord, 0, len(picked))
	for _, sub := range picked {
		out = append(out, *sub)
	}
	return out
}

// AgentByID returns the registered agent, or nil.
func (s *Snapshot) AgentByID(agentID string) *AgentRecord {
	a, ok := s.Agents[agentID]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// AgentChallengeHistory lists the agent's participations, at most one per
// challenge, pairing each submission with a winner record when the agent
// placed. Unregistered identifiers are treated as a raw submitter address.
func (s *Snapshot) AgentChallengeHistory(agentID string) []Participation {
	submitter := s.agentSubmitter(agentID)
	if submitter == "" {
		return nil
	}

	addrs := make([]string, 0, len(s.Challenges))
	for addr := range s.Challenges {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	out := make([]Participation, 0)
	for _, addr := range addrs {
		c := s.Challenges[addr]
		sub, ok := c.Submissions[submitter]
		if !ok {
			continue
		}
		p := Participation{
			ChallengeAddress: c.Address,
			ChallengeStatus:  c.Status,
			Submission:       sub,
		}
		for i := range c.Winners {
			if c.Winners[i].Submitter == submitter {
				p.Winner = &c.Winners[i]
				break
			}
		}
		out = append(out, p)
	}
	return out
}

// AgentChallengeStats aggregates over the agent's history. TotalPrizeEarned
// sums winner prizes at exact precision and returns a decimal string; ranks
// come from the winner record when the agent placed, otherwise from the
// submission's scored rank.
func (s *Snapshot) AgentChallengeStats(agentID string) AgentStats {
	history := s.AgentChallengeHistory(agentID)
	stats := AgentStats{TotalPrizeEarned: "0"}

	total := new(big.Int)
	rankSum := 0
	rankCount := 0
	for _, p := range history {
		stats.Entered++
		var rank int
		if p.Winner != nil {
			stats.Won++
			if prize := parseAmount(p.Winner.Prize); prize != nil {
				total.Add(total, prize)
			}
			rank = p.Winner.Rank
		} else if p.Submission.Rank != nil {
			rank = *p.Submission.Rank
		}
		if rank > 0 {
			rankSum += rank
			rankCount++
			if stats.BestRank == 0 || rank < stats.BestRank {
				stats.BestRank = rank
			}
		}
	}
	if rankCount > 0 {
		stats.AvgRank = float64(rankSum) / float64(rankCount)
	}
	stats.TotalPrizeEarned = total.String()
	return stats
}

// agentSubmitter resolves an agent identifier to the submitter address it
// competes under.
func (s *Snapshot) agentSubmitter(agentID string) string {
	if a, ok := s.Agents[agentID]; ok {
		return a.Owner
	}
	return strings.ToLower(strings.TrimSpace(agentID))
}

func sortSubmissionsByScore(subs []*SubmissionRecord) {
	sort.SliceStable(subs, func(i, j int) bool {
		if *subs[i].Score != *subs[j].Score {
			return *subs[i].Score > *subs[j].Score
		}
		return subs[i].Seq < subs[j].Seq
	})
}

func hasSkillSubstring(skills []string, needle string) bool {
	for _, skill := range skills {
		if strings.Contains(strings.ToLower(skill), needle) {
			return true
		}
	}
	return false
}

// parseAmount reads an exact token-unit integer; nil when empty or malformed.
func parseAmount(raw string) *big.Int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil
	}
	return v
}
