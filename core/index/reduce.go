package index

import "strings"

// Apply folds one decoded event into the snapshot. It is deterministic: the
// same event sequence applied to equal snapshots yields equal snapshots.
// The caller feeds events in ascending (blockNumber, logIndex) order.
// Returns false for events that change nothing (Unrecognized, or references
// to records the snapshot has never seen).
func (s *Snapshot) Apply(ev Event) bool {
	switch e := ev.(type) {
	case BountyCreated:
		addr := strings.ToLower(e.Bounty)
		s.Bounties[addr] = &BountyRecord{
			Address:  addr,
			Poster:   strings.ToLower(e.Poster),
			Status:   BountyStatusOpen,
			Amount:   e.Amount,
			Token:    strings.ToLower(e.Token),
			Skills:   append([]string(nil), e.Skills...),
			Deadline: e.Deadline,
		}
		return true
	case BountyClaimed:
		return s.withBounty(e.Bounty, func(b *BountyRecord) {
			b.Status = BountyStatusClaimed
			b.Hunter = strings.ToLower(e.Hunter)
		})
	case WorkSubmitted:
		return s.withBounty(e.Bounty, func(b *BountyRecord) {
			b.Status = BountyStatusSubmitted
		})
	case WorkApproved:
		return s.withBounty(e.Bounty, func(b *BountyRecord) {
			b.Status = BountyStatusApproved
		})
	case WorkRejected:
		return s.withBounty(e.Bounty, func(b *BountyRecord) {
			b.Status = BountyStatusRejected
			b.RejectionCount++
		})
	case BountyCancelled:
		return s.withBounty(e.Bounty, func(b *BountyRecord) {
			b.Status = BountyStatusCancelled
		})
	case BountyResolved:
		return s.withBounty(e.Bounty, func(b *BountyRecord) {
			b.Status = BountyStatusResolved
		})
	case ChallengeCreated:
		addr := strings.ToLower(e.Challenge)
		s.Challenges[addr] = &ChallengeRecord{
			Address:         addr,
			Poster:          strings.ToLower(e.Poster),
			Status:          ChallengeStatusOpen,
			PrizePool:       e.PrizePool,
			Token:           strings.ToLower(e.Token),
			PayoutSplit:     append([]uint8(nil), e.PayoutSplit...),
			Deadline:        e.Deadline,
			ScoringDeadline: e.ScoringDeadline,
			Submissions:     make(map[string]*SubmissionRecord),
		}
		return true
	case ChallengeEntered:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			submitter := strings.ToLower(e.Submitter)
			if sub, ok := c.Submissions[submitter]; ok {
				// The contract's version counter is authoritative; the local
				// increment only covers events that omit it.
				if e.Version > sub.Version {
					sub.Version = e.Version
				} else {
					sub.Version++
				}
				return
			}
			version := e.Version
			if version < 1 {
				version = 1
			}
			c.Submissions[submitter] = &SubmissionRecord{
				Submitter: submitter,
				Version:   version,
				Seq:       len(c.Submissions) + 1,
			}
		})
	case ScoringStarted:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			c.advance(ChallengeStatusScoring)
		})
	case SubmissionScored:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			c.advance(ChallengeStatusScoring)
			submitter := strings.ToLower(e.Submitter)
			sub, ok := c.Submissions[submitter]
			if !ok {
				return
			}
			score := e.Score
			sub.Score = &score
			c.rerank()
		})
	case ChallengeFinalized:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			c.advance(ChallengeStatusFinalized)
			winners := make([]WinnerRecord, 0, len(e.Winners))
			for i, w := range e.Winners {
				prize := ""
				if i < len(e.Prizes) {
					prize = e.Prizes[i]
				}
				winners = append(winners, WinnerRecord{
					Submitter: strings.ToLower(w),
					Rank:      i + 1,
					Prize:     prize,
				})
			}
			c.Winners = winners
		})
	case ChallengeCancelled:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			c.advance(ChallengeStatusCancelled)
		})
	case ChallengeExpired:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			c.advance(ChallengeStatusExpired)
		})
	case PrizeClaimed:
		return s.withChallenge(e.Challenge, func(c *ChallengeRecord) {
			winner := strings.ToLower(e.Winner)
			for i := range c.Winners {
				if c.Winners[i].Submitter == winner {
					c.Winners[i].Claimed = true
				}
			}
		})
	case AgentRegistered:
		s.Agents[e.AgentID] = &AgentRecord{
			AgentID:      e.AgentID,
			Owner:        strings.ToLower(e.Owner),
			Name:         e.Name,
			Skills:       append([]string(nil), e.Skills...),
			Description:  e.Description,
			RegisteredAt: int64(e.BlockNumber),
		}
		return true
	default:
		return false
	}
}

func (s *Snapshot) withBounty(addr string, fn func(*BountyRecord)) bool {
	b, ok := s.Bounties[strings.ToLower(addr)]
	if !ok {
		return false
	}
	fn(b)
	return true
}

func (s *Snapshot) withChallenge(addr string, fn func(*ChallengeRecord)) bool {
	c, ok := s.Challenges[strings.ToLower(addr)]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// advance moves the challenge status forward only; a stale or replayed event
// can never regress a later state.
func (c *ChallengeRecord) advance(to ChallengeStatus) {
	if challengeStatusRank[to] > challengeStatusRank[c.Status] {
		c.Status = to
	}
}

// rerank recomputes submission ranks from scores: score descending, first-seen
// order breaking ties. Unscored submissions keep a nil rank.
func (c *ChallengeRecord) rerank() {
	scored := make([]*SubmissionRecord, 0, len(c.Submissions))
	for _, sub := range c.Submissions {
		if sub.Score != nil {
			scored = append(scored, sub)
		} else {
			sub.Rank = nil
		}
	}
	sortSubmissionsByScore(scored)
	for i, sub := range scored {
		rank := i + 1
		sub.Rank = &rank
	}
}
