package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"clawboard-backend/core/index"
)

// DecodeLog turns a raw factory log into a typed domain event. Logs whose
// topic the registry does not know come back as index.Unrecognized with a nil
// error; a nil error plus a known topic with malformed data is a real decode
// failure the caller should skip and warn about.
func DecodeLog(lg types.Log) (index.Event, error) {
	meta := index.EventMeta{
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
		TxHash:      strings.ToLower(lg.TxHash.Hex()),
		Address:     strings.ToLower(lg.Address.Hex()),
	}
	if len(lg.Topics) == 0 {
		return index.Unrecognized{EventMeta: meta}, nil
	}

	switch lg.Topics[0] {
	case topicBountyCreated:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		vals, err := argsBountyCreated.Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("decode BountyCreated data: %w", err)
		}
		return index.BountyCreated{
			EventMeta: meta,
			Bounty:    topicAddr(lg, 1),
			Poster:    topicAddr(lg, 2),
			Token:     addrString(vals[0]),
			Amount:    bigString(vals[1]),
			Deadline:  bigInt64(vals[2]),
			Skills:    splitSkills(vals[3]),
		}, nil
	case topicBountyClaimed:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		return index.BountyClaimed{EventMeta: meta, Bounty: topicAddr(lg, 1), Hunter: topicAddr(lg, 2)}, nil
	case topicWorkSubmitted:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		return index.WorkSubmitted{EventMeta: meta, Bounty: topicAddr(lg, 1), Hunter: topicAddr(lg, 2)}, nil
	case topicWorkApproved:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		return index.WorkApproved{EventMeta: meta, Bounty: topicAddr(lg, 1), Hunter: topicAddr(lg, 2)}, nil
	case topicWorkRejected:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		return index.WorkRejected{EventMeta: meta, Bounty: topicAddr(lg, 1), Hunter: topicAddr(lg, 2)}, nil
	case topicBountyCancelled:
		if err := needTopics(lg, 2); err != nil {
			return nil, err
		}
		return index.BountyCancelled{EventMeta: meta, Bounty: topicAddr(lg, 1)}, nil
	case topicBountyResolved:
		if err := needTopics(lg, 2); err != nil {
			return nil, err
		}
		return index.BountyResolved{EventMeta: meta, Bounty: topicAddr(lg, 1)}, nil
	case topicChallengeCreated:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		vals, err := argsChallengeCreated.Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("decode ChallengeCreated data: %w", err)
		}
		return index.ChallengeCreated{
			EventMeta:       meta,
			Challenge:       topicAddr(lg, 1),
			Poster:          topicAddr(lg, 2),
			Token:           addrString(vals[0]),
			PrizePool:       bigString(vals[1]),
			Deadline:        bigInt64(vals[2]),
			ScoringDeadline: bigInt64(vals[3]),
			PayoutSplit:     uint8Slice(vals[4]),
		}, nil
	case topicChallengeEntered:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		vals, err := argsChallengeEntered.Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("decode ChallengeEntered data: %w", err)
		}
		return index.ChallengeEntered{
			EventMeta: meta,
			Challenge: topicAddr(lg, 1),
			Submitter: topicAddr(lg, 2),
			Version:   int(bigInt64(vals[0])),
		}, nil
	case topicScoringStarted:
		if err := needTopics(lg, 2); err != nil {
			return nil, err
		}
		return index.ScoringStarted{EventMeta: meta, Challenge: topicAddr(lg, 1)}, nil
	case topicSubmissionScored:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		vals, err := argsSubmissionScored.Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("decode SubmissionScored data: %w", err)
		}
		return index.SubmissionScored{
			EventMeta: meta,
			Challenge: topicAddr(lg, 1),
			Submitter: topicAddr(lg, 2),
			Score:     bigInt64(vals[0]),
		}, nil
	case topicChallengeFinalized:
		if err := needTopics(lg, 2); err != nil {
			return nil, err
		}
		vals, err := argsChallengeFinalized.Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("decode ChallengeFinalized data: %w", err)
		}
		winners := addrStrings(vals[0])
		prizes := bigStrings(vals[1])
		if len(winners) != len(prizes) {
			return nil, fmt.Errorf("decode ChallengeFinalized data: %d winners but %d prizes", len(winners), len(prizes))
		}
		return index.ChallengeFinalized{
			EventMeta: meta,
			Challenge: topicAddr(lg, 1),
			Winners:   winners,
			Prizes:    prizes,
		}, nil
	case topicChallengeCancelled:
		if err := needTopics(lg, 2); err != nil {
			return nil, err
		}
		return index.ChallengeCancelled{EventMeta: meta, Challenge: topicAddr(lg, 1)}, nil
	case topicChallengeExpired:
		if err := needTopics(lg, 2); err != nil {
			return nil, err
		}
		return index.ChallengeExpired{EventMeta: meta, Challenge: topicAddr(lg, 1)}, nil
	case topicPrizeClaimed:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		return index.PrizeClaimed{EventMeta: meta, Challenge: topicAddr(lg, 1), Winner: topicAddr(lg, 2)}, nil
	case topicAgentRegistered:
		if err := needTopics(lg, 3); err != nil {
			return nil, err
		}
		vals, err := argsAgentRegistered.Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("decode AgentRegistered data: %w", err)
		}
		return index.AgentRegistered{
			EventMeta:   meta,
			AgentID:     new(big.Int).SetBytes(lg.Topics[1].Bytes()).String(),
			Owner:       topicAddr(lg, 2),
			Name:        stringVal(vals[0]),
			Skills:      splitSkills(vals[1]),
			Description: stringVal(vals[2]),
		}, nil
	default:
		return index.Unrecognized{EventMeta: meta, Topic: lg.Topics[0].Hex()}, nil
	}
}

func needTopics(lg types.Log, n int) error {
	if len(lg.Topics) < n {
		return fmt.Errorf("expected at least %d topics, got %d", n, len(lg.Topics))
	}
	return nil
}

func topicAddr(lg types.Log, i int) string {
	return strings.ToLower(common.HexToAddress(lg.Topics[i].Hex()).Hex())
}

func addrString(v interface{}) string {
	a, _ := v.(common.Address)
	return strings.ToLower(a.Hex())
}

func addrStrings(v interface{}) []string {
	addrs, _ := v.([]common.Address)
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, strings.ToLower(a.Hex()))
	}
	return out
}

func bigString(v interface{}) string {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return "0"
	}
	return b.String()
}

func bigStrings(v interface{}) []string {
	vals, _ := v.([]*big.Int)
	out := make([]string, 0, len(vals))
	for _, b := range vals {
		if b == nil {
			out = append(out, "0")
			continue
		}
		out = append(out, b.String())
	}
	return out
}

func bigInt64(v interface{}) int64 {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return 0
	}
	return b.Int64()
}

func stringVal(v interface{}) string {
	s, _ := v.(string)
	return s
}

func uint8Slice(v interface{}) []uint8 {
	s, _ := v.([]uint8)
	return s
}

// splitSkills parses the comma-joined skill tags the contracts emit.
func splitSkills(v interface{}) []string {
	raw, _ := v.(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
