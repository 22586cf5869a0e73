package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Log constructors mirroring the factory's event layouts. The sync engine
// only consumes logs, so these exist for tests and local simulation of a
// marketplace deployment.

// LogMeta positions a constructed log on the chain.
type LogMeta struct {
	Block    uint64
	LogIndex uint
	TxHash   string
}

func (m LogMeta) base(emitter common.Address, topic0 common.Hash) types.Log {
	return types.Log{
		Address:     emitter,
		Topics:      []common.Hash{topic0},
		BlockNumber: m.Block,
		Index:       m.LogIndex,
		TxHash:      common.HexToHash(m.TxHash),
	}
}

func BountyCreatedLog(m LogMeta, factory common.Address, bounty, poster, token string, amount *big.Int, deadline int64, skills []string) types.Log {
	lg := m.base(factory, topicBountyCreated)
	lg.Topics = append(lg.Topics, addressTopic(bounty), addressTopic(poster))
	lg.Data = mustPack(argsBountyCreated, common.HexToAddress(token), amount, big.NewInt(deadline), strings.Join(skills, ","))
	return lg
}

func BountyClaimedLog(m LogMeta, factory common.Address, bounty, hunter string) types.Log {
	lg := m.base(factory, topicBountyClaimed)
	lg.Topics = append(lg.Topics, addressTopic(bounty), addressTopic(hunter))
	return lg
}

func WorkSubmittedLog(m LogMeta, factory common.Address, bounty, hunter string) types.Log {
	lg := m.base(factory, topicWorkSubmitted)
	lg.Topics = append(lg.Topics, addressTopic(bounty), addressTopic(hunter))
	return lg
}

func WorkApprovedLog(m LogMeta, factory common.Address, bounty, hunter string) types.Log {
	lg := m.base(factory, topicWorkApproved)
	lg.Topics = append(lg.Topics, addressTopic(bounty), addressTopic(hunter))
	return lg
}

func WorkRejectedLog(m LogMeta, factory common.Address, bounty, hunter string) types.Log {
	lg := m.base(factory, topicWorkRejected)
	lg.Topics = append(lg.Topics, addressTopic(bounty), addressTopic(hunter))
	return lg
}

func BountyCancelledLog(m LogMeta, factory common.Address, bounty string) types.Log {
	lg := m.base(factory, topicBountyCancelled)
	lg.Topics = append(lg.Topics, addressTopic(bounty))
	return lg
}

func BountyResolvedLog(m LogMeta, factory common.Address, bounty string) types.Log {
	lg := m.base(factory, topicBountyResolved)
	lg.Topics = append(lg.Topics, addressTopic(bounty))
	return lg
}

func ChallengeCreatedLog(m LogMeta, factory common.Address, challenge, poster, token string, prizePool *big.Int, deadline, scoringDeadline int64, payoutSplit []uint8) types.Log {
	lg := m.base(factory, topicChallengeCreated)
	lg.Topics = append(lg.Topics, addressTopic(challenge), addressTopic(poster))
	lg.Data = mustPack(argsChallengeCreated, common.HexToAddress(token), prizePool, big.NewInt(deadline), big.NewInt(scoringDeadline), payoutSplit)
	return lg
}

func ChallengeEnteredLog(m LogMeta, factory common.Address, challenge, submitter string, version int64) types.Log {
	lg := m.base(factory, topicChallengeEntered)
	lg.Topics = append(lg.Topics, addressTopic(challenge), addressTopic(submitter))
	lg.Data = mustPack(argsChallengeEntered, big.NewInt(version))
	return lg
}

func ScoringStartedLog(m LogMeta, factory common.Address, challenge string) types.Log {
	lg := m.base(factory, topicScoringStarted)
	lg.Topics = append(lg.Topics, addressTopic(challenge))
	return lg
}

func SubmissionScoredLog(m LogMeta, factory common.Address, challenge, submitter string, score int64) types.Log {
	lg := m.base(factory, topicSubmissionScored)
	lg.Topics = append(lg.Topics, addressTopic(challenge), addressTopic(submitter))
	lg.Data = mustPack(argsSubmissionScored, big.NewInt(score))
	return lg
}

func ChallengeFinalizedLog(m LogMeta, factory common.Address, challenge string, winners []string, prizes []*big.Int) types.Log {
	lg := m.base(factory, topicChallengeFinalized)
	lg.Topics = append(lg.Topics, addressTopic(challenge))
	addrs := make([]common.Address, 0, len(winners))
	for _, w := range winners {
		addrs = append(addrs, common.HexToAddress(w))
	}
	lg.Data = mustPack(argsChallengeFinalized, addrs, prizes)
	return lg
}

func ChallengeCancelledLog(m LogMeta, factory common.Address, challenge string) types.Log {
	lg := m.base(factory, topicChallengeCancelled)
	lg.Topics = append(lg.Topics, addressTopic(challenge))
	return lg
}

func ChallengeExpiredLog(m LogMeta, factory common.Address, challenge string) types.Log {
	lg := m.base(factory, topicChallengeExpired)
	lg.Topics = append(lg.Topics, addressTopic(challenge))
	return lg
}

func PrizeClaimedLog(m LogMeta, factory common.Address, challenge, winner string) types.Log {
	lg := m.base(factory, topicPrizeClaimed)
	lg.Topics = append(lg.Topics, addressTopic(challenge), addressTopic(winner))
	return lg
}

func AgentRegisteredLog(m LogMeta, factory common.Address, agentID *big.Int, owner, name string, skills []string, description string) types.Log {
	lg := m.base(factory, topicAgentRegistered)
	lg.Topics = append(lg.Topics, common.BigToHash(agentID), addressTopic(owner))
	lg.Data = mustPack(argsAgentRegistered, name, strings.Join(skills, ","), description)
	return lg
}

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func mustPack(args abi.Arguments, vals ...interface{}) []byte {
	data, err := args.Pack(vals...)
	if err != nil {
		panic(fmt.Sprintf("pack event data: %v", err))
	}
	return data
}
