package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Registry describes the factory contract one index domain tracks: where it
// lives, which network it belongs to, and the block it was deployed at.
type Registry struct {
	FactoryAddress common.Address
	ChainID        int64
	DeployBlock    uint64
}

// NewRegistry validates and builds a registry.
func NewRegistry(factoryAddress string, chainID int64, deployBlock uint64) (Registry, error) {
	if !common.IsHexAddress(factoryAddress) {
		return Registry{}, fmt.Errorf("invalid factory address %q", factoryAddress)
	}
	if chainID <= 0 {
		return Registry{}, fmt.Errorf("invalid chain id %d", chainID)
	}
	return Registry{
		FactoryAddress: common.HexToAddress(factoryAddress),
		ChainID:        chainID,
		DeployBlock:    deployBlock,
	}, nil
}

// Factory returns the canonical lower-case factory address.
func (r Registry) Factory() string {
	return strings.ToLower(r.FactoryAddress.Hex())
}

// Event signatures emitted by the marketplace factory. Topic hashes are
// keccak256 of these, computed once at init.
const (
	sigBountyCreated      = "BountyCreated(address,address,address,uint256,uint256,string)"
	sigBountyClaimed      = "BountyClaimed(address,address)"
	sigWorkSubmitted      = "WorkSubmitted(address,address)"
	sigWorkApproved       = "WorkApproved(address,address)"
	sigWorkRejected       = "WorkRejected(address,address)"
	sigBountyCancelled    = "BountyCancelled(address)"
	sigBountyResolved     = "BountyResolved(address)"
	sigChallengeCreated   = "ChallengeCreated(address,address,address,uint256,uint256,uint256,uint8[])"
	sigChallengeEntered   = "ChallengeEntered(address,address,uint256)"
	sigScoringStarted     = "ScoringStarted(address)"
	sigSubmissionScored   = "SubmissionScored(address,address,uint256)"
	sigChallengeFinalized = "ChallengeFinalized(address,address[],uint256[])"
	sigChallengeCancelled = "ChallengeCancelled(address)"
	sigChallengeExpired   = "ChallengeExpired(address)"
	sigPrizeClaimed       = "PrizeClaimed(address,address)"
	sigAgentRegistered    = "AgentRegistered(uint256,address,string,string,string)"
)

var (
	topicBountyCreated      = eventTopic(sigBountyCreated)
	topicBountyClaimed      = eventTopic(sigBountyClaimed)
	topicWorkSubmitted      = eventTopic(sigWorkSubmitted)
	topicWorkApproved       = eventTopic(sigWorkApproved)
	topicWorkRejected       = eventTopic(sigWorkRejected)
	topicBountyCancelled    = eventTopic(sigBountyCancelled)
	topicBountyResolved     = eventTopic(sigBountyResolved)
	topicChallengeCreated   = eventTopic(sigChallengeCreated)
	topicChallengeEntered   = eventTopic(sigChallengeEntered)
	topicScoringStarted     = eventTopic(sigScoringStarted)
	topicSubmissionScored   = eventTopic(sigSubmissionScored)
	topicChallengeFinalized = eventTopic(sigChallengeFinalized)
	topicChallengeCancelled = eventTopic(sigChallengeCancelled)
	topicChallengeExpired   = eventTopic(sigChallengeExpired)
	topicPrizeClaimed       = eventTopic(sigPrizeClaimed)
	topicAgentRegistered    = eventTopic(sigAgentRegistered)
)

func eventTopic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Non-indexed argument layouts, one abi.Arguments per event that carries data.
var (
	argsBountyCreated      = mustArgs("address", "uint256", "uint256", "string")
	argsChallengeCreated   = mustArgs("address", "uint256", "uint256", "uint256", "uint8[]")
	argsChallengeEntered   = mustArgs("uint256")
	argsSubmissionScored   = mustArgs("uint256")
	argsChallengeFinalized = mustArgs("address[]", "uint256[]")
	argsAgentRegistered    = mustArgs("string", "string", "string")
)

func mustArgs(solTypes ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(solTypes))
	for _, t := range solTypes {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %q: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}
