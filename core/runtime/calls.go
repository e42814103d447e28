package runtime

import (
	"errors"
	"fmt"
	"math/big"

	"daochain/core/dispatch"
	"daochain/native/bank"
	"daochain/native/common"
	"daochain/native/dao"
	"daochain/native/staking"
	"daochain/native/tokens"
)

const (
	ModuleDao     = "dao"
	ModuleStaking = "staking"
	ModuleBank    = "bank"
	ModuleTokens  = "tokens"
	ModuleSudo    = "sudo"
)

var (
	// ErrInvalidAmount is returned for missing amounts or amounts outside the
	// u128 range.
	ErrInvalidAmount = errors.New("runtime: invalid amount")
	// ErrNotSudo is returned when sudo.sudo is signed by anyone but the
	// configured sudo account.
	ErrNotSudo = errors.New("runtime: signer is not the sudo account")
)

// CreateDaoArgs are the parameters of dao.create_dao.
type CreateDaoArgs struct {
	Metadata         []byte
	MinimumSupport   uint32
	RequiredApproval uint32
	FeeAsset         uint8
}

// SetParametersArgs are the parameters of dao.set_parameters. Each value is
// applied only when its Set flag is true.
type SetParametersArgs struct {
	SetMetadata         bool
	Metadata            []byte
	SetMinimumSupport   bool
	MinimumSupport      uint32
	SetRequiredApproval bool
	RequiredApproval    uint32
	SetFrozenTokens     bool
	FrozenTokens        bool
}

// TokenSupplyArgs are the parameters of dao.token_mint and dao.token_burn.
type TokenSupplyArgs struct {
	Amount *big.Int
	Target [20]byte
}

// OperateMultisigArgs are the parameters of dao.operate_multisig.
type OperateMultisigArgs struct {
	DaoID    uint32
	Metadata []byte
	FeeAsset uint8
	Call     []byte
}

// VoteMultisigArgs are the parameters of dao.vote_multisig.
type VoteMultisigArgs struct {
	DaoID    uint32
	CallHash [32]byte
	Aye      bool
}

// ProposalArgs address a pending proposal for dao.withdraw_vote_multisig.
type ProposalArgs struct {
	DaoID    uint32
	CallHash [32]byte
}

// CancelArgs are the parameters of dao.cancel_multisig_proposal.
type CancelArgs struct {
	CallHash [32]byte
}

// DaoInformationArgs are the parameters of staking.register_dao and
// staking.change_dao_information.
type DaoInformationArgs struct {
	Name        []byte
	Description []byte
	Image       []byte
}

// StakeArgs are the parameters of staking.stake and staking.unstake.
type StakeArgs struct {
	DaoID uint32
	Value *big.Int
}

// MoveStakeArgs are the parameters of staking.move_stake.
type MoveStakeArgs struct {
	From  uint32
	Value *big.Int
	To    uint32
}

// DaoArgs are the parameters of staking.staker_claim_rewards.
type DaoArgs struct {
	DaoID uint32
}

// DaoClaimArgs are the parameters of staking.dao_claim_rewards.
type DaoClaimArgs struct {
	DaoID uint32
	Era   uint32
}

// HaltArgs are the parameters of staking.halt_unhalt.
type HaltArgs struct {
	Halt bool
}

// BankTransferArgs are the parameters of bank.transfer.
type BankTransferArgs struct {
	Asset  uint8
	To     [20]byte
	Amount *big.Int
}

// TokenTransferArgs are the parameters of tokens.transfer.
type TokenTransferArgs struct {
	DaoID  uint32
	To     [20]byte
	Amount *big.Int
}

// SudoArgs wraps an encoded call dispatched as root.
type SudoArgs struct {
	Call []byte
}

type handler func(s *scope, origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error)

// route binds a call name to its handler. weight is the base cost charged
// for every dispatch; handlers report additional weight they consumed.
type route struct {
	weight dispatch.Weight
	handle handler
}

var routes map[string]route

// The table is filled in init because handlers dispatch nested calls back
// through it.
func init() {
	routes = map[string]route{
		"dao.create_dao":                 {weight: 60_000, handle: (*scope).createDao},
		"dao.set_parameters":             {weight: 25_000, handle: (*scope).setParameters},
		"dao.token_mint":                 {weight: 25_000, handle: (*scope).tokenMint},
		"dao.token_burn":                 {weight: 25_000, handle: (*scope).tokenBurn},
		"dao.operate_multisig":           {weight: 90_000, handle: (*scope).operateMultisig},
		"dao.vote_multisig":              {weight: 80_000, handle: (*scope).voteMultisig},
		"dao.withdraw_vote_multisig":     {weight: 40_000, handle: (*scope).withdrawVote},
		"dao.cancel_multisig_proposal":   {weight: 30_000, handle: (*scope).cancelProposal},
		"staking.register_dao":           {weight: 50_000, handle: (*scope).registerDao},
		"staking.change_dao_information": {weight: 25_000, handle: (*scope).changeDaoInformation},
		"staking.unregister_dao":         {weight: 60_000, handle: (*scope).unregisterDao},
		"staking.stake":                  {weight: 70_000, handle: (*scope).stake},
		"staking.unstake":                {weight: 70_000, handle: (*scope).unstake},
		"staking.move_stake":             {weight: 110_000, handle: (*scope).moveStake},
		"staking.withdraw_unstaked":      {weight: 50_000, handle: (*scope).withdrawUnstaked},
		"staking.staker_claim_rewards":   {weight: 60_000, handle: (*scope).stakerClaimRewards},
		"staking.dao_claim_rewards":      {weight: 50_000, handle: (*scope).daoClaimRewards},
		"staking.halt_unhalt":            {weight: 10_000, handle: (*scope).haltUnhalt},
		"staking.force_new_era":          {weight: 10_000, handle: (*scope).forceNewEra},
		"bank.transfer":                  {weight: 30_000, handle: (*scope).bankTransfer},
		"tokens.transfer":                {weight: 30_000, handle: (*scope).tokenTransfer},
		"utility.batch":                  {weight: 5_000, handle: (*scope).batch},
		"sudo.sudo":                      {weight: 5_000, handle: (*scope).sudo},
	}
}

// Calls lists every routable call name.
func Calls() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	return names
}

func lookup(call *dispatch.Call) (route, error) {
	r, ok := routes[call.Name()]
	if !ok {
		return route{}, fmt.Errorf("%w: %s", dispatch.ErrUnknownCall, call.Name())
	}
	return r, nil
}

func checkAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 || v.Cmp(tokens.MaxBalance) > 0 {
		return ErrInvalidAmount
	}
	return nil
}

func parseAsset(raw uint8) (bank.Asset, error) {
	asset := bank.Asset(raw)
	if !asset.Valid() {
		return 0, fmt.Errorf("runtime: unknown asset %d", raw)
	}
	return asset, nil
}

func (s *scope) createDao(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	creator, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args CreateDaoArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	support, err := common.PerbillFromParts(args.MinimumSupport)
	if err != nil {
		return 0, dao.ErrInvalidThreshold
	}
	approval, err := common.PerbillFromParts(args.RequiredApproval)
	if err != nil {
		return 0, dao.ErrInvalidThreshold
	}
	asset, err := parseAsset(args.FeeAsset)
	if err != nil {
		return 0, err
	}
	_, err = s.dao.CreateDAO(creator, args.Metadata, support, approval, asset)
	return 0, err
}

func (s *scope) setParameters(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args SetParametersArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	var update dao.ParameterUpdate
	if args.SetMetadata {
		update.Metadata = append([]byte{}, args.Metadata...)
	}
	if args.SetMinimumSupport {
		support := common.Perbill(args.MinimumSupport)
		update.MinimumSupport = &support
	}
	if args.SetRequiredApproval {
		approval := common.Perbill(args.RequiredApproval)
		update.RequiredApproval = &approval
	}
	if args.SetFrozenTokens {
		frozen := args.FrozenTokens
		update.FrozenTokens = &frozen
	}
	return 0, s.dao.SetParameters(origin, update)
}

func (s *scope) tokenMint(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args TokenSupplyArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	if err := checkAmount(args.Amount); err != nil {
		return 0, err
	}
	return 0, s.dao.TokenMint(origin, args.Amount, args.Target)
}

func (s *scope) tokenBurn(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args TokenSupplyArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	if err := checkAmount(args.Amount); err != nil {
		return 0, err
	}
	return 0, s.dao.TokenBurn(origin, args.Amount, args.Target)
}

func executionWeight(exec *dao.Execution) dispatch.Weight {
	if exec == nil {
		return 0
	}
	return exec.PostInfo.ActualWeight
}

func (s *scope) operateMultisig(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	caller, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args OperateMultisigArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	asset, err := parseAsset(args.FeeAsset)
	if err != nil {
		return 0, err
	}
	exec, err := s.dao.OperateMultisig(caller, args.DaoID, args.Metadata, asset, args.Call)
	return executionWeight(exec), err
}

func (s *scope) voteMultisig(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	caller, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args VoteMultisigArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	exec, err := s.dao.VoteMultisig(caller, args.DaoID, args.CallHash, args.Aye)
	return executionWeight(exec), err
}

func (s *scope) withdrawVote(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	caller, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args ProposalArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	return 0, s.dao.WithdrawVoteMultisig(caller, args.DaoID, args.CallHash)
}

func (s *scope) cancelProposal(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args CancelArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	return 0, s.dao.CancelMultisigProposal(origin, args.CallHash)
}

func (a DaoInformationArgs) info() staking.DaoInformation {
	return staking.DaoInformation{Name: a.Name, Description: a.Description, Image: a.Image}
}

func (s *scope) registerDao(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args DaoInformationArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	return 0, s.staking.RegisterDao(origin, args.info())
}

func (s *scope) changeDaoInformation(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args DaoInformationArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	return 0, s.staking.ChangeDaoInformation(origin, args.info())
}

func (s *scope) unregisterDao(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	daoID, err := origin.EnsureEntity()
	if err != nil {
		return 0, err
	}
	era, err := s.staking.CurrentEra()
	if err != nil {
		return 0, err
	}
	before, err := s.staking.DaoStake(daoID, era)
	if err != nil {
		return 0, err
	}
	queued, err := s.staking.UnregisterDao(origin)
	if err != nil || queued {
		return 0, err
	}
	return dispatch.Weight(before.NumberOfStakers) * s.staking.Params().UnstakeWeight, nil
}

func (s *scope) stake(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	staker, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args StakeArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	if err := checkAmount(args.Value); err != nil {
		return 0, err
	}
	_, err = s.staking.Stake(staker, args.DaoID, args.Value)
	return 0, err
}

func (s *scope) unstake(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	staker, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args StakeArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	if err := checkAmount(args.Value); err != nil {
		return 0, err
	}
	_, err = s.staking.Unstake(staker, args.DaoID, args.Value)
	return 0, err
}

func (s *scope) moveStake(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	staker, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args MoveStakeArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	if err := checkAmount(args.Value); err != nil {
		return 0, err
	}
	_, err = s.staking.MoveStake(staker, args.From, args.Value, args.To)
	return 0, err
}

func (s *scope) withdrawUnstaked(origin dispatch.Origin, _ *dispatch.Call) (dispatch.Weight, error) {
	staker, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	_, err = s.staking.WithdrawUnstaked(staker)
	return 0, err
}

func (s *scope) stakerClaimRewards(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	staker, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args DaoArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	_, _, err = s.staking.StakerClaimRewards(staker, args.DaoID)
	return 0, err
}

func (s *scope) daoClaimRewards(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	if _, err := origin.EnsureSigned(); err != nil {
		return 0, err
	}
	var args DaoClaimArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	_, err := s.staking.DaoClaimRewards(args.DaoID, args.Era)
	return 0, err
}

func (s *scope) haltUnhalt(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args HaltArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	return 0, s.staking.HaltUnhalt(origin, args.Halt)
}

func (s *scope) forceNewEra(origin dispatch.Origin, _ *dispatch.Call) (dispatch.Weight, error) {
	return 0, s.staking.ForceNewEra(origin)
}

func (s *scope) bankTransfer(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	from, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args BankTransferArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	asset, err := parseAsset(args.Asset)
	if err != nil {
		return 0, err
	}
	if err := checkAmount(args.Amount); err != nil {
		return 0, err
	}
	return 0, s.bank.Transfer(asset, from, args.To, args.Amount)
}

func (s *scope) tokenTransfer(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	from, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	var args TokenTransferArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	if err := checkAmount(args.Amount); err != nil {
		return 0, err
	}
	return 0, s.tokens.Transfer(args.DaoID, from, args.To, args.Amount)
}

// batch dispatches every nested call in order under the batch's origin. The
// first failure aborts the batch and the enclosing scope rolls back the calls
// that already succeeded.
func (s *scope) batch(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	var args dispatch.BatchArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	var used dispatch.Weight
	for i, encoded := range args.Calls {
		inner, err := s.DecodeCall(encoded)
		if err != nil {
			return used, fmt.Errorf("batch call %d: %w", i, err)
		}
		post, err := s.Dispatch(origin, inner)
		used += post.ActualWeight
		if err != nil {
			return used, fmt.Errorf("batch call %d (%s): %w", i, inner.Name(), err)
		}
	}
	return used, nil
}

func (s *scope) sudo(origin dispatch.Origin, call *dispatch.Call) (dispatch.Weight, error) {
	signer, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	if origin.Kind != dispatch.OriginSigned || !s.params.HasSudo() || signer != s.params.Sudo {
		return 0, ErrNotSudo
	}
	var args SudoArgs
	if err := call.DecodeArgs(&args); err != nil {
		return 0, err
	}
	inner, err := s.DecodeCall(args.Call)
	if err != nil {
		return 0, err
	}
	post, err := s.Dispatch(dispatch.Root(), inner)
	return post.ActualWeight, err
}
