package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"daochain/core/node"
	"daochain/core/runtime"
	"daochain/crypto"
	"daochain/indexer"
	"daochain/native/bank"
	"daochain/native/dao"
	"daochain/native/staking"
)

func param(req *RPCRequest, i int, name string, out interface{}) *RPCError {
	if len(req.Params) <= i {
		return invalidParams(name+" parameter required", nil)
	}
	if err := json.Unmarshal(req.Params[i], out); err != nil {
		return invalidParams("invalid "+name+" parameter", err)
	}
	return nil
}

func accountParam(req *RPCRequest, i int) ([20]byte, *RPCError) {
	var text string
	if rpcErr := param(req, i, "address", &text); rpcErr != nil {
		return [20]byte{}, rpcErr
	}
	account, err := crypto.ParseAccount(text)
	if err != nil {
		return [20]byte{}, invalidParams("failed to decode address", err)
	}
	return account, nil
}

func optionalAsset(req *RPCRequest, i int) (bank.Asset, *RPCError) {
	if len(req.Params) <= i {
		return bank.AssetNative, nil
	}
	var text string
	if rpcErr := param(req, i, "asset", &text); rpcErr != nil {
		return 0, rpcErr
	}
	asset, err := bank.ParseAsset(text)
	if err != nil {
		return 0, invalidParams("unknown asset", err)
	}
	return asset, nil
}

// queryError maps a state read failure onto a JSON-RPC error.
func queryError(err error) *RPCError {
	switch {
	case errors.Is(err, dao.ErrDaoNotFound),
		errors.Is(err, dao.ErrMultisigCallNotFound),
		errors.Is(err, staking.ErrNotRegistered),
		errors.Is(err, indexer.ErrNotFound):
		return newError(http.StatusNotFound, codeNotFound, err.Error(), nil)
	default:
		return newError(http.StatusInternalServerError, codeServerError, "state query failed", err.Error())
	}
}

func (s *Server) handleGetHeight(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	return s.chain.Height(), nil
}

func (s *Server) handleGetLatestBlock(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	block := s.producer.LastBlock()
	if block == nil {
		return nil, newError(http.StatusNotFound, codeNotFound, "no block sealed yet", nil)
	}
	return blockResultFrom(block), nil
}

func (s *Server) handleGetBlock(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var height uint64
	if rpcErr := param(req, 0, "height", &height); rpcErr != nil {
		return nil, rpcErr
	}
	if last := s.producer.LastBlock(); last != nil && last.Height == height {
		return blockResultFrom(last), nil
	}
	if s.archive == nil {
		return nil, newError(http.StatusNotFound, codeNotFound, "block archive not enabled", nil)
	}
	record, err := s.archive.Block(r.Context(), height)
	if err != nil {
		return nil, queryError(err)
	}
	return blockResultFromRecord(record), nil
}

func (s *Server) handleGetBalance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := accountParam(req, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, rpcErr := optionalAsset(req, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, err := s.chain.Account(asset, addr)
	if err != nil {
		return nil, queryError(err)
	}
	return balanceResultFrom(addr, asset, acct), nil
}

func (s *Server) handleGetIssuance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	asset, rpcErr := optionalAsset(req, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	issuance, err := s.chain.TotalIssuance(asset)
	if err != nil {
		return nil, queryError(err)
	}
	return amount(issuance), nil
}

// SubmitParams is the single parameter of chain_submitExtrinsic.
type SubmitParams struct {
	Signer string `json:"signer"`
	Call   string `json:"call"`
}

func (s *Server) handleSubmitExtrinsic(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params SubmitParams
	if rpcErr := param(req, 0, "extrinsic", &params); rpcErr != nil {
		return nil, rpcErr
	}
	signer, err := crypto.ParseAccount(params.Signer)
	if err != nil {
		return nil, invalidParams("failed to decode signer", err)
	}
	call, err := parseBytes(params.Call)
	if err != nil {
		return nil, invalidParams("invalid call payload", err)
	}
	if rpcErr := s.auth.authorize(r, signer); rpcErr != nil {
		return nil, rpcErr
	}
	source := clientSource(r)
	if !s.limiter.allow(source) {
		return nil, newError(http.StatusTooManyRequests, codeRateLimited, "submission rate limit exceeded", source)
	}
	hash, err := s.producer.Submit(runtime.Extrinsic{Signer: signer, Call: call})
	switch {
	case err == nil:
		return hash32(hash), nil
	case errors.Is(err, node.ErrDuplicate):
		return nil, newError(http.StatusConflict, codeDuplicate, "extrinsic already pending", hash32(hash))
	case errors.Is(err, node.ErrPoolFull):
		return nil, newError(http.StatusServiceUnavailable, codeRejected, "pool full", nil)
	case errors.Is(err, node.ErrQuotaPendingExceeded), errors.Is(err, node.ErrQuotaBytesExceeded):
		return nil, newError(http.StatusTooManyRequests, codeRateLimited, err.Error(), nil)
	default:
		return nil, newError(http.StatusBadRequest, codeRejected, "extrinsic rejected", err.Error())
	}
}

func (s *Server) handleGetReceipt(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var text string
	if rpcErr := param(req, 0, "hash", &text); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := parseHash(text)
	if err != nil {
		return nil, invalidParams("invalid hash", err)
	}
	if receipt, ok := s.producer.Receipt(hash); ok {
		return receiptResultFrom(receipt), nil
	}
	if s.archive != nil {
		record, err := s.archive.Extrinsic(r.Context(), hash)
		if err == nil {
			return ReceiptResult{
				Hash:    record.Hash,
				Height:  record.Height,
				Index:   record.Index,
				Call:    record.Call,
				Success: record.Success,
				Error:   record.Error,
				Weight:  record.Weight,
			}, nil
		}
		if !errors.Is(err, indexer.ErrNotFound) {
			return nil, queryError(err)
		}
	}
	return nil, newError(http.StatusNotFound, codeNotFound, "receipt not found", text)
}

func (s *Server) handleGetEvents(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if s.archive == nil {
		return nil, newError(http.StatusNotFound, codeNotFound, "event archive not enabled", nil)
	}
	var filter indexer.EventFilter
	if len(req.Params) > 0 {
		if rpcErr := param(req, 0, "filter", &filter); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if filter.Limit > 1_000 {
		filter.Limit = 1_000
	}
	records, err := s.archive.Events(r.Context(), filter)
	if err != nil {
		return nil, queryError(err)
	}
	return records, nil
}

func (s *Server) handleGetDao(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var id uint32
	if rpcErr := param(req, 0, "daoId", &id); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.chain.Dao(id)
	if err != nil {
		return nil, queryError(err)
	}
	issuance, err := s.chain.TokenIssuance(id)
	if err != nil {
		return nil, queryError(err)
	}
	return daoResultFrom(record, issuance), nil
}

func (s *Server) handleGetMultisig(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var id uint32
	if rpcErr := param(req, 0, "daoId", &id); rpcErr != nil {
		return nil, rpcErr
	}
	var text string
	if rpcErr := param(req, 1, "callHash", &text); rpcErr != nil {
		return nil, rpcErr
	}
	callHash, err := parseHash(text)
	if err != nil {
		return nil, invalidParams("invalid call hash", err)
	}
	proposal, err := s.chain.Multisig(id, callHash)
	if err != nil {
		return nil, queryError(err)
	}
	return multisigResultFrom(proposal), nil
}

func (s *Server) handleGetTokenBalance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var id uint32
	if rpcErr := param(req, 0, "daoId", &id); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := accountParam(req, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.chain.TokenBalance(id, addr)
	if err != nil {
		return nil, queryError(err)
	}
	return amount(balance), nil
}

func (s *Server) handleStakingStatus(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	era, err := s.chain.CurrentEra()
	if err != nil {
		return nil, queryError(err)
	}
	halted, err := s.chain.StakingHalted()
	if err != nil {
		return nil, queryError(err)
	}
	depth, err := s.chain.UnregisterQueueLen()
	if err != nil {
		return nil, queryError(err)
	}
	daos, err := s.chain.RegisteredDaos()
	if err != nil {
		return nil, queryError(err)
	}
	if daos == nil {
		daos = []uint32{}
	}
	return StakingStatusResult{CurrentEra: era, Halted: halted, QueueLength: depth, RegisteredDao: daos}, nil
}

func (s *Server) handleGetLedger(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := accountParam(req, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ledger, err := s.chain.Ledger(addr)
	if err != nil {
		return nil, queryError(err)
	}
	return ledgerResultFrom(addr, ledger), nil
}

func (s *Server) handleGetStakerInfo(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var id uint32
	if rpcErr := param(req, 0, "daoId", &id); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := accountParam(req, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.chain.StakerInfo(id, addr)
	if err != nil {
		return nil, queryError(err)
	}
	out := []EraStakeResult{}
	if info != nil {
		for _, stake := range info.Stakes {
			out = append(out, EraStakeResult{Era: stake.Era, Staked: amount(stake.Staked)})
		}
	}
	return out, nil
}

func (s *Server) handleGetDaoStake(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var id, era uint32
	if rpcErr := param(req, 0, "daoId", &id); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := param(req, 1, "era", &era); rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.chain.DaoStake(id, era)
	if err != nil {
		return nil, queryError(err)
	}
	out := DaoStakeResult{DaoID: id, Era: era, Total: "0"}
	if info != nil {
		out.Total = amount(info.Total)
		out.NumberOfStakers = info.NumberOfStakers
		out.RewardClaimed = info.RewardClaimed
		out.Active = info.Active
	}
	return out, nil
}

func (s *Server) handleGetEraInfo(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var era uint32
	if rpcErr := param(req, 0, "era", &era); rpcErr != nil {
		return nil, rpcErr
	}
	info, ok, err := s.chain.EraInfo(era)
	if err != nil {
		return nil, queryError(err)
	}
	if !ok {
		return nil, newError(http.StatusNotFound, codeNotFound, fmt.Sprintf("era %d not recorded", era), nil)
	}
	return EraInfoResult{
		Era:         era,
		DaoRewards:  amount(info.Rewards.Dao),
		StakerPool:  amount(info.Rewards.Stakers),
		Staked:      amount(info.Staked),
		Locked:      amount(info.Locked),
		ActiveStake: amount(info.ActiveStake),
	}, nil
}

func (s *Server) handleGetRegistration(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var id uint32
	if rpcErr := param(req, 0, "daoId", &id); rpcErr != nil {
		return nil, rpcErr
	}
	reg, err := s.chain.Registration(id)
	if err != nil {
		return nil, queryError(err)
	}
	return RegistrationResult{
		DaoID:       reg.DaoID,
		Account:     address(reg.Account),
		Name:        string(reg.Name),
		Description: string(reg.Description),
		Image:       string(reg.Image),
		Deposit:     amount(reg.Deposit),
	}, nil
}

func (s *Server) handleListDaos(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	daos, err := s.chain.RegisteredDaos()
	if err != nil {
		return nil, queryError(err)
	}
	if daos == nil {
		daos = []uint32{}
	}
	return daos, nil
}
