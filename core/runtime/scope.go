package runtime

import (
	"fmt"

	"daochain/core/dispatch"
	"daochain/core/events"
	"daochain/core/state"
	"daochain/native/bank"
	"daochain/native/dao"
	"daochain/native/staking"
	"daochain/native/tokens"
	"daochain/storage"
)

// UnregisterTopic names the queue holding deferred unregistration work.
const UnregisterTopic = "staking/unregister"

// scope is one rollback level of execution. It owns a write overlay on its
// parent database, an event buffer and a set of engines bound to both.
// Nothing a scope does is visible above it until commit.
type scope struct {
	depth   int
	params  Params
	db      *storage.CacheDB
	buffer  *events.Buffer
	manager *state.Manager
	bank    *bank.Engine
	tokens  *tokens.Engine
	dao     *dao.Engine
	staking *staking.Engine
}

func newScope(parent storage.Database, params Params, depth int) *scope {
	db := storage.NewCacheDB(parent)
	manager := state.NewManager(db)
	buffer := &events.Buffer{}
	s := &scope{
		depth:   depth,
		params:  params,
		db:      db,
		buffer:  buffer,
		manager: manager,
	}

	s.bank = bank.NewEngine()
	s.bank.SetState(manager)
	s.bank.SetEmitter(buffer)
	s.bank.SetExistentialDeposit(params.ExistentialDeposit)

	s.tokens = tokens.NewEngine()
	s.tokens.SetState(manager)
	s.tokens.SetEmitter(buffer)

	s.dao = dao.NewEngine()
	s.dao.SetState(manager)
	s.dao.SetEmitter(buffer)
	s.dao.SetTokens(s.tokens)
	s.dao.SetCurrency(s.bank)
	s.dao.SetDispatcher(s)
	s.dao.SetParams(params.Dao)

	s.staking = staking.NewEngine()
	s.staking.SetState(manager)
	s.staking.SetEmitter(buffer)
	s.staking.SetCurrency(s.bank)
	s.staking.SetQueue(manager.Queue(UnregisterTopic))
	s.staking.SetParams(params.Staking)

	s.bank.SetKeepAlive(s.staking.PotAccount(), s.dao.FeeCollector())
	return s
}

// DecodeCall implements dispatch.Dispatcher.
func (s *scope) DecodeCall(encoded []byte) (*dispatch.Call, error) {
	return dispatch.DecodeCall(encoded)
}

// Dispatch implements dispatch.Dispatcher. The call runs in a child scope
// that is merged into s on success and dropped on failure, so a failing
// nested call never undoes the work of its caller.
func (s *scope) Dispatch(origin dispatch.Origin, call *dispatch.Call) (dispatch.PostInfo, error) {
	var post dispatch.PostInfo
	err := s.nested(func(child *scope) error {
		var err error
		post, err = child.run(origin, call)
		return err
	})
	return post, err
}

// nested runs fn in a child scope and merges its writes and events into s
// when fn succeeds.
func (s *scope) nested(fn func(child *scope) error) error {
	if s.depth >= dispatch.MaxDecodeDepth {
		return dispatch.ErrDecodeDepth
	}
	child := newScope(s.db, s.params, s.depth+1)
	if err := fn(child); err != nil {
		child.db.Discard()
		return err
	}
	if err := child.db.Commit(); err != nil {
		return err
	}
	s.buffer.Append(child.buffer.Events()...)
	return nil
}

// run executes call directly in s. Panics raised by an engine are turned
// into ErrInvariantViolation; the caller discards the scope.
func (s *scope) run(origin dispatch.Origin, call *dispatch.Call) (post dispatch.PostInfo, err error) {
	r, err := lookup(call)
	if err != nil {
		return dispatch.PostInfo{}, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			post = dispatch.PostInfo{ActualWeight: r.weight}
			err = fmt.Errorf("%w: %s: %v", ErrInvariantViolation, call.Name(), rec)
		}
	}()
	extra, err := r.handle(s, origin, call)
	return dispatch.PostInfo{ActualWeight: r.weight + extra}, err
}

// weightBound returns the weight reserved for call before it runs. Nested
// calls that are known up front are included; calls stored in a proposal are
// charged after the fact.
func weightBound(call *dispatch.Call, depth int) (dispatch.Weight, error) {
	if depth > dispatch.MaxDecodeDepth {
		return 0, dispatch.ErrDecodeDepth
	}
	r, err := lookup(call)
	if err != nil {
		return 0, err
	}
	total := r.weight
	var nested [][]byte
	switch call.Name() {
	case "utility.batch":
		var args dispatch.BatchArgs
		if err := call.DecodeArgs(&args); err != nil {
			return 0, err
		}
		nested = args.Calls
	case "sudo.sudo":
		var args SudoArgs
		if err := call.DecodeArgs(&args); err != nil {
			return 0, err
		}
		nested = [][]byte{args.Call}
	case "dao.operate_multisig":
		// An undecodable proposal is rejected by the dao engine with its
		// own error, so only the base weight is reserved for it.
		var args OperateMultisigArgs
		if err := call.DecodeArgs(&args); err != nil {
			return 0, err
		}
		if _, err := dispatch.DecodeCall(args.Call); err == nil {
			nested = [][]byte{args.Call}
		}
	}
	for _, encoded := range nested {
		inner, err := dispatch.DecodeCall(encoded)
		if err != nil {
			return 0, err
		}
		w, err := weightBound(inner, depth+1)
		if err != nil {
			return 0, err
		}
		total += w
	}
	return total, nil
}
