package state

import (
	"fmt"
	"sort"

	"daochain/native/staking"
)

var (
	stakingDaosKey          = []byte("staking/daos")
	stakingCurrentEraKey    = []byte("staking/current-era")
	stakingNextEraBlockKey  = []byte("staking/next-era-block")
	stakingForceEraKey      = []byte("staking/force-era")
	stakingAccumulatorKey   = []byte("staking/accumulator")
	stakingUnregisterPrefix = "staking/unregistering/"
)

// unregisterPageSize is the number of accounts stored per page of an
// unregistration snapshot.
const unregisterPageSize = 64

func stakingLedgerKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/ledger/%x", addr[:]))
}

func stakingStakerKey(daoID uint32, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/staker/%d/%x", daoID, addr[:]))
}

func stakingStakersKey(daoID uint32) []byte {
	return []byte(fmt.Sprintf("staking/stakers/%d", daoID))
}

func stakingRegistrationKey(daoID uint32) []byte {
	return []byte(fmt.Sprintf("staking/dao/%d", daoID))
}

func stakingDaoEraKey(daoID, era uint32) []byte {
	return []byte(fmt.Sprintf("staking/dao-era/%d/%d", daoID, era))
}

func stakingUnregisterLenKey(daoID uint32) []byte {
	return []byte(fmt.Sprintf("staking/unregister-stakers/%d/len", daoID))
}

func stakingUnregisterPageKey(daoID, page uint32) []byte {
	return []byte(fmt.Sprintf("staking/unregister-stakers/%d/page/%d", daoID, page))
}

func stakingEraKey(era uint32) []byte {
	return []byte(fmt.Sprintf("staking/era/%d", era))
}

// StakingLedger loads the staking ledger of addr, or nil when absent.
func (m *Manager) StakingLedger(addr [20]byte) (*staking.AccountLedger, error) {
	var stored staking.AccountLedger
	ok, err := m.KVGet(stakingLedgerKey(addr), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

// StakingPutLedger persists the ledger, removing it once empty.
func (m *Manager) StakingPutLedger(addr [20]byte, ledger *staking.AccountLedger) error {
	if ledger == nil || ledger.IsEmpty() {
		return m.KVDelete(stakingLedgerKey(addr))
	}
	return m.KVPut(stakingLedgerKey(addr), ledger)
}

// StakingStakerInfo loads the stake history of addr in daoID, or nil.
func (m *Manager) StakingStakerInfo(daoID uint32, addr [20]byte) (*staking.StakerInfo, error) {
	var stored staking.StakerInfo
	ok, err := m.KVGet(stakingStakerKey(daoID, addr), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

// StakingPutStakerInfo persists the stake history and keeps the per-DAO
// staker index in step: empty histories are deleted and unindexed.
func (m *Manager) StakingPutStakerInfo(daoID uint32, addr [20]byte, info *staking.StakerInfo) error {
	if info == nil || info.IsEmpty() {
		if err := m.KVDelete(stakingStakerKey(daoID, addr)); err != nil {
			return err
		}
		return m.KVRemove(stakingStakersKey(daoID), addr[:])
	}
	if err := m.KVPut(stakingStakerKey(daoID, addr), info); err != nil {
		return err
	}
	return m.KVAppend(stakingStakersKey(daoID), addr[:])
}

// StakingStakers lists every account holding a stake history in daoID in
// the order they first staked.
func (m *Manager) StakingStakers(daoID uint32) ([][20]byte, error) {
	var list [][]byte
	if err := m.KVGetList(stakingStakersKey(daoID), &list); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(list))
	for _, raw := range list {
		if len(raw) != 20 {
			return nil, fmt.Errorf("staking: corrupt staker index entry of length %d", len(raw))
		}
		var addr [20]byte
		copy(addr[:], raw)
		out = append(out, addr)
	}
	return out, nil
}

// StakingDaoStake loads the aggregate of daoID in era.
func (m *Manager) StakingDaoStake(daoID, era uint32) (*staking.DaoStakeInfo, bool, error) {
	var stored staking.DaoStakeInfo
	ok, err := m.KVGet(stakingDaoEraKey(daoID, era), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &stored, true, nil
}

// StakingPutDaoStake persists the aggregate of daoID in era.
func (m *Manager) StakingPutDaoStake(daoID, era uint32, info *staking.DaoStakeInfo) error {
	if info == nil {
		return fmt.Errorf("staking: dao stake info required")
	}
	return m.KVPut(stakingDaoEraKey(daoID, era), info)
}

// StakingEraInfo loads the global snapshot of era.
func (m *Manager) StakingEraInfo(era uint32) (*staking.EraInfo, bool, error) {
	var stored staking.EraInfo
	ok, err := m.KVGet(stakingEraKey(era), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &stored, true, nil
}

// StakingPutEraInfo persists the global snapshot of era.
func (m *Manager) StakingPutEraInfo(era uint32, info *staking.EraInfo) error {
	if info == nil {
		return fmt.Errorf("staking: era info required")
	}
	return m.KVPut(stakingEraKey(era), info)
}

// StakingRegistration loads the registry entry of daoID.
func (m *Manager) StakingRegistration(daoID uint32) (*staking.DaoRegistration, bool, error) {
	var stored staking.DaoRegistration
	ok, err := m.KVGet(stakingRegistrationKey(daoID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &stored, true, nil
}

// StakingPutRegistration persists the registry entry and indexes the DAO.
func (m *Manager) StakingPutRegistration(reg *staking.DaoRegistration) error {
	if reg == nil {
		return fmt.Errorf("staking: registration required")
	}
	if err := m.KVPut(stakingRegistrationKey(reg.DaoID), reg); err != nil {
		return err
	}
	daos, err := m.StakingRegisteredDaos()
	if err != nil {
		return err
	}
	idx := sort.Search(len(daos), func(i int) bool { return daos[i] >= reg.DaoID })
	if idx < len(daos) && daos[idx] == reg.DaoID {
		return nil
	}
	daos = append(daos, 0)
	copy(daos[idx+1:], daos[idx:])
	daos[idx] = reg.DaoID
	return m.KVPut(stakingDaosKey, daos)
}

// StakingDeleteRegistration removes the registry entry and its index slot.
func (m *Manager) StakingDeleteRegistration(daoID uint32) error {
	if err := m.KVDelete(stakingRegistrationKey(daoID)); err != nil {
		return err
	}
	daos, err := m.StakingRegisteredDaos()
	if err != nil {
		return err
	}
	kept := daos[:0]
	for _, id := range daos {
		if id != daoID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return m.KVDelete(stakingDaosKey)
	}
	return m.KVPut(stakingDaosKey, kept)
}

// StakingRegisteredDaos lists registered DAO ids in ascending order.
func (m *Manager) StakingRegisteredDaos() ([]uint32, error) {
	var daos []uint32
	if err := m.KVGetList(stakingDaosKey, &daos); err != nil {
		return nil, err
	}
	return daos, nil
}

// StakingCurrentEra returns the era in progress.
func (m *Manager) StakingCurrentEra() (uint32, error) {
	var era uint32
	if _, err := m.KVGet(stakingCurrentEraKey, &era); err != nil {
		return 0, err
	}
	return era, nil
}

// StakingPutCurrentEra stores the era in progress.
func (m *Manager) StakingPutCurrentEra(era uint32) error {
	return m.KVPut(stakingCurrentEraKey, era)
}

// StakingNextEraStartingBlock returns the height that starts the next era.
func (m *Manager) StakingNextEraStartingBlock() (uint64, error) {
	var height uint64
	if _, err := m.KVGet(stakingNextEraBlockKey, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// StakingPutNextEraStartingBlock stores the height that starts the next era.
func (m *Manager) StakingPutNextEraStartingBlock(height uint64) error {
	return m.KVPut(stakingNextEraBlockKey, height)
}

// StakingForceEra reports whether the next block must start a new era.
func (m *Manager) StakingForceEra() (bool, error) {
	var force bool
	if _, err := m.KVGet(stakingForceEraKey, &force); err != nil {
		return false, err
	}
	return force, nil
}

// StakingPutForceEra sets or clears the force-era flag.
func (m *Manager) StakingPutForceEra(force bool) error {
	if !force {
		return m.KVDelete(stakingForceEraKey)
	}
	return m.KVPut(stakingForceEraKey, true)
}

// StakingAccumulator returns the rewards accrued during the era in
// progress, or nil when nothing was accrued yet.
func (m *Manager) StakingAccumulator() (*staking.RewardInfo, error) {
	var stored staking.RewardInfo
	ok, err := m.KVGet(stakingAccumulatorKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &stored, nil
}

// StakingPutAccumulator stores the rewards accrued during the era in
// progress.
func (m *Manager) StakingPutAccumulator(acc *staking.RewardInfo) error {
	if acc == nil {
		return m.KVDelete(stakingAccumulatorKey)
	}
	return m.KVPut(stakingAccumulatorKey, acc)
}

// StakingUnregistering reports whether daoID still has queued unstaking work.
func (m *Manager) StakingUnregistering(daoID uint32) (bool, error) {
	var pending bool
	key := []byte(fmt.Sprintf("%s%d", stakingUnregisterPrefix, daoID))
	if _, err := m.KVGet(key, &pending); err != nil {
		return false, err
	}
	return pending, nil
}

// StakingPutUnregistering sets or clears the pending-unregistration flag.
func (m *Manager) StakingPutUnregistering(daoID uint32, pending bool) error {
	key := []byte(fmt.Sprintf("%s%d", stakingUnregisterPrefix, daoID))
	if !pending {
		return m.KVDelete(key)
	}
	return m.KVPut(key, true)
}

// StakingPutUnregisterStakers stores the accounts an unregistered DAO still
// has to unwind, in pages of unregisterPageSize entries.
func (m *Manager) StakingPutUnregisterStakers(daoID uint32, stakers [][20]byte) error {
	for start := 0; start < len(stakers); start += unregisterPageSize {
		end := start + unregisterPageSize
		if end > len(stakers) {
			end = len(stakers)
		}
		page := uint32(start / unregisterPageSize)
		if err := m.KVPut(stakingUnregisterPageKey(daoID, page), stakers[start:end]); err != nil {
			return err
		}
	}
	return m.KVPut(stakingUnregisterLenKey(daoID), uint32(len(stakers)))
}

// StakingUnregisterStakers returns up to limit snapshot entries starting at
// offset together with the snapshot length. Only the pages covering the
// requested range are read.
func (m *Manager) StakingUnregisterStakers(daoID uint32, offset, limit uint32) ([][20]byte, uint32, error) {
	var total uint32
	if _, err := m.KVGet(stakingUnregisterLenKey(daoID), &total); err != nil {
		return nil, 0, err
	}
	if offset >= total || limit == 0 {
		return nil, total, nil
	}
	end := total
	if total-offset > limit {
		end = offset + limit
	}
	out := make([][20]byte, 0, end-offset)
	for page := offset / unregisterPageSize; page*unregisterPageSize < end; page++ {
		var entries [][20]byte
		if err := m.KVGetList(stakingUnregisterPageKey(daoID, page), &entries); err != nil {
			return nil, 0, err
		}
		base := page * unregisterPageSize
		for i, addr := range entries {
			pos := base + uint32(i)
			if pos >= offset && pos < end {
				out = append(out, addr)
			}
		}
	}
	return out, total, nil
}

// StakingDropUnregisterStakers releases the snapshot pages consumed by the
// range [offset, end). Reaching the snapshot length removes the snapshot.
func (m *Manager) StakingDropUnregisterStakers(daoID uint32, offset, end uint32) error {
	var total uint32
	if _, err := m.KVGet(stakingUnregisterLenKey(daoID), &total); err != nil {
		return err
	}
	done := end >= total
	for page := offset / unregisterPageSize; page*unregisterPageSize < end; page++ {
		if !done && (page+1)*unregisterPageSize > end {
			break
		}
		if err := m.KVDelete(stakingUnregisterPageKey(daoID, page)); err != nil {
			return err
		}
	}
	if done {
		return m.KVDelete(stakingUnregisterLenKey(daoID))
	}
	return nil
}
