package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"daochain/core/rewards"
	"daochain/core/runtime"
	"daochain/native/bank"
	"daochain/native/staking"
)

// BuildParams overlays the genesis file's parameter overrides and sudo key on base
// and validates the result.
func (s *GenesisSpec) BuildParams(base runtime.Params) (runtime.Params, error) {
	params := base
	if strings.TrimSpace(s.Sudo) != "" {
		sudo, err := ParseAccount(s.Sudo)
		if err != nil {
			return params, fmt.Errorf("sudo: %w", err)
		}
		params.Sudo = sudo
	}
	if p := s.Params; p != nil {
		if p.BlockWeightLimit != 0 {
			params.BlockWeightLimit = p.BlockWeightLimit
		}
		if err := setAmount(&params.ExistentialDeposit, p.ExistentialDeposit); err != nil {
			return params, fmt.Errorf("params.existentialDeposit: %w", err)
		}
		if p.Dao != nil {
			if err := p.Dao.apply(&params); err != nil {
				return params, fmt.Errorf("params.dao: %w", err)
			}
		}
		if p.Staking != nil {
			if err := p.Staking.apply(&params); err != nil {
				return params, fmt.Errorf("params.staking: %w", err)
			}
		}
		if len(p.Emission) > 0 {
			schedule := make([]rewards.EmissionStep, 0, len(p.Emission))
			for i, step := range p.Emission {
				amount, err := parseAmountString(step.Amount)
				if err != nil {
					return params, fmt.Errorf("params.emission[%d]: %w", i, err)
				}
				schedule = append(schedule, rewards.EmissionStep{StartEra: step.StartEra, Amount: amount})
			}
			params.Rewards = rewards.Config{Schedule: schedule}
		}
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func (d *DaoParamsSpec) apply(params *runtime.Params) error {
	dp := &params.Dao
	if d.MaxMetadata != 0 {
		dp.MaxMetadata = d.MaxMetadata
	}
	if d.MaxCallSize != 0 {
		dp.MaxCallSize = d.MaxCallSize
	}
	if d.MaxVoters != 0 {
		dp.MaxVoters = d.MaxVoters
	}
	fields := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"seedBalance", d.SeedBalance, &dp.SeedBalance},
		{"creationFee", d.CreationFee, &dp.CreationFee},
		{"relayCreationFee", d.RelayCreationFee, &dp.RelayCreationFee},
		{"storageFeeBase", d.StorageFeeBase, &dp.StorageFeeBase},
		{"storageFeePerByte", d.StorageFeePerByte, &dp.StorageFeePerByte},
	}
	for _, f := range fields {
		if err := setAmount(f.dst, f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

func (s *StakingParamsSpec) apply(params *runtime.Params) error {
	sp := &params.Staking
	if s.BlocksPerEra != 0 {
		sp.BlocksPerEra = s.BlocksPerEra
	}
	if s.UnbondingPeriod != 0 {
		sp.UnbondingPeriod = s.UnbondingPeriod
	}
	if s.MaxUnlocking != 0 {
		sp.MaxUnlocking = s.MaxUnlocking
	}
	if s.MaxEraStakeValues != 0 {
		sp.MaxEraStakeValues = s.MaxEraStakeValues
	}
	if s.MaxStakersPerDao != 0 {
		sp.MaxStakersPerDao = s.MaxStakersPerDao
	}
	if s.MaxInlineUnregister != 0 {
		sp.MaxInlineUnregister = s.MaxInlineUnregister
	}
	if s.UnstakeWeight != 0 {
		sp.UnstakeWeight = s.UnstakeWeight
	}
	fields := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"minimumStakingAmount", s.MinimumStakingAmount, &sp.MinimumStakingAmount},
		{"stakeThresholdForActiveDao", s.StakeThresholdForActiveDao, &sp.StakeThresholdForActiveDao},
		{"registerDeposit", s.RegisterDeposit, &sp.RegisterDeposit},
	}
	for _, f := range fields {
		if err := setAmount(f.dst, f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if strings.TrimSpace(s.DaoRewardRatio) != "" {
		ratio, err := parsePercent(s.DaoRewardRatio)
		if err != nil {
			return fmt.Errorf("daoRewardRatio: %w", err)
		}
		sp.DaoRewardRatio = ratio
	}
	if strings.TrimSpace(s.UnregisterBudgetFraction) != "" {
		fraction, err := parsePercent(s.UnregisterBudgetFraction)
		if err != nil {
			return fmt.Errorf("unregisterBudgetFraction: %w", err)
		}
		sp.UnregisterBudgetFraction = fraction
	}
	return nil
}

func setAmount(dst **big.Int, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	amount, err := parseAmountString(value)
	if err != nil {
		return err
	}
	*dst = amount
	return nil
}

// BuildGenesis converts the genesis file into the runtime's genesis description.
// Balances are emitted in account then asset order so every node seeds the
// same state from the same file.
func (s *GenesisSpec) BuildGenesis() (runtime.Genesis, error) {
	var g runtime.Genesis

	type allocEntry struct {
		account [20]byte
		asset   bank.Asset
		amount  *big.Int
	}
	var entries []allocEntry
	for accountText, assets := range s.Alloc {
		account, err := ParseAccount(accountText)
		if err != nil {
			return g, fmt.Errorf("alloc[%q]: %w", accountText, err)
		}
		for assetText, amountText := range assets {
			asset, err := bank.ParseAsset(assetText)
			if err != nil {
				return g, fmt.Errorf("alloc[%q][%q]: %w", accountText, assetText, err)
			}
			amount, err := parseAmountString(amountText)
			if err != nil {
				return g, fmt.Errorf("alloc[%q][%q]: %w", accountText, assetText, err)
			}
			entries = append(entries, allocEntry{account: account, asset: asset, amount: amount})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := bytes.Compare(entries[i].account[:], entries[j].account[:]); c != 0 {
			return c < 0
		}
		return entries[i].asset < entries[j].asset
	})
	for _, e := range entries {
		if e.amount.Sign() == 0 {
			continue
		}
		g.Balances = append(g.Balances, runtime.GenesisBalance{Account: e.account, Asset: e.asset, Amount: e.amount})
	}

	for i := range s.Daos {
		dao, err := s.Daos[i].build()
		if err != nil {
			return g, fmt.Errorf("daos[%d]: %w", i, err)
		}
		g.Daos = append(g.Daos, dao)
	}
	return g, nil
}

func (d *DaoSpec) build() (runtime.GenesisDao, error) {
	var out runtime.GenesisDao
	creator, err := ParseAccount(d.Creator)
	if err != nil {
		return out, fmt.Errorf("creator: %w", err)
	}
	support, err := parsePercent(d.MinimumSupport)
	if err != nil {
		return out, fmt.Errorf("minimumSupport: %w", err)
	}
	approval, err := parsePercent(d.RequiredApproval)
	if err != nil {
		return out, fmt.Errorf("requiredApproval: %w", err)
	}
	out = runtime.GenesisDao{
		Creator:          creator,
		Metadata:         []byte(d.Metadata),
		MinimumSupport:   support,
		RequiredApproval: approval,
	}
	for holderText, amountText := range d.Holders {
		holder, err := ParseAccount(holderText)
		if err != nil {
			return out, fmt.Errorf("holders[%q]: %w", holderText, err)
		}
		amount, err := parseAmountString(amountText)
		if err != nil {
			return out, fmt.Errorf("holders[%q]: %w", holderText, err)
		}
		out.Holders = append(out.Holders, runtime.GenesisHolder{Account: holder, Amount: amount})
	}
	sort.Slice(out.Holders, func(i, j int) bool {
		return bytes.Compare(out.Holders[i].Account[:], out.Holders[j].Account[:]) < 0
	})
	if d.Staking != nil {
		out.Staking = &staking.DaoInformation{
			Name:        []byte(d.Staking.Name),
			Description: []byte(d.Staking.Description),
			Image:       []byte(d.Staking.Image),
		}
	}
	return out, nil
}

// Build resolves the genesis file into runtime parameters layered over base and the
// genesis state to seed.
func (s *GenesisSpec) Build(base runtime.Params) (runtime.Params, runtime.Genesis, error) {
	params, err := s.BuildParams(base)
	if err != nil {
		return params, runtime.Genesis{}, err
	}
	g, err := s.BuildGenesis()
	if err != nil {
		return params, runtime.Genesis{}, err
	}
	return params, g, nil
}

// Load reads the genesis file at path and resolves it against base.
func Load(path string, base runtime.Params) (runtime.Params, runtime.Genesis, error) {
	spec, err := LoadGenesisSpec(path)
	if err != nil {
		return base, runtime.Genesis{}, err
	}
	return spec.Build(base)
}
