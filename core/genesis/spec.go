package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"daochain/native/bank"
	"daochain/native/common"
)

// GenesisSpec is the YAML description of the initial chain state. Amounts
// are decimal strings so they survive YAML's number handling unchanged.
type GenesisSpec struct {
	GenesisTime string                       `yaml:"genesisTime"`
	Sudo        string                       `yaml:"sudo,omitempty"`
	Params      *ParamsSpec                  `yaml:"params,omitempty"`
	Alloc       map[string]map[string]string `yaml:"alloc"` // account -> asset -> amount
	Daos        []DaoSpec                    `yaml:"daos"`

	genesisTimestamp time.Time
}

// ParamsSpec overrides runtime parameters. Zero values keep the defaults.
type ParamsSpec struct {
	BlockWeightLimit   uint64             `yaml:"blockWeightLimit,omitempty"`
	ExistentialDeposit string             `yaml:"existentialDeposit,omitempty"`
	Dao                *DaoParamsSpec     `yaml:"dao,omitempty"`
	Staking            *StakingParamsSpec `yaml:"staking,omitempty"`
	Emission           []EmissionSpec     `yaml:"emission,omitempty"`
}

type DaoParamsSpec struct {
	MaxMetadata       uint32 `yaml:"maxMetadata,omitempty"`
	MaxCallSize       uint32 `yaml:"maxCallSize,omitempty"`
	MaxVoters         uint32 `yaml:"maxVoters,omitempty"`
	SeedBalance       string `yaml:"seedBalance,omitempty"`
	CreationFee       string `yaml:"creationFee,omitempty"`
	RelayCreationFee  string `yaml:"relayCreationFee,omitempty"`
	StorageFeeBase    string `yaml:"storageFeeBase,omitempty"`
	StorageFeePerByte string `yaml:"storageFeePerByte,omitempty"`
}

type StakingParamsSpec struct {
	BlocksPerEra               uint64 `yaml:"blocksPerEra,omitempty"`
	UnbondingPeriod            uint32 `yaml:"unbondingPeriod,omitempty"`
	MaxUnlocking               uint32 `yaml:"maxUnlocking,omitempty"`
	MaxEraStakeValues          uint32 `yaml:"maxEraStakeValues,omitempty"`
	MaxStakersPerDao           uint32 `yaml:"maxStakersPerDao,omitempty"`
	MinimumStakingAmount       string `yaml:"minimumStakingAmount,omitempty"`
	StakeThresholdForActiveDao string `yaml:"stakeThresholdForActiveDao,omitempty"`
	RegisterDeposit            string `yaml:"registerDeposit,omitempty"`
	DaoRewardRatio             string `yaml:"daoRewardRatio,omitempty"`
	MaxInlineUnregister        uint32 `yaml:"maxInlineUnregister,omitempty"`
	UnstakeWeight              uint64 `yaml:"unstakeWeight,omitempty"`
	UnregisterBudgetFraction   string `yaml:"unregisterBudgetFraction,omitempty"`
}

// EmissionSpec is one step of the per-era issuance schedule.
type EmissionSpec struct {
	StartEra uint32 `yaml:"startEra"`
	Amount   string `yaml:"amount"`
}

// DaoSpec creates a DAO at genesis. Thresholds are percentages such as
// "60%" or "33.5%".
type DaoSpec struct {
	Creator          string            `yaml:"creator"`
	Metadata         string            `yaml:"metadata,omitempty"`
	MinimumSupport   string            `yaml:"minimumSupport"`
	RequiredApproval string            `yaml:"requiredApproval"`
	Holders          map[string]string `yaml:"holders,omitempty"`
	Staking          *DaoStakingSpec   `yaml:"staking,omitempty"`
}

// DaoStakingSpec registers the DAO as a staking target.
type DaoStakingSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Image       string `yaml:"image,omitempty"`
}

// LoadGenesisSpec reads and validates a YAML genesis file. Unknown fields
// are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates raw YAML.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if strings.TrimSpace(s.Sudo) != "" {
		if _, err := ParseAccount(s.Sudo); err != nil {
			return fmt.Errorf("sudo: %w", err)
		}
	}

	accounts := make([]string, 0, len(s.Alloc))
	for account := range s.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		if _, err := ParseAccount(account); err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		for asset, amount := range s.Alloc[account] {
			if _, err := bank.ParseAsset(asset); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
			if strings.TrimSpace(amount) == "" {
				return fmt.Errorf("alloc[%q][%q]: amount must be provided", account, asset)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
		}
	}

	for i := range s.Daos {
		if err := s.Daos[i].validate(); err != nil {
			return fmt.Errorf("daos[%d]: %w", i, err)
		}
	}
	return nil
}

func (d *DaoSpec) validate() error {
	if strings.TrimSpace(d.Creator) == "" {
		return fmt.Errorf("creator must be provided")
	}
	if _, err := ParseAccount(d.Creator); err != nil {
		return fmt.Errorf("creator: %w", err)
	}
	if _, err := parsePercent(d.MinimumSupport); err != nil {
		return fmt.Errorf("minimumSupport: %w", err)
	}
	if _, err := parsePercent(d.RequiredApproval); err != nil {
		return fmt.Errorf("requiredApproval: %w", err)
	}
	for holder, amount := range d.Holders {
		if _, err := ParseAccount(holder); err != nil {
			return fmt.Errorf("holders[%q]: %w", holder, err)
		}
		if _, err := parseAmountString(amount); err != nil {
			return fmt.Errorf("holders[%q]: %w", holder, err)
		}
	}
	if d.Staking != nil && strings.TrimSpace(d.Staking.Name) == "" {
		return fmt.Errorf("staking: name must be provided")
	}
	return nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

// parsePercent converts "60%" (or a bare "60") into a Perbill, rounding
// down below one part per billion.
func parsePercent(value string) (common.Perbill, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "%")
	if trimmed == "" {
		return 0, fmt.Errorf("percentage must be provided")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return 0, fmt.Errorf("invalid percentage %q", value)
	}
	if rat.Sign() < 0 || rat.Cmp(big.NewRat(100, 1)) > 0 {
		return 0, fmt.Errorf("percentage %q out of range", value)
	}
	parts := new(big.Int).Quo(new(big.Int).Mul(rat.Num(), big.NewInt(10_000_000)), rat.Denom())
	return common.PerbillFromParts(uint32(parts.Uint64()))
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
