package staking

import (
	"errors"
	"fmt"

	"daochain/native/common"
)

var (
	ErrNotRegistered             = errors.New("staking: dao not registered")
	ErrAlreadyRegistered         = errors.New("staking: dao already registered")
	ErrUnregisterInProgress      = errors.New("staking: dao unregistration still in progress")
	ErrMaxNameExceeded           = errors.New("staking: name too long")
	ErrMaxDescriptionExceeded    = errors.New("staking: description too long")
	ErrMaxImageExceeded          = errors.New("staking: image too long")
	ErrStakingNothing            = errors.New("staking: nothing to stake")
	ErrInsufficientStakingAmount = errors.New("staking: stake below minimum")
	ErrMaxStakersReached         = errors.New("staking: dao has reached max stakers")
	ErrTooManyEraStakeValues     = errors.New("staking: too many era stake values")
	ErrUnstakingNothing          = errors.New("staking: nothing to unstake")
	ErrNotStakedDao              = errors.New("staking: account has no stake in dao")
	ErrTooManyUnlockingChunks    = errors.New("staking: too many unlocking chunks")
	ErrNothingToWithdraw         = errors.New("staking: nothing to withdraw")
	ErrIncorrectEra              = errors.New("staking: era is not claimable yet")
	ErrNoStakeAvailable          = errors.New("staking: no stake available")
	ErrRewardAlreadyClaimed      = errors.New("staking: reward already claimed")
	ErrUnknownEraReward          = errors.New("staking: unknown era reward")
	ErrMoveStakeToSameDao        = errors.New("staking: cannot move stake to the same dao")
	ErrNoHaltChange              = errors.New("staking: halt status unchanged")
	ErrUnexpectedStakeInfoEra    = errors.New("staking: unexpected stake info era")

	// ErrHalted is returned by every staking mutation while staking is
	// halted.
	ErrHalted = fmt.Errorf("staking: %w", common.ErrModulePaused)

	errStateNotConfigured    = errors.New("staking: state not configured")
	errCurrencyNotConfigured = errors.New("staking: currency not configured")
	errQueueNotConfigured    = errors.New("staking: queue not configured")
)
