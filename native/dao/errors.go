package dao

import "errors"

var (
	ErrDaoNotFound               = errors.New("dao: dao not found")
	ErrNoPermission              = errors.New("dao: caller holds no voting tokens")
	ErrMultisigCallAlreadyExists = errors.New("dao: multisig call already exists")
	ErrMultisigCallNotFound      = errors.New("dao: multisig call not found")
	ErrNotAVoter                 = errors.New("dao: caller has not voted")
	ErrTooManyVoters             = errors.New("dao: too many voters")
	ErrMaxMetadataExceeded       = errors.New("dao: metadata too long")
	ErrCallTooLarge              = errors.New("dao: call too large")
	ErrFailedDecodingCall        = errors.New("dao: failed decoding call")
	ErrInvalidThreshold          = errors.New("dao: invalid threshold")
	ErrIDOverflow                = errors.New("dao: dao id space exhausted")

	errStateNotConfigured      = errors.New("dao: state not configured")
	errTokensNotConfigured     = errors.New("dao: token provider not configured")
	errCurrencyNotConfigured   = errors.New("dao: currency not configured")
	errDispatcherNotConfigured = errors.New("dao: dispatcher not configured")
)
