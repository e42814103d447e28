package dispatch

import (
	"errors"
	"fmt"

	"daochain/crypto"
)

// ErrBadOrigin is returned when a call is dispatched by an origin kind it
// does not accept.
var ErrBadOrigin = errors.New("dispatch: bad origin")

// OriginKind enumerates who a call executes as.
type OriginKind uint8

const (
	// OriginRoot is the privileged chain origin used for genesis and
	// administrative calls.
	OriginRoot OriginKind = iota + 1
	// OriginSigned is an externally owned account.
	OriginSigned
	// OriginEntity is a DAO acting through its derived control account.
	OriginEntity
)

// Origin identifies the caller of a dispatched call.
type Origin struct {
	Kind    OriginKind
	Account [20]byte
	DaoID   uint32
}

// Root returns the privileged origin.
func Root() Origin { return Origin{Kind: OriginRoot} }

// Signed returns an origin for an externally owned account.
func Signed(account [20]byte) Origin {
	return Origin{Kind: OriginSigned, Account: account}
}

// Entity returns the origin of a DAO acting as itself. The account is always
// the DAO's derived control account.
func Entity(daoID uint32) Origin {
	return Origin{Kind: OriginEntity, Account: crypto.DeriveEntityAccount(daoID), DaoID: daoID}
}

// EnsureSigned returns the account behind a signed or entity origin. A DAO
// acting through a multisig spends from its own control account.
func (o Origin) EnsureSigned() ([20]byte, error) {
	switch o.Kind {
	case OriginSigned, OriginEntity:
		return o.Account, nil
	default:
		return [20]byte{}, fmt.Errorf("%w: signed origin required", ErrBadOrigin)
	}
}

// EnsureEntity returns the DAO id behind an entity origin.
func (o Origin) EnsureEntity() (uint32, error) {
	if o.Kind != OriginEntity {
		return 0, fmt.Errorf("%w: entity origin required", ErrBadOrigin)
	}
	return o.DaoID, nil
}

// EnsureRoot fails unless the origin is root.
func (o Origin) EnsureRoot() error {
	if o.Kind != OriginRoot {
		return fmt.Errorf("%w: root origin required", ErrBadOrigin)
	}
	return nil
}

func (o Origin) String() string {
	switch o.Kind {
	case OriginRoot:
		return "root"
	case OriginSigned:
		return "signed:" + crypto.FromAccount(o.Account).String()
	case OriginEntity:
		return fmt.Sprintf("entity:%d", o.DaoID)
	default:
		return "none"
	}
}
