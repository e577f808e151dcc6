package gas

import "errors"

var (
	// ErrGasLimitExceeded is returned by the GasMeter's charging methods
	// (GetBalance, SetStorageData, ChargeLog and the rest) when a charge
	// exceeds what Remaining() still allows.
	ErrGasLimitExceeded = errors.New("gas: limit exceeded")

	// ErrWasmGasGlobalNotActive is returned when a HostFuncGasMeter
	// operation is attempted outside an active contract call (spec §4.3:
	// "WasmerGasGlobal ... readable/mutable only while a contract call is
	// in flight").
	ErrWasmGasGlobalNotActive = errors.New("gas: wasmer gas global not active")
)
