package vm

import (
	"encoding/binary"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/empower1/empower1/internal/core"
)

// viewRestricted lists the CBI functions a view call's host table rejects
// outright (spec §4.7 "View calls restrict the host table"): set,
// transfer, every defer_*, the block_* family, prev_block_hash,
// calling_account, amount, transaction_hash.
var viewRestricted = map[string]bool{
	"set":                        true,
	"transfer":                   true,
	"block_height":               true,
	"block_timestamp":            true,
	"prev_block_hash":            true,
	"calling_account":            true,
	"amount":                     true,
	"transaction_hash":           true,
	"defer_create_pool":          true,
	"defer_set_pool_settings":    true,
	"defer_delete_pool":          true,
	"defer_create_deposit":       true,
	"defer_set_deposit_settings": true,
	"defer_topup_deposit":        true,
	"defer_withdraw_deposit":     true,
	"defer_stake_deposit":        true,
	"defer_unstake_deposit":      true,
}

// buildImportObject registers the full 30-function CBI table under the
// "env" namespace (spec §4.7). Each function closes over env and checks
// viewRestricted before touching the host, so a single table serves both
// transition and view calls (rather than maintaining two tables).
func buildImportObject(store *wasmer.Store, env *Env, view bool) *wasmer.ImportObject {
	io := wasmer.NewImportObject()
	exts := map[string]wasmer.IntoExtern{}

	reg := func(name string, params, results []wasmer.ValueKind, fn func(env *Env, args []wasmer.Value) ([]wasmer.Value, error)) {
		restricted := view && viewRestricted[name]
		ty := wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(results...))
		exts[name] = wasmer.NewFunctionWithEnvironment(store, ty, env, func(e interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
			ev := e.(*Env)
			if restricted {
				return nil, ErrHostFuncNotAllowed
			}
			return fn(ev, args)
		})
	}

	i32 := wasmer.I32
	i64 := wasmer.I64

	reg("set", []wasmer.ValueKind{i32, i32, i32, i32}, nil, cbiSet)
	reg("get", []wasmer.ValueKind{i32, i32, i32, i32}, []wasmer.ValueKind{i32}, cbiGet)
	reg("get_network_storage", []wasmer.ValueKind{i32, i32, i32, i32}, []wasmer.ValueKind{i32}, cbiGetNetworkStorage)
	reg("balance", []wasmer.ValueKind{i32, i32}, []wasmer.ValueKind{i64}, cbiBalance)
	reg("block_height", nil, []wasmer.ValueKind{i64}, cbiBlockHeight)
	reg("block_timestamp", nil, []wasmer.ValueKind{i64}, cbiBlockTimestamp)
	reg("prev_block_hash", []wasmer.ValueKind{i32, i32}, nil, cbiPrevBlockHash)
	reg("calling_account", []wasmer.ValueKind{i32, i32}, nil, cbiCallingAccount)
	reg("current_account", []wasmer.ValueKind{i32, i32}, nil, cbiCurrentAccount)
	reg("method", []wasmer.ValueKind{i32, i32}, []wasmer.ValueKind{i32}, cbiMethod)
	reg("arguments", []wasmer.ValueKind{i32, i32}, []wasmer.ValueKind{i32}, cbiArguments)
	reg("amount", nil, []wasmer.ValueKind{i64}, cbiAmount)
	reg("is_internal_call", nil, []wasmer.ValueKind{i32}, cbiIsInternalCall)
	reg("transaction_hash", []wasmer.ValueKind{i32, i32}, nil, cbiTransactionHash)
	reg("call", []wasmer.ValueKind{i32, i32, i32, i32}, []wasmer.ValueKind{i32}, cbiCall)
	reg("return_value", []wasmer.ValueKind{i32, i32}, nil, cbiReturnValue)
	reg("transfer", []wasmer.ValueKind{i32, i32, i64}, []wasmer.ValueKind{i32}, cbiTransfer)
	reg("log", []wasmer.ValueKind{i32, i32, i32, i32}, nil, cbiLog)
	reg("sha256", []wasmer.ValueKind{i32, i32, i32, i32}, nil, cbiSHA256)
	reg("keccak256", []wasmer.ValueKind{i32, i32, i32, i32}, nil, cbiKeccak256)
	reg("ripemd", []wasmer.ValueKind{i32, i32, i32, i32}, nil, cbiRIPEMD160)
	reg("verify_ed25519_signature", []wasmer.ValueKind{i32, i32, i32, i32, i32, i32}, []wasmer.ValueKind{i32}, cbiVerifyEd25519)

	for _, kind := range deferKinds {
		k := kind // capture
		reg(k.name, []wasmer.ValueKind{i32, i32}, nil, func(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
			return nil, cbiDefer(env, args, k.kind)
		})
	}

	io.Register("env", exts)
	return io
}

var deferKinds = []struct {
	name string
	kind core.CommandKind
}{
	{"defer_create_pool", core.CmdCreatePool},
	{"defer_set_pool_settings", core.CmdSetPoolSettings},
	{"defer_delete_pool", core.CmdDeletePool},
	{"defer_create_deposit", core.CmdCreateDeposit},
	{"defer_set_deposit_settings", core.CmdSetDepositSettings},
	{"defer_topup_deposit", core.CmdTopUpDeposit},
	{"defer_withdraw_deposit", core.CmdWithdrawDeposit},
	{"defer_stake_deposit", core.CmdStakeDeposit},
	{"defer_unstake_deposit", core.CmdUnstakeDeposit},
}

func i32v(v wasmer.Value) uint32 { return uint32(v.I32()) }
func i64v(v wasmer.Value) uint64 { return uint64(v.I64()) }

func cbiSet(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var ret []wasmer.Value
	err := env.with(func(host HostContext, mem *Memory) error {
		key, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		val, err := mem.Read(i32v(args[2]), i32v(args[3]))
		if err != nil {
			return err
		}
		return host.SetStorage(key, val)
	})
	return ret, err
}

func cbiGet(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var n int32
	err := env.with(func(host HostContext, mem *Memory) error {
		key, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		val, err := host.GetStorage(key)
		if err != nil {
			return err
		}
		if err := mem.WriteOutput(i32v(args[2]), i32v(args[3]), val); err != nil {
			return err
		}
		n = int32(len(val))
		return nil
	})
	return []wasmer.Value{wasmer.NewI32(n)}, err
}

func cbiGetNetworkStorage(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var n int32
	err := env.with(func(host HostContext, mem *Memory) error {
		key, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		val, err := host.GetNetworkStorage(key)
		if err != nil {
			return err
		}
		if err := mem.WriteOutput(i32v(args[2]), i32v(args[3]), val); err != nil {
			return err
		}
		n = int32(len(val))
		return nil
	})
	return []wasmer.Value{wasmer.NewI32(n)}, err
}

func cbiBalance(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var bal uint64
	err := env.with(func(host HostContext, mem *Memory) error {
		addrBytes, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		addr, err := core.AddressFromBytes(addrBytes)
		if err != nil {
			return err
		}
		bal, err = host.Balance(addr)
		return err
	})
	return []wasmer.Value{wasmer.NewI64(int64(bal))}, err
}

func cbiBlockHeight(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var h uint64
	err := env.with(func(host HostContext, mem *Memory) error {
		h = host.BlockHeight()
		return nil
	})
	return []wasmer.Value{wasmer.NewI64(int64(h))}, err
}

func cbiBlockTimestamp(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var t uint64
	err := env.with(func(host HostContext, mem *Memory) error {
		t = host.BlockTimestamp()
		return nil
	})
	return []wasmer.Value{wasmer.NewI64(int64(t))}, err
}

func cbiPrevBlockHash(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		h := host.PrevBlockHash()
		return mem.Write(i32v(args[0]), h[:])
	})
}

func cbiCallingAccount(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		return mem.Write(i32v(args[0]), host.CallingAccount().Bytes())
	})
}

func cbiCurrentAccount(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		return mem.Write(i32v(args[0]), host.CurrentAccount().Bytes())
	})
}

func cbiMethod(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var n int32
	err := env.with(func(host HostContext, mem *Memory) error {
		m := []byte(host.Method())
		n = int32(len(m))
		return mem.WriteOutput(i32v(args[0]), i32v(args[1]), m)
	})
	return []wasmer.Value{wasmer.NewI32(n)}, err
}

func cbiArguments(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var n int32
	err := env.with(func(host HostContext, mem *Memory) error {
		a := host.Arguments()
		n = int32(len(a))
		return mem.WriteOutput(i32v(args[0]), i32v(args[1]), a)
	})
	return []wasmer.Value{wasmer.NewI32(n)}, err
}

func cbiAmount(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var amt uint64
	err := env.with(func(host HostContext, mem *Memory) error {
		amt = host.Amount()
		return nil
	})
	return []wasmer.Value{wasmer.NewI64(int64(amt))}, err
}

func cbiIsInternalCall(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var v int32
	err := env.with(func(host HostContext, mem *Memory) error {
		if host.IsInternalCall() {
			v = 1
		}
		return nil
	})
	return []wasmer.Value{wasmer.NewI32(v)}, err
}

func cbiTransactionHash(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		h := host.TransactionHash()
		return mem.Write(i32v(args[0]), h[:])
	})
}

// cbiCall implements the cross-contract `call` host function (spec §4.7):
// deserializes a CallDescriptor out of guest memory (fixed layout:
// target[32] || method_len[4] || method || args_len[4] || args ||
// amount[8], little-endian), runs it through host.Call (which recurses
// into the same Call executor with call_counter+1), and copies the
// sub-call's return value back into this guest's memory on success.
func cbiCall(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var n int32
	err := env.with(func(host HostContext, mem *Memory) error {
		raw, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		desc, err := decodeCallDescriptor(raw)
		if err != nil {
			return err
		}
		result, err := host.Call(desc)
		if err != nil {
			return err
		}
		if err := mem.WriteOutput(i32v(args[2]), i32v(args[3]), result.ReturnValue); err != nil {
			return err
		}
		n = int32(len(result.ReturnValue))
		return nil
	})
	return []wasmer.Value{wasmer.NewI32(n)}, err
}

func decodeCallDescriptor(raw []byte) (CallDescriptor, error) {
	if len(raw) < core.AddressLength+4 {
		return CallDescriptor{}, ErrMemoryOutOfBounds
	}
	off := 0
	addr, err := core.AddressFromBytes(raw[off : off+core.AddressLength])
	if err != nil {
		return CallDescriptor{}, err
	}
	off += core.AddressLength
	methodLen := binary.LittleEndian.Uint32(raw[off : off+4])
	off += 4
	if off+int(methodLen) > len(raw) {
		return CallDescriptor{}, ErrMemoryOutOfBounds
	}
	method := string(raw[off : off+int(methodLen)])
	off += int(methodLen)
	if off+4 > len(raw) {
		return CallDescriptor{}, ErrMemoryOutOfBounds
	}
	argsLen := binary.LittleEndian.Uint32(raw[off : off+4])
	off += 4
	if off+int(argsLen)+8 > len(raw) {
		return CallDescriptor{}, ErrMemoryOutOfBounds
	}
	arguments := raw[off : off+int(argsLen)]
	off += int(argsLen)
	amount := binary.LittleEndian.Uint64(raw[off : off+8])
	return CallDescriptor{Target: addr, Method: method, Arguments: arguments, Amount: amount}, nil
}

func cbiReturnValue(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		val, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		return host.SetReturnValue(val)
	})
}

func cbiTransfer(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var ok int32
	err := env.with(func(host HostContext, mem *Memory) error {
		addrBytes, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		addr, err := core.AddressFromBytes(addrBytes)
		if err != nil {
			return err
		}
		if terr := host.Transfer(addr, i64v(args[2])); terr != nil {
			ok = 1 // non-zero error code; callers inspect via balance/err channel
			return terr
		}
		return nil
	})
	return []wasmer.Value{wasmer.NewI32(ok)}, err
}

func cbiLog(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		topic, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		val, err := mem.Read(i32v(args[2]), i32v(args[3]))
		if err != nil {
			return err
		}
		return host.Log(topic, val)
	})
}

func cbiSHA256(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		data, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		out, err := host.SHA256(data)
		if err != nil {
			return err
		}
		return mem.Write(i32v(args[2]), out[:])
	})
}

func cbiKeccak256(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		data, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		out, err := host.Keccak256(data)
		if err != nil {
			return err
		}
		return mem.Write(i32v(args[2]), out[:])
	})
}

func cbiRIPEMD160(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	return nil, env.with(func(host HostContext, mem *Memory) error {
		data, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		out, err := host.RIPEMD160(data)
		if err != nil {
			return err
		}
		return mem.Write(i32v(args[2]), out[:])
	})
}

func cbiVerifyEd25519(env *Env, args []wasmer.Value) ([]wasmer.Value, error) {
	var v int32
	err := env.with(func(host HostContext, mem *Memory) error {
		pubKey, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		msg, err := mem.Read(i32v(args[2]), i32v(args[3]))
		if err != nil {
			return err
		}
		sig, err := mem.Read(i32v(args[4]), i32v(args[5]))
		if err != nil {
			return err
		}
		ok, err := host.VerifyEd25519(pubKey, msg, sig)
		if err != nil {
			return err
		}
		if ok {
			v = 1
		}
		return nil
	})
	return []wasmer.Value{wasmer.NewI32(v)}, err
}

func cbiDefer(env *Env, args []wasmer.Value, kind core.CommandKind) error {
	return env.with(func(host HostContext, mem *Memory) error {
		payload, err := mem.Read(i32v(args[0]), i32v(args[1]))
		if err != nil {
			return err
		}
		return host.DeferCommand(kind, payload)
	})
}
