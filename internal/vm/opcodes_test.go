package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func wasmModule(codeSectionPayload []byte) []byte {
	out := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	out = append(out, 0x0a, byte(len(codeSectionPayload)))
	out = append(out, codeSectionPayload...)
	return out
}

// TestNonDeterminismFilterAllowsDeterministicBody constructs a minimal
// single-function code section (locals: none; i32.const 1; i32.const 2;
// i32.add; end) containing only allowed opcodes.
func TestNonDeterminismFilterAllowsDeterministicBody(t *testing.T) {
	body := []byte{0x00, 0x41, 0x01, 0x41, 0x02, 0x6a, 0x0b}
	payload := append([]byte{0x01, byte(len(body))}, body...)
	assert.NoError(t, NonDeterminismFilter(wasmModule(payload)))
}

// TestNonDeterminismFilterRejectsFloatOpcode uses the same shape but with
// a single f32.load (0x2a), inside the non-deterministic single-byte
// range spec §4.4 requires rejecting outright.
func TestNonDeterminismFilterRejectsFloatOpcode(t *testing.T) {
	body := []byte{0x00, 0x2a}
	payload := append([]byte{0x01, byte(len(body))}, body...)
	err := NonDeterminismFilter(wasmModule(payload))
	assert.Error(t, err)
	var opErr ErrOpcode
	assert.ErrorAs(t, err, &opErr)
	assert.Equal(t, byte(0x2a), opErr.Opcode)
}

// TestNonDeterminismFilterRejectsSIMDPrefix checks the 0xfd SIMD prefix
// byte is rejected wholesale, per spec §4.4's "rejected opcodes" note.
func TestNonDeterminismFilterRejectsSIMDPrefix(t *testing.T) {
	body := []byte{0x00, 0xfd}
	payload := append([]byte{0x01, byte(len(body))}, body...)
	err := NonDeterminismFilter(wasmModule(payload))
	assert.Error(t, err)
}

// TestNonDeterminismFilterNoCodeSectionIsVacuouslyDeterministic checks a
// module with only the preamble and no sections at all.
func TestNonDeterminismFilterNoCodeSectionIsVacuouslyDeterministic(t *testing.T) {
	preambleOnly := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	assert.NoError(t, NonDeterminismFilter(preambleOnly))
}

func TestNonDeterminismFilterRejectsNonWasmInput(t *testing.T) {
	assert.Error(t, NonDeterminismFilter([]byte("not wasm")))
}
