// Package cli wires the runtime's four entry points (transition_v1,
// transition_v2, view_v1, view_v2) into a cobra command tree, grounded on
// cmd/empower1d/cli/cli.go's NewCLI(bc *core.Blockchain) *cobra.Command
// pattern: one root command, one subcommand per operation, flags read
// with pflag rather than the stdlib flag package.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/empower1/empower1/cmd/runtimed/fixture"
	"github.com/empower1/empower1/internal/core"
	"github.com/empower1/empower1/internal/runtime"
	"github.com/empower1/empower1/internal/vm"
)

// commandOutput is the JSON shape printed to stdout for every subcommand;
// exactly one of Receipt/Error is populated, same as the transition's own
// result shape (spec §6, §7).
type commandOutput struct {
	Error            string      `json:"error,omitempty"`
	Receipt          interface{} `json:"receipt,omitempty"`
	ValidatorChanges interface{} `json:"validator_changes,omitempty"`
}

// NewCLI builds the runtimed root command. A WasmHost is constructed fresh
// per invocation rather than threaded in from main, following
// cmd/empower1d/main.go's style of constructing its collaborators
// (core.NewBlockchain, core.NewMempool) directly at startup.
func NewCLI() *cobra.Command {
	var fixturePath string

	rootCmd := &cobra.Command{
		Use:   "runtimed",
		Short: "Drive the empower1 state-transition runtime from a JSON fixture",
	}
	rootCmd.PersistentFlags().StringVarP(&fixturePath, "fixture", "f", "", "path to a JSON fixture file (required)")
	rootCmd.MarkPersistentFlagRequired("fixture")

	rootCmd.AddCommand(
		newTransitionCmd(&fixturePath, core.TxV1),
		newTransitionCmd(&fixturePath, core.TxV2),
		newViewCmd(&fixturePath, core.TxV1),
		newViewCmd(&fixturePath, core.TxV2),
	)
	return rootCmd
}

func newTransitionCmd(fixturePath *string, version core.TxVersion) *cobra.Command {
	name := "transition-v1"
	if version == core.TxV2 {
		name = "transition-v2"
	}
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run %s against the fixture's world state", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(*fixturePath, version)
		},
	}
}

func newViewCmd(fixturePath *string, version core.TxVersion) *cobra.Command {
	name := "view-v1"
	if version == core.TxV2 {
		name = "view-v2"
	}
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run %s (read-only) against the fixture's world state", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(*fixturePath, version)
		},
	}
}

func runTransition(fixturePath string, version core.TxVersion) error {
	f, err := fixture.Load(fixturePath)
	if err != nil {
		return err
	}
	ws, err := f.BuildWorldState(version)
	if err != nil {
		return err
	}
	tx, _, err := f.BuildTransaction()
	if err != nil {
		return err
	}
	bd, err := f.BuildBlockchainParams()
	if err != nil {
		return err
	}
	wasmHost := vm.NewWasmHost(vm.NewModuleCache())

	var out commandOutput
	if version == core.TxV1 {
		res := runtime.TransitionV1(ws, tx, bd, wasmHost)
		if res.Error != nil {
			out.Error = res.Error.Error()
		} else {
			out.Receipt = res.Receipt
			out.ValidatorChanges = res.ValidatorChanges
		}
	} else {
		res := runtime.TransitionV2(ws, tx, bd, wasmHost)
		if res.Error != nil {
			out.Error = res.Error.Error()
		} else {
			out.Receipt = res.Receipt
			out.ValidatorChanges = res.ValidatorChanges
		}
	}
	return printJSON(out)
}

func runView(fixturePath string, version core.TxVersion) error {
	f, err := fixture.Load(fixturePath)
	if err != nil {
		return err
	}
	ws, err := f.BuildWorldState(version)
	if err != nil {
		return err
	}
	tx, _, err := f.BuildTransaction()
	if err != nil {
		return err
	}
	if len(tx.Commands) != 1 || tx.Commands[0].Kind != core.CmdCall {
		return fmt.Errorf("runtimed: view requires exactly one Call command in the fixture transaction")
	}
	call := tx.Commands[0]
	wasmHost := vm.NewWasmHost(vm.NewModuleCache())

	var out commandOutput
	if version == core.TxV1 {
		res := runtime.ViewV1(ws, tx.Meta.GasLimit, call.Target, call.Method, call.Arguments, wasmHost)
		if res.Error != nil {
			out.Error = res.Error.Error()
		} else {
			out.Receipt = res.Receipt
		}
	} else {
		res := runtime.ViewV2(ws, tx.Meta.GasLimit, call.Target, call.Method, call.Arguments, wasmHost)
		if res.Error != nil {
			out.Error = res.Error.Error()
		} else {
			out.Receipt = res.Receipt
		}
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
