package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"daochain/config"
	"daochain/core/genesis"
	"daochain/core/runtime"
	"daochain/native/bank"
)

const exampleGenesis = `# daochain development genesis.
genesisTime: "2025-01-01T00:00:00Z"
sudo: "0x00000000000000000000000000000000000000a1"
params:
  staking:
    blocksPerEra: 30
  emission:
    - startEra: 1
      amount: "1_000_000"
alloc:
  "0x00000000000000000000000000000000000000a1":
    native: "1_000_000_000"
    relay: "1_000"
  "0x00000000000000000000000000000000000000b2":
    native: "1_000_000_000"
  "entity:0":
    native: "10_000"
daos:
  - creator: "0x00000000000000000000000000000000000000a1"
    metadata: dev council
    minimumSupport: "50%"
    requiredApproval: "50%"
    holders:
      "0x00000000000000000000000000000000000000b2": "500_000"
    staking:
      name: Dev Council
      description: Development DAO registered for staking
`

func initCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and an example genesis file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			path := cfg.GenesisFile
			if strings.TrimSpace(path) == "" {
				path = filepath.Join(cfg.DataDir, "genesis.yaml")
			}
			if err := writeExampleGenesis(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\ngenesis: %s\n", configFile, path)
			if cfg.GenesisFile == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "set GenesisFile = %q in the config to use it\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing genesis file")
	return cmd
}

func writeExampleGenesis(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("genesis file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(exampleGenesis), 0o644)
}

func genesisCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Genesis file utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "validate <file>",
		Short:       "Parse a genesis file and print what it would create",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := genesis.LoadGenesisSpec(args[0])
			if err != nil {
				return err
			}
			params, gen, err := spec.Build(runtime.DefaultParams())
			if err != nil {
				return err
			}
			printGenesisSummary(cmd, spec, params, gen)
			return nil
		},
	})
	return cmd
}

func printGenesisSummary(cmd *cobra.Command, spec *genesis.GenesisSpec, params runtime.Params, gen runtime.Genesis) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "genesis time: %s\n", spec.GenesisTimestamp().Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(out, "sudo enabled: %t\n", params.HasSudo())
	fmt.Fprintf(out, "blocks per era: %d\n", params.Staking.BlocksPerEra)
	fmt.Fprintf(out, "emission steps: %d\n", len(params.Rewards.Schedule))
	var native, relay int
	for _, b := range gen.Balances {
		switch b.Asset {
		case bank.AssetNative:
			native++
		case bank.AssetRelay:
			relay++
		}
	}
	fmt.Fprintf(out, "balances: %d native, %d relay\n", native, relay)
	staked := 0
	for _, d := range gen.Daos {
		if d.Staking != nil {
			staked++
		}
	}
	fmt.Fprintf(out, "daos: %d (%d registered for staking)\n", len(gen.Daos), staked)
}
