package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contract_gate/internal/config"
	"contract_gate/internal/server"
	"contract_gate/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"
)

const defaultRPCURL = "http://127.0.0.1:8547"

var (
	basePath string
	rpcURL   string
)

var rootCmd = &cobra.Command{
	Use:           "contract-gate",
	Short:         "Contract address admission control for permissioned validators",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMainConfig(basePath)
		if err != nil {
			return fmt.Errorf("load config failed: %w", err)
		}
		genesis, err := config.LoadPolicy(cfg.RulePath)
		if err != nil {
			return fmt.Errorf("load rules failed: %w", err)
		}

		logs, err := utils.NewManager(cfg.LogPath, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() {
			if err := logs.Close(); err != nil {
				log.Printf("failed to close logs: %v", err)
			}
		}()

		node, err := server.NewNode(cfg, genesis, logs)
		if err != nil {
			return err
		}

		log.Printf("Ready to start %s: rpc %s, %d whitelisted, %d blacklisted",
			cfg.NodeName, cfg.RPCListen, len(genesis.Whitelist), len(genesis.Blacklist))

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := node.Run(ctx); err != nil {
			return err
		}
		log.Println("Node stopped")
		return nil
	},
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect or change a running node's contract lists",
}

var policyUpdateCmd = &cobra.Command{
	Use:   "update <whitelist|blacklist> <address> <add|remove>",
	Short: "Add an address to or remove it from a list",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var add bool
		switch strings.ToLower(args[2]) {
		case "add":
			add = true
		case "remove":
			add = false
		default:
			return fmt.Errorf("unknown operation %q, want add or remove", args[2])
		}

		client, err := dialRPC(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		var ok bool
		if err := client.CallContext(cmd.Context(), &ok, server.RPCNamespace+"_addContractAddress", args[0], args[1], add); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list <whitelist|blacklist>",
	Short: "Print a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialRPC(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		var addrs []common.Address
		if err := client.CallContext(cmd.Context(), &addrs, server.RPCNamespace+"_getContractAddressList", args[0]); err != nil {
			return err
		}
		for _, addr := range addrs {
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
		}
		return nil
	},
}

func dialRPC(ctx context.Context) (*rpc.Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

func init() {
	runCmd.Flags().StringVar(&basePath, "prefix", "", "Config file base path")
	policyCmd.PersistentFlags().StringVar(&rpcURL, "rpc", defaultRPCURL, "Admin RPC endpoint of the node")

	policyCmd.AddCommand(policyUpdateCmd, policyListCmd)
	rootCmd.AddCommand(runCmd, policyCmd)
}
