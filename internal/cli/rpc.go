package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/barterlabs/goBarterd/internal/rpc"
)

var rpcURL string

// rpcCmd groups the client commands that talk to a running daemon.
var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "RPC client commands",
	Long:  `Execute RPC methods against a running barterd over HTTP JSON-RPC.`,
}

func init() {
	rootCmd.AddCommand(rpcCmd)
	rpcCmd.PersistentFlags().StringVar(&rpcURL, "url", "http://127.0.0.1:7140/", "RPC endpoint of the daemon")
}

// callMethod posts one JSON-RPC request and pretty-prints the result.
func callMethod(method string, params interface{}) error {
	request := rpc.JsonRpcRequest{JsonRpc: "2.0", Method: method, ID: 1}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal parameters: %w", err)
		}
		request.Params = raw
	}
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(rpcURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: %w", rpcURL, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var response rpc.JsonRpcResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if response.Error != nil {
		return fmt.Errorf("RPC error [%d]: %s: %s", response.Error.Code, response.Error.Message, response.Error.Data)
	}
	if response.Result != nil {
		pretty, err := json.MarshalIndent(response.Result, "", "  ")
		if err != nil {
			fmt.Printf("%+v\n", response.Result)
			return nil
		}
		fmt.Println(string(pretty))
	}
	return nil
}

func parseID(s, what string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

var serverInfoCmd = &cobra.Command{
	Use:   "server_info",
	Short: "Get daemon information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callMethod("server_info", nil)
	},
}

var createSaleOfferCmd = &cobra.Command{
	Use:   "create_sale_offer <account> <amount> <goods_id> <rate> <payment_id> <window_secs> <collateral_to_debt> <liquidation>",
	Short: "Post a sale offer, escrowing the goods",
	Args:  cobra.ExactArgs(8),
	RunE: func(cmd *cobra.Command, args []string) error {
		goodsID, err := parseID(args[2], "goods id")
		if err != nil {
			return err
		}
		paymentID, err := parseID(args[4], "payment id")
		if err != nil {
			return err
		}
		window, err := parseID(args[5], "repay window")
		if err != nil {
			return err
		}
		return callMethod("create_sale_offer", map[string]interface{}{
			"account":            args[0],
			"amount":             args[1],
			"goods_id":           goodsID,
			"rate":               args[3],
			"payment_id":         paymentID,
			"repay_window_secs":  window,
			"collateral_to_debt": args[6],
			"liquidation":        args[7],
		})
	},
}

var createBuyOfferCmd = &cobra.Command{
	Use:   "create_buy_offer <account> <amount> <goods_id> <rate> <payment_id> <collateral_id> <window_secs> <collateral_to_debt> <liquidation>",
	Short: "Post a buy offer, escrowing collateral",
	Args:  cobra.ExactArgs(9),
	RunE: func(cmd *cobra.Command, args []string) error {
		goodsID, err := parseID(args[2], "goods id")
		if err != nil {
			return err
		}
		paymentID, err := parseID(args[4], "payment id")
		if err != nil {
			return err
		}
		collateralID, err := parseID(args[5], "collateral id")
		if err != nil {
			return err
		}
		window, err := parseID(args[6], "repay window")
		if err != nil {
			return err
		}
		return callMethod("create_buy_offer", map[string]interface{}{
			"account":            args[0],
			"amount":             args[1],
			"goods_id":           goodsID,
			"rate":               args[3],
			"payment_id":         paymentID,
			"collateral_id":      collateralID,
			"repay_window_secs":  window,
			"collateral_to_debt": args[7],
			"liquidation":        args[8],
		})
	},
}

var acceptSaleOfferCmd = &cobra.Command{
	Use:   "accept_sale_offer <account> <offer_id> <collateral_id>",
	Short: "Accept a sale offer, choosing the collateral asset",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[1], "offer id")
		if err != nil {
			return err
		}
		collateralID, err := parseID(args[2], "collateral id")
		if err != nil {
			return err
		}
		return callMethod("accept_sale_offer", map[string]interface{}{
			"account":       args[0],
			"offer_id":      offerID,
			"collateral_id": collateralID,
		})
	},
}

var acceptBuyOfferCmd = &cobra.Command{
	Use:   "accept_buy_offer <account> <offer_id>",
	Short: "Accept a buy offer, delivering the goods",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[1], "offer id")
		if err != nil {
			return err
		}
		return callMethod("accept_buy_offer", map[string]interface{}{
			"account":  args[0],
			"offer_id": offerID,
		})
	},
}

var addCollateralCmd = &cobra.Command{
	Use:   "add_collateral <account> <sale|buy> <offer_id> <amount>",
	Short: "Top up an accepted offer's collateral",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[2], "offer id")
		if err != nil {
			return err
		}
		return callMethod("add_collateral", map[string]interface{}{
			"account":  args[0],
			"variant":  args[1],
			"offer_id": offerID,
			"amount":   args[3],
		})
	},
}

var repayCmd = &cobra.Command{
	Use:   "repay <account> <sale|buy> <offer_id> [amount]",
	Short: "Repay debt; omit the amount to repay in full",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[2], "offer id")
		if err != nil {
			return err
		}
		params := map[string]interface{}{
			"account":  args[0],
			"variant":  args[1],
			"offer_id": offerID,
		}
		if len(args) == 4 {
			params["amount"] = args[3]
		}
		return callMethod("repay", params)
	},
}

var cancelOfferCmd = &cobra.Command{
	Use:   "cancel_offer <account> <sale|buy> <offer_id>",
	Short: "Cancel a pending offer and reclaim the escrow",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[2], "offer id")
		if err != nil {
			return err
		}
		return callMethod("cancel_offer", map[string]interface{}{
			"account":  args[0],
			"variant":  args[1],
			"offer_id": offerID,
		})
	},
}

var liquidateCmd = &cobra.Command{
	Use:   "liquidate <account> <sale|buy> <offer_id>",
	Short: "Liquidate an expired or undercollateralized offer",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[2], "offer id")
		if err != nil {
			return err
		}
		return callMethod("liquidate", map[string]interface{}{
			"account":  args[0],
			"variant":  args[1],
			"offer_id": offerID,
		})
	},
}

var getSaleOfferCmd = &cobra.Command{
	Use:   "get_sale_offer <offer_id>",
	Short: "Show a sale offer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[0], "offer id")
		if err != nil {
			return err
		}
		return callMethod("get_sale_offer", map[string]interface{}{"offer_id": offerID})
	},
}

var getBuyOfferCmd = &cobra.Command{
	Use:   "get_buy_offer <offer_id>",
	Short: "Show a buy offer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := parseID(args[0], "offer id")
		if err != nil {
			return err
		}
		return callMethod("get_buy_offer", map[string]interface{}{"offer_id": offerID})
	},
}

var claimableCmd = &cobra.Command{
	Use:   "claimable <account> <asset_id>",
	Short: "Show an account's accrued dividends for an asset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		assetID, err := parseID(args[1], "asset id")
		if err != nil {
			return err
		}
		return callMethod("claimable", map[string]interface{}{
			"account":  args[0],
			"asset_id": assetID,
		})
	},
}

var collectDividendsCmd = &cobra.Command{
	Use:   "collect_dividends <account> <asset_id>",
	Short: "Pay out an account's accrued dividends",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		assetID, err := parseID(args[1], "asset id")
		if err != nil {
			return err
		}
		return callMethod("collect_dividends", map[string]interface{}{
			"account":  args[0],
			"asset_id": assetID,
		})
	},
}

// Generic JSON command for any method.
var jsonCmd = &cobra.Command{
	Use:   "json <method> <json_params>",
	Short: "Execute any RPC method with JSON parameters",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params interface{}
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			return fmt.Errorf("invalid JSON parameters: %w", err)
		}
		return callMethod(args[0], params)
	},
}

func init() {
	rpcCmd.AddCommand(
		serverInfoCmd,
		createSaleOfferCmd,
		createBuyOfferCmd,
		acceptSaleOfferCmd,
		acceptBuyOfferCmd,
		addCollateralCmd,
		repayCmd,
		cancelOfferCmd,
		liquidateCmd,
		getSaleOfferCmd,
		getBuyOfferCmd,
		claimableCmd,
		collectDividendsCmd,
		jsonCmd,
	)
}
