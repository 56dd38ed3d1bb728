package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"promptbuilder/internal/gateway/handler/rpc"
)

var (
	serverURL    string
	outputFormat string
	timeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "promptctl",
	Short: "Command line client for the prompt builder gateway",
	Long: `promptctl calls a running prompt builder gateway.

Examples:
  promptctl categories
  promptctl compose --select hair=h1 --select bags=__remove__ --keep-face
  promptctl refine "Change the hair to braided hair."
  promptctl taxonomy list
  promptctl settings set --url https://script.google.com/... --key secret`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8081", "gateway URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		switch outputFormat {
		case "yaml", "json":
			return nil
		}
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

// unary calls one procedure on the gateway.
func unary[Req, Res any](ctx context.Context, procedure string, msg *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](
		&http.Client{Timeout: timeout},
		strings.TrimRight(serverURL, "/")+procedure,
		rpc.ClientOptions()...,
	)
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// output prints data using the json field names in either format.
func output(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		var buf any
		if err := json.Unmarshal(raw, &buf); err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(buf)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(doc)
}
