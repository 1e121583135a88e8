package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/maximumG/piapi-go/pkg/piapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newClient builds a piapi client from the resolved configuration.
func newClient() (*piapi.Client, error) {
	host := viper.GetString("host")
	username := viper.GetString("username")
	if host == "" || username == "" {
		return nil, fmt.Errorf("host and username are required (flags, config file, or PIAPI_* env)")
	}

	cfg := piapi.DefaultConfig(host, username, viper.GetString("password"))
	cfg.VerifyTLS = !viper.GetBool("insecure")
	cfg.VirtualDomain = viper.GetString("virtual-domain")
	if pageSize := viper.GetInt("page-size"); pageSize > 0 {
		cfg.PageSize = pageSize
	}
	if concurrency := viper.GetInt("concurrency"); concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	if hold := viper.GetDuration("hold"); hold > 0 {
		cfg.Hold = hold
	}
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		cfg.RequestTimeout = timeout
	}
	cfg.CheckCache = !viper.GetBool("no-cache")

	return piapi.New(cfg)
}

// parseParams converts key=value arguments to request parameters.
func parseParams(args []string) (piapi.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(piapi.Params, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}

// printJSON pretty-prints a JSON value to stdout.
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newResourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List data and service resources exposed by the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			data, err := client.DataResources(cmd.Context())
			if err != nil {
				return err
			}
			services, err := client.ServiceResources(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(map[string][]string{
				"data":    data,
				"service": services,
			})
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> [key=value...]",
		Short: "Bulk-fetch a data resource",
		Long: `Fetch every record of a data resource. The record count is probed
first, then pages are retrieved in paced, concurrent chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			entities, err := client.RequestData(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printJSON(entities)
		},
	}
}

func newCallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <service> [key=value...]",
		Short: "Invoke a service resource",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			result, err := client.RequestService(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printJSON(json.RawMessage(result))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pi-query version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pi-query", version)
		},
	}
}
