package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/backkem/knxip/pkg/discovery"
	"github.com/backkem/knxip/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	searchTimeout         time.Duration
	searchProgrammingMode bool
	searchMAC             string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Discover KNXnet/IP devices",
	Long: `Send a SEARCH_REQUEST to the KNXnet/IP multicast group and print the
devices that answer. --programming-mode and --mac send a
SEARCH_REQUEST_EXTENDED instead.`,
	Example: `  knxtool search
  knxtool search --timeout 5s
  knxtool search --programming-mode
  knxtool search --mac 00:24:6d:01:02:03`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", discovery.DefaultBrowseTimeout, "How long to wait for responses")
	searchCmd.Flags().BoolVar(&searchProgrammingMode, "programming-mode", false, "Only find devices in programming mode")
	searchCmd.Flags().StringVar(&searchMAC, "mac", "", "Find the device with this MAC address")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	group, err := transport.UDPAddrFromString(cfg.Routing.MulticastGroup)
	if err != nil {
		return err
	}

	// Without a local address the response is routed back to the
	// request's source.
	config := discovery.ResolverConfig{
		Group:         group.Addr,
		BrowseTimeout: searchTimeout,
		LookupTimeout: searchTimeout,
		LoggerFactory: loggerFactory,
	}
	if cfg.Gateway.LocalAddress != "" {
		config.ListenAddr = net.JoinHostPort(cfg.Gateway.LocalAddress, "0")
	}
	r, err := discovery.NewResolver(config)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Searching on %v (timeout: %v)...\n\n", group.Addr, searchTimeout)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if searchMAC != "" {
		mac, err := net.ParseMAC(searchMAC)
		if err != nil {
			return err
		}
		g, err := r.Lookup(ctx, mac)
		if err != nil {
			return err
		}
		printGateway(out, 1, g)
		return nil
	}

	var gateways <-chan discovery.Gateway
	if searchProgrammingMode {
		gateways, err = r.BrowseProgrammingMode(ctx)
	} else {
		gateways, err = r.Browse(ctx)
	}
	if err != nil {
		return err
	}

	found := 0
	for g := range gateways {
		found++
		printGateway(out, found, &g)
	}
	if found == 0 {
		fmt.Fprintln(out, "No KNXnet/IP devices found.")
	}
	return ctx.Err()
}

func printGateway(w io.Writer, n int, g *discovery.Gateway) {
	name := g.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "%d. %s\n", n, name)
	fmt.Fprintf(w, "   Control:  %v\n", g.Control)
	fmt.Fprintf(w, "   Address:  %v\n", g.IndividualAddress)
	fmt.Fprintf(w, "   Serial:   %v\n", g.SerialNumber)
	fmt.Fprintf(w, "   MAC:      %v\n", g.MACAddress)
	fmt.Fprintf(w, "   Routing:  %v\n", g.MulticastAddress)
	if g.ProgrammingMode {
		fmt.Fprintln(w, "   Programming mode")
	}
	if len(g.Services) > 0 {
		fmt.Fprint(w, "   Services:")
		for _, fv := range g.Services {
			fmt.Fprintf(w, " %v/%d", fv.Family, fv.Version)
		}
		fmt.Fprintln(w)
	}
	switch {
	case g.SecureTunnelling() && g.SecureRouting():
		fmt.Fprintln(w, "   Secure:   tunnelling, routing")
	case g.SecureTunnelling():
		fmt.Fprintln(w, "   Secure:   tunnelling")
	case g.SecureRouting():
		fmt.Fprintln(w, "   Secure:   routing")
	}
	fmt.Fprintln(w)
}
