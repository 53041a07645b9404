package main

import (
	"fmt"
	"io"

	"github.com/backkem/knxip/pkg/cemi"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/spf13/cobra"
)

var decodeCEMIOnly bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode KNXnet/IP frames",
	Long: `Decode one or more concatenated KNXnet/IP frames given as hex.

cEMI frames carried in tunnelling and routing bodies are decoded as well.
With --cemi the input is a single raw cEMI frame.`,
	Example: `  knxtool decode 06100530001129 00bcd011590ade010081
  knxtool decode --cemi 1100bce000004808010081`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeCEMIOnly, "cemi", false, "Input is a raw cEMI frame")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHex(joinArgs(args))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if decodeCEMIOnly {
		return printCEMI(out, data, "")
	}

	frames, rest, err := knxip.ParseAll(data)
	for _, f := range frames {
		fmt.Fprintln(out, f)
		if raw := cemiOf(f.Body); raw != nil {
			_ = printCEMI(out, raw, "  ")
		}
	}
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		fmt.Fprintf(out, "incomplete frame: %d trailing bytes\n", len(rest))
	}
	return nil
}

// cemiOf returns the cEMI frame carried by b, if any.
func cemiOf(b knxip.Body) []byte {
	switch b := b.(type) {
	case *knxip.TunnellingRequest:
		return b.CEMI
	case *knxip.DeviceConfigurationRequest:
		return b.CEMI
	case *knxip.RoutingIndication:
		return b.CEMI
	case *knxip.RoutingSystemBroadcast:
		return b.CEMI
	}
	return nil
}

func printCEMI(w io.Writer, raw []byte, indent string) error {
	f, err := cemi.Decode(raw)
	if err != nil {
		fmt.Fprintf(w, "%scEMI: %v\n", indent, err)
		return err
	}
	fmt.Fprintf(w, "%s%v\n", indent, f)
	fmt.Fprintf(w, "%s%v\n", indent, f.Telegram())
	return nil
}
