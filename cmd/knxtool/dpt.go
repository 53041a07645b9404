package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/backkem/knxip/pkg/dpt"
	"github.com/spf13/cobra"
)

var dptCmd = &cobra.Command{
	Use:   "dpt",
	Short: "Convert datapoint values",
}

var dptEncodeCmd = &cobra.Command{
	Use:   "encode <type> <value>",
	Short: "Encode a value to its KNX payload",
	Example: `  knxtool dpt encode temperature 21.5
  knxtool dpt encode 1.001 true
  knxtool dpt encode DPT-16.000 "KNX is OK"`,
	Args: cobra.ExactArgs(2),
	RunE: runDPTEncode,
}

var dptDecodeCmd = &cobra.Command{
	Use:   "decode <type> <hex>",
	Short: "Decode a KNX payload",
	Example: `  knxtool dpt decode 9.001 0c1a
  knxtool dpt decode switch 01`,
	Args: cobra.ExactArgs(2),
	RunE: runDPTDecode,
}

var dptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported datapoint types",
	Args:  cobra.NoArgs,
	RunE:  runDPTList,
}

func init() {
	dptCmd.AddCommand(dptEncodeCmd, dptDecodeCmd, dptListCmd)
	rootCmd.AddCommand(dptCmd)
}

func lookupDPT(key string) (dpt.Transcoder, error) {
	tc, ok := dpt.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("unknown DPT %q", key)
	}
	return tc, nil
}

// parseValue turns a command line argument into the value type the
// transcoders accept: bool, int64, float64 or string.
func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatPayload(p dpt.Payload) string {
	switch p := p.(type) {
	case dpt.Bit:
		return fmt.Sprintf("%02x", uint8(p))
	case dpt.Array:
		return fmt.Sprintf("%x", []byte(p))
	}
	return fmt.Sprint(p)
}

// payloadFromHex interprets data according to the DPT's payload kind.
func payloadFromHex(tc dpt.Transcoder, s string) (dpt.Payload, error) {
	data, err := parseHex(s)
	if err != nil {
		return nil, err
	}
	if tc.Descriptor().Kind == dpt.KindBit {
		if len(data) != 1 {
			return nil, fmt.Errorf("%s expects a single byte", tc.Descriptor())
		}
		return dpt.NewBit(data[0]), nil
	}
	return dpt.Array(data), nil
}

func runDPTEncode(cmd *cobra.Command, args []string) error {
	tc, err := lookupDPT(args[0])
	if err != nil {
		return err
	}
	p, err := tc.ToKNX(parseValue(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatPayload(p))
	return nil
}

func runDPTDecode(cmd *cobra.Command, args []string) error {
	tc, err := lookupDPT(args[0])
	if err != nil {
		return err
	}
	p, err := payloadFromHex(tc, args[1])
	if err != nil {
		return err
	}
	v, err := tc.FromKNX(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(fmt.Sprintf("%v %s", v, tc.Descriptor().Unit)))
	return nil
}

func runDPTList(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tVALUE TYPE\tPAYLOAD\tUNIT")
	for _, tc := range dpt.All() {
		d := tc.Descriptor()
		size := fmt.Sprintf("%d bytes", d.PayloadLength)
		if d.Kind == dpt.KindBit {
			size = fmt.Sprintf("%d bits", d.PayloadLength)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Number(), d.ValueType, size, d.Unit)
	}
	return w.Flush()
}
