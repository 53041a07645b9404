package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/backkem/knxip/pkg/capture"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/spf13/cobra"
)

var captureDecode bool

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Inspect CBOR frame captures",
}

var captureViewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Print the events of a capture file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaptureView,
}

func init() {
	captureViewCmd.Flags().BoolVar(&captureDecode, "decode", false, "Decode each frame")
	captureCmd.AddCommand(captureViewCmd)
	rootCmd.AddCommand(captureCmd)
}

func runCaptureView(cmd *cobra.Command, args []string) error {
	r, err := capture.NewReader(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, e)
		if !captureDecode || len(e.Data) == 0 {
			continue
		}
		f, _, err := knxip.Parse(e.Data)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  %v\n", f)
		if raw := cemiOf(f.Body); raw != nil {
			_ = printCEMI(out, raw, "  ")
		}
	}
}
