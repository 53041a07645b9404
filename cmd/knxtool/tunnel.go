package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/knxip/pkg/capture"
	"github.com/backkem/knxip/pkg/dpt"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/backkem/knxip/pkg/telegram"
	"github.com/backkem/knxip/pkg/tunnel"
	"github.com/spf13/cobra"
)

var readTimeout time.Duration

var tunnelCmd = &cobra.Command{
	Use:   "tunnel",
	Short: "Talk to the bus through a KNXnet/IP tunnelling server",
	Long: `Talk to the bus through a KNXnet/IP tunnelling server over TCP.

The gateway address comes from the configuration. Secure tunnelling is
used when secure.user_password is set.`,
}

var tunnelWriteCmd = &cobra.Command{
	Use:     "write <group> <dpt> <value>",
	Short:   "Send a GroupValueWrite",
	Example: `  knxtool tunnel write 1/2/3 switch true`,
	Args:    cobra.ExactArgs(3),
	RunE:    runTunnelWrite,
}

var tunnelReadCmd = &cobra.Command{
	Use:     "read <group> [dpt]",
	Short:   "Send a GroupValueRead and print the response",
	Example: `  knxtool tunnel read 1/2/4 temperature`,
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runTunnelRead,
}

var tunnelMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print group telegrams until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runTunnelMonitor,
}

func init() {
	tunnelReadCmd.Flags().DurationVar(&readTimeout, "timeout", 3*time.Second, "How long to wait for the response")
	tunnelCmd.AddCommand(tunnelWriteCmd, tunnelReadCmd, tunnelMonitorCmd)
	rootCmd.AddCommand(tunnelCmd)
}

// openTunnel connects to the configured gateway. The returned function
// disconnects and releases the capture file.
func openTunnel(ctx context.Context, handler tunnel.TelegramHandler) (*tunnel.Client, func(), error) {
	if cfg.Gateway.Address == "" {
		return nil, nil, errors.New("gateway.address not configured")
	}

	var session *secure.Session
	if cfg.Secure.UserPassword != "" {
		sc, err := cfg.SessionConfig(loggerFactory)
		if err != nil {
			return nil, nil, err
		}
		if session, err = secure.NewSession(sc); err != nil {
			return nil, nil, err
		}
	}

	var (
		capLog capture.Logger
		file   *capture.FileCapture
	)
	if cfg.Capture.Path != "" {
		var err error
		if file, err = capture.NewFileCapture(cfg.Capture.Path); err != nil {
			return nil, nil, err
		}
		capLog = file
	}
	closeFile := func() {
		if file != nil {
			_ = file.Close()
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Gateway.Addr())
	if err != nil {
		closeFile()
		return nil, nil, err
	}

	client, err := tunnel.NewClient(tunnel.Config{
		Conn:            conn,
		Secure:          session,
		TelegramHandler: handler,
		Capture:         capLog,
		LoggerFactory:   loggerFactory,
	})
	if err != nil {
		_ = conn.Close()
		closeFile()
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		_ = client.Close(ctx)
		closeFile()
		return nil, nil, err
	}
	log.Infof("connected to %s as %v", cfg.Gateway.Addr(), client.IndividualAddress())

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), tunnel.DefaultResponseTimeout)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			log.Warnf("close: %v", err)
		}
		closeFile()
	}
	return client, cleanup, nil
}

func runTunnelWrite(cmd *cobra.Command, args []string) error {
	ga, err := telegram.ParseGroupAddress(args[0])
	if err != nil {
		return err
	}
	tc, err := lookupDPT(args[1])
	if err != nil {
		return err
	}
	p, err := tc.ToKNX(parseValue(args[2]))
	if err != nil {
		return err
	}

	client, cleanup, err := openTunnel(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer cleanup()
	return client.Send(cmd.Context(), telegram.GroupWrite(ga, p))
}

func runTunnelRead(cmd *cobra.Command, args []string) error {
	ga, err := telegram.ParseGroupAddress(args[0])
	if err != nil {
		return err
	}
	var tc dpt.Transcoder
	if len(args) == 2 {
		if tc, err = lookupDPT(args[1]); err != nil {
			return err
		}
	}

	responses := make(chan telegram.Telegram, 1)
	handler := func(t telegram.Telegram) {
		if t.APCI != telegram.GroupValueResponse || t.Destination == nil || t.Destination.Raw() != ga.Raw() {
			return
		}
		select {
		case responses <- t:
		default:
		}
	}

	client, cleanup, err := openTunnel(cmd.Context(), handler)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Send(cmd.Context(), telegram.GroupRead(ga)); err != nil {
		return err
	}
	select {
	case t := <-responses:
		fmt.Fprintln(cmd.OutOrStdout(), formatTelegram(t, tc))
		return nil
	case <-time.After(readTimeout):
		return fmt.Errorf("no response from %v", ga)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}

func runTunnelMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	client, cleanup, err := openTunnel(ctx, func(t telegram.Telegram) {
		fmt.Fprintln(out, formatTelegram(t, nil))
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ticker := time.NewTicker(cfg.Secure.Keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Disconnected():
			return errors.New("tunnel closed by server")
		case <-ticker.C:
			if err := client.Heartbeat(ctx); err != nil {
				return err
			}
		}
	}
}

// formatTelegram prints t, decoding its payload when tc is given.
func formatTelegram(t telegram.Telegram, tc dpt.Transcoder) string {
	s := fmt.Sprintf("%s %v", time.Now().Format("15:04:05.000"), t)
	if tc == nil || t.Payload == nil {
		return s
	}
	v, err := tc.FromKNX(t.Payload)
	if err != nil {
		return fmt.Sprintf("%s (%v)", s, err)
	}
	return fmt.Sprintf("%s = %v %s", s, v, tc.Descriptor().Unit)
}
