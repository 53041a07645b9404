package main

import (
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"

	"github.com/backkem/knxip/pkg/cemi"
	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/backkem/knxip/pkg/telegram"
	"github.com/backkem/knxip/pkg/transport"
	"github.com/spf13/cobra"
)

var routingCmd = &cobra.Command{
	Use:   "routing",
	Short: "Use KNXnet/IP routing on the multicast group",
	Long: `Use KNXnet/IP routing on the configured multicast group.

Secure routing is used when secure.backbone_key is set.`,
}

var routingMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print routed telegrams until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRoutingMonitor,
}

var routingWriteCmd = &cobra.Command{
	Use:     "write <group> <dpt> <value>",
	Short:   "Send a GroupValueWrite as a routing indication",
	Example: `  knxtool routing write 1/2/3 percent 40`,
	Args:    cobra.ExactArgs(3),
	RunE:    runRoutingWrite,
}

func init() {
	routingCmd.AddCommand(routingMonitorCmd, routingWriteCmd)
	rootCmd.AddCommand(routingCmd)
}

// router is a routing endpoint, secure when group is set.
type router struct {
	udp   *transport.UDP
	addr  *net.UDPAddr
	group *secure.GroupContext
}

func openRouter(handler func(knxip.Frame)) (*router, error) {
	peer, err := transport.UDPAddrFromString(cfg.Routing.MulticastGroup)
	if err != nil {
		return nil, err
	}
	r := &router{addr: peer.Addr.(*net.UDPAddr)}

	if cfg.Secure.BackboneKey != "" {
		gc, err := cfg.GroupConfig(loggerFactory)
		if err != nil {
			return nil, err
		}
		if r.group, err = secure.NewGroupContext(gc); err != nil {
			return nil, err
		}
	}

	r.udp, err = transport.NewUDP(transport.UDPConfig{
		MulticastGroup: r.addr,
		FrameHandler:   func(rf *transport.ReceivedFrame) { r.receive(rf, handler) },
		LoggerFactory:  loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	if err := r.udp.Start(); err != nil {
		return nil, err
	}

	// A timer notify asks secure peers to share their timer value.
	if r.group != nil {
		tn, err := r.group.TimerNotify(0)
		if err != nil {
			r.close()
			return nil, err
		}
		if err := r.send(knxip.NewFrame(tn)); err != nil {
			r.close()
			return nil, err
		}
	}
	return r, nil
}

func (r *router) receive(rf *transport.ReceivedFrame, handler func(knxip.Frame)) {
	f, err := rf.Parse()
	if err != nil {
		log.Debugf("ignoring frame from %v: %v", rf.Peer, err)
		return
	}
	if r.group == nil {
		handler(f)
		return
	}

	switch b := f.Body.(type) {
	case *knxip.TimerNotify:
		if err := r.group.HandleTimerNotify(b); err != nil {
			log.Debugf("timer notify: %v", err)
		}
	case *knxip.SecureWrapper:
		inner, err := r.group.Unwrap(f)
		if err != nil {
			log.Warnf("dropping secure frame from %v: %v", rf.Peer, err)
			return
		}
		handler(inner)
	default:
		log.Debugf("ignoring plain %v on a secure group", f.Header.ServiceType)
	}
}

func (r *router) send(f knxip.Frame) error {
	if r.group != nil && f.Header.ServiceType != knxip.ServiceTimerNotify {
		wrapped, err := r.group.Wrap(f)
		if err != nil {
			return err
		}
		f = wrapped
	}
	return r.udp.SendFrame(f, r.addr)
}

func (r *router) close() {
	_ = r.udp.Stop()
}

func runRoutingMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	r, err := openRouter(func(f knxip.Frame) { printRouted(out, f) })
	if err != nil {
		return err
	}
	defer r.close()

	<-ctx.Done()
	return nil
}

func printRouted(w io.Writer, f knxip.Frame) {
	ind, ok := f.Body.(*knxip.RoutingIndication)
	if !ok {
		fmt.Fprintln(w, f)
		return
	}
	frame, err := cemi.Decode(ind.CEMI)
	if err != nil {
		if !cemi.IsUnsupported(err) {
			log.Warnf("routing indication: %v", err)
		}
		return
	}
	fmt.Fprintln(w, formatTelegram(frame.Telegram(), nil))
}

func runRoutingWrite(cmd *cobra.Command, args []string) error {
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
	data, err := cemi.FromTelegram(telegram.GroupWrite(ga, p), cemi.LDataInd).Encode()
	if err != nil {
		return err
	}

	r, err := openRouter(func(knxip.Frame) {})
	if err != nil {
		return err
	}
	defer r.close()
	return r.send(knxip.NewFrame(&knxip.RoutingIndication{CEMI: data}))
}
