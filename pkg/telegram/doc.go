// Package telegram models KNX telegrams: addresses, the transport layer
// control field (TPCI) and the application layer service (APCI) with its
// payload.
package telegram
