package knxip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"github.com/backkem/knxip/pkg/telegram"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DIBType is the description type code of a description information block.
type DIBType uint8

const (
	DIBDeviceInfo               DIBType = 0x01
	DIBSupportedServiceFamilies DIBType = 0x02
	DIBIPConfig                 DIBType = 0x03
	DIBIPCurrentConfig          DIBType = 0x04
	DIBKNXAddresses             DIBType = 0x05
	DIBSecuredServiceFamilies   DIBType = 0x06
	DIBTunnellingInfo           DIBType = 0x07
	DIBExtendedDeviceInfo       DIBType = 0x08
	DIBManufacturerData         DIBType = 0xFE
)

func (t DIBType) String() string {
	switch t {
	case DIBDeviceInfo:
		return "DEVICE_INFO"
	case DIBSupportedServiceFamilies:
		return "SUPP_SVC_FAMILIES"
	case DIBIPConfig:
		return "IP_CONFIG"
	case DIBIPCurrentConfig:
		return "IP_CUR_CONFIG"
	case DIBKNXAddresses:
		return "KNX_ADDRESSES"
	case DIBSecuredServiceFamilies:
		return "SECURED_SERVICE_FAMILIES"
	case DIBTunnellingInfo:
		return "TUNNELING_INFO"
	case DIBExtendedDeviceInfo:
		return "EXTENDED_DEVICE_INFO"
	case DIBManufacturerData:
		return "MFR_DATA"
	default:
		return fmt.Sprintf("DIBType(%#02x)", uint8(t))
	}
}

// DIB is a description information block. Size includes the 2 byte
// length/type header.
type DIB interface {
	Type() DIBType
	Size() int
	EncodeTo(buf []byte) int
	Decode(data []byte) error
}

// DecodeDIBs parses consecutive DIBs until data is exhausted.
func DecodeDIBs(data []byte) ([]DIB, error) {
	var dibs []DIB
	for len(data) > 0 {
		dib, n, err := decodeDIB(data)
		if err != nil {
			return nil, err
		}
		dibs = append(dibs, dib)
		data = data[n:]
	}
	return dibs, nil
}

func decodeDIB(data []byte) (DIB, int, error) {
	if len(data) < 2 {
		return nil, 0, parseError("DIB header needs 2 bytes, got %d", len(data))
	}
	n := int(data[0])
	if n < 2 || n%2 != 0 || n > len(data) {
		return nil, 0, parseError("DIB length %d with %d bytes remaining", n, len(data))
	}
	var dib DIB
	switch DIBType(data[1]) {
	case DIBDeviceInfo:
		dib = &DeviceInfo{}
	case DIBSupportedServiceFamilies:
		dib = &ServiceFamilies{}
	case DIBSecuredServiceFamilies:
		dib = &ServiceFamilies{Secured: true}
	case DIBIPConfig:
		dib = &IPConfig{}
	case DIBIPCurrentConfig:
		dib = &IPCurrentConfig{}
	case DIBKNXAddresses:
		dib = &KNXAddresses{}
	case DIBTunnellingInfo:
		dib = &TunnellingInfo{}
	case DIBExtendedDeviceInfo:
		dib = &ExtendedDeviceInfo{}
	default:
		dib = &GenericDIB{}
	}
	if err := dib.Decode(data[:n]); err != nil {
		return nil, 0, err
	}
	return dib, n, nil
}

func dibsSize(dibs []DIB) int {
	n := 0
	for _, d := range dibs {
		n += d.Size()
	}
	return n
}

func encodeDIBs(buf []byte, dibs []DIB) int {
	off := 0
	for _, d := range dibs {
		off += d.EncodeTo(buf[off:])
	}
	return off
}

func checkDIB(data []byte, t DIBType, size int) error {
	if len(data) < 2 || DIBType(data[1]) != t {
		return parseError("not a %v DIB", t)
	}
	if int(data[0]) != size || len(data) < size {
		return parseError("%v DIB length %d, want %d", t, data[0], size)
	}
	return nil
}

// FriendlyNameLength is the size of the device name field.
const FriendlyNameLength = 30

const deviceInfoSize = 0x36

// DeviceInfo describes a KNXnet/IP device.
type DeviceInfo struct {
	Medium             Medium
	ProgrammingMode    bool
	IndividualAddress  telegram.IndividualAddress
	ProjectNumber      uint16
	InstallationNumber uint8
	SerialNumber       SerialNumber
	MulticastAddress   netip.Addr
	MACAddress         [6]byte
	// FriendlyName is stored latin-1 encoded, NUL padded to 30 bytes.
	FriendlyName string
}

func (d *DeviceInfo) Type() DIBType { return DIBDeviceInfo }
func (d *DeviceInfo) Size() int     { return deviceInfoSize }

func (d *DeviceInfo) EncodeTo(buf []byte) int {
	clear(buf[:deviceInfoSize])
	buf[0] = deviceInfoSize
	buf[1] = byte(DIBDeviceInfo)
	buf[2] = byte(d.Medium)
	if d.ProgrammingMode {
		buf[3] = 0x01
	}
	binary.BigEndian.PutUint16(buf[4:], d.IndividualAddress.Raw())
	binary.BigEndian.PutUint16(buf[6:], d.ProjectNumber<<4|uint16(d.InstallationNumber&0x0F))
	copy(buf[8:14], d.SerialNumber[:])
	mc := ipv4(d.MulticastAddress)
	copy(buf[14:18], mc[:])
	copy(buf[18:24], d.MACAddress[:])
	name, _ := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(d.FriendlyName))
	if len(name) > FriendlyNameLength {
		name = name[:FriendlyNameLength]
	}
	copy(buf[24:54], name)
	return deviceInfoSize
}

func (d *DeviceInfo) Decode(data []byte) error {
	if err := checkDIB(data, DIBDeviceInfo, deviceInfoSize); err != nil {
		return err
	}
	d.Medium = Medium(data[2])
	d.ProgrammingMode = data[3]&0x01 != 0
	d.IndividualAddress = telegram.IndividualAddress(binary.BigEndian.Uint16(data[4:]))
	id := binary.BigEndian.Uint16(data[6:])
	d.ProjectNumber = id >> 4
	d.InstallationNumber = uint8(id & 0x0F)
	copy(d.SerialNumber[:], data[8:14])
	d.MulticastAddress = decodeIPv4(data[14:18])
	copy(d.MACAddress[:], data[18:24])
	name := data[24:54]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(name)
	if err != nil {
		return parseError("friendly name: %v", err)
	}
	d.FriendlyName = string(decoded)
	return nil
}

// FamilyVersion is one entry of a service family DIB.
type FamilyVersion struct {
	Family  ServiceFamily
	Version uint8
}

// ServiceFamilies lists supported service families, or the secured ones
// when Secured is set.
type ServiceFamilies struct {
	Secured  bool
	Families []FamilyVersion
}

func (s *ServiceFamilies) Type() DIBType {
	if s.Secured {
		return DIBSecuredServiceFamilies
	}
	return DIBSupportedServiceFamilies
}

func (s *ServiceFamilies) Size() int { return 2 + 2*len(s.Families) }

// Supports reports whether family is listed with at least the given
// version.
func (s *ServiceFamilies) Supports(family ServiceFamily, version uint8) bool {
	for _, f := range s.Families {
		if f.Family == family && f.Version >= version {
			return true
		}
	}
	return false
}

func (s *ServiceFamilies) EncodeTo(buf []byte) int {
	buf[0] = byte(s.Size())
	buf[1] = byte(s.Type())
	off := 2
	for _, f := range s.Families {
		buf[off] = byte(f.Family)
		buf[off+1] = f.Version
		off += 2
	}
	return off
}

func (s *ServiceFamilies) Decode(data []byte) error {
	if len(data) < 2 || DIBType(data[1]) != s.Type() {
		return parseError("not a %v DIB", s.Type())
	}
	n := int(data[0])
	if n%2 != 0 || n > len(data) {
		return parseError("%v DIB length %d", s.Type(), n)
	}
	s.Families = s.Families[:0]
	for off := 2; off < n; off += 2 {
		s.Families = append(s.Families, FamilyVersion{Family: ServiceFamily(data[off]), Version: data[off+1]})
	}
	return nil
}

const ipConfigSize = 16

// IPConfig is the configured IP setup of a device.
type IPConfig struct {
	IP               netip.Addr
	SubnetMask       netip.Addr
	Gateway          netip.Addr
	Capabilities     uint8
	AssignmentMethod uint8
}

func (c *IPConfig) Type() DIBType { return DIBIPConfig }
func (c *IPConfig) Size() int     { return ipConfigSize }

func (c *IPConfig) EncodeTo(buf []byte) int {
	buf[0] = ipConfigSize
	buf[1] = byte(DIBIPConfig)
	putIPv4s(buf[2:], c.IP, c.SubnetMask, c.Gateway)
	buf[14] = c.Capabilities
	buf[15] = c.AssignmentMethod
	return ipConfigSize
}

func (c *IPConfig) Decode(data []byte) error {
	if err := checkDIB(data, DIBIPConfig, ipConfigSize); err != nil {
		return err
	}
	c.IP = decodeIPv4(data[2:])
	c.SubnetMask = decodeIPv4(data[6:])
	c.Gateway = decodeIPv4(data[10:])
	c.Capabilities = data[14]
	c.AssignmentMethod = data[15]
	return nil
}

const ipCurrentConfigSize = 20

// IPCurrentConfig is the IP setup a device currently uses.
type IPCurrentConfig struct {
	IP               netip.Addr
	SubnetMask       netip.Addr
	Gateway          netip.Addr
	DHCPServer       netip.Addr
	AssignmentMethod uint8
}

func (c *IPCurrentConfig) Type() DIBType { return DIBIPCurrentConfig }
func (c *IPCurrentConfig) Size() int     { return ipCurrentConfigSize }

func (c *IPCurrentConfig) EncodeTo(buf []byte) int {
	buf[0] = ipCurrentConfigSize
	buf[1] = byte(DIBIPCurrentConfig)
	putIPv4s(buf[2:], c.IP, c.SubnetMask, c.Gateway, c.DHCPServer)
	buf[18] = c.AssignmentMethod
	buf[19] = 0
	return ipCurrentConfigSize
}

func (c *IPCurrentConfig) Decode(data []byte) error {
	if err := checkDIB(data, DIBIPCurrentConfig, ipCurrentConfigSize); err != nil {
		return err
	}
	c.IP = decodeIPv4(data[2:])
	c.SubnetMask = decodeIPv4(data[6:])
	c.Gateway = decodeIPv4(data[10:])
	c.DHCPServer = decodeIPv4(data[14:])
	c.AssignmentMethod = data[18]
	return nil
}

func putIPv4s(buf []byte, addrs ...netip.Addr) {
	for i, a := range addrs {
		b := ipv4(a)
		copy(buf[i*4:], b[:])
	}
}

// KNXAddresses lists the individual addresses of a device, its own first.
type KNXAddresses struct {
	Addresses []telegram.IndividualAddress
}

func (k *KNXAddresses) Type() DIBType { return DIBKNXAddresses }
func (k *KNXAddresses) Size() int     { return 2 + 2*len(k.Addresses) }

func (k *KNXAddresses) EncodeTo(buf []byte) int {
	buf[0] = byte(k.Size())
	buf[1] = byte(DIBKNXAddresses)
	off := 2
	for _, a := range k.Addresses {
		binary.BigEndian.PutUint16(buf[off:], a.Raw())
		off += 2
	}
	return off
}

func (k *KNXAddresses) Decode(data []byte) error {
	if len(data) < 4 || DIBType(data[1]) != DIBKNXAddresses || int(data[0]) > len(data) || data[0]%2 != 0 {
		return parseError("malformed %v DIB", DIBKNXAddresses)
	}
	k.Addresses = k.Addresses[:0]
	for off := 2; off < int(data[0]); off += 2 {
		k.Addresses = append(k.Addresses, telegram.IndividualAddress(binary.BigEndian.Uint16(data[off:])))
	}
	return nil
}

// Tunnelling slot status flags.
const (
	SlotFree       uint16 = 0x0001
	SlotAuthorised uint16 = 0x0002
	SlotUsable     uint16 = 0x0004
)

// TunnelSlot is one tunnelling address of a TunnellingInfo DIB.
type TunnelSlot struct {
	Address telegram.IndividualAddress
	Status  uint16
}

// Available reports whether the slot can be connected to.
func (s TunnelSlot) Available() bool {
	return s.Status&SlotFree != 0 && s.Status&SlotUsable != 0
}

// TunnellingInfo lists the tunnelling slots of a server.
type TunnellingInfo struct {
	MaxAPDULength uint16
	Slots         []TunnelSlot
}

func (t *TunnellingInfo) Type() DIBType { return DIBTunnellingInfo }
func (t *TunnellingInfo) Size() int     { return 4 + 4*len(t.Slots) }

func (t *TunnellingInfo) EncodeTo(buf []byte) int {
	buf[0] = byte(t.Size())
	buf[1] = byte(DIBTunnellingInfo)
	binary.BigEndian.PutUint16(buf[2:], t.MaxAPDULength)
	off := 4
	for _, s := range t.Slots {
		binary.BigEndian.PutUint16(buf[off:], s.Address.Raw())
		binary.BigEndian.PutUint16(buf[off+2:], s.Status)
		off += 4
	}
	return off
}

func (t *TunnellingInfo) Decode(data []byte) error {
	if len(data) < 4 || DIBType(data[1]) != DIBTunnellingInfo {
		return parseError("malformed %v DIB", DIBTunnellingInfo)
	}
	n := int(data[0])
	if n > len(data) || (n-4)%4 != 0 {
		return parseError("%v DIB length %d", DIBTunnellingInfo, n)
	}
	t.MaxAPDULength = binary.BigEndian.Uint16(data[2:])
	t.Slots = t.Slots[:0]
	for off := 4; off < n; off += 4 {
		t.Slots = append(t.Slots, TunnelSlot{
			Address: telegram.IndividualAddress(binary.BigEndian.Uint16(data[off:])),
			Status:  binary.BigEndian.Uint16(data[off+2:]),
		})
	}
	return nil
}

const extendedDeviceInfoSize = 8

// ExtendedDeviceInfo carries the medium status and device descriptor.
type ExtendedDeviceInfo struct {
	MediumStatus     uint8
	MaxAPDULength    uint16
	DeviceDescriptor uint16
}

func (e *ExtendedDeviceInfo) Type() DIBType { return DIBExtendedDeviceInfo }
func (e *ExtendedDeviceInfo) Size() int     { return extendedDeviceInfoSize }

func (e *ExtendedDeviceInfo) EncodeTo(buf []byte) int {
	buf[0] = extendedDeviceInfoSize
	buf[1] = byte(DIBExtendedDeviceInfo)
	buf[2] = e.MediumStatus
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:], e.MaxAPDULength)
	binary.BigEndian.PutUint16(buf[6:], e.DeviceDescriptor)
	return extendedDeviceInfoSize
}

func (e *ExtendedDeviceInfo) Decode(data []byte) error {
	if err := checkDIB(data, DIBExtendedDeviceInfo, extendedDeviceInfoSize); err != nil {
		return err
	}
	e.MediumStatus = data[2]
	e.MaxAPDULength = binary.BigEndian.Uint16(data[4:])
	e.DeviceDescriptor = binary.BigEndian.Uint16(data[6:])
	return nil
}

// GenericDIB keeps any other DIB as raw data.
type GenericDIB struct {
	DIBType DIBType
	// Data excludes the 2 byte header.
	Data []byte
}

func (g *GenericDIB) Type() DIBType { return g.DIBType }
func (g *GenericDIB) Size() int     { return 2 + len(g.Data) }

func (g *GenericDIB) EncodeTo(buf []byte) int {
	buf[0] = byte(g.Size())
	buf[1] = byte(g.DIBType)
	return 2 + copy(buf[2:], g.Data)
}

func (g *GenericDIB) Decode(data []byte) error {
	if len(data) < 2 || int(data[0]) > len(data) {
		return parseError("malformed DIB")
	}
	g.DIBType = DIBType(data[1])
	g.Data = append([]byte(nil), data[2:data[0]]...)
	return nil
}

// FindDIB returns the first DIB of type T in dibs.
func FindDIB[T DIB](dibs []DIB) (T, bool) {
	for _, d := range dibs {
		if v, ok := d.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func dibsString(dibs []DIB) string {
	parts := make([]string, len(dibs))
	for i, d := range dibs {
		parts[i] = d.Type().String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
