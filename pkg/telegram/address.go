package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a telegram destination: a GroupAddress or an IndividualAddress.
type Address interface {
	Raw() uint16
	IsGroup() bool
	String() string
}

// IndividualAddress identifies a device as area.line.device (4/4/8 bits).
type IndividualAddress uint16

// Individual address limits.
const (
	MaxArea   = 15
	MaxLine   = 15
	MaxDevice = 255
)

// NewIndividualAddress builds an address from its parts.
func NewIndividualAddress(area, line, device uint8) (IndividualAddress, error) {
	if area > MaxArea || line > MaxLine {
		return 0, fmt.Errorf("%w: %d.%d.%d", ErrCouldNotParseAddress, area, line, device)
	}
	return IndividualAddress(uint16(area)<<12 | uint16(line)<<8 | uint16(device)), nil
}

// ParseIndividualAddress parses "1.1.89" (or "1/1/89") and raw integers.
func ParseIndividualAddress(s string) (IndividualAddress, error) {
	s = strings.TrimSpace(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '/' })
	switch len(parts) {
	case 1:
		if strings.ContainsAny(s, "./") {
			break
		}
		n, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			break
		}
		return IndividualAddress(n), nil
	case 3:
		if strings.Count(s, ".")+strings.Count(s, "/") != 2 {
			break
		}
		area, err1 := strconv.ParseUint(parts[0], 10, 8)
		line, err2 := strconv.ParseUint(parts[1], 10, 8)
		device, err3 := strconv.ParseUint(parts[2], 10, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			break
		}
		return NewIndividualAddress(uint8(area), uint8(line), uint8(device))
	}
	return 0, fmt.Errorf("%w: %q", ErrCouldNotParseAddress, s)
}

// MustParseIndividualAddress is ParseIndividualAddress for constants. It panics on error.
func MustParseIndividualAddress(s string) IndividualAddress {
	a, err := ParseIndividualAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Raw returns the 16-bit wire value.
func (a IndividualAddress) Raw() uint16 { return uint16(a) }

// IsGroup implements Address.
func (IndividualAddress) IsGroup() bool { return false }

// Area returns the area number.
func (a IndividualAddress) Area() uint8 { return uint8(a >> 12) }

// Line returns the line number.
func (a IndividualAddress) Line() uint8 { return uint8(a>>8) & MaxLine }

// Device returns the device number. Zero addresses a line coupler.
func (a IndividualAddress) Device() uint8 { return uint8(a) }

// IsDevice reports whether a addresses a device rather than a line.
func (a IndividualAddress) IsDevice() bool { return a.Device() != 0 }

func (a IndividualAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Area(), a.Line(), a.Device())
}

// GroupAddressStyle selects how group addresses are rendered.
type GroupAddressStyle uint8

// Group address styles.
const (
	ThreeLevel GroupAddressStyle = iota // main/middle/sub, 5/3/8 bits
	TwoLevel                            // main/sub, 5/11 bits
	Free                                // plain integer
)

// GroupAddress is a 16-bit multicast destination.
type GroupAddress uint16

// Group address limits.
const (
	MaxMain     = 31
	MaxMiddle   = 7
	MaxSubLong  = 255
	MaxSubShort = 2047
)

// NewGroupAddress builds a three level address.
func NewGroupAddress(main, middle, sub uint16) (GroupAddress, error) {
	if main > MaxMain || middle > MaxMiddle || sub > MaxSubLong {
		return 0, fmt.Errorf("%w: %d/%d/%d", ErrCouldNotParseAddress, main, middle, sub)
	}
	return GroupAddress(main<<11 | middle<<8 | sub), nil
}

// ParseGroupAddress parses "1/2/3", "1/2" (two level) or a free integer.
func ParseGroupAddress(s string) (GroupAddress, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	nums := make([]uint16, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrCouldNotParseAddress, s)
		}
		nums[i] = uint16(n)
	}
	switch len(nums) {
	case 1:
		return GroupAddress(nums[0]), nil
	case 2:
		if nums[0] > MaxMain || nums[1] > MaxSubShort {
			break
		}
		return GroupAddress(nums[0]<<11 | nums[1]), nil
	case 3:
		return NewGroupAddress(nums[0], nums[1], nums[2])
	}
	return 0, fmt.Errorf("%w: %q", ErrCouldNotParseAddress, s)
}

// MustParseGroupAddress is ParseGroupAddress for constants. It panics on error.
func MustParseGroupAddress(s string) GroupAddress {
	a, err := ParseGroupAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Raw returns the 16-bit wire value.
func (a GroupAddress) Raw() uint16 { return uint16(a) }

// IsGroup implements Address.
func (GroupAddress) IsGroup() bool { return true }

// Main returns the main group.
func (a GroupAddress) Main() uint16 { return uint16(a>>11) & MaxMain }

// Middle returns the middle group of a three level address.
func (a GroupAddress) Middle() uint16 { return uint16(a>>8) & MaxMiddle }

// Sub returns the sub group of a three level address.
func (a GroupAddress) Sub() uint16 { return uint16(a) & MaxSubLong }

// Format renders a in the given style.
func (a GroupAddress) Format(style GroupAddressStyle) string {
	switch style {
	case TwoLevel:
		return fmt.Sprintf("%d/%d", a.Main(), uint16(a)&MaxSubShort)
	case Free:
		return strconv.Itoa(int(a))
	}
	return fmt.Sprintf("%d/%d/%d", a.Main(), a.Middle(), a.Sub())
}

func (a GroupAddress) String() string { return a.Format(ThreeLevel) }

// ParseAddress parses a destination. Strings containing '/' are group
// addresses, strings containing '.' are individual addresses.
func ParseAddress(s string) (Address, error) {
	if strings.Contains(s, ".") {
		return ParseIndividualAddress(s)
	}
	return ParseGroupAddress(s)
}
