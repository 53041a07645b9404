package dpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChar(t *testing.T) {
	ascii := mustLookup(t, "char_ascii")
	p, err := ascii.ToKNX("A")
	require.NoError(t, err)
	assert.Equal(t, Array{0x41}, p)

	_, err = ascii.ToKNX("é")
	assert.ErrorIs(t, err, ErrConversion)
	_, err = ascii.ToKNX("AB")
	assert.ErrorIs(t, err, ErrConversion)
	_, err = ascii.FromKNX(Array{0xE9})
	assert.ErrorIs(t, err, ErrConversion)

	latin := mustLookup(t, "char_8859_1")
	p, err = latin.ToKNX("é")
	require.NoError(t, err)
	assert.Equal(t, Array{0xE9}, p)
	v, err := latin.FromKNX(p)
	require.NoError(t, err)
	assert.Equal(t, "é", v)
}

func TestString(t *testing.T) {
	s := mustLookup(t, "string")

	p, err := s.ToKNX("KNX is OK")
	require.NoError(t, err)
	assert.Equal(t, Array{0x4B, 0x4E, 0x58, 0x20, 0x69, 0x73, 0x20, 0x4F, 0x4B, 0, 0, 0, 0, 0}, p)

	v, err := s.FromKNX(p)
	require.NoError(t, err)
	assert.Equal(t, "KNX is OK", v)

	_, err = s.ToKNX("fifteen chars!!")
	assert.ErrorIs(t, err, ErrConversion)
	_, err = s.FromKNX(Array{0x41})
	assert.ErrorIs(t, err, ErrCouldNotParseTelegram)

	latin := mustLookup(t, "latin_1")
	p, err = latin.ToKNX("Grüße")
	require.NoError(t, err)
	v, err = latin.FromKNX(p)
	require.NoError(t, err)
	assert.Equal(t, "Grüße", v)
}

func TestScenes(t *testing.T) {
	sn := mustLookup(t, "scene_number")
	p, err := sn.ToKNX(50)
	require.NoError(t, err)
	assert.Equal(t, Array{0x31}, p)
	v, err := sn.FromKNX(p)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	for _, bad := range []int{0, 65} {
		_, err = sn.ToKNX(bad)
		assert.ErrorIs(t, err, ErrConversion)
	}
	_, err = sn.FromKNX(Array{0x40})
	assert.ErrorIs(t, err, ErrConversion)

	sc := mustLookup(t, "18.001")
	p, err = sc.ToKNX(SceneControl{SceneNumber: 1, Learn: true})
	require.NoError(t, err)
	assert.Equal(t, Array{0x80}, p)
	v, err = sc.FromKNX(Array{0xBF})
	require.NoError(t, err)
	assert.Equal(t, SceneControl{SceneNumber: 64, Learn: true}, v)
}

func TestHVAC(t *testing.T) {
	mode := mustLookup(t, "hvac_mode").(*Enum[HVACMode])
	p, err := mode.ToKNX(HVACModeComfort)
	require.NoError(t, err)
	assert.Equal(t, Array{0x01}, p)

	p, err = mode.ToKNX("frost_protection")
	require.NoError(t, err)
	assert.Equal(t, Array{0x04}, p)

	v, err := mode.Decode(Array{0x03})
	require.NoError(t, err)
	assert.Equal(t, HVACModeNight, v)
	assert.Equal(t, "Night", v.String())

	_, err = mode.Decode(Array{0x05})
	assert.ErrorIs(t, err, ErrConversion)

	ctrl := mustLookup(t, "20.105").(*Enum[HVACControllerMode])
	c, err := ctrl.Decode(Array{14})
	require.NoError(t, err)
	assert.Equal(t, ControllerDry, c)
	_, err = ctrl.Decode(Array{12})
	assert.ErrorIs(t, err, ErrConversion)
	_, err = ctrl.ToKNX(ControllerNoDem)
	require.NoError(t, err)

	status := mustLookup(t, "hvac_status")
	p, err = status.ToKNX(HVACStatus{Mode: HVACModeComfort, Heat: true})
	require.NoError(t, err)
	assert.Equal(t, Array{0x84}, p)

	s, err := status.FromKNX(Array{0x31})
	require.NoError(t, err)
	assert.Equal(t, HVACStatus{Mode: HVACModeNight, FrostAlarm: true}, s)

	s, err = status.FromKNX(Array{0x00})
	require.NoError(t, err)
	assert.Equal(t, HVACModeAuto, s.(HVACStatus).Mode)
}

func u8p(v uint8) *uint8 { return &v }

func TestColors(t *testing.T) {
	rgb := mustLookup(t, "color_rgb")
	p, err := rgb.ToKNX(RGB{R: 1, G: 2, B: 3})
	require.NoError(t, err)
	assert.Equal(t, Array{1, 2, 3}, p)

	rgbw := mustLookup(t, "color_rgbw")
	p, err = rgbw.ToKNX(RGBW{R: u8p(255)})
	require.NoError(t, err)
	assert.Equal(t, Array{0xFF, 0, 0, 0, 0, 0x08}, p)
	v, err := rgbw.FromKNX(Array{1, 2, 3, 4, 0, 0x05})
	require.NoError(t, err)
	assert.Equal(t, RGBW{G: u8p(2), W: u8p(4)}, v)

	xyy := mustLookup(t, "color_xyy")
	x, y := 0.5, 0.5
	p, err = xyy.ToKNX(ColorXYY{X: &x, Y: &y, Brightness: u8p(255)})
	require.NoError(t, err)
	assert.Equal(t, Array{0x80, 0x00, 0x80, 0x00, 0xFF, 0x03}, p)

	v, err = xyy.FromKNX(p)
	require.NoError(t, err)
	c := v.(ColorXYY)
	require.NotNil(t, c.X)
	assert.InDelta(t, 0.5, *c.X, 1e-4)
	assert.Equal(t, uint8(255), *c.Brightness)

	big := 1.5
	_, err = xyy.ToKNX(ColorXYY{X: &big, Y: &y})
	assert.ErrorIs(t, err, ErrConversion)
	_, err = xyy.ToKNX(ColorXYY{X: &x})
	assert.ErrorIs(t, err, ErrConversion)
}

func TestTariffActiveEnergy(t *testing.T) {
	tr := mustLookup(t, "tariff_active_energy")

	energy := int32(1000)
	p, err := tr.ToKNX(TariffActiveEnergy{Energy: &energy, Tariff: u8p(2)})
	require.NoError(t, err)
	assert.Equal(t, Array{0x00, 0x00, 0x03, 0xE8, 0x02, 0x03}, p)

	v, err := tr.FromKNX(Array{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x02})
	require.NoError(t, err)
	got := v.(TariffActiveEnergy)
	require.NotNil(t, got.Energy)
	assert.Equal(t, int32(-1), *got.Energy)
	assert.Nil(t, got.Tariff)

	_, err = tr.ToKNX(TariffActiveEnergy{Tariff: u8p(255)})
	assert.ErrorIs(t, err, ErrConversion)
}
