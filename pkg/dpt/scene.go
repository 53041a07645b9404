package dpt

// Scene numbers are 1..64 for users and 0..63 on the wire.
const (
	MinScene = 1
	MaxScene = 64
)

// SceneNumber transcodes DPT 17.001. Values are int scene numbers 1..64.
type SceneNumber struct {
	base
}

// Encode returns the payload for scene.
func (s *SceneNumber) Encode(scene int) (Payload, error) {
	if scene < MinScene || scene > MaxScene {
		return nil, s.desc.rangeError(scene)
	}
	return Array{uint8(scene - 1)}, nil
}

// Decode returns the scene number carried by p.
func (s *SceneNumber) Decode(p Payload) (int, error) {
	b, err := s.desc.bytes(p)
	if err != nil {
		return 0, err
	}
	if b[0] > MaxScene-1 {
		return 0, s.desc.rangeError(int(b[0]) + 1)
	}
	return int(b[0]) + 1, nil
}

// ToKNX implements Transcoder.
func (s *SceneNumber) ToKNX(v any) (Payload, error) {
	n, ok := toInt64(v)
	if !ok {
		return nil, s.desc.conversionError("cannot encode %T %v", v, v)
	}
	if n < MinScene || n > MaxScene {
		return nil, s.desc.rangeError(n)
	}
	return s.Encode(int(n))
}

// FromKNX implements Transcoder.
func (s *SceneNumber) FromKNX(p Payload) (any, error) {
	return s.Decode(p)
}

// SceneControl is a DPT 18.001 value: activate or learn a scene.
type SceneControl struct {
	SceneNumber int
	Learn       bool
}

const sceneLearn = 0x80

// SceneCtrl transcodes DPT 18.001. Values are SceneControl.
type SceneCtrl struct {
	base
}

// Encode returns the payload for v.
func (s *SceneCtrl) Encode(v SceneControl) (Payload, error) {
	if v.SceneNumber < MinScene || v.SceneNumber > MaxScene {
		return nil, s.desc.conversionError("scene number %d outside [1, 64]", v.SceneNumber)
	}
	raw := uint8(v.SceneNumber - 1)
	if v.Learn {
		raw |= sceneLearn
	}
	return Array{raw}, nil
}

// Decode returns the value carried by p.
func (s *SceneCtrl) Decode(p Payload) (SceneControl, error) {
	b, err := s.desc.bytes(p)
	if err != nil {
		return SceneControl{}, err
	}
	return SceneControl{SceneNumber: int(b[0]&0x3F) + 1, Learn: b[0]&sceneLearn != 0}, nil
}

// ToKNX implements Transcoder.
func (s *SceneCtrl) ToKNX(v any) (Payload, error) {
	if sc, ok := v.(SceneControl); ok {
		return s.Encode(sc)
	}
	return nil, s.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (s *SceneCtrl) FromKNX(p Payload) (any, error) {
	return s.Decode(p)
}
