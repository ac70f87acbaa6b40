package filters

import "errors"

// ErrOutOfRange is returned when a filter index lies outside [0, Count()).
var ErrOutOfRange = errors.New("filter index out of range")

// Filter kinds understood by the transform engine.
const (
	KindGaussianBlur  = "gaussianBlur"
	KindPhotoInstant  = "photoEffectInstant"
	KindPhotoNoir     = "photoEffectNoir"
	KindPhotoTransfer = "photoEffectTransfer"
	KindUnsharpMask   = "unsharpMask"
	KindMonochrome    = "colorMonochrome"
	KindColorControls = "colorControls"
	KindSepia         = "sepiaTone"
	KindColorClamp    = "colorClamp"
	KindHardLight     = "hardLightBlend"
	KindVignette      = "vignette"
)

// Param is a single named filter parameter.
type Param struct {
	Name  string
	Value float64
}

// Definition describes one filter: what it is called, which transform it
// selects and the parameters in declaration order.
type Definition struct {
	Name   string
	Kind   string
	Params []Param
}

// Param returns the value of the named parameter.
func (d Definition) Param(name string) (float64, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

func (d Definition) clone() Definition {
	params := make([]Param, len(d.Params))
	copy(params, d.Params)
	return Definition{Name: d.Name, Kind: d.Kind, Params: params}
}
