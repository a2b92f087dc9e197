package models

import (
	"sort"

	"github.com/pkg/errors"

	"go-soundimage/nn"
)

// Registered model names.
const (
	NameSoundToImage = "sound2image"
	NameUNet         = "unet"
)

var constructors = map[string]func(...Option) (nn.Layer, error){
	NameSoundToImage: func(opts ...Option) (nn.Layer, error) {
		m, err := NewSoundToImage(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	},
	NameUNet: func(opts ...Option) (nn.Layer, error) {
		m, err := NewResidualUpsampleNet(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	},
}

// New builds the model registered under name.
func New(name string, opts ...Option) (nn.Layer, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, errors.Errorf("unknown model %q, expected one of %v", name, Names())
	}
	return ctor(opts...)
}

// Names lists the registered model names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
