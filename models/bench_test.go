package models

import (
	"testing"

	"github.com/janpfeifer/must"
)

func BenchmarkSoundToImageForward(b *testing.B) {
	m := must.M1(NewSoundToImage(WithSeed(0)))
	x := randomInput(0, 32, SoundFeatures)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Forward(x); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResidualUpsampleNetForward(b *testing.B) {
	m := must.M1(NewResidualUpsampleNet(WithSeed(0)))
	x := randomInput(0, 1, 3, 16, 16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Forward(x); err != nil {
			b.Fatal(err)
		}
	}
}
