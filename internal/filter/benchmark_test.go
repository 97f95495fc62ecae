package filter

import "testing"

func benchBuffer(w, h int) []uint8 {
	pix := make([]uint8, w*h*4)
	for i := range pix {
		pix[i] = uint8(i * 31)
	}
	return pix
}

func BenchmarkWholeBrightness(b *testing.B) {
	pix := benchBuffer(512, 512)
	spec := Spec{Kind: Brightness, Params: Params{Adjustment: 30}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Whole(pix, 512, 512, spec, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWholeBlur(b *testing.B) {
	pix := benchBuffer(256, 256)
	spec := Spec{Kind: Blur, Params: Params{Radius: 50}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Whole(pix, 256, 256, spec, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMaskedBlur(b *testing.B) {
	const w, h = 256, 256
	pix := benchBuffer(w, h)
	cov := make([]uint8, w*h)
	for i := range cov {
		if i%3 != 0 {
			cov[i] = 255
		}
	}
	spec := Spec{Kind: Blur, Params: Params{Radius: 50}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Masked(pix, w, h, spec, cov, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMaskedHueRotate(b *testing.B) {
	const w, h = 512, 512
	pix := benchBuffer(w, h)
	cov := make([]uint8, w*h)
	for i := range cov {
		cov[i] = uint8(i)
	}
	spec := Spec{Kind: HueRotate, Params: Params{Rotation: 45}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Masked(pix, w, h, spec, cov, nil); err != nil {
			b.Fatal(err)
		}
	}
}
