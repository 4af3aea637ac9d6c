package rmath_test

import (
	"testing"

	"honnef.co/go/retro/rmath"
)

func matNear(t *testing.T, got, want rmath.Mat4, eps float32) {
	t.Helper()
	for i := range got {
		if rmath.Abs32(got[i]-want[i]) > eps {
			t.Fatalf("matrices differ at element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTRSInvertRoundTrip(t *testing.T) {
	m := rmath.TRS(
		rmath.Vec3{1, -2, 3},
		rmath.Vec3{0.3, 1.1, -0.7},
		rmath.Vec3{2, 0.5, 1.5},
	)
	inv, ok := m.Invert()
	if !ok {
		t.Fatal("TRS matrix reported as singular")
	}
	matNear(t, m.Mul(inv), rmath.Identity(), 1e-4)
	matNear(t, inv.Mul(m), rmath.Identity(), 1e-4)
}

func TestDegenerateScaleInvert(t *testing.T) {
	m := rmath.TRS(rmath.Vec3{1, 2, 3}, rmath.Vec3{}, rmath.Vec3{0, 1, 1})
	if _, ok := m.Invert(); ok {
		t.Fatal("zero-scale matrix should not be invertible")
	}
}

func TestTransposeInvolution(t *testing.T) {
	m := rmath.TRS(rmath.Vec3{4, 5, 6}, rmath.Vec3{0.2, 0.4, 0.6}, rmath.Vec3{1, 2, 3})
	matNear(t, m.Transpose().Transpose(), m, 0)
}

func TestMulIdentity(t *testing.T) {
	m := rmath.Perspective(1.0, 16.0/9.0, 0.1, 100)
	matNear(t, m.Mul(rmath.Identity()), m, 0)
	matNear(t, rmath.Identity().Mul(m), m, 0)
}

func TestLookAtTransformsEyeToOrigin(t *testing.T) {
	eye := rmath.Vec3{3, 4, 5}
	view := rmath.LookAt(eye, rmath.Vec3{0, 0, 0}, rmath.Vec3{0, 1, 0})
	p := view.MulVec4(rmath.Vec4{eye[0], eye[1], eye[2], 1})
	for i := 0; i < 3; i++ {
		if rmath.Abs32(p[i]) > 1e-4 {
			t.Fatalf("eye should map to origin, got %v", p)
		}
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := rmath.Perspective(1.2, 1, 1, 10)

	near := proj.MulVec4(rmath.Vec4{0, 0, -1, 1})
	if rmath.Abs32(near[2]/near[3]) > 1e-5 {
		t.Errorf("near plane should map to depth 0, got %v", near[2]/near[3])
	}
	far := proj.MulVec4(rmath.Vec4{0, 0, -10, 1})
	if rmath.Abs32(far[2]/far[3]-1) > 1e-5 {
		t.Errorf("far plane should map to depth 1, got %v", far[2]/far[3])
	}
}

func TestVec3Normalize(t *testing.T) {
	v := rmath.Vec3{3, 4, 0}.Normalize()
	if rmath.Abs32(v.Length()-1) > 1e-6 {
		t.Errorf("normalized length = %v, want 1", v.Length())
	}
	if (rmath.Vec3{}.Normalize() != rmath.Vec3{}) {
		t.Error("zero vector should normalize to itself")
	}
}
