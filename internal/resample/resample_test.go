package resample

import (
	"testing"

	astiav "github.com/asticode/go-astiav"
)

func TestNewRejectsPlanarOutput(t *testing.T) {
	_, err := New(Params{
		SampleRate:   48000,
		SampleFormat: astiav.SampleFormatFltp, // planar
	})
	if err == nil {
		t.Fatal("expected an error for a planar output format")
	}
}

func TestDropOutputNonPositiveIsNoop(t *testing.T) {
	r, err := New(Params{SampleRate: 48000, SampleFormat: astiav.SampleFormatFlt})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.DropOutput(0); err != nil {
		t.Errorf("DropOutput(0) = %v, want nil", err)
	}
	if err := r.DropOutput(-5); err != nil {
		t.Errorf("DropOutput(-5) = %v, want nil", err)
	}
}
