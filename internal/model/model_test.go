package model

import (
	"errors"
	"testing"
)

func TestParseAlertType(t *testing.T) {
	tests := []struct {
		in      string
		want    AlertType
		wantErr bool
	}{
		{"cpu", AlertCPU, false},
		{"MEMORY", AlertMemory, false},
		{" disk ", AlertDisk, false},
		{"gpu", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlertType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAlertType) {
					t.Fatalf("err = %v, want ErrUnknownAlertType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshotValue(t *testing.T) {
	s := MetricSnapshot{CPUUsage: 11, MemoryUsage: 22, DiskUsage: 33}
	want := map[AlertType]float64{AlertCPU: 11, AlertMemory: 22, AlertDisk: 33}
	for _, typ := range AlertTypes() {
		v, ok := s.Value(typ)
		if !ok || v != want[typ] {
			t.Errorf("Value(%s) = %v, %v; want %v, true", typ, v, ok, want[typ])
		}
	}
	if _, ok := s.Value("gpu"); ok {
		t.Error("Value(gpu) should report ok=false")
	}
}
