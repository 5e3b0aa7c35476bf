package validation

import (
	"testing"

	"github.com/mmeshcher/printhub-system/internal/model"
)

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  model.OrderStatus
		ok    bool
	}{
		{name: "pending", input: "pending", want: model.OrderStatusPending, ok: true},
		{name: "printing", input: "printing", want: model.OrderStatusPrinting, ok: true},
		{name: "ready", input: "ready", want: model.OrderStatusReady, ok: true},
		{name: "completed", input: "completed", want: model.OrderStatusCompleted, ok: true},
		{name: "failed", input: "failed", want: model.OrderStatusFailed, ok: true},
		{name: "rejected", input: "rejected", want: model.OrderStatusRejected, ok: true},
		{name: "unknown value", input: "shipped", ok: false},
		{name: "empty", input: "", ok: false},
		{name: "wrong case", input: "Pending", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseOrderStatus(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseOrderStatus(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("ParseOrderStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from model.OrderStatus
		to   model.OrderStatus
		want bool
	}{
		{name: "pending to printing", from: model.OrderStatusPending, to: model.OrderStatusPrinting, want: true},
		{name: "pending to rejected", from: model.OrderStatusPending, to: model.OrderStatusRejected, want: true},
		{name: "pending to failed", from: model.OrderStatusPending, to: model.OrderStatusFailed, want: true},
		{name: "pending to ready skips printing", from: model.OrderStatusPending, to: model.OrderStatusReady, want: false},
		{name: "printing to ready", from: model.OrderStatusPrinting, to: model.OrderStatusReady, want: true},
		{name: "printing to failed", from: model.OrderStatusPrinting, to: model.OrderStatusFailed, want: true},
		{name: "printing back to pending", from: model.OrderStatusPrinting, to: model.OrderStatusPending, want: false},
		{name: "ready to completed", from: model.OrderStatusReady, to: model.OrderStatusCompleted, want: true},
		{name: "ready to failed", from: model.OrderStatusReady, to: model.OrderStatusFailed, want: true},
		{name: "completed is terminal", from: model.OrderStatusCompleted, to: model.OrderStatusFailed, want: false},
		{name: "failed is terminal", from: model.OrderStatusFailed, to: model.OrderStatusPending, want: false},
		{name: "rejected is terminal", from: model.OrderStatusRejected, to: model.OrderStatusPrinting, want: false},
		{name: "self transition", from: model.OrderStatusPending, to: model.OrderStatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
