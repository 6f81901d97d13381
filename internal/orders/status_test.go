package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "pending to done", from: StatusPending, to: StatusDone, want: true},
		{name: "done to done is idempotent", from: StatusDone, to: StatusDone, want: true},
		{name: "done never reverts", from: StatusDone, to: StatusPending, want: false},
		{name: "pending to pending", from: StatusPending, to: StatusPending, want: false},
		{name: "unknown target", from: StatusPending, to: Status("Shipped"), want: false},
		{name: "unknown source", from: Status(""), to: StatusDone, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}
