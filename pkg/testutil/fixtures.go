// Package testutil provides fixture builders and assertions shared by
// the engine tests. Fixtures feed the Replay adapter, which simulates a
// virtualized UI deterministically and with zero real waiting.
package testutil

import (
	"fmt"
	"time"

	"github.com/vanderheijden86/canopy/pkg/adapter"
	"github.com/vanderheijden86/canopy/pkg/paginate"
	"github.com/vanderheijden86/canopy/pkg/wait"
)

// Leaf builds a fixture leaf node with n synthetic records. Identities
// follow "<name>-<index>" so tests can assert specific records.
func Leaf(name string, n int) *adapter.FixtureNode {
	node := &adapter.FixtureNode{Name: name}
	for i := 1; i <= n; i++ {
		node.Records = append(node.Records, adapter.RawRecord{
			Identity: fmt.Sprintf("%s-%d", name, i),
			Title:    fmt.Sprintf("%s item %d", name, i),
			Duration: "2:34",
			Tags:     []string{"synthetic"},
			Plays:    i,
		})
	}
	return node
}

// Folder builds a fixture container node.
func Folder(name string, children ...*adapter.FixtureNode) *adapter.FixtureNode {
	return &adapter.FixtureNode{Name: name, Children: children}
}

// Fixture wraps roots into a fixture with instant rendering.
func Fixture(roots ...*adapter.FixtureNode) *adapter.Fixture {
	return &adapter.Fixture{Roots: roots}
}

// NoSleepWaiter returns a waiter whose sleeps are no-ops, so settle
// waits run at full speed in tests.
func NoSleepWaiter() wait.Waiter {
	return wait.Waiter{Sleep: func(time.Duration) {}}
}

// FastOptions returns collector options with minimal settle waits and
// the no-sleep waiter.
func FastOptions() paginate.Options {
	return paginate.Options{
		SettleWait:      time.Nanosecond,
		LargeSettleWait: time.Nanosecond,
		Waiter:          NoSleepWaiter(),
	}
}
