package featureflags

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup_BooleanValues(t *testing.T) {
	t.Parallel()
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		enabled, defined := m.Lookup(name, "t1")
		assert.True(t, defined, name)
		assert.True(t, enabled, name)
	}
	for _, name := range []string{"b", "d", "f"} {
		enabled, defined := m.Lookup(name, "t1")
		assert.True(t, defined, name)
		assert.False(t, enabled, name)
	}

	enabled, defined := m.Lookup("missing", "t1")
	assert.False(t, defined)
	assert.False(t, enabled)
}

func TestNewManager_SkipsMalformedPairs(t *testing.T) {
	t.Parallel()
	m := NewManager(" Ban = OFF , broken, =on, altcheck=, ,history=on")
	assert.Equal(t, map[string]bool{"ban": false, "history": true}, m.Snapshot("t1"))
}

func TestAllows(t *testing.T) {
	t.Parallel()
	m := NewManager("ban=off,report_open=on")
	assert.False(t, m.Allows("ban", "t1"))
	assert.True(t, m.Allows("report_open", "t1"))
	assert.True(t, m.Allows("altcheck", "t1"))

	var none *Manager
	assert.True(t, none.Allows("ban", "t1"))
	assert.Empty(t, none.Snapshot("t1"))
}

func TestLookup_PercentRolloutIsDeterministic(t *testing.T) {
	t.Parallel()
	m := NewManager("altcheck=30%,all=100%,none=0%,junk=abc%")

	enabledCount := 0
	for i := 0; i < 1000; i++ {
		tenant := fmt.Sprintf("tenant-%d", i)
		first, _ := m.Lookup("altcheck", tenant)
		second, _ := m.Lookup("altcheck", tenant)
		assert.Equal(t, first, second)
		if first {
			enabledCount++
		}
	}
	assert.InDelta(t, 300, enabledCount, 80)

	on, _ := m.Lookup("all", "")
	assert.True(t, on)
	off, _ := m.Lookup("none", "t1")
	assert.False(t, off)
	junk, defined := m.Lookup("junk", "t1")
	assert.True(t, defined)
	assert.False(t, junk)
	anon, _ := m.Lookup("altcheck", "")
	assert.False(t, anon)
}
