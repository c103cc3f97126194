package ui

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Summary(t *testing.T) {
	t.Run("all written", func(t *testing.T) {
		r, buf := newTestRenderer()
		require.NoError(t, r.Summary(Summary{Operation: "index", Total: 4, Success: 4, Duration: 1500 * time.Microsecond}))

		out := buf.String()
		assert.Contains(t, out, "index ok")
		assert.Contains(t, out, "4/4")
		assert.Contains(t, out, "2ms")
		assert.NotContains(t, out, "Failures")
	})

	t.Run("partial", func(t *testing.T) {
		r, buf := newTestRenderer()
		require.NoError(t, r.Summary(Summary{Operation: "recover", Total: 4, Success: 1, Failures: 3, Loops: 1}))

		out := buf.String()
		assert.Contains(t, out, "recover partial")
		assert.Contains(t, out, "Loops:")
		assert.Contains(t, out, "stay queued")
	})
}

func TestRenderer_Check(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		r, buf := newTestRenderer()
		require.NoError(t, r.Check(CheckReport{StoreIssues: 3, IndexDocuments: 3}))
		assert.Contains(t, buf.String(), "consistent")
	})

	t.Run("lists and truncates keys", func(t *testing.T) {
		// Given: more orphans than are listed
		var orphans []string
		for i := range maxListed + 5 {
			orphans = append(orphans, fmt.Sprintf("orphan-%02d", i))
		}
		r, buf := newTestRenderer()

		// When: rendering without repair
		require.NoError(t, r.Check(CheckReport{Orphans: orphans, Missing: []string{"I9"}}))

		// Then: keys are listed up to the bound with a repair hint
		out := buf.String()
		assert.Contains(t, out, "orphan-00")
		assert.NotContains(t, out, "orphan-24")
		assert.Contains(t, out, "... 5 more")
		assert.Contains(t, out, "I9")
		assert.Contains(t, out, "check --repair")
	})

	t.Run("repaired", func(t *testing.T) {
		r, buf := newTestRenderer()
		require.NoError(t, r.Check(CheckReport{Missing: []string{"I1"}, Repaired: 1}))
		assert.Contains(t, buf.String(), "1 repairs")
	})
}
