package scenario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSetsSourceAndHash(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "irq_lifecycle.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "irq-lifecycle", sc.Name)
	assert.Equal(t, "irq_lifecycle.yaml", sc.Source)
	assert.Len(t, sc.Hash, 64)
	require.Len(t, sc.CNodes, 1)
	assert.Equal(t, uint64(0x100), sc.CNodes[0].Ptr)
	assert.Len(t, sc.CNodes[0].Slots, 3)
	assert.Equal(t, []uint64{0x200}, sc.Notifications)
	require.NotNil(t, sc.MaxIRQ)
	assert.Equal(t, uint64(31), *sc.MaxIRQ)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorContains(t, err, "read scenario")
}

func TestParseRejectsBadYAML(t *testing.T) {
	_, err := Parse([]byte("steps: [unterminated"))
	assert.ErrorContains(t, err, "parse")
}

func TestGuardSizeDefaultsToFullWidth(t *testing.T) {
	assert.Equal(t, uint(60), CNodeSpec{Radix: 4}.guardSize())
	g := uint(0)
	assert.Equal(t, uint(0), CNodeSpec{Radix: 4, GuardSize: &g}.guardSize())
}

func TestValidate(t *testing.T) {
	base := `
cnodes:
  - ptr: 0x100
    radix: 4
threads:
  - name: a
    cspace: 0x100
`
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "bad radix and duplicate cnode",
			doc: `
cnodes:
  - {ptr: 0x100, radix: 0}
  - {ptr: 0x100, radix: 4}
`,
			want: []string{"radix must be in [1, 16]", "duplicate ptr 0x100"},
		},
		{
			name: "max_irq beyond limit",
			doc: `
max_irq: 18446744073709551615
cnodes:
  - {ptr: 0x100, radix: 4}
`,
			want: []string{"max_irq must be at most 1023"},
		},
		{
			name: "guard too wide",
			doc: `
cnodes:
  - {ptr: 0x100, radix: 8, guard_size: 60}
`,
			want: []string{"guard_size + radix exceeds 64 bits"},
		},
		{
			name: "bad slots",
			doc: `
cnodes:
  - ptr: 0x100
    radix: 2
    slots:
      9: {kind: endpoint}
      1: {kind: gizmo}
      2: {kind: endpoint, from: 3}
`,
			want: []string{"slot 9 beyond radix 2", "unknown capability kind \"gizmo\"", "from slot 3 is empty"},
		},
		{
			name: "bad threads",
			doc: `
cnodes:
  - {ptr: 0x100, radix: 4}
threads:
  - {name: a, cspace: 0x100, state: dozing}
  - {name: a, cspace: 0x999}
  - {cspace: 0x100}
`,
			want: []string{"unknown thread state \"dozing\"", "duplicate name \"a\"", "cspace 0x999 is not a declared cnode", "name is required"},
		},
		{
			name: "bad steps",
			doc: base + `
steps:
  - {op: teleport}
  - {op: call, thread: b}
  - {op: call, thread: a, core: 3}
  - {op: call, thread: a, label: NoSuchLabel}
  - {op: call, thread: a, extra_caps: [1]}
  - {op: call, thread: a, args: [1], expect: {state: flying}}
`,
			want: []string{
				"unknown op \"teleport\"",
				"unknown thread \"b\"",
				"core 3 out of range [0, 1)",
				"unknown invocation label \"NoSuchLabel\"",
				"extra caps need thread \"a\" to have an ipc_buffer",
				"steps[5].expect: unknown thread state \"flying\"",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			for _, w := range tt.want {
				assert.ErrorContains(t, err, w)
			}
		})
	}
}

func TestValidateTooManyExtraCaps(t *testing.T) {
	doc := `
cnodes:
  - {ptr: 0x100, radix: 4}
threads:
  - {name: a, cspace: 0x100, ipc_buffer: true}
steps:
  - {op: call, thread: a, extra_caps: [1, 2, 3, 4]}
`
	_, err := Parse([]byte(doc))
	assert.ErrorContains(t, err, "at most 3 extra caps")
}

func TestValidateInterruptNeedsNoThread(t *testing.T) {
	doc := `
cores: 2
cnodes:
  - {ptr: 0x100, radix: 4}
steps:
  - {op: interrupt, irq: 3, core: 1}
`
	sc, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, OpInterrupt, sc.Steps[0].Op)
}
