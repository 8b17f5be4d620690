// Package shader wraps compiled graph programs into complete WGSL modules
// and validates them by compiling to SPIR-V.
package shader

import (
	"strings"

	"github.com/chazu/shadegraph/pkg/compiler"
)

// Default entry point names.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// Options controls module generation.
type Options struct {
	VertexEntry   string
	FragmentEntry string
}

func (o Options) withDefaults() Options {
	if o.VertexEntry == "" {
		o.VertexEntry = DefaultVertexEntry
	}
	if o.FragmentEntry == "" {
		o.FragmentEntry = DefaultFragmentEntry
	}
	return o
}

// vertexStage draws one full-screen triangle and passes uv to the fragment
// stage; uv spans [0,1] over the visible area.
const vertexStage = `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn {{vertex}}(@builtin(vertex_index) index: u32) -> VertexOutput {
    var positions = array<vec2<f32>, 3>(
        vec2<f32>(-1.0, -1.0),
        vec2<f32>(3.0, -1.0),
        vec2<f32>(-1.0, 3.0),
    );
    var uvs = array<vec2<f32>, 3>(
        vec2<f32>(0.0, 0.0),
        vec2<f32>(2.0, 0.0),
        vec2<f32>(0.0, 2.0),
    );
    var out: VertexOutput;
    out.position = vec4<f32>(positions[index], 0.0, 1.0);
    out.uv = uvs[index];
    return out;
}
`

// Module returns a WGSL module whose fragment stage evaluates p. The input
// node's ambient names u and v are bound from the interpolated uv.
func Module(p *compiler.Program, opts Options) string {
	opts = opts.withDefaults()

	var b strings.Builder
	b.WriteString(strings.ReplaceAll(vertexStage, "{{vertex}}", opts.VertexEntry))
	b.WriteString("\n@fragment\n")
	b.WriteString("fn " + opts.FragmentEntry + "(frag: VertexOutput) -> @location(0) vec4<f32> {\n")
	b.WriteString("    let u = frag.uv.x;\n")
	b.WriteString("    let v = frag.uv.y;\n")
	for _, s := range p.Statements {
		b.WriteString("    " + s.String() + "\n")
	}
	b.WriteString("    return vec4<f32>(" + p.Result + ");\n")
	b.WriteString("}\n")
	return b.String()
}
