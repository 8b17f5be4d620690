package shader

import (
	"github.com/gogpu/naga"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/compiler"
	"github.com/chazu/shadegraph/pkg/logging"
)

// DefaultCacheSize bounds the number of validated modules kept in memory.
const DefaultCacheSize = 64

// ErrInvalidShader wraps backend compile failures.
var ErrInvalidShader = errors.New("invalid shader")

// Artifact is a validated shader module.
type Artifact struct {
	WGSL  string
	SPIRV []uint32 // little-endian 32-bit words
}

// CompileFunc translates WGSL source to SPIR-V bytes.
type CompileFunc func(wgsl string) ([]byte, error)

// Compiler assembles and validates shader modules. Results are cached by
// module source, so recompiling an unchanged graph is free. Safe for
// concurrent use.
type Compiler struct {
	opts    Options
	backend CompileFunc
	cache   *lru.Cache[string, []uint32]
}

// NewCompiler returns a Compiler backed by naga.
func NewCompiler(opts Options) *Compiler {
	return NewCompilerWith(opts, naga.Compile, DefaultCacheSize)
}

// NewCompilerWith returns a Compiler using backend and an LRU of the given
// size. A non-positive size selects DefaultCacheSize.
func NewCompilerWith(opts Options, backend CompileFunc, size int) *Compiler {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []uint32](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Compiler{opts: opts.withDefaults(), backend: backend, cache: cache}
}

// Compile builds the module for p and compiles it to SPIR-V.
func (c *Compiler) Compile(p *compiler.Program) (*Artifact, error) {
	src := Module(p, c.opts)
	if words, ok := c.cache.Get(src); ok {
		logging.Logger().Debug("shader cache hit", "sink", p.Sink)
		return &Artifact{WGSL: src, SPIRV: words}, nil
	}

	spirv, err := c.backend(src)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidShader, "%v", err)
	}
	if len(spirv)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidShader, "SPIR-V length %d is not a multiple of 4", len(spirv))
	}
	words := toWords(spirv)
	c.cache.Add(src, words)
	logging.Logger().Debug("shader compiled", "sink", p.Sink, "words", len(words))
	return &Artifact{WGSL: src, SPIRV: words}, nil
}

// CacheLen returns the number of cached modules.
func (c *Compiler) CacheLen() int {
	return c.cache.Len()
}

// toWords packs little-endian SPIR-V bytes into 32-bit words.
func toWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
