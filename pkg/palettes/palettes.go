// Package palettes provides the named color palettes usable by ramp().
//
// A palette holds sub-palettes keyed by color count and a set of tags.
// Qualitative palettes carry a trailing "others" color in every sub-palette:
// the sub-palette for n categories has n+1 colors.
package palettes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sandrolain/goviz/pkg/types"
)

// Tags.
const (
	Qualitative  = "qualitative"
	Quantitative = "quantitative"
)

// Palette is a named set of sub-palettes. Palettes are immutable once
// registered.
type Palette struct {
	Name        string
	Tags        []string
	SubPalettes map[int][]types.Color
}

// HasTag reports whether the palette carries tag.
func (p *Palette) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsQualitative reports whether the palette is tagged qualitative.
func (p *Palette) IsQualitative() bool {
	return p.HasTag(Qualitative)
}

// SubPalette returns the sub-palette registered under key n.
func (p *Palette) SubPalette(n int) ([]types.Color, bool) {
	c, ok := p.SubPalettes[n]
	return c, ok
}

// LongestSubPalette returns the sub-palette with the most colors.
func (p *Palette) LongestSubPalette() []types.Color {
	var longest []types.Color
	for _, k := range p.keys() {
		if c := p.SubPalettes[k]; len(c) > len(longest) {
			longest = c
		}
	}
	return longest
}

func (p *Palette) keys() []int {
	keys := make([]int, 0, len(p.SubPalettes))
	for k := range p.SubPalettes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// NewQualitative builds a qualitative palette from its full color list. The
// last color is the "others" color; the sub-palette for n categories is the
// first n colors followed by the others color.
func NewQualitative(name string, hexes ...string) (*Palette, error) {
	colors, err := parseAll(hexes)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", name, err)
	}
	if len(colors) < 2 {
		return nil, fmt.Errorf("palette %s: qualitative palettes need at least two colors", name)
	}
	others := colors[len(colors)-1]
	p := &Palette{Name: name, Tags: []string{Qualitative}, SubPalettes: make(map[int][]types.Color)}
	for n := 1; n < len(colors); n++ {
		sub := make([]types.Color, 0, n+1)
		sub = append(sub, colors[:n]...)
		p.SubPalettes[n] = append(sub, others)
	}
	return p, nil
}

// NewQuantitative builds a quantitative palette from explicit sub-palettes.
func NewQuantitative(name string, subs map[int][]string) (*Palette, error) {
	p := &Palette{Name: name, Tags: []string{Quantitative}, SubPalettes: make(map[int][]types.Color, len(subs))}
	for n, hexes := range subs {
		colors, err := parseAll(hexes)
		if err != nil {
			return nil, fmt.Errorf("palette %s: %w", name, err)
		}
		if len(colors) != n {
			return nil, fmt.Errorf("palette %s: sub-palette %d has %d colors", name, n, len(colors))
		}
		p.SubPalettes[n] = colors
	}
	if len(p.SubPalettes) == 0 {
		return nil, fmt.Errorf("palette %s: no sub-palettes", name)
	}
	return p, nil
}

func parseAll(hexes []string) ([]types.Color, error) {
	colors := make([]types.Color, len(hexes))
	for i, h := range hexes {
		c, err := types.ParseHexColor(h)
		if err != nil {
			return nil, err
		}
		colors[i] = c
	}
	return colors, nil
}

// Registry is a name to palette lookup. Names are case-insensitive.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	palettes map[string]*Palette
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{palettes: make(map[string]*Palette)}
}

// Register adds p, replacing any palette with the same name.
func (r *Registry) Register(p *Palette) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.palettes[strings.ToUpper(p.Name)] = p
}

// Lookup returns the palette named name.
func (r *Registry) Lookup(name string) (*Palette, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.palettes[strings.ToUpper(name)]
	return p, ok
}

// Names returns the registered palette names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.palettes))
	for n := range r.palettes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of built-in CARTOColors palettes.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, p := range builtin() {
			defaultRegistry.Register(p)
		}
	})
	return defaultRegistry
}

// MustLookup returns a built-in palette and panics if it does not exist.
func MustLookup(name string) *Palette {
	p, ok := Default().Lookup(name)
	if !ok {
		panic("palettes: unknown palette " + name)
	}
	return p
}

func mustPalette(p *Palette, err error) *Palette {
	if err != nil {
		panic(err)
	}
	return p
}

func builtin() []*Palette {
	return []*Palette{
		mustPalette(NewQualitative("PRISM",
			"#5F4690", "#1D6996", "#38A6A5", "#0F8554", "#73AF48", "#EDAD08",
			"#E17C05", "#CC503E", "#94346E", "#6F4070", "#994E95", "#666666")),
		mustPalette(NewQualitative("BOLD",
			"#7F3C8D", "#11A579", "#3969AC", "#F2B701", "#E73F74", "#80BA5A",
			"#E68310", "#008695", "#CF1C90", "#f97b72", "#4b4b8f", "#A5AA99")),
		mustPalette(NewQualitative("VIVID",
			"#E58606", "#5D69B1", "#52BCA3", "#99C945", "#CC61B0", "#24796C",
			"#DAA51B", "#2F8AC4", "#764E9F", "#ED645A", "#CC3A8E", "#A5AA99")),
		mustPalette(NewQualitative("PASTEL",
			"#66C5CC", "#F6CF71", "#F89C74", "#DCB0F2", "#87C55F", "#9EB9F3",
			"#FE88B1", "#C9DB74", "#8BE0A4", "#B497E7", "#D3B484", "#B3B3B3")),
		mustPalette(NewQuantitative("SUNSET", map[int][]string{
			2: {"#f3e79b", "#5c53a5"},
			3: {"#f3e79b", "#eb7f86", "#5c53a5"},
			4: {"#f3e79b", "#f8a07e", "#ce6693", "#5c53a5"},
			5: {"#f3e79b", "#fac484", "#eb7f86", "#ce6693", "#5c53a5"},
			6: {"#f3e79b", "#fab27f", "#f59280", "#dc6f8e", "#ab5b9e", "#5c53a5"},
			7: {"#f3e79b", "#fac484", "#f8a07e", "#eb7f86", "#ce6693", "#a059a0", "#5c53a5"},
		})),
		mustPalette(NewQuantitative("TEAL", map[int][]string{
			2: {"#d1eeea", "#2a5674"},
			7: {"#d1eeea", "#a8dbd9", "#85c4c9", "#68abb8", "#4f90a6", "#3b738f", "#2a5674"},
		})),
		mustPalette(NewQuantitative("BURG", map[int][]string{
			2: {"#ffc6c4", "#672044"},
			7: {"#ffc6c4", "#f4a3a8", "#e38191", "#cc607d", "#ad466c", "#8b3058", "#672044"},
		})),
	}
}
