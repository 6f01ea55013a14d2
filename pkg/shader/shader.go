// Package shader compiles expression trees into style shader programs.
//
// Compile walks the tree's GLSL emission, gives every distinct property a
// sampler slot in first-seen order, links the program through a Factory and
// resolves the uniform locations of every node. Compiled.Bind then drives one
// draw: property textures go to units 0..k-1 and the nodes take the units
// after them.
package shader

import (
	"fmt"
	"strings"

	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// PropertySlot is a property sampler of a compiled program.
type PropertySlot struct {
	Name     string
	Location gpu.UniformLocation
}

// Compiled is a linked style program bound to its expression tree.
type Compiled struct {
	Root       expressions.Node
	Shader     *Shader
	Properties []PropertySlot
	// Preface and Inline are the generated GLSL, property samplers included.
	Preface string
	Inline  string
}

// PropertySampler returns the GLSL that reads property slot i.
func PropertySampler(i int) string {
	return fmt.Sprintf("texture2D(propertyTex%d, featureID).a", i)
}

// Compile emits, links and binds root. root must be compiled against the
// dataset metadata.
func Compile(gl gpu.Context, root expressions.Node, factory Factory, opts ...Option) (*Compiled, error) {
	options := newOptions(opts)

	ids := &expressions.UniformIDs{}
	var names []string
	slots := make(map[string]int)
	resolve := func(name string) string {
		i, ok := slots[name]
		if !ok {
			i = len(names)
			slots[name] = i
			names = append(names, name)
		}
		return PropertySampler(i)
	}
	src, err := root.EmitShaderSource(ids, resolve)
	if err != nil {
		return nil, fmt.Errorf("emitting %s(): %w", root.Name(), err)
	}

	var preface strings.Builder
	preface.WriteString(src.Preface)
	for i := range names {
		fmt.Fprintf(&preface, "uniform sampler2D propertyTex%d;\n", i)
	}

	sh, err := factory(gl, preface.String(), src.Inline)
	if err != nil {
		return nil, err
	}

	props := make([]PropertySlot, len(names))
	for i, name := range names {
		props[i] = PropertySlot{Name: name, Location: gl.UniformLocation(sh.Program, fmt.Sprintf("propertyTex%d", i))}
	}
	if err := root.BindUniforms(gl, sh.Program); err != nil {
		return nil, err
	}
	options.Logger.Debug("compiled style shader", "root", root.Name(), "properties", len(props), "program", sh.Program)
	return &Compiled{
		Root:       root,
		Shader:     sh,
		Properties: props,
		Preface:    preface.String(),
		Inline:     src.Inline,
	}, nil
}

// TextureSource returns the texture holding a property.
type TextureSource func(name string) (gpu.Texture, error)

// Bind makes the program current, binds the property textures to the first
// units and uploads the tree's uniforms with a fresh DrawState.
func (c *Compiled) Bind(gl gpu.Context, textures TextureSource) error {
	gl.UseProgram(c.Shader.Program)
	for i, slot := range c.Properties {
		tex, err := textures(slot.Name)
		if err != nil {
			return fmt.Errorf("property %q: %w", slot.Name, err)
		}
		gl.ActiveTexture(i)
		gl.BindTexture(tex)
		gl.Uniform1i(slot.Location, i)
	}
	ds := &expressions.DrawState{Program: c.Shader.Program, FreeTexUnit: len(c.Properties)}
	return c.Root.SetUniforms(gl, ds)
}

// MissingProperty is the error a TextureSource returns for a property the
// dataframe does not carry.
func MissingProperty(name string) error {
	return types.Errorf(types.ErrUnknownProperty, "no texture for property %q", name)
}
