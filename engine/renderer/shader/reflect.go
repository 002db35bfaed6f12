package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Binding is one @group/@binding resource declaration.
type Binding struct {
	Binding      uint32
	Name         string
	Type         string
	AddressSpace string
}

// Reflection is what the renderer reads back from processed WGSL: entry points, host-shared
// struct sizes, declared bindings per group, and vertex input layouts.
type Reflection struct {
	VertexEntryPoints   []string
	FragmentEntryPoints []string

	// StructSizes maps every struct name whose fields could be resolved to its WGSL size.
	StructSizes map[string]uint64

	// Bindings maps a group index to its declarations, sorted by binding.
	Bindings map[uint32][]Binding

	// VertexInputs maps the name of every pure @location struct to its tightly packed layout.
	VertexInputs map[string]wgpu.VertexBufferLayout
}

// HasVertexEntryPoint reports whether name is declared with @vertex.
func (r Reflection) HasVertexEntryPoint(name string) bool {
	for _, e := range r.VertexEntryPoints {
		if e == name {
			return true
		}
	}
	return false
}

// HasFragmentEntryPoint reports whether name is declared with @fragment.
func (r Reflection) HasFragmentEntryPoint(name string) bool {
	for _, e := range r.FragmentEntryPoints {
		if e == name {
			return true
		}
	}
	return false
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	vertexEntryRegex   = regexp.MustCompile(`@vertex\s+fn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name and
	// type from declarations like: @group(1) @binding(0) var<uniform> camera: CameraUniform;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflect parses processed WGSL source.
//
// Parameters:
//   - source: WGSL source with includes already resolved
//
// Returns:
//   - Reflection: the parsed reflection
func Reflect(source string) Reflection {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)

	r := Reflection{
		StructSizes:  map[string]uint64{},
		Bindings:     map[uint32][]Binding{},
		VertexInputs: map[string]wgpu.VertexBufferLayout{},
	}

	for _, m := range vertexEntryRegex.FindAllStringSubmatch(cleaned, -1) {
		r.VertexEntryPoints = append(r.VertexEntryPoints, m[1])
	}
	for _, m := range fragmentEntryRegex.FindAllStringSubmatch(cleaned, -1) {
		r.FragmentEntryPoints = append(r.FragmentEntryPoints, m[1])
	}

	for name, layout := range computeStructSizes(structs) {
		r.StructSizes[name] = layout.size
	}

	for _, ps := range structs {
		if !isVertexInputStruct(ps) {
			continue
		}
		if layout, ok := buildVertexBufferLayout(ps); ok {
			r.VertexInputs[ps.name] = layout
		}
	}

	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		r.Bindings[uint32(group)] = append(r.Bindings[uint32(group)], Binding{
			Binding:      uint32(binding),
			Name:         strings.TrimSpace(m[4]),
			Type:         strings.TrimSpace(m[5]),
			AddressSpace: strings.TrimSpace(m[3]),
		})
	}
	for g := range r.Bindings {
		entries := r.Bindings[g]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
	}

	return r
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses the body of a struct block into fields.
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])

		fields = append(fields, field)
	}

	return fields
}
