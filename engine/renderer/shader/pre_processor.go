// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source
// for @oxy:include annotations and replaces each with the WGSL source registered under the
// annotation's argument. The registry is supplied by the caller so this package stays below
// the packages that own the structs.
package shader

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includes maps include names to their WGSL source.
	includes map[string]string

	// included records the include names resolved during the most recent Process call.
	included []string
}

// PreProcessor replaces @oxy:include annotations in WGSL source with registered struct
// sources.
type PreProcessor interface {
	// Process returns source with every include annotation replaced. Each name is injected
	// at most once per call; repeated includes of the same name produce nothing.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or names an unknown include
	Process(source string) (string, error)

	// Included returns the include names resolved by the most recent Process call, in
	// source order.
	//
	// Returns:
	//   - []string: the resolved include names
	Included() []string

	// Names returns every registered include name, sorted.
	//
	// Returns:
	//   - []string: the registered names
	Names() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor over the given registry. The map is copied.
//
// Parameters:
//   - includes: include name to WGSL source
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(includes map[string]string) PreProcessor {
	return &preProcessor{includes: maps.Clone(includes)}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.included = p.included[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			name := a.Args[0]
			src, ok := p.includes[name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, name)
			}
			if slices.Contains(p.included, name) {
				continue
			}
			p.included = append(p.included, name)
			out = append(out, strings.TrimRight(src, "\n"))
		default:
			return "", fmt.Errorf("line %d: unsupported annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Included() []string {
	return p.included
}

func (p *preProcessor) Names() []string {
	return slices.Sorted(maps.Keys(p.includes))
}
