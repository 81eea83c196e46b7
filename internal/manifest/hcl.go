package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes the top-level blocks of a manifest file.
type fileRoot struct {
	Bundles []*bundleBlock `hcl:"bundle,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

// bundleBlock is a single `bundle "<name>" { ... }` block.
type bundleBlock struct {
	Name         string   `hcl:"name,label"`
	Dependencies []string `hcl:"dependencies,optional"`
}

// Parse decodes an HCL manifest. Dependencies that never appear as a
// `bundle` block are registered as leaf bundles.
func Parse(src []byte, filename string) (*Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	b := NewBuilder()
	for _, blk := range root.Bundles {
		name := bundle.Normalize(blk.Name)
		if err := b.AddBundle(name); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", filename, err)
		}
		for _, dep := range blk.Dependencies {
			if err := b.AddDependency(name, bundle.Normalize(dep)); err != nil {
				return nil, fmt.Errorf("manifest %s: %w", filename, err)
			}
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", filename, err)
	}
	return g, nil
}

// Marshal renders a manifest in the format accepted by Parse.
func Marshal(m Manifest) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for i, name := range m.AllBundleNames() {
		if i > 0 {
			body.AppendNewline()
		}
		blk := body.AppendNewBlock("bundle", []string{name.String()})
		deps := m.DirectDependencies(name)
		if len(deps) == 0 {
			continue
		}
		vals := make([]cty.Value, len(deps))
		for j, d := range deps {
			vals[j] = cty.StringVal(d.String())
		}
		blk.Body().SetAttributeValue("dependencies", cty.ListVal(vals))
	}
	return f.Bytes()
}
