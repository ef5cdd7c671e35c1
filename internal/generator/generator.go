// Package generator runs the full pipeline: scan the target project,
// generate model bridge files, then assemble and write the OpenAPI
// document. Generated schema structs feed back into a second metadata pass
// so the document can reference them.
package generator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dev-five-git/vespera/internal/assembler"
	"github.com/dev-five-git/vespera/internal/codegen"
	"github.com/dev-five-git/vespera/internal/config"
	"github.com/dev-five-git/vespera/internal/directive"
	"github.com/dev-five-git/vespera/internal/metadata"
	"github.com/dev-five-git/vespera/internal/scanner"
)

// Options adjusts one pipeline run on top of the loaded config.
type Options struct {
	// Output overrides the config's document path when non-empty.
	Output string
	// Validate forces document validation regardless of the config.
	Validate bool
}

// Run executes the pipeline once against the project at dir.
func Run(dir string, cfg *config.Config, opts Options) error {
	snap, err := scanProject(dir, cfg)
	if err != nil {
		return err
	}
	slog.Info("project scanned",
		"routes", len(snap.Routes()),
		"definitions", len(snap.Definitions()))

	generated, err := writeBridges(snap)
	if err != nil {
		return err
	}

	// Models register their raw entity shape; the document publishes the
	// generated schema components instead, so model records are replaced by
	// the bridge output in the second pass.
	final, err := mergeGenerated(snap, generated)
	if err != nil {
		return err
	}

	doc, err := assembler.Build(final, cfg)
	if err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	if opts.Validate || cfg.Validate {
		if err := assembler.Validate(data); err != nil {
			// The validator predates parts of the 3.1 grammar; a failed
			// round-trip is reported but does not block the write.
			slog.Warn("document validation failed", "err", err)
		} else {
			slog.Info("document validated")
		}
	}

	out := cfg.OutputPath(dir)
	if opts.Output != "" {
		out = opts.Output
		if !filepath.IsAbs(out) {
			out = filepath.Join(dir, out)
		}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("generator: create output directory: %w", err)
	}
	changed, err := codegen.WriteFileIfChanged(out, data)
	if err != nil {
		return fmt.Errorf("generator: write document: %w", err)
	}
	slog.Info("document written", "path", out, "changed", changed)
	return nil
}

func scanProject(dir string, cfg *config.Config) (*metadata.Snapshot, error) {
	reg := metadata.NewRegistry()
	if err := scanner.New(cfg.Exclude).Scan(dir, reg); err != nil {
		return nil, err
	}
	return reg.Freeze()
}

// writeBridges generates one bridge file per model record and returns the
// schema definitions the bridges declared.
func writeBridges(snap *metadata.Snapshot) ([]metadata.StructMetadata, error) {
	var generated []metadata.StructMetadata
	for _, m := range snap.Structs(directive.KindModel) {
		bridge, err := codegen.Generate(m, snap)
		if err != nil {
			return nil, err
		}
		src, err := bridge.Format()
		if err != nil {
			return nil, err
		}
		changed, err := codegen.WriteFileIfChanged(bridge.OutputPath, src)
		if err != nil {
			return nil, fmt.Errorf("generator: write bridge for %s: %w", m.TypeName, err)
		}
		slog.Info("bridge generated",
			"model", m.TypeName,
			"path", bridge.OutputPath,
			"changed", changed)
		generated = append(generated, bridge.Definitions...)
	}
	return generated, nil
}

// mergeGenerated builds the registry for the assembly pass: every route,
// every non-model record, and the definitions the bridges produced.
func mergeGenerated(snap *metadata.Snapshot, generated []metadata.StructMetadata) (*metadata.Snapshot, error) {
	reg := metadata.NewRegistry()
	for _, r := range snap.Routes() {
		if err := reg.AddRoute(r); err != nil {
			return nil, err
		}
	}
	for _, m := range snap.Structs(directive.KindNone) {
		if m.Kind == directive.KindModel {
			continue
		}
		if err := reg.AddStruct(m); err != nil {
			return nil, err
		}
	}
	for _, m := range generated {
		if err := reg.AddStruct(m); err != nil {
			return nil, err
		}
	}
	return reg.Freeze()
}
