package introspect

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extractor walks a package's source directory and assembles its API.
type Extractor struct {
	projectRoot string
	logger      *zap.Logger
}

// NewExtractor anchors an extractor at the project root.
func NewExtractor(projectRoot string, logger *zap.Logger) *Extractor {
	return &Extractor{projectRoot: projectRoot, logger: logger}
}

// Extract parses every .py file under sourceDir concurrently and returns the
// complete API of packageName.
func (e *Extractor) Extract(ctx context.Context, packageName, sourceDir string) (PackageAPI, error) {
	absSource := sourceDir
	if !filepath.IsAbs(absSource) {
		absSource = filepath.Join(e.projectRoot, sourceDir)
	}

	var files []string
	err := filepath.WalkDir(absSource, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".py") || strings.HasSuffix(d.Name(), ".pyw") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return PackageAPI{}, fmt.Errorf("walk %s: %w", sourceDir, err)
	}
	if len(files) == 0 {
		return PackageAPI{}, fmt.Errorf("no Python sources under %s", sourceDir)
	}
	sort.Strings(files)

	start := time.Now()
	var mu sync.Mutex
	elements := make(map[string]Element)
	modules := make(map[string]ModuleInfo)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, path := range files {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			module := moduleName(packageName, absSource, path)
			relPath := e.relativePath(path)

			// Parsers are not safe for concurrent use; one per file.
			parser := NewParser(e.logger)
			els, info, err := parser.ParseFile(gctx, module, relPath, content)
			if err != nil {
				return err
			}

			mu.Lock()
			modules[module] = info
			for _, el := range els {
				elements[el.QualName] = el
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PackageAPI{}, err
	}

	applyExportLists(elements, modules)

	api := PackageAPI{
		Package: PackageInfo{
			Name:            packageName,
			SourceDirectory: filepath.ToSlash(sourceDir),
			ModuleCount:     len(modules),
			ElementCount:    len(elements),
			ExtractedAt:     time.Now().UTC(),
		},
		Elements: elements,
		Modules:  modules,
	}
	for _, el := range elements {
		if el.Public {
			api.Package.PublicCount++
		}
	}

	e.logger.Info("extracted package API",
		zap.String("package", packageName),
		zap.Int("modules", len(modules)),
		zap.Int("elements", len(elements)),
		zap.Duration("elapsed", time.Since(start)))
	return api, nil
}

// applyExportLists narrows module publicness to __all__ where one is declared.
// Methods follow their class.
func applyExportLists(elements map[string]Element, modules map[string]ModuleInfo) {
	exported := make(map[string]map[string]bool)
	for name, info := range modules {
		if len(info.All) == 0 {
			continue
		}
		set := make(map[string]bool, len(info.All))
		for _, n := range info.All {
			set[n] = true
		}
		exported[name] = set
	}
	if len(exported) == 0 {
		return
	}
	for qual, el := range elements {
		set, ok := exported[el.Module]
		if !ok {
			continue
		}
		top := el.Name
		if el.Kind == KindMethod {
			// module.Class.method — publicness keys on the class.
			parts := strings.Split(strings.TrimPrefix(qual, el.Module+"."), ".")
			if len(parts) == 2 {
				top = parts[0]
			}
		}
		if el.Public && !set[top] {
			el.Public = false
			elements[qual] = el
		}
	}
}

// moduleName maps a file under the source root to its dotted module path.
func moduleName(packageName, sourceRoot, path string) string {
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".pyw")
	rel = strings.TrimSuffix(rel, ".py")

	parts := strings.Split(rel, "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	// A src/<pkg> layout already names the package directory; avoid doubling.
	if len(parts) > 0 && parts[0] == packageName {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return packageName
	}
	return packageName + "." + strings.Join(parts, ".")
}

func (e *Extractor) relativePath(path string) string {
	rel, err := filepath.Rel(e.projectRoot, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
