package transforms

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"testing/fstest"

	"github.com/go-viper/mapstructure/v2"

	"github.com/tomster/embuild/internal/tree"
)

// BuiltinOwner is the addon name the builtin transforms are registered under.
const BuiltinOwner = "embuild"

// AMD is the builtin transform that exposes a script written for an AMD
// loader under a module name: `using: [{transformation: amd, as: moment}]`.
var AMD = Definition{
	Transform:      amdTransform,
	ProcessOptions: amdProcessOptions,
}

type amdArgs struct {
	As string `mapstructure:"as"`
}

func amdProcessOptions(path string, args map[string]any, current map[string]any) (map[string]any, error) {
	var a amdArgs
	if err := mapstructure.Decode(args, &a); err != nil {
		return nil, err
	}
	if a.As == "" {
		return nil, errors.New("the amd transformation requires an `as` argument naming the module")
	}

	next := maps.Clone(current)
	if next == nil {
		next = map[string]any{}
	}
	next[path] = map[string]any{"as": a.As}
	return next, nil
}

func amdTransform(fsys fs.FS, options map[string]any) (fs.FS, error) {
	return tree.Lazy(func() (fs.FS, error) {
		out := fstest.MapFS{}
		for _, p := range slices.Sorted(maps.Keys(options)) {
			var a amdArgs
			if err := mapstructure.Decode(options[p], &a); err != nil {
				return nil, fmt.Errorf("amd %s: %w", p, err)
			}

			bs, err := fs.ReadFile(fsys, p)
			if err != nil {
				return nil, fmt.Errorf("amd %s: %w", p, err)
			}

			out[p] = &fstest.MapFile{Data: []byte(wrapAMD(a.As, string(bs))), Mode: 0o644}
		}
		return out, nil
	}), nil
}

func wrapAMD(name, src string) string {
	var b strings.Builder
	b.WriteString("(function(define){\n")
	b.WriteString(src)
	if !strings.HasSuffix(src, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "})((function(){ function newDefine(){ var args = Array.prototype.slice.call(arguments); args.unshift(%q); return define.apply(null, args); }; newDefine.amd = true; return newDefine; })());\n", name)
	return b.String()
}
