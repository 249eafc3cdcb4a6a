package build

import (
	"fmt"
	"strings"
)

// compilerInfo holds install metadata for a known compiler launcher.
type compilerInfo struct {
	SDK     string // SDK that ships the launcher
	Install string // install URL
	Hint    string // extra instruction, optional
}

var knownCompilers = map[string]compilerInfo{
	"dart":     {SDK: "Dart SDK", Install: "https://dart.dev/get-dart"},
	"dart.bat": {SDK: "Dart SDK", Install: "https://dart.dev/get-dart", Hint: "Add <sdk>\\bin to PATH."},
	"dart.exe": {SDK: "Dart SDK", Install: "https://dart.dev/get-dart", Hint: "Add <sdk>\\bin to PATH."},
	"flutter":  {SDK: "Flutter SDK", Install: "https://docs.flutter.dev/get-started/install"},
}

// IsKnownCompiler reports whether name is the bare name of a known
// compiler launcher. Names with a path are never known.
func IsKnownCompiler(name string) bool {
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	_, ok := knownCompilers[strings.ToLower(name)]
	return ok
}

// ErrCompilerUnavailable is returned when the compiler launcher cannot be
// found on PATH. It includes install instructions when the launcher is known.
type ErrCompilerUnavailable struct {
	Name string
	Info *compilerInfo
}

// NewErrCompilerUnavailable builds the error for name.
func NewErrCompilerUnavailable(name string) ErrCompilerUnavailable {
	e := ErrCompilerUnavailable{Name: name}
	if info, ok := knownCompilers[strings.ToLower(name)]; ok {
		e.Info = &info
	}
	return e
}

func (e ErrCompilerUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but was not found on PATH.", e.Name)

	if e.Info == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nInstall the %s: %s", e.Info.SDK, e.Info.Install)
	if e.Info.Hint != "" {
		fmt.Fprintf(&b, "\n%s", e.Info.Hint)
	}
	return b.String()
}
